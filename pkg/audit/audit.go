// Package audit records every SSO login attempt crossing the bridge. The
// trail answers "who logged in, from where, and which attempts were refused"
// independently of the operational logs.
package audit

import (
	"context"
	"time"

	"github.com/platinummonkey/erpbridge/pkg/observability"
)

// EventType categorizes an audit event.
type EventType string

const (
	EventTypeTokenLogin    EventType = "sso.token_login"
	EventTypeEmailLogin    EventType = "sso.email_login"
	EventTypeOutboundLogin EventType = "sso.outbound_login"
	EventTypeTokenValidate EventType = "sso.token_validate"
)

// EventStatus is the outcome of an attempt.
type EventStatus string

const (
	EventStatusSuccess EventStatus = "success"
	EventStatusFailure EventStatus = "failure"
)

// Event is one recorded login attempt. TokenPrefix carries the first few
// characters of the token only; full tokens never reach the trail.
type Event struct {
	Timestamp   time.Time   `json:"timestamp"`
	Type        EventType   `json:"type"`
	Status      EventStatus `json:"status"`
	Reason      string      `json:"reason,omitempty"`
	UserID      int64       `json:"user_id,omitempty"`
	Email       string      `json:"email,omitempty"`
	TokenPrefix string      `json:"token_prefix,omitempty"`
	RequestID   string      `json:"request_id,omitempty"`
}

// Recorder persists audit events. Record must not fail the flow it observes;
// implementations swallow their own errors.
type Recorder interface {
	Record(ctx context.Context, event Event)
	Close() error
}

// LogRecorder writes audit events through the structured logger. It is the
// default trail when no audit file is configured.
type LogRecorder struct {
	logger *observability.Logger
}

// NewLogRecorder creates a logger-backed recorder.
func NewLogRecorder(logger *observability.Logger) *LogRecorder {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &LogRecorder{logger: logger}
}

func (r *LogRecorder) Record(ctx context.Context, event Event) {
	fields := map[string]interface{}{
		"audit":  true,
		"type":   event.Type,
		"status": event.Status,
	}
	if event.Reason != "" {
		fields["reason"] = event.Reason
	}
	if event.UserID != 0 {
		fields["user_id"] = event.UserID
	}
	if event.Email != "" {
		fields["email"] = event.Email
	}
	if event.TokenPrefix != "" {
		fields["token"] = event.TokenPrefix
	}
	requestID := event.RequestID
	if requestID == "" {
		requestID = observability.GetRequestID(ctx)
	}
	if requestID != "" {
		fields["request_id"] = requestID
	}
	r.logger.WithFields(fields).Info("sso audit event")
}

func (r *LogRecorder) Close() error {
	return nil
}

// MultiRecorder fans events out to several recorders.
type MultiRecorder struct {
	recorders []Recorder
}

// NewMultiRecorder creates a recorder writing to all of recorders.
func NewMultiRecorder(recorders ...Recorder) *MultiRecorder {
	return &MultiRecorder{recorders: recorders}
}

func (r *MultiRecorder) Record(ctx context.Context, event Event) {
	for _, rec := range r.recorders {
		rec.Record(ctx, event)
	}
}

func (r *MultiRecorder) Close() error {
	var firstErr error
	for _, rec := range r.recorders {
		if err := rec.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
