// Package platform provides an HTTP client for the host platform's internal
// user API, implementing the bridge's IdentityResolver and SessionEstablisher
// collaborators.
package platform

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/platinummonkey/erpbridge/pkg/bridge"
	"github.com/platinummonkey/erpbridge/pkg/identity"
	"github.com/platinummonkey/erpbridge/pkg/observability"
)

// DefaultTimeout bounds platform API calls so resolver trouble surfaces as a
// failed lookup instead of a hang.
const DefaultTimeout = 5 * time.Second

// Client talks to the host platform's internal API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *observability.Logger
}

// NewClient creates a platform client. A non-positive timeout falls back to
// DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration, logger *observability.Logger) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

// userEnvelope is the platform's user representation.
type userEnvelope struct {
	ID          int64  `json:"id"`
	Email       string `json:"email"`
	Username    string `json:"username"`
	DisplayName string `json:"displayName"`
	Status      string `json:"status"`
}

// ResolveByEmail looks up a platform account by email. A 404 maps to
// bridge.ErrIdentityNotFound; transport errors and other statuses are
// reported as lookup failures.
func (c *Client) ResolveByEmail(ctx context.Context, email string) (*identity.User, error) {
	endpoint := c.baseURL + "/api/v1/users/by-email?email=" + url.QueryEscape(email)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build platform request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("platform lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, bridge.ErrIdentityNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("platform lookup returned status %d", resp.StatusCode)
	}

	var envelope userEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return nil, fmt.Errorf("failed to decode platform user: %w", err)
	}

	return &identity.User{
		ID:          envelope.ID,
		Email:       envelope.Email,
		Username:    envelope.Username,
		DisplayName: envelope.DisplayName,
		Status:      identity.Status(envelope.Status),
	}, nil
}

// EstablishSession asks the platform to bind a web session to user.
func (c *Client) EstablishSession(ctx context.Context, user *identity.User) error {
	payload, err := json.Marshal(map[string]interface{}{
		"user_id": user.ID,
	})
	if err != nil {
		return fmt.Errorf("failed to encode session request: %w", err)
	}

	endpoint := c.baseURL + "/api/v1/sessions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build platform request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("platform session call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		c.logger.WithField("status", resp.StatusCode).Warn("platform refused session")
		return fmt.Errorf("platform refused session: status %d", resp.StatusCode)
	}

	return nil
}
