package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/erpbridge/pkg/audit"
	"github.com/platinummonkey/erpbridge/pkg/identity"
	"github.com/platinummonkey/erpbridge/pkg/observability"
	"github.com/platinummonkey/erpbridge/pkg/token"
)

// IdentityResolver looks up a host platform account by email. Implementations
// return ErrIdentityNotFound when no account matches.
type IdentityResolver interface {
	ResolveByEmail(ctx context.Context, email string) (*identity.User, error)
}

// SessionEstablisher binds a web session to a resolved identity.
type SessionEstablisher interface {
	EstablishSession(ctx context.Context, user *identity.User) error
}

// Bridge orchestrates the inbound and outbound SSO flows between the host
// platform and the ERP. Collaborators are injected, never looked up from
// ambient state.
type Bridge struct {
	issuer    *token.Issuer
	validator *token.Validator
	resolver  IdentityResolver
	sessions  SessionEstablisher
	logger    *observability.Logger
	metrics   *observability.Metrics
	audit     audit.Recorder
	now       func() time.Time
}

// New creates a Bridge. metrics may be nil when metrics are disabled.
func New(issuer *token.Issuer, validator *token.Validator, resolver IdentityResolver,
	sessions SessionEstablisher, logger *observability.Logger, metrics *observability.Metrics) *Bridge {
	if logger == nil {
		logger = observability.NewLogger(observability.InfoLevel, nil)
	}
	return &Bridge{
		issuer:    issuer,
		validator: validator,
		resolver:  resolver,
		sessions:  sessions,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// SetAuditRecorder attaches an audit trail. A nil recorder disables the
// trail.
func (b *Bridge) SetAuditRecorder(recorder audit.Recorder) {
	b.audit = recorder
}

// LoginWithToken drives the inbound token flow: consume the token, resolve
// the snapshot's email on the host platform, establish a session. Failures
// are *FlowError values carrying the specific reason.
func (b *Bridge) LoginWithToken(ctx context.Context, tok string) (user *identity.User, err error) {
	defer func() { b.recordAudit(ctx, audit.EventTypeTokenLogin, user, "", tok, err) }()

	snap, err := b.consumeToken(ctx, tok, "token")
	if err != nil {
		return nil, err
	}

	user, err = b.resolveEnabled(ctx, snap.Email, "token")
	if err != nil {
		return nil, err
	}

	if err = b.establish(ctx, user, "token"); err != nil {
		return nil, err
	}

	b.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   token.Prefix(tok),
	}).Info("session established from ERP token")
	b.observeLogin("token", "success")
	return user, nil
}

// LoginWithEmail drives the inbound email flow. There is no possession proof
// on this path; it must only be reachable from a network path the deployment
// trusts (see the package documentation).
func (b *Bridge) LoginWithEmail(ctx context.Context, email string) (user *identity.User, err error) {
	defer func() { b.recordAudit(ctx, audit.EventTypeEmailLogin, user, email, "", err) }()

	if err = identity.ValidateEmail(email); err != nil {
		b.logger.Warn("email login rejected: malformed email")
		b.observeLogin("email", string(ReasonMalformedInput))
		return nil, &FlowError{Reason: ReasonMalformedInput, err: err}
	}

	user, err = b.resolveEnabled(ctx, email, "email")
	if err != nil {
		return nil, err
	}

	if err = b.establish(ctx, user, "email"); err != nil {
		return nil, err
	}

	b.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
	}).Info("session established from ERP email claim")
	b.observeLogin("email", "success")
	return user, nil
}

// OutboundLogin resolves the caller's identity and issues a single-use token
// for navigating into the ERP, returning the auth URL and the resolved user.
func (b *Bridge) OutboundLogin(ctx context.Context, email string) (authURL string, user *identity.User, err error) {
	defer func() { b.recordAudit(ctx, audit.EventTypeOutboundLogin, user, email, "", err) }()

	if err = identity.ValidateEmail(email); err != nil {
		b.observeLogin("outbound", string(ReasonMalformedInput))
		return "", nil, &FlowError{Reason: ReasonMalformedInput, err: err}
	}

	user, err = b.resolveEnabled(ctx, email, "outbound")
	if err != nil {
		return "", nil, err
	}

	authURL, err = b.IssueOutbound(ctx, user)
	if err != nil {
		return "", nil, err
	}

	b.observeLogin("outbound", "success")
	return authURL, user, nil
}

// IssueOutbound captures a snapshot of user and issues a single-use token,
// returning the ERP redirect URL embedding it.
func (b *Bridge) IssueOutbound(ctx context.Context, user *identity.User) (string, error) {
	snap, err := identity.NewSnapshot(user, b.now())
	if err != nil {
		return "", &FlowError{Reason: ReasonMalformedInput, err: err}
	}

	tok, err := b.issuer.Issue(ctx, snap)
	if err != nil {
		b.logger.WithError(err).Error("token issuance failed")
		return "", &FlowError{Reason: ReasonIssuanceFailed, err: err}
	}

	b.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   token.Prefix(tok),
	}).Info("SSO token issued")
	if b.metrics != nil {
		b.metrics.TokensIssuedTotal.Inc()
	}
	return b.issuer.AuthURL(tok), nil
}

// ValidateForERP consumes tok on behalf of the ERP and returns the freshly
// resolved identity. The snapshot supplies the email; enablement is checked
// against the live lookup, not the snapshot.
func (b *Bridge) ValidateForERP(ctx context.Context, tok string) (user *identity.User, err error) {
	defer func() { b.recordAudit(ctx, audit.EventTypeTokenValidate, user, "", tok, err) }()

	snap, err := b.consumeToken(ctx, tok, "validate")
	if err != nil {
		return nil, err
	}

	user, err = b.resolveEnabled(ctx, snap.Email, "validate")
	if err != nil {
		return nil, err
	}

	b.logger.WithFields(map[string]interface{}{
		"user_id": user.ID,
		"email":   user.Email,
		"token":   token.Prefix(tok),
	}).Info("token validated for ERP")
	b.observeLogin("validate", "success")
	return user, nil
}

// consumeToken validates tok and maps validator errors to flow errors.
func (b *Bridge) consumeToken(ctx context.Context, tok string, flow string) (*identity.Snapshot, error) {
	snap, err := b.validator.Validate(ctx, tok)
	if errors.Is(err, token.ErrMalformedToken) {
		b.observeValidation("malformed")
		b.observeLogin(flow, string(ReasonMalformedInput))
		return nil, &FlowError{Reason: ReasonMalformedInput, err: err}
	}
	if err != nil {
		b.logger.WithField("token", token.Prefix(tok)).WithError(err).Warn("token rejected")
		b.observeValidation("invalid")
		b.observeLogin(flow, string(ReasonInvalidOrExpiredToken))
		return nil, &FlowError{Reason: ReasonInvalidOrExpiredToken, err: err}
	}
	b.observeValidation("success")
	return snap, nil
}

// resolveEnabled looks up email on the host platform and requires an enabled
// account.
func (b *Bridge) resolveEnabled(ctx context.Context, email string, flow string) (*identity.User, error) {
	user, err := b.resolver.ResolveByEmail(ctx, email)
	if err != nil {
		// Resolver trouble (timeouts included) denies the login the same way
		// a missing account does.
		b.logger.WithField("email", email).WithError(err).Warn("identity resolution failed")
		b.observeLogin(flow, string(ReasonIdentityNotFound))
		return nil, &FlowError{Reason: ReasonIdentityNotFound, err: err}
	}

	if !user.Enabled() {
		b.logger.WithFields(map[string]interface{}{
			"email":  email,
			"status": user.Status,
		}).Warn("identity not enabled")
		b.observeLogin(flow, string(ReasonIdentityNotEnabled))
		return nil, &FlowError{Reason: ReasonIdentityNotEnabled, Status: user.Status}
	}

	return user, nil
}

// establish binds a session to user via the injected collaborator.
func (b *Bridge) establish(ctx context.Context, user *identity.User, flow string) error {
	if err := b.sessions.EstablishSession(ctx, user); err != nil {
		b.logger.WithField("user_id", user.ID).WithError(err).Error("session establishment refused")
		b.observeLogin(flow, string(ReasonSessionEstablishFailed))
		return &FlowError{Reason: ReasonSessionEstablishFailed, err: err}
	}
	return nil
}

// recordAudit writes one trail entry for a finished flow. Full tokens never
// reach the trail, only their prefixes.
func (b *Bridge) recordAudit(ctx context.Context, eventType audit.EventType, user *identity.User, email, tok string, err error) {
	if b.audit == nil {
		return
	}

	event := audit.Event{
		Timestamp: b.now().UTC(),
		Type:      eventType,
		Status:    audit.EventStatusSuccess,
		Email:     email,
		RequestID: observability.GetRequestID(ctx),
	}
	if tok != "" {
		event.TokenPrefix = token.Prefix(tok)
	}
	if user != nil {
		event.UserID = user.ID
		event.Email = user.Email
	}
	if err != nil {
		event.Status = audit.EventStatusFailure
		event.Reason = string(ReasonOf(err))
	}
	b.audit.Record(ctx, event)
}

func (b *Bridge) observeLogin(flow, result string) {
	if b.metrics != nil {
		b.metrics.ObserveLogin(flow, result)
	}
}

func (b *Bridge) observeValidation(result string) {
	if b.metrics != nil {
		b.metrics.ObserveValidation(result)
	}
}
