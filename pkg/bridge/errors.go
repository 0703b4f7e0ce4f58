package bridge

import (
	"errors"
	"fmt"

	"github.com/platinummonkey/erpbridge/pkg/identity"
)

// ErrIdentityNotFound is returned by IdentityResolver implementations when no
// account matches the email.
var ErrIdentityNotFound = errors.New("identity not found")

// FailReason classifies login flow failures. Reasons drive internal logging
// and metrics; handlers collapse them to generic external messages.
type FailReason string

const (
	ReasonMalformedInput         FailReason = "malformed_input"
	ReasonInvalidOrExpiredToken  FailReason = "invalid_or_expired_token"
	ReasonIdentityNotFound       FailReason = "identity_not_found"
	ReasonIdentityNotEnabled     FailReason = "identity_not_enabled"
	ReasonSessionEstablishFailed FailReason = "session_establish_failed"
	ReasonIssuanceFailed         FailReason = "issuance_failed"
)

// FlowError is a classified SSO flow failure.
type FlowError struct {
	Reason FailReason
	// Status carries the account status for identity_not_enabled failures.
	Status identity.Status
	err    error
}

func (e *FlowError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Reason, e.err)
	}
	if e.Status != "" {
		return fmt.Sprintf("%s: status %s", e.Reason, e.Status)
	}
	return string(e.Reason)
}

func (e *FlowError) Unwrap() error {
	return e.err
}

// ReasonOf extracts the FailReason from err, or an empty reason if err is not
// a FlowError.
func ReasonOf(err error) FailReason {
	var fe *FlowError
	if errors.As(err, &fe) {
		return fe.Reason
	}
	return ""
}
