package token

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/platinummonkey/erpbridge/pkg/identity"
)

// ErrMalformedToken is returned for empty or syntactically invalid tokens.
// These are rejected before touching the store and the caller may retry with
// valid input.
var ErrMalformedToken = errors.New("malformed token")

// ErrInvalidToken covers unknown, already consumed and expired tokens alike.
// The three cases are indistinguishable so callers cannot probe for token
// existence.
var ErrInvalidToken = errors.New("invalid or expired token")

// Validator consumes single-use tokens and returns the identity snapshot they
// were bound to.
type Validator struct {
	store     Store
	minLength int
}

// NewValidator creates a validator reading from store. A minLength below
// MinLength is raised to MinLength.
func NewValidator(store Store, minLength int) *Validator {
	if minLength < MinLength {
		minLength = MinLength
	}
	return &Validator{store: store, minLength: minLength}
}

// Validate consumes tok and returns the snapshot it was bound to. The token
// is consumed on first read: a second Validate for the same token returns
// ErrInvalidToken, as do store misses and store I/O failures.
func (v *Validator) Validate(ctx context.Context, tok string) (*identity.Snapshot, error) {
	if !wellFormed(tok, v.minLength) {
		return nil, ErrMalformedToken
	}

	payload, err := v.store.Take(ctx, tok)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		// Store trouble, timeouts included, reads as a miss.
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	var snap identity.Snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		// The record was consumed by the Take above; it stays consumed.
		return nil, fmt.Errorf("%w: undecodable record: %v", ErrInvalidToken, err)
	}

	return &snap, nil
}

// wellFormed checks length and the base64url alphabet.
func wellFormed(tok string, minLength int) bool {
	if len(tok) < minLength {
		return false
	}
	for _, c := range tok {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= 'A' && c <= 'Z':
		case c >= '0' && c <= '9':
		case c == '-' || c == '_':
		default:
			return false
		}
	}
	return true
}
