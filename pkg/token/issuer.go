package token

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/platinummonkey/erpbridge/pkg/identity"
)

const (
	// MinLength is the minimum accepted token length in characters.
	MinLength = 64
	// DefaultTTL is the token lifetime when none is configured.
	DefaultTTL = 300 * time.Second

	erpAuthPath = "/auth_user"
	tokenParam  = "sso_token"
)

// IssuanceError reports a failed token issuance (entropy source or store
// unavailable). Callers may retry.
type IssuanceError struct {
	err error
}

func (e *IssuanceError) Error() string {
	return "token issuance failed: " + e.err.Error()
}

func (e *IssuanceError) Unwrap() error {
	return e.err
}

// Issuer creates single-use SSO tokens bound to identity snapshots.
type Issuer struct {
	store      Store
	erpBaseURL string
	length     int
	ttl        time.Duration
}

// NewIssuer creates a token issuer writing to store. A length below MinLength
// is raised to MinLength; a non-positive ttl falls back to DefaultTTL.
func NewIssuer(store Store, erpBaseURL string, length int, ttl time.Duration) *Issuer {
	if length < MinLength {
		length = MinLength
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Issuer{
		store:      store,
		erpBaseURL: strings.TrimRight(erpBaseURL, "/"),
		length:     length,
		ttl:        ttl,
	}
}

// Issue generates a random token, binds it to snap and stores the record with
// the configured TTL. Exactly one store write per call, no read-back.
func (i *Issuer) Issue(ctx context.Context, snap *identity.Snapshot) (string, error) {
	tok, err := generate(i.length)
	if err != nil {
		return "", &IssuanceError{err: err}
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return "", &IssuanceError{err: err}
	}

	if err := i.store.Put(ctx, tok, payload, i.ttl); err != nil {
		return "", &IssuanceError{err: err}
	}

	return tok, nil
}

// AuthURL returns the ERP redirect target embedding tok. The token alphabet
// is base64url, so no query escaping is needed.
func (i *Issuer) AuthURL(tok string) string {
	return i.erpBaseURL + erpAuthPath + "?" + tokenParam + "=" + tok
}

// TTL returns the configured token lifetime.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// generate returns length characters of base64url-encoded entropy.
func generate(length int) (string, error) {
	raw := make([]byte, (length*3+3)/4)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw)[:length], nil
}

// Prefix returns a log-safe display form of a token. Full tokens never appear
// in logs.
func Prefix(tok string) string {
	if len(tok) <= 10 {
		return tok
	}
	return tok[:10] + "..."
}
