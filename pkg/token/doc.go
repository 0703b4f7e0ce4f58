// Package token implements the single-use SSO token subsystem of the ERP
// bridge: issuance, validation and the expiring store backing both.
//
// # Overview
//
// A token is an opaque random string of at least 64 base64url characters. The
// Issuer binds it to an identity snapshot captured at issuance time and writes
// exactly one record to the Store with a 300 second TTL (configurable). The
// Validator consumes the record atomically on first read, so a token is valid
// for at most one successful validation.
//
// # Issuance
//
//	issuer := token.NewIssuer(store, "https://erp.example.com", 64, 5*time.Minute)
//	tok, err := issuer.Issue(ctx, snapshot)
//	// redirect target: https://erp.example.com/auth_user?sso_token=<tok>
//	url := issuer.AuthURL(tok)
//
// # Validation
//
//	validator := token.NewValidator(store, 64)
//	snap, err := validator.Validate(ctx, tok)
//	// err is ErrMalformedToken for syntactically bad input (store untouched)
//	// err is ErrInvalidToken for unknown, consumed and expired tokens alike
//
// # Stores
//
// RedisStore is the production backend; its Take uses GETDEL so concurrent
// validations of the same token yield at most one success. MemoryStore is an
// in-process backend for development and tests with the same Take guarantee
// via a store lock.
//
// Full tokens must never be logged; use Prefix for display.
package token
