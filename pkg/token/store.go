package token

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by Get and Take when a key is absent. A key that
// was never written, a key that was already consumed and a key that expired
// all look the same to callers.
var ErrNotFound = errors.New("token store: key not found")

// Store is an expiring key-value cache backing token issuance and validation.
//
// Records are write-once, read-once: Put creates them, Take consumes them and
// the store's own expiry removes the leftovers. Take must be atomic per key so
// that concurrent callers observe at most one value for the same key.
type Store interface {
	// Put stores value under key, overwriting any prior value, visible until
	// ttl elapses or the key is removed.
	Put(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value if present and unexpired, else ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Take atomically reads and deletes key, returning ErrNotFound on a miss.
	Take(ctx context.Context, key string) ([]byte, error)

	// Delete removes any value for key. Deleting an absent key is a no-op.
	Delete(ctx context.Context, key string) error

	// Ping checks backend connectivity for health probes.
	Ping(ctx context.Context) error

	// Close releases backend resources.
	Close() error
}
