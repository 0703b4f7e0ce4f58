package token

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// DefaultMemoryStoreSize bounds the number of live tokens in a memory store.
const DefaultMemoryStoreSize = 4096

// MemoryStore is an in-process token store for development and test
// deployments. All entries share the store-wide TTL, which matches the single
// token lifetime the bridge issues with.
type MemoryStore struct {
	mu  sync.Mutex
	lru *expirable.LRU[string, []byte]
}

// NewMemoryStore creates a memory store holding up to size entries, each
// expiring ttl after creation.
func NewMemoryStore(size int, ttl time.Duration) *MemoryStore {
	if size <= 0 {
		size = DefaultMemoryStoreSize
	}
	return &MemoryStore{
		lru: expirable.NewLRU[string, []byte](size, nil, ttl),
	}
}

// Put stores value under key. The per-call ttl is ignored; entries expire on
// the store-wide TTL configured at construction.
func (s *MemoryStore) Put(_ context.Context, key string, value []byte, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Add(key, value)
	return nil
}

// Get returns the value for key if present and unexpired.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	return value, nil
}

// Take reads and deletes key under the store lock, so concurrent Take calls
// for the same key yield at most one value.
func (s *MemoryStore) Take(_ context.Context, key string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	value, ok := s.lru.Get(key)
	if !ok {
		return nil, ErrNotFound
	}
	s.lru.Remove(key)
	return value, nil
}

// Delete removes any value for key.
func (s *MemoryStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Remove(key)
	return nil
}

// Ping always succeeds; the store lives in-process.
func (s *MemoryStore) Ping(_ context.Context) error {
	return nil
}

// Close purges all entries.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lru.Purge()
	return nil
}
