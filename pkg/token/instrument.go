package token

import (
	"context"
	"errors"
	"time"

	"github.com/platinummonkey/erpbridge/pkg/observability"
)

// InstrumentedStore decorates a Store with per-operation metrics labelled by
// backend. Absent keys count as "not_found" rather than "error"; a miss is an
// expected outcome for single-use tokens.
type InstrumentedStore struct {
	store   Store
	backend string
	metrics *observability.Metrics
}

// NewInstrumentedStore wraps store. A nil metrics returns store unwrapped.
func NewInstrumentedStore(store Store, backend string, metrics *observability.Metrics) Store {
	if metrics == nil {
		return store
	}
	return &InstrumentedStore{
		store:   store,
		backend: backend,
		metrics: metrics,
	}
}

func (s *InstrumentedStore) observe(operation string, start time.Time, err error) {
	status := "success"
	switch {
	case errors.Is(err, ErrNotFound):
		status = "not_found"
	case err != nil:
		status = "error"
	}
	s.metrics.ObserveStoreOperation(operation, s.backend, status, time.Since(start))
}

func (s *InstrumentedStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	start := time.Now()
	err := s.store.Put(ctx, key, value, ttl)
	s.observe("put", start, err)
	return err
}

func (s *InstrumentedStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.store.Get(ctx, key)
	s.observe("get", start, err)
	return value, err
}

func (s *InstrumentedStore) Take(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	value, err := s.store.Take(ctx, key)
	s.observe("take", start, err)
	return value, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.store.Delete(ctx, key)
	s.observe("delete", start, err)
	return err
}

func (s *InstrumentedStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *InstrumentedStore) Close() error {
	return s.store.Close()
}
