// Package ratelimit throttles the bridge's authentication endpoints. Tokens
// are single-use and unguessable, but the validate and login endpoints still
// see anonymous traffic, so callers are limited per client IP.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Config defines a rate limit window.
type Config struct {
	// RequestsPerWindow is the max requests allowed in the time window
	RequestsPerWindow int
	// Window is the time window for rate limiting
	Window time.Duration
	// Burst allows temporary bursts above the rate
	Burst int
}

// DefaultConfig returns the limit applied to the authentication endpoints.
// Legitimate traffic is one or two requests per login, so the window is tight.
func DefaultConfig() *Config {
	return &Config{
		RequestsPerWindow: 30,
		Window:            time.Minute,
		Burst:             10,
	}
}

// Result is a limiter decision.
type Result struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter decides whether a keyed request may proceed.
type Limiter interface {
	Allow(ctx context.Context, key string) (Result, error)
}

// MemoryLimiter implements a per-key token bucket in process memory. It is
// only suitable for single-instance deployments; multi-instance deployments
// use the Redis limiter so all instances share one budget.
type MemoryLimiter struct {
	config  *Config
	buckets map[string]*bucket
	mu      sync.Mutex
}

type bucket struct {
	tokens     int
	lastUpdate time.Time
}

// NewMemoryLimiter creates an in-process limiter.
func NewMemoryLimiter(config *Config) *MemoryLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	return &MemoryLimiter{
		config:  config,
		buckets: make(map[string]*bucket),
	}
}

// Allow takes one token from key's bucket, refilling on elapsed time.
func (l *MemoryLimiter) Allow(_ context.Context, key string) (Result, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	maxTokens := l.config.RequestsPerWindow + l.config.Burst

	now := time.Now()
	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{tokens: maxTokens, lastUpdate: now}
		l.buckets[key] = b
	}

	elapsed := now.Sub(b.lastUpdate)
	refill := int(elapsed.Seconds() * float64(l.config.RequestsPerWindow) / l.config.Window.Seconds())
	if refill > 0 {
		b.tokens += refill
		if b.tokens > maxTokens {
			b.tokens = maxTokens
		}
		b.lastUpdate = now
	}

	if b.tokens <= 0 {
		return Result{Allowed: false, RetryAfter: l.config.Window}, nil
	}
	b.tokens--
	return Result{Allowed: true, Remaining: b.tokens}, nil
}

// Cleanup removes buckets idle for more than two windows.
func (l *MemoryLimiter) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	for key, b := range l.buckets {
		if now.Sub(b.lastUpdate) > l.config.Window*2 {
			delete(l.buckets, key)
		}
	}
}

// StartCleanup runs Cleanup every window until ctx is cancelled.
func (l *MemoryLimiter) StartCleanup(ctx context.Context) {
	ticker := time.NewTicker(l.config.Window)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				l.Cleanup()
			case <-ctx.Done():
				return
			}
		}
	}()
}
