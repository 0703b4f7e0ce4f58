package ratelimit

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_Allow(t *testing.T) {
	limiter := NewMemoryLimiter(&Config{RequestsPerWindow: 2, Window: time.Minute, Burst: 1})
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		result, err := limiter.Allow(ctx, "ip:1.2.3.4")
		require.NoError(t, err)
		assert.True(t, result.Allowed, "request %d within budget", i)
	}

	result, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
	assert.Equal(t, time.Minute, result.RetryAfter)
}

func TestMemoryLimiter_IndependentKeys(t *testing.T) {
	limiter := NewMemoryLimiter(&Config{RequestsPerWindow: 1, Window: time.Minute})
	ctx := context.Background()

	result, err := limiter.Allow(ctx, "ip:1.1.1.1")
	require.NoError(t, err)
	require.True(t, result.Allowed)
	result, _ = limiter.Allow(ctx, "ip:1.1.1.1")
	require.False(t, result.Allowed)

	result, err = limiter.Allow(ctx, "ip:2.2.2.2")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMemoryLimiter_Refill(t *testing.T) {
	limiter := NewMemoryLimiter(&Config{RequestsPerWindow: 100, Window: time.Second})
	ctx := context.Background()

	for {
		result, err := limiter.Allow(ctx, "k")
		require.NoError(t, err)
		if !result.Allowed {
			break
		}
	}

	time.Sleep(120 * time.Millisecond)

	result, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed, "tokens refill with elapsed time")
}

func TestMemoryLimiter_Cleanup(t *testing.T) {
	limiter := NewMemoryLimiter(&Config{RequestsPerWindow: 1, Window: time.Nanosecond})
	ctx := context.Background()

	_, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)

	time.Sleep(time.Millisecond)
	limiter.Cleanup()

	limiter.mu.Lock()
	defer limiter.mu.Unlock()
	assert.Empty(t, limiter.buckets)
}

func setupRedisLimiter(t *testing.T, config *Config) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	return NewRedisLimiter(client, config, ""), mr
}

func TestRedisLimiter_Allow(t *testing.T) {
	limiter, _ := setupRedisLimiter(t, &Config{RequestsPerWindow: 2, Window: time.Minute, Burst: 0})
	ctx := context.Background()

	result, err := limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 1, result.Remaining)

	result, err = limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
	assert.Equal(t, 0, result.Remaining)

	result, err = limiter.Allow(ctx, "ip:1.2.3.4")
	require.NoError(t, err)
	assert.False(t, result.Allowed)
}

func TestRedisLimiter_WindowReset(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, &Config{RequestsPerWindow: 1, Window: time.Minute})
	ctx := context.Background()

	result, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	require.True(t, result.Allowed)
	result, _ = limiter.Allow(ctx, "k")
	require.False(t, result.Allowed)

	mr.FastForward(61 * time.Second)

	result, err = limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestRedisLimiter_KeysAreNamespaced(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, nil)

	_, err := limiter.Allow(context.Background(), "ip:1.2.3.4")
	require.NoError(t, err)
	assert.True(t, mr.Exists("sso:ratelimit:ip:1.2.3.4"))
}

func TestRedisLimiter_FailsOpen(t *testing.T) {
	limiter, mr := setupRedisLimiter(t, &Config{RequestsPerWindow: 1, Window: time.Minute})
	mr.Close()

	result, err := limiter.Allow(context.Background(), "k")
	assert.Error(t, err)
	assert.True(t, result.Allowed, "redis outage must not block logins")
}

func TestRedisLimiter_Reset(t *testing.T) {
	limiter, _ := setupRedisLimiter(t, &Config{RequestsPerWindow: 1, Window: time.Minute})
	ctx := context.Background()

	result, _ := limiter.Allow(ctx, "k")
	require.True(t, result.Allowed)
	result, _ = limiter.Allow(ctx, "k")
	require.False(t, result.Allowed)

	require.NoError(t, limiter.Reset(ctx, "k"))

	result, err := limiter.Allow(ctx, "k")
	require.NoError(t, err)
	assert.True(t, result.Allowed)
}

func TestMiddleware(t *testing.T) {
	limiter := NewMemoryLimiter(&Config{RequestsPerWindow: 1, Window: time.Minute})
	handler := Middleware(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("POST", "/erp/validate-token", nil)
	req.RemoteAddr = "1.2.3.4:5678"

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "0", rec.Header().Get("X-RateLimit-Remaining"))

	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.JSONEq(t, `{"error":"rate limit exceeded","retry_after":60}`, rec.Body.String())
}

func TestMiddleware_KeysByForwardedFor(t *testing.T) {
	limiter := NewMemoryLimiter(&Config{RequestsPerWindow: 1, Window: time.Minute})
	handler := Middleware(limiter, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for _, ip := range []string{"10.0.0.1", "10.0.0.2"} {
		req := httptest.NewRequest("POST", "/erp/api-login", nil)
		req.RemoteAddr = "127.0.0.1:1"
		req.Header.Set("X-Forwarded-For", ip)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "distinct forwarded clients get distinct budgets")
	}
}
