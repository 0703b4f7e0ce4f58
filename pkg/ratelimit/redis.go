package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisLimiter implements a fixed-window counter in Redis so the limit holds
// across bridge instances.
type RedisLimiter struct {
	client *redis.Client
	config *Config
	prefix string
}

// NewRedisLimiter creates a Redis-backed limiter. Keys are namespaced under
// prefix, which defaults to "sso:ratelimit".
func NewRedisLimiter(client *redis.Client, config *Config, prefix string) *RedisLimiter {
	if config == nil {
		config = DefaultConfig()
	}
	if prefix == "" {
		prefix = "sso:ratelimit"
	}
	return &RedisLimiter{
		client: client,
		config: config,
		prefix: prefix,
	}
}

// Allow increments key's window counter and checks it against the limit. A
// Redis error allows the request; the error is returned so the caller can
// log it.
func (l *RedisLimiter) Allow(ctx context.Context, key string) (Result, error) {
	redisKey := fmt.Sprintf("%s:%s", l.prefix, key)

	pipe := l.client.Pipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, l.config.Window)
	if _, err := pipe.Exec(ctx); err != nil {
		return Result{Allowed: true}, fmt.Errorf("rate limit check failed: %w", err)
	}

	limit := int64(l.config.RequestsPerWindow + l.config.Burst)
	count := incr.Val()
	if count > limit {
		retryAfter := l.config.Window
		if ttl, err := l.client.TTL(ctx, redisKey).Result(); err == nil && ttl > 0 {
			retryAfter = ttl
		}
		return Result{Allowed: false, RetryAfter: retryAfter}, nil
	}

	return Result{Allowed: true, Remaining: int(limit - count)}, nil
}

// Reset clears the counter for key.
func (l *RedisLimiter) Reset(ctx context.Context, key string) error {
	return l.client.Del(ctx, fmt.Sprintf("%s:%s", l.prefix, key)).Err()
}

// TTL returns the time until key's window resets.
func (l *RedisLimiter) TTL(ctx context.Context, key string) (time.Duration, error) {
	return l.client.TTL(ctx, fmt.Sprintf("%s:%s", l.prefix, key)).Result()
}
