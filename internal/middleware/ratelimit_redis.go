package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis, so limits
// hold across service instances. It uses a fixed window counter: INCR on a
// per-key-per-window counter with an expiry of one window.
//
// The store fails open: if Redis is unreachable the request is allowed and
// the error is counted, because dropping traffic on a cache outage is worse
// than briefly losing rate limiting.
type RedisRateLimitStore struct {
	client  *redis.Client
	metrics *Metrics
}

// NewRedisRateLimitStore creates a Redis-backed rate limit store.
// metrics may be nil.
func NewRedisRateLimitStore(client *redis.Client, metrics *Metrics) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client:  client,
		metrics: metrics,
	}
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int) {
	// Window-aligned key so all instances agree on the current window.
	window := time.Now().Unix() / int64(config.WindowDuration.Seconds())
	redisKey := fmt.Sprintf("ratelimit:%s:%d", key, window)

	pipe := s.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, config.WindowDuration)
	if _, err := pipe.Exec(ctx); err != nil {
		if s.metrics != nil {
			s.metrics.IncRateLimitRedisErrors()
		}
		return true, 0
	}

	if incr.Val() <= int64(config.RequestsPerWindow) {
		return true, 0
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		return false, 1
	}
	return false, int(ttl.Seconds())
}
