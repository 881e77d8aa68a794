// Package middleware provides HTTP middleware components for the API server.
package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisRateLimitStore implements RateLimitStore backed by Redis, so rate
// limits are shared across API instances. It uses a fixed window counter
// (INCR + EXPIRE on first hit).
//
// Redis failures fail open: a request is allowed rather than blocked when
// the store is unreachable. Fail-open events are counted via the metrics
// instance when one is configured.
type RedisRateLimitStore struct {
	client  *redis.Client
	logger  *slog.Logger
	metrics *Metrics
}

// NewRedisRateLimitStore creates a new Redis-backed rate limit store.
func NewRedisRateLimitStore(client *redis.Client) *RedisRateLimitStore {
	return &RedisRateLimitStore{
		client: client,
		logger: slog.Default(),
	}
}

// WithLogger sets the logger used for fail-open warnings.
func (s *RedisRateLimitStore) WithLogger(logger *slog.Logger) *RedisRateLimitStore {
	s.logger = logger
	return s
}

// WithMetrics sets the metrics instance used to count Redis errors.
func (s *RedisRateLimitStore) WithMetrics(m *Metrics) *RedisRateLimitStore {
	s.metrics = m
	return s
}

// Allow checks if a request from the given key should be allowed.
// Implements the RateLimitStore interface.
func (s *RedisRateLimitStore) Allow(ctx context.Context, key string, config RateLimitConfig) (bool, int, int) {
	redisKey := "ratelimit:" + key

	count, err := s.client.Incr(ctx, redisKey).Result()
	if err != nil {
		s.failOpen("INCR", err)
		return true, config.RequestsPerWindow - 1, 0
	}

	// First hit in the window starts the expiry clock.
	if count == 1 {
		if err := s.client.Expire(ctx, redisKey, config.WindowDuration).Err(); err != nil {
			s.failOpen("EXPIRE", err)
			return true, config.RequestsPerWindow - 1, 0
		}
	}

	if count <= int64(config.RequestsPerWindow) {
		return true, config.RequestsPerWindow - int(count), 0
	}

	ttl, err := s.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		// Missing TTL (e.g. key in an odd state); report the full window.
		ttl = config.WindowDuration
	}
	retryAfter := int(ttl / time.Second)
	if retryAfter <= 0 {
		retryAfter = 1
	}
	return false, 0, retryAfter
}

// failOpen logs a Redis failure and records it in metrics.
func (s *RedisRateLimitStore) failOpen(op string, err error) {
	s.logger.Warn("redis rate limit check failed, allowing request",
		slog.String("op", op),
		slog.String("error", err.Error()))
	if s.metrics != nil {
		s.metrics.IncRateLimitRedisErrors()
	}
}
