// Package health provides reachability checks for the external
// dependencies surfaced by the readiness probe.
package health

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisChecker reports whether the Redis instance used for rate limiting
// and idempotency keys is reachable.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a health checker for the given Redis client.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING and reports any failure.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}
