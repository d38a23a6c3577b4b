// Package health implements dependency checks backing the /health and
// /ready endpoints.
package health

import (
	"context"

	"github.com/redis/go-redis/v9"
)

// RedisChecker reports Redis liveness for the readiness probe.
type RedisChecker struct {
	client *redis.Client
}

// NewRedisChecker creates a Redis health checker.
func NewRedisChecker(client *redis.Client) *RedisChecker {
	return &RedisChecker{client: client}
}

// HealthCheck sends a PING.
func (r *RedisChecker) HealthCheck(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
