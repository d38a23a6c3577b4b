package health

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRedisCheckerReportsDownBackend(t *testing.T) {
	// Nothing listens on this port; the ping must fail, not hang.
	client := redis.NewClient(&redis.Options{Addr: "127.0.0.1:1", DialTimeout: 1})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := NewRedisChecker(client).HealthCheck(ctx); err == nil {
		t.Error("HealthCheck succeeded against an unreachable Redis")
	}
}
