package health

import (
	"context"
	"testing"

	"github.com/redis/go-redis/v9"
)

func TestRedisChecker_FailsWithoutServer(t *testing.T) {
	// Point at a port nothing listens on so the ping fails fast.
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:1",
	})
	defer client.Close()

	checker := NewRedisChecker(client)
	if err := checker.HealthCheck(context.Background()); err == nil {
		t.Error("HealthCheck succeeded against a dead address")
	}
}

func TestRedisChecker_CancelledContext(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr: "127.0.0.1:1",
	})
	defer client.Close()

	checker := NewRedisChecker(client)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := checker.HealthCheck(ctx); err == nil {
		t.Error("HealthCheck succeeded with cancelled context")
	}
}
