package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/edi-gateway/internal/infrastructure/config"
	"github.com/cassiomorais/edi-gateway/pkg/retry"
	"github.com/redis/go-redis/v9"
)

// NewClient connects to the Redis that carries the delivery event stream
// and the worker locks. Startup waits for the server with backoff, since
// compose brings it up alongside the service.
func NewClient(ctx context.Context, cfg *config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         cfg.RedisAddr(),
		Password:     cfg.Password,
		DB:           cfg.DB,
		ClientName:   "edi-gateway",
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := waitForServer(ctx, client, cfg); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

type pinger interface {
	Ping(ctx context.Context) *redis.StatusCmd
}

func waitForServer(ctx context.Context, client pinger, cfg *config.RedisConfig) error {
	attempts := cfg.ConnectRetries
	if attempts <= 0 {
		attempts = 5
	}
	delay := cfg.ConnectRetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	err := retry.Do(ctx, retry.Config{
		MaxAttempts:  uint(attempts),
		InitialDelay: delay,
		MaxDelay:     10 * delay,
	}, func() error {
		return client.Ping(ctx).Err()
	})
	if err != nil {
		return fmt.Errorf("failed to connect to Redis at %s after %d attempts: %w", cfg.RedisAddr(), attempts, err)
	}
	return nil
}
