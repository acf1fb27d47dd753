package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// NewRedisClient builds a pooled client. url may be a redis:// URL or a bare
// host:port address. The connection is not checked here; callers ping with
// RedisHealthCheck once they actually need Redis.
func NewRedisClient(url string) *redis.Client {
	opts, err := redis.ParseURL(url)
	if err != nil {
		opts = &redis.Options{Addr: url}
	}

	// Lock and mirror traffic is small and bursty
	opts.PoolSize = 20
	opts.MinIdleConns = 2
	opts.MaxRetries = 3

	return redis.NewClient(opts)
}

// RedisHealthCheck pings Redis with a short deadline.
func RedisHealthCheck(ctx context.Context, client *redis.Client) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}
	return nil
}
