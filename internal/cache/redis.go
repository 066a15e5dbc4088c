package cache

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis caches lookups in a shared Redis instance.
type Redis struct {
	client *redis.Client
	logger *slog.Logger
}

var _ Cache = (*Redis)(nil)

// NewRedis connects to the Redis at url and verifies the connection.
func NewRedis(ctx context.Context, url string, logger *slog.Logger) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Redis{client: client, logger: logger}, nil
}

// Get returns the cached value for key, if any. Backend errors are logged
// and reported as a miss so scraping never stalls on the cache.
func (r *Redis) Get(ctx context.Context, key string) (string, bool) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", false
	}
	if err != nil {
		r.logger.Warn("cache get failed", "key", key, "error", err)
		return "", false
	}
	return val, true
}

// Set stores value under key with the given TTL, best-effort.
func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		r.logger.Warn("cache set failed", "key", key, "error", err)
	}
}

// Close releases the underlying connection pool.
func (r *Redis) Close() error { return r.client.Close() }
