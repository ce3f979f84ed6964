// Package cache fronts the link store with a Redis short_code -> URL cache.
//
// The cache is an accelerator, never a dependency: every Redis failure is
// logged and degrades to a miss (or a skipped write), so its absence can
// only cost latency, not correctness.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "url:"

type Cache struct {
	client *redis.Client
}

func New(client *redis.Client) *Cache {
	return &Cache{client: client}
}

// Get returns the cached URL for the code and whether it was present.
// Errors are reported as misses.
func (c *Cache) Get(ctx context.Context, shortCode string) (string, bool) {
	val, err := c.client.Get(ctx, keyPrefix+shortCode).Result()
	if errors.Is(err, redis.Nil) {
		return "", false
	}
	if err != nil {
		slog.Warn("cache read failed, treating as miss", "short_code", shortCode, "err", err)
		return "", false
	}
	return val, true
}

func (c *Cache) Set(ctx context.Context, shortCode, originalURL string, ttl time.Duration) {
	if err := c.client.Set(ctx, keyPrefix+shortCode, originalURL, ttl).Err(); err != nil {
		slog.Warn("cache write failed", "short_code", shortCode, "err", err)
	}
}

func (c *Cache) Delete(ctx context.Context, shortCode string) {
	if err := c.client.Del(ctx, keyPrefix+shortCode).Err(); err != nil {
		slog.Warn("cache invalidation failed", "short_code", shortCode, "err", err)
	}
}
