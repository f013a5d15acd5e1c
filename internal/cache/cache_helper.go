// Package cache is a small JSON cache-aside layer over Redis. A helper built
// without a client is valid and never caches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

// Cache errors
var (
	ErrCacheNotAvailable = errors.New("cache not available")
	ErrCacheNotFound     = errors.New("cache not found")
)

// SessionUserTTL bounds how stale a cached session user may be.
const SessionUserTTL = 30 * time.Second

type Helper struct {
	client redis.UniversalClient
	prefix string
	logger *slog.Logger
}

func NewHelper(client redis.UniversalClient, prefix string, logger *slog.Logger) *Helper {
	if logger == nil {
		logger = slog.Default()
	}
	return &Helper{client: client, prefix: prefix, logger: logger}
}

func (c *Helper) key(key string) string {
	return c.prefix + key
}

// Get retrieves and unmarshals data from cache
func (c *Helper) Get(ctx context.Context, key string, dest any) error {
	if c == nil || c.client == nil {
		return ErrCacheNotAvailable
	}
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrCacheNotFound
		}
		return fmt.Errorf("cache get: %w", err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("cache unmarshal: %w", err)
	}
	return nil
}

func (c *Helper) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if c == nil || c.client == nil {
		return nil
	}
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("cache marshal: %w", err)
	}
	return c.client.Set(ctx, c.key(key), data, ttl).Err()
}

func (c *Helper) Delete(ctx context.Context, keys ...string) error {
	if c == nil || c.client == nil || len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = c.key(k)
	}
	return c.client.Del(ctx, full...).Err()
}

// SafeDelete deletes keys and logs instead of failing.
func (c *Helper) SafeDelete(ctx context.Context, keys ...string) {
	if err := c.Delete(ctx, keys...); err != nil {
		c.logger.ErrorContext(ctx, "Failed to delete cache keys", "error", err, "keys", keys)
	}
}

// GetOrLoad implements cache-aside. Cache failures fall through to load; a
// nil result from load is not cached.
func GetOrLoad[T any](ctx context.Context, c *Helper, key string, ttl time.Duration, load func() (*T, error)) (*T, error) {
	var cached T
	err := c.Get(ctx, key, &cached)
	if err == nil {
		return &cached, nil
	}
	if !errors.Is(err, ErrCacheNotFound) && !errors.Is(err, ErrCacheNotAvailable) {
		c.logger.WarnContext(ctx, "Cache get error, proceeding to fetch", "error", err)
	}

	value, err := load()
	if err != nil || value == nil {
		return value, err
	}
	if err := c.Set(ctx, key, value, ttl); err != nil {
		c.logger.WarnContext(ctx, "Cache set error", "error", err)
	}
	return value, nil
}

func (c *Helper) HealthCheck(ctx context.Context) error {
	if c == nil || c.client == nil {
		return ErrCacheNotAvailable
	}
	if err := c.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("cache health check failed: %w", err)
	}
	return nil
}
