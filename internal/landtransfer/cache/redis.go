package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"landadmin/internal/landtransfer/metrics"
)

// ErrDisabled is returned by health checks when no cache is configured.
var ErrDisabled = errors.New("cache is not configured")

const scanBatch = 100

// RedisCache is the go-redis backed Cache. Concurrent misses on one key are
// collapsed into a single load.
type RedisCache struct {
	client  *redis.Client
	group   singleflight.Group
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// RedisOption configures a RedisCache instance.
type RedisOption func(*RedisCache)

func WithLogger(logger *slog.Logger) RedisOption {
	return func(c *RedisCache) { c.logger = logger }
}

func WithMetrics(m *metrics.Metrics) RedisOption {
	return func(c *RedisCache) { c.metrics = m }
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisCache {
	c := &RedisCache{client: client, logger: slog.Default()}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

func (c *RedisCache) Load(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		c.metrics.CacheHit(Family(key))
		return raw, nil
	case !errors.Is(err, redis.Nil):
		c.warn(ctx, "cache read failed", key, err)
	}
	c.metrics.CacheMiss(Family(key))

	// The flight is shared, so one caller's cancellation must not fail the rest.
	v, err, _ := c.group.Do(key, func() (any, error) {
		ctx := context.WithoutCancel(ctx)
		raw, err := load(ctx)
		if err != nil {
			return nil, err
		}
		c.Put(ctx, key, raw, ttl)
		return raw, nil
	})
	if err != nil {
		return nil, err
	}
	return v.([]byte), nil
}

func (c *RedisCache) Put(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.warn(ctx, "cache write failed", key, err)
	}
}

// Invalidate deletes the set's keys and every key under its prefixes.
func (c *RedisCache) Invalidate(ctx context.Context, set Set) {
	if len(set.Keys) > 0 {
		if err := c.client.Del(ctx, set.Keys...).Err(); err != nil {
			c.warn(ctx, "cache invalidation failed", set.Keys[0], err)
		}
	}
	for _, prefix := range set.Prefixes {
		if err := c.deletePrefix(ctx, prefix); err != nil {
			c.warn(ctx, "cache prefix invalidation failed", prefix, err)
		}
	}
}

func (c *RedisCache) deletePrefix(ctx context.Context, prefix string) error {
	iter := c.client.Scan(ctx, 0, prefix+"*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) > 0 {
		return c.client.Del(ctx, batch...).Err()
	}
	return nil
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) warn(ctx context.Context, msg, key string, err error) {
	c.metrics.CacheError(Family(key))
	c.logger.WarnContext(ctx, msg, "key", key, "error", err)
}
