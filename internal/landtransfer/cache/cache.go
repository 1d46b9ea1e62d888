// Package cache is the read-through cache in front of transfer queries.
// Every entry is JSON under a land_transfer: key. Failures are logged and
// swallowed so reads always fall back to the store.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

// Cache is implemented by the Redis cache and the no-op cache.
type Cache interface {
	// Load returns the cached bytes for key, calling load on a miss and
	// storing its result for ttl. Errors from load are returned unchanged.
	Load(ctx context.Context, key string, ttl time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error)
	Put(ctx context.Context, key string, value []byte, ttl time.Duration)
	Invalidate(ctx context.Context, set Set)
	Ping(ctx context.Context) error
}

// Fetch is the typed read-through helper used by the service.
func Fetch[T any](ctx context.Context, c Cache, key string, ttl time.Duration, load func(context.Context) (T, error)) (T, error) {
	var out T
	raw, err := c.Load(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return out, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return out, nil
}

// Store writes v under key, used by the preload worker.
func Store(ctx context.Context, c Cache, key string, v any, ttl time.Duration) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	c.Put(ctx, key, raw, ttl)
	return nil
}

// Noop is used when Redis is not configured.
type Noop struct{}

func (Noop) Load(ctx context.Context, _ string, _ time.Duration, load func(context.Context) ([]byte, error)) ([]byte, error) {
	return load(ctx)
}

func (Noop) Put(context.Context, string, []byte, time.Duration) {}

func (Noop) Invalidate(context.Context, Set) {}

func (Noop) Ping(context.Context) error {
	return ErrDisabled
}
