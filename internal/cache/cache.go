// Package cache keeps short-lived copies of FULTec responses in Redis so
// that polling dashboards do not hammer the backend.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const versionKey = "posto:cache:version"

// Observer is told about every lookup; observability.Metrics satisfies it.
type Observer interface {
	ObserveCache(hit bool)
}

// Cache is safe to use as a nil pointer, in which case every lookup goes
// straight to the loader.
type Cache struct {
	client   *redis.Client
	ttl      time.Duration
	observer Observer
	logger   *slog.Logger
	flight   singleflight.Group
}

func New(client *redis.Client, ttl time.Duration, observer Observer) *Cache {
	return &Cache{client: client, ttl: ttl, observer: observer, logger: slog.Default()}
}

// Connect dials addr and pings it.
func Connect(ctx context.Context, addr string) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: ping %s: %w", addr, err)
	}
	return client, nil
}

// Key joins parts with the current cache version so Bump invalidates every
// entry at once.
func (c *Cache) Key(ctx context.Context, parts ...string) (string, error) {
	joined := "posto:" + strings.Join(parts, ":")
	if c == nil || c.client == nil {
		return joined, nil
	}
	ver, err := c.client.Get(ctx, versionKey).Int64()
	if errors.Is(err, redis.Nil) {
		ver = 1
		if err := c.client.SetNX(ctx, versionKey, ver, 0).Err(); err != nil {
			return "", err
		}
	} else if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s:v%d", joined, ver), nil
}

// Fetch decodes the cached value at key, or runs loader and stores its
// JSON. Concurrent misses on one key share a single loader call, which runs
// with the first caller's context values but outlives its cancellation.
func Fetch[T any](ctx context.Context, c *Cache, key string, loader func(context.Context) (T, error)) (T, error) {
	var zero T
	if loader == nil {
		return zero, errors.New("cache: loader required")
	}
	if c == nil || c.client == nil {
		return loader(ctx)
	}

	payload, err := c.client.Get(ctx, key).Bytes()
	if err == nil {
		var cached T
		if err := json.Unmarshal(payload, &cached); err == nil {
			c.observe(true)
			return cached, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		return zero, err
	}
	c.observe(false)

	ch := c.flight.DoChan(key, func() (any, error) {
		loadCtx := context.WithoutCancel(ctx)
		value, err := loader(loadCtx)
		if err != nil {
			return nil, err
		}
		c.store(loadCtx, key, value)
		return value, nil
	})

	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return zero, res.Err
		}
		return res.Val.(T), nil
	}
}

// store writes value under key. A failed write only costs the next
// request a reload, so it is logged and not returned.
func (c *Cache) store(ctx context.Context, key string, value any) {
	raw, err := json.Marshal(value)
	if err == nil {
		err = c.client.Set(ctx, key, raw, c.ttl).Err()
	}
	if err != nil {
		c.logger.Warn("cache write failed", "key", key, "error", err)
	}
}

// Bump invalidates every cached entry.
func (c *Cache) Bump(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Incr(ctx, versionKey).Err()
}

func (c *Cache) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Cache) observe(hit bool) {
	if c.observer != nil {
		c.observer.ObserveCache(hit)
	}
}
