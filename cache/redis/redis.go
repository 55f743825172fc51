// Package redis provides the Redis-backed cache adapter. This is the
// recommended backend for multi-instance deployments: GETDEL and INCR give
// the single-use and attempt-counting guarantees the engine needs across
// processes.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authbridge/cache"
	goredis "github.com/redis/go-redis/v9"
)

// Cache adapts a go-redis client to the cache.Cache port. All keys are
// namespaced with an optional prefix so several authbridge instances can
// share one Redis database.
type Cache struct {
	client *goredis.Client
	prefix string
}

// New wraps client. prefix may be empty.
func New(client *goredis.Client, prefix string) *Cache {
	return &Cache{client: client, prefix: prefix}
}

func (c *Cache) key(k string) string {
	if c.prefix == "" {
		return k
	}
	return c.prefix + ":" + k
}

func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return nil
}

func (c *Cache) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return data, nil
}

func (c *Cache) GetDel(ctx context.Context, key string) ([]byte, error) {
	data, err := c.client.GetDel(ctx, c.key(key)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, cache.ErrMiss
		}
		return nil, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return data, nil
}

func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	n, err := c.client.Del(ctx, c.key(key)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return n > 0, nil
}

func (c *Cache) SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	ok, err := c.client.SetNX(ctx, c.key(key), value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	return ok, nil
}

func (c *Cache) Increment(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	k := c.key(key)
	n, err := c.client.Incr(ctx, k).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
	}
	if n == 1 && ttl > 0 {
		// First increment owns the window.
		if err := c.client.Expire(ctx, k, ttl).Err(); err != nil {
			return n, fmt.Errorf("%w: %v", cache.ErrUnavailable, err)
		}
	}
	return n, nil
}
