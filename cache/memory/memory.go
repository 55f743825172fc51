// Package memory provides an in-process cache adapter built on
// patrickmn/go-cache. It is suitable for single-instance deployments, tests,
// and development; the atomic primitives are serialized with a local mutex
// rather than by the backend.
package memory

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/MrEthical07/authbridge/cache"
	gocache "github.com/patrickmn/go-cache"
)

const janitorInterval = time.Minute

// Cache is a cache.Cache backed by a go-cache instance.
type Cache struct {
	mu      sync.Mutex
	backing *gocache.Cache
}

// New creates an empty in-memory cache with a periodic expiry janitor.
func New() *Cache {
	return &Cache{backing: gocache.New(gocache.NoExpiration, janitorInterval)}
}

func ttlOrForever(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return gocache.NoExpiration
	}
	return ttl
}

func (c *Cache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.backing.Set(key, append([]byte(nil), value...), ttlOrForever(ttl))
	return nil
}

func (c *Cache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.backing.Get(key)
	if !ok {
		return nil, cache.ErrMiss
	}
	data, ok := v.([]byte)
	if !ok {
		return nil, cache.ErrMiss
	}
	return append([]byte(nil), data...), nil
}

func (c *Cache) GetDel(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.backing.Get(key)
	if !ok {
		return nil, cache.ErrMiss
	}
	c.backing.Delete(key)
	data, ok := v.([]byte)
	if !ok {
		return nil, cache.ErrMiss
	}
	return data, nil
}

func (c *Cache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, existed := c.backing.Get(key)
	c.backing.Delete(key)
	return existed, nil
}

func (c *Cache) SetIfAbsent(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.backing.Add(key, append([]byte(nil), value...), ttlOrForever(ttl)); err != nil {
		return false, nil
	}
	return true, nil
}

func (c *Cache) Increment(_ context.Context, key string, ttl time.Duration) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.backing.Get(key)
	if !ok {
		c.backing.Set(key, encodeCounter(1), ttlOrForever(ttl))
		return 1, nil
	}
	n := decodeCounter(v) + 1
	// Re-set keeps the original expiry window only when go-cache still
	// tracks it; the window restart on type mismatch is acceptable for the
	// throttling use this primitive serves.
	if _, expiry, found := c.backing.GetWithExpiration(key); found && !expiry.IsZero() {
		c.backing.Set(key, encodeCounter(n), time.Until(expiry))
	} else {
		c.backing.Set(key, encodeCounter(n), ttlOrForever(ttl))
	}
	return n, nil
}

// Counters are stored as decimal text, the same representation Redis INCR
// leaves behind, so readers see one format regardless of backend.
func encodeCounter(n int64) []byte {
	return strconv.AppendInt(nil, n, 10)
}

func decodeCounter(v interface{}) int64 {
	data, ok := v.([]byte)
	if !ok {
		return 0
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return 0
	}
	return n
}
