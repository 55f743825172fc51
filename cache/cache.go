// Package cache defines the key/value port used by authbridge for every
// ephemeral security artifact: pending MFA secrets, login challenges, reset
// tokens, rate-limit counters, and the revoked-token denylist.
//
// Entries always carry a TTL; nothing in authbridge relies on a background
// sweep. GetDel and Increment are the only atomic primitives the engine
// depends on, and both must be safe under concurrent callers.
package cache

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrMiss is returned when a key does not exist or has expired.
	ErrMiss = errors.New("cache: key not found")
	// ErrUnavailable is returned when the backing store cannot be reached.
	ErrUnavailable = errors.New("cache: backend unavailable")
)

// Cache is the minimal contract an adapter must satisfy. Implementations
// must treat an expired entry exactly like a missing one.
type Cache interface {
	// Set stores value under key with the given TTL, replacing any prior value.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Get returns the value for key, or ErrMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// GetDel atomically reads and removes key. Under concurrent callers
	// exactly one observes the value; the rest get ErrMiss. This is the
	// primitive behind single-use token consumption.
	GetDel(ctx context.Context, key string) ([]byte, error)

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// SetIfAbsent stores value only when key does not exist and reports
	// whether the write happened.
	SetIfAbsent(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)

	// Increment atomically adds one to the counter at key, initializing it
	// with the given TTL on first use, and returns the new count.
	Increment(ctx context.Context, key string, ttl time.Duration) (int64, error)
}
