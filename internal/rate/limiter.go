// Package rate implements fixed-window attempt throttles over the cache
// port. Counters rely on cache TTLs for cleanup; there is no sweeper.
package rate

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/MrEthical07/authbridge/cache"
)

var (
	// ErrLimited is returned when the window's attempt budget is spent.
	ErrLimited = errors.New("rate: limit exceeded")
	// ErrUnavailable is returned when the counter backend fails.
	ErrUnavailable = errors.New("rate: backend unavailable")
)

// Config sets one throttle's budget. A zero MaxAttempts disables the check.
type Config struct {
	MaxAttempts int
	Window      time.Duration
}

// Limiter tracks failed attempts per scope/subject pair.
type Limiter struct {
	cache cache.Cache
	cfg   Config
}

func New(c cache.Cache, cfg Config) *Limiter {
	return &Limiter{cache: c, cfg: cfg}
}

func (l *Limiter) key(scope, subject string) string {
	return "rl:" + scope + ":" + subject
}

// Check returns ErrLimited when subject has no budget left in the current
// window. It does not consume budget.
func (l *Limiter) Check(ctx context.Context, scope, subject string) error {
	if l == nil || l.cfg.MaxAttempts <= 0 {
		return nil
	}
	data, err := l.cache.Get(ctx, l.key(scope, subject))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil
		}
		return errors.Join(ErrUnavailable, err)
	}
	n, _ := strconv.ParseInt(string(data), 10, 64)
	if n >= int64(l.cfg.MaxAttempts) {
		return ErrLimited
	}
	return nil
}

// RecordFailure consumes one unit of budget and reports ErrLimited when the
// budget is now spent. The increment is atomic at the cache layer.
func (l *Limiter) RecordFailure(ctx context.Context, scope, subject string) error {
	if l == nil || l.cfg.MaxAttempts <= 0 {
		return nil
	}
	n, err := l.cache.Increment(ctx, l.key(scope, subject), l.cfg.Window)
	if err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	if n >= int64(l.cfg.MaxAttempts) {
		return ErrLimited
	}
	return nil
}

// Reset clears subject's counter, typically after a success.
func (l *Limiter) Reset(ctx context.Context, scope, subject string) error {
	if l == nil || l.cfg.MaxAttempts <= 0 {
		return nil
	}
	if _, err := l.cache.Delete(ctx, l.key(scope, subject)); err != nil {
		return errors.Join(ErrUnavailable, err)
	}
	return nil
}
