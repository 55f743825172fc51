package authbridge

import (
	"context"
	"errors"
	"fmt"

	"github.com/MrEthical07/authbridge/cache"
	"github.com/MrEthical07/authbridge/internal"
)

const denylistKeyPrefix = "deny:at:"

// denylist remembers revoked access tokens by digest until they would have
// expired anyway. Tokens are opaque here; only their sha256 is keyed.
type denylist struct {
	cache cache.Cache
	cfg   DenylistConfig
}

func newDenylist(c cache.Cache, cfg DenylistConfig) *denylist {
	return &denylist{cache: c, cfg: cfg}
}

func (d *denylist) key(accessToken string) string {
	digest := internal.HashBytes([]byte(accessToken))
	return denylistKeyPrefix + internal.ID(digest[:16]).String()
}

func (d *denylist) Add(ctx context.Context, accessToken string) error {
	if err := d.cache.Set(ctx, d.key(accessToken), []byte{1}, d.cfg.TTL); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}

func (d *denylist) Contains(ctx context.Context, accessToken string) (bool, error) {
	_, err := d.cache.Get(ctx, d.key(accessToken))
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return true, nil
}
