package authbridge

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/MrEthical07/authbridge/cache"
	"github.com/MrEthical07/authbridge/internal"
)

const (
	resetKeyPrefix        = "reset:tok:"
	resetSubjectKeyPrefix = "reset:sub:"
	resetAttemptKeyPrefix = "reset:att:"
)

// resetRecord is the cache value behind one reset token. Only the secret's
// digest is stored.
type resetRecord struct {
	UserID     string    `json:"uid"`
	SecretHash []byte    `json:"sh"`
	ExpiresAt  time.Time `json:"exp"`
}

// resetStore keeps reset tokens in the cache. A subject index key maps each
// account to its current token so a new request supersedes the old one.
type resetStore struct {
	cache cache.Cache
	cfg   ResetConfig
}

func newResetStore(c cache.Cache, cfg ResetConfig) *resetStore {
	return &resetStore{cache: c, cfg: cfg}
}

// Issue creates a token for userID, destroying any outstanding one first.
func (s *resetStore) Issue(ctx context.Context, userID string) (string, time.Time, error) {
	// Supersede: at most one live token per account.
	if old, err := s.cache.GetDel(ctx, resetSubjectKeyPrefix+userID); err == nil {
		_, _ = s.cache.Delete(ctx, resetKeyPrefix+string(old))
		_, _ = s.cache.Delete(ctx, resetAttemptKeyPrefix+string(old))
	}

	id, err := internal.NewID()
	if err != nil {
		return "", time.Time{}, err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return "", time.Time{}, err
	}

	expires := time.Now().Add(s.cfg.TokenTTL)
	secretHash := internal.HashSecret(secret)
	data, err := json.Marshal(resetRecord{UserID: userID, SecretHash: secretHash[:], ExpiresAt: expires})
	if err != nil {
		return "", time.Time{}, err
	}
	if err := s.cache.Set(ctx, resetKeyPrefix+id.String(), data, s.cfg.TokenTTL); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if err := s.cache.Set(ctx, resetSubjectKeyPrefix+userID, []byte(id.String()), s.cfg.TokenTTL); err != nil {
		return "", time.Time{}, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	return internal.EncodeToken(id, secret), expires, nil
}

// Redeem validates and consumes token, returning the account it belongs to.
// Wrong secrets burn attempt budget; consumption is atomic, so concurrent
// redemptions produce exactly one winner.
func (s *resetStore) Redeem(ctx context.Context, token string) (string, error) {
	id, secret, err := internal.DecodeToken(token)
	if err != nil {
		return "", ErrInvalidToken
	}
	key := resetKeyPrefix + id.String()

	data, err := s.cache.Get(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return "", ErrInvalidToken
		}
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	var rec resetRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", ErrInvalidToken
	}
	if time.Now().After(rec.ExpiresAt) {
		_, _ = s.cache.Delete(ctx, key)
		return "", ErrExpired
	}

	digest := internal.HashSecret(secret)
	if subtle.ConstantTimeCompare(rec.SecretHash, digest[:]) != 1 {
		n, err := s.cache.Increment(ctx, resetAttemptKeyPrefix+id.String(), s.cfg.TokenTTL)
		if err != nil {
			return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
		}
		if n >= int64(s.cfg.MaxAttempts) {
			_, _ = s.cache.Delete(ctx, key)
			_, _ = s.cache.Delete(ctx, resetSubjectKeyPrefix+rec.UserID)
			return "", ErrTooManyAttempts
		}
		return "", ErrInvalidToken
	}

	// Consume. The GetDel is the atomicity point; the earlier Get was only
	// a filter, so re-verify what was actually consumed.
	data, err = s.cache.GetDel(ctx, key)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return "", ErrAlreadyConsumed
		}
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", ErrInvalidToken
	}
	if subtle.ConstantTimeCompare(rec.SecretHash, digest[:]) != 1 {
		return "", ErrInvalidToken
	}

	_, _ = s.cache.Delete(ctx, resetSubjectKeyPrefix+rec.UserID)
	_, _ = s.cache.Delete(ctx, resetAttemptKeyPrefix+id.String())
	return rec.UserID, nil
}
