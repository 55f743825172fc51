package authbridge

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/MrEthical07/authbridge/cache"
	"github.com/MrEthical07/authbridge/internal"
)

const (
	mfaChallengeKeyPrefix = "mfa:chal:"
	mfaAttemptKeyPrefix   = "mfa:att:"
	mfaEnrollKeyPrefix    = "mfa:enroll:"
)

// mfaChallenge is one pending second-factor check between a successful
// password verification and session issuance.
type mfaChallenge struct {
	UserID    string    `json:"uid"`
	Kind      MFAKind   `json:"kind"`
	TokenHash []byte    `json:"th"`
	CodeHash  []byte    `json:"ch,omitempty"`
	ExpiresAt time.Time `json:"exp"`
}

// pendingEnrollment is a factor waiting for its first valid code. Secret is
// the TOTP base32 secret or the SMS phone number; CodeHash is set for SMS.
type pendingEnrollment struct {
	Kind      MFAKind   `json:"kind"`
	Secret    string    `json:"secret"`
	CodeHash  []byte    `json:"ch,omitempty"`
	ExpiresAt time.Time `json:"exp"`
}

// challengeStore keeps MFA login challenges and pending enrollments in the
// cache. Challenges are bound to an opaque token whose secret half never
// lands in the cache; attempts are counted in a separate key so the bound
// holds under concurrency.
type challengeStore struct {
	cache cache.Cache
	cfg   MFAConfig
}

func newChallengeStore(c cache.Cache, cfg MFAConfig) *challengeStore {
	return &challengeStore{cache: c, cfg: cfg}
}

// CreateChallenge opens a challenge for userID and returns the opaque token
// the caller must present alongside the user's code. For SMS, smsCode is
// the expected code; empty for TOTP.
func (s *challengeStore) CreateChallenge(ctx context.Context, userID string, kind MFAKind, smsCode string) (string, error) {
	id, err := internal.NewID()
	if err != nil {
		return "", err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return "", err
	}

	tokenHash := internal.HashSecret(secret)
	chal := mfaChallenge{
		UserID:    userID,
		Kind:      kind,
		TokenHash: tokenHash[:],
		ExpiresAt: time.Now().Add(s.cfg.ChallengeTTL),
	}
	if smsCode != "" {
		digest := sha256.Sum256([]byte(smsCode))
		chal.CodeHash = digest[:]
	}

	data, err := json.Marshal(chal)
	if err != nil {
		return "", err
	}
	if err := s.cache.Set(ctx, mfaChallengeKeyPrefix+id.String(), data, s.cfg.ChallengeTTL); err != nil {
		return "", fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return internal.EncodeToken(id, secret), nil
}

// GetChallenge validates the token and returns the live challenge without
// consuming it. A challenge whose attempt budget is spent reports
// ErrTooManyAttempts, correct code or not, until it expires.
func (s *challengeStore) GetChallenge(ctx context.Context, token string) (*mfaChallenge, internal.ID, error) {
	id, secret, err := internal.DecodeToken(token)
	if err != nil {
		return nil, id, ErrInvalidToken
	}

	data, err := s.cache.Get(ctx, mfaChallengeKeyPrefix+id.String())
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, id, ErrExpired
		}
		return nil, id, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	var chal mfaChallenge
	if err := json.Unmarshal(data, &chal); err != nil {
		return nil, id, ErrInvalidToken
	}
	digest := internal.HashSecret(secret)
	if subtle.ConstantTimeCompare(chal.TokenHash, digest[:]) != 1 {
		return nil, id, ErrInvalidToken
	}
	if time.Now().After(chal.ExpiresAt) {
		_, _ = s.cache.Delete(ctx, mfaChallengeKeyPrefix+id.String())
		return nil, id, ErrExpired
	}
	spent, err := s.attemptsSpent(ctx, id)
	if err != nil {
		return nil, id, err
	}
	if spent {
		return nil, id, ErrTooManyAttempts
	}
	return &chal, id, nil
}

// attemptsSpent reads the challenge's failure counter. Counters are decimal
// text, the format Increment leaves behind.
func (s *challengeStore) attemptsSpent(ctx context.Context, id internal.ID) (bool, error) {
	data, err := s.cache.Get(ctx, mfaAttemptKeyPrefix+id.String())
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	n, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return false, nil
	}
	return n >= int64(s.cfg.MaxAttempts), nil
}

// ConsumeChallenge destroys the challenge. Exactly one concurrent caller
// gets true.
func (s *challengeStore) ConsumeChallenge(ctx context.Context, id internal.ID) (bool, error) {
	_, err := s.cache.GetDel(ctx, mfaChallengeKeyPrefix+id.String())
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return false, nil
		}
		return false, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return true, nil
}

// RecordFailure burns one attempt, reporting ErrTooManyAttempts when the
// budget is spent. The counter outlives the spending failure so later
// presentations keep reporting exhaustion rather than a plain wrong code.
func (s *challengeStore) RecordFailure(ctx context.Context, id internal.ID) error {
	n, err := s.cache.Increment(ctx, mfaAttemptKeyPrefix+id.String(), s.cfg.ChallengeTTL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if n >= int64(s.cfg.MaxAttempts) {
		return ErrTooManyAttempts
	}
	return ErrInvalidCode
}

// SavePending stores the account's pending enrollment, replacing any
// earlier one.
func (s *challengeStore) SavePending(ctx context.Context, userID string, p *pendingEnrollment) error {
	p.ExpiresAt = time.Now().Add(s.cfg.EnrollmentTTL)
	data, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.cache.Set(ctx, mfaEnrollKeyPrefix+userID, data, s.cfg.EnrollmentTTL); err != nil {
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return nil
}

// GetPending returns the account's pending enrollment without consuming it.
func (s *challengeStore) GetPending(ctx context.Context, userID string) (*pendingEnrollment, error) {
	data, err := s.cache.Get(ctx, mfaEnrollKeyPrefix+userID)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, ErrExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	var p pendingEnrollment
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, ErrInvalidToken
	}
	if time.Now().After(p.ExpiresAt) {
		_, _ = s.cache.Delete(ctx, mfaEnrollKeyPrefix+userID)
		return nil, ErrExpired
	}
	return &p, nil
}

// DeletePending clears the account's pending enrollment.
func (s *challengeStore) DeletePending(ctx context.Context, userID string) {
	_, _ = s.cache.Delete(ctx, mfaEnrollKeyPrefix+userID)
}
