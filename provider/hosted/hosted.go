// Package hosted implements provider.IdentityProvider on the in-tree stack:
// credentials in a CredentialStore, argon2id password hashes, JWT access
// tokens, and cache-backed refresh sessions.
//
// Refresh tokens are opaque strings carrying a session ID and a one-time
// secret. The cache stores only the secret's digest, and consumption is an
// atomic GetDel: presenting a token that was already rotated finds no
// session and surfaces as revocation, which also covers replay of a stolen
// predecessor token since the rotation itself destroyed the session.
package hosted

import (
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/MrEthical07/authbridge/cache"
	"github.com/MrEthical07/authbridge/internal"
	"github.com/MrEthical07/authbridge/jwt"
	"github.com/MrEthical07/authbridge/password"
	"github.com/MrEthical07/authbridge/provider"
	"github.com/MrEthical07/authbridge/store"
)

const (
	sessionKeyPrefix = "hosted:sess:"
	confirmKeyPrefix = "hosted:confirm:"
)

// Config tunes session and confirmation lifetimes.
type Config struct {
	// SessionTTL bounds how long a refresh token stays redeemable.
	SessionTTL time.Duration
	// ConfirmationTTL bounds how long a sign-up confirmation code stays
	// redeemable.
	ConfirmationTTL time.Duration
	// ConfirmationDigits is the confirmation code length, 4 to 10.
	ConfirmationDigits int
	// AutoConfirm creates accounts active immediately, with no confirmation
	// code leg. For deployments where the identifier is not a reachable
	// address worth proving.
	AutoConfirm bool
}

func (c *Config) withDefaults() Config {
	out := *c
	if out.SessionTTL <= 0 {
		out.SessionTTL = 30 * 24 * time.Hour
	}
	if out.ConfirmationTTL <= 0 {
		out.ConfirmationTTL = 24 * time.Hour
	}
	if out.ConfirmationDigits == 0 {
		out.ConfirmationDigits = 6
	}
	return out
}

// Provider is the self-hosted identity backend.
type Provider struct {
	cfg    Config
	store  store.CredentialStore
	hasher *password.Hasher
	tokens *jwt.Manager
	cache  cache.Cache
}

func New(cfg Config, st store.CredentialStore, hasher *password.Hasher, tokens *jwt.Manager, c cache.Cache) (*Provider, error) {
	if st == nil || hasher == nil || tokens == nil || c == nil {
		return nil, errors.New("hosted: store, hasher, token manager, and cache are all required")
	}
	cfg = cfg.withDefaults()
	if cfg.ConfirmationDigits < 4 || cfg.ConfirmationDigits > 10 {
		return nil, errors.New("hosted: confirmation digits must be 4 to 10")
	}
	return &Provider{cfg: cfg, store: st, hasher: hasher, tokens: tokens, cache: c}, nil
}

// sessionRecord is the cache value behind one refresh token. SecretHash is
// the sha256 of the token's secret half; the secret itself never lands in
// the cache.
type sessionRecord struct {
	UserID     string    `json:"uid"`
	SecretHash []byte    `json:"sh"`
	IssuedAt   time.Time `json:"iat"`
	ExpiresAt  time.Time `json:"exp"`
}

func (p *Provider) SignUp(ctx context.Context, identifier, pass string, attrs map[string]string) (*provider.SignUpResult, error) {
	hash, err := p.hasher.Hash(pass)
	if err != nil {
		return nil, err
	}

	rec := &store.Record{
		ID:           uuid.NewString(),
		Identifier:   identifier,
		PasswordHash: hash,
		Confirmed:    p.cfg.AutoConfirm,
		Attributes:   attrs,
	}
	if err := p.store.Create(ctx, rec); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return nil, provider.ErrExists
		}
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}

	if p.cfg.AutoConfirm {
		return &provider.SignUpResult{
			Identity:  identityFromRecord(rec),
			Confirmed: true,
		}, nil
	}

	code, err := internal.NewNumericCode(p.cfg.ConfirmationDigits)
	if err != nil {
		return nil, err
	}
	digest := sha256.Sum256([]byte(code))
	if err := p.cache.Set(ctx, confirmKeyPrefix+rec.ID, digest[:], p.cfg.ConfirmationTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}

	return &provider.SignUpResult{
		Identity:         identityFromRecord(rec),
		Confirmed:        false,
		ConfirmationCode: code,
	}, nil
}

func (p *Provider) ConfirmSignUp(ctx context.Context, identifier, code string) error {
	rec, err := p.findByIdentifier(ctx, identifier)
	if err != nil {
		return err
	}
	if rec.Confirmed {
		return nil
	}

	stored, err := p.cache.Get(ctx, confirmKeyPrefix+rec.ID)
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return provider.ErrExpired
		}
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	digest := sha256.Sum256([]byte(code))
	if subtle.ConstantTimeCompare(stored, digest[:]) != 1 {
		return provider.ErrInvalidCode
	}

	if err := p.store.SetConfirmed(ctx, rec.ID); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	// Best effort; the code is harmless once the account is confirmed.
	_, _ = p.cache.Delete(ctx, confirmKeyPrefix+rec.ID)
	return nil
}

// ReissueConfirmation replaces any outstanding confirmation code for the
// account and returns the new one. The caller owns delivery.
func (p *Provider) ReissueConfirmation(ctx context.Context, identifier string) (string, error) {
	rec, err := p.findByIdentifier(ctx, identifier)
	if err != nil {
		return "", err
	}
	if rec.Confirmed {
		return "", provider.ErrInvalidCode
	}
	code, err := internal.NewNumericCode(p.cfg.ConfirmationDigits)
	if err != nil {
		return "", err
	}
	digest := sha256.Sum256([]byte(code))
	if err := p.cache.Set(ctx, confirmKeyPrefix+rec.ID, digest[:], p.cfg.ConfirmationTTL); err != nil {
		return "", fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return code, nil
}

func (p *Provider) Authenticate(ctx context.Context, identifier, pass string) (*provider.Tokens, error) {
	identity, err := p.VerifyCredentials(ctx, identifier, pass)
	if err != nil {
		return nil, err
	}
	return p.IssueTokens(ctx, identity.ID)
}

func (p *Provider) VerifyCredentials(ctx context.Context, identifier, pass string) (*provider.Identity, error) {
	rec, err := p.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			// Indistinguishable from a wrong password so probes cannot
			// enumerate accounts.
			return nil, provider.ErrInvalidCredentials
		}
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}

	ok, err := p.hasher.Verify(pass, rec.PasswordHash)
	if err != nil || !ok {
		return nil, provider.ErrInvalidCredentials
	}
	if !rec.Confirmed {
		return nil, provider.ErrNotConfirmed
	}

	if upgrade, err := p.hasher.NeedsUpgrade(rec.PasswordHash); err == nil && upgrade {
		if newHash, err := p.hasher.Hash(pass); err == nil {
			_ = p.store.UpdatePasswordHash(ctx, rec.ID, newHash)
		}
	}

	identity := identityFromRecord(rec)
	return &identity, nil
}

func (p *Provider) IssueTokens(ctx context.Context, userID string) (*provider.Tokens, error) {
	sid, err := internal.NewID()
	if err != nil {
		return nil, err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}

	now := time.Now()
	secretHash := internal.HashSecret(secret)
	rec := sessionRecord{
		UserID:     userID,
		SecretHash: secretHash[:],
		IssuedAt:   now,
		ExpiresAt:  now.Add(p.cfg.SessionTTL),
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	if err := p.cache.Set(ctx, sessionKeyPrefix+sid.String(), data, p.cfg.SessionTTL); err != nil {
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}

	access, expires, err := p.tokens.Mint(userID, sid.String())
	if err != nil {
		return nil, err
	}
	return &provider.Tokens{
		AccessToken:  access,
		RefreshToken: internal.EncodeToken(sid, secret),
		ExpiresAt:    expires,
	}, nil
}

// Refresh rotates the session. The presented token is consumed atomically:
// under concurrent presentation exactly one caller wins and every other
// caller sees revocation.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*provider.Tokens, error) {
	sid, secret, err := internal.DecodeToken(refreshToken)
	if err != nil {
		return nil, provider.ErrInvalidToken
	}

	data, err := p.cache.GetDel(ctx, sessionKeyPrefix+sid.String())
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, provider.ErrRevoked
		}
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, provider.ErrInvalidToken
	}
	digest := internal.HashSecret(secret)
	if subtle.ConstantTimeCompare(rec.SecretHash, digest[:]) != 1 {
		// Wrong secret for a live session ID. The GetDel above already
		// destroyed the session, so a holder of the real token is cut off
		// too; that is the intended response to replay.
		return nil, provider.ErrRevoked
	}
	if time.Now().After(rec.ExpiresAt) {
		return nil, provider.ErrExpired
	}

	return p.IssueTokens(ctx, rec.UserID)
}

func (p *Provider) Revoke(ctx context.Context, accessToken string) error {
	claims, err := p.tokens.Parse(accessToken)
	if err != nil {
		return provider.ErrInvalidToken
	}
	if _, err := p.cache.Delete(ctx, sessionKeyPrefix+claims.SID); err != nil {
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return nil
}

func (p *Provider) GetUserInfo(ctx context.Context, accessToken string) (*provider.Identity, error) {
	claims, err := p.tokens.Parse(accessToken)
	if err != nil {
		if jwt.Expired(err) {
			return nil, provider.ErrExpired
		}
		return nil, provider.ErrInvalidToken
	}

	if _, err := p.cache.Get(ctx, sessionKeyPrefix+claims.SID); err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return nil, provider.ErrRevoked
		}
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}

	rec, err := p.store.FindByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, provider.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	identity := identityFromRecord(rec)
	return &identity, nil
}

// SetPassword replaces the stored hash for userID. Existing sessions are
// untouched; callers that want a clean slate revoke separately.
func (p *Provider) SetPassword(ctx context.Context, userID, pass string) error {
	hash, err := p.hasher.Hash(pass)
	if err != nil {
		return err
	}
	if err := p.store.UpdatePasswordHash(ctx, userID, hash); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return provider.ErrNotFound
		}
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return nil
}

func (p *Provider) Lookup(ctx context.Context, identifier string) (*provider.Identity, error) {
	rec, err := p.findByIdentifier(ctx, identifier)
	if err != nil {
		return nil, err
	}
	identity := identityFromRecord(rec)
	return &identity, nil
}

func (p *Provider) UpdateAttributes(ctx context.Context, userID string, attrs map[string]string) error {
	if err := p.store.UpdateAttributes(ctx, userID, attrs); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return provider.ErrNotFound
		}
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return nil
}

func (p *Provider) SetMFA(ctx context.Context, userID, kind, secret string) error {
	if err := p.store.SetMFA(ctx, userID, kind, secret); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return provider.ErrNotFound
		}
		return fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return nil
}

func (p *Provider) MFASecret(ctx context.Context, userID string) (string, string, error) {
	rec, err := p.store.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return "", "", provider.ErrNotFound
		}
		return "", "", fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return rec.MFAKind, rec.MFASecret, nil
}

func (p *Provider) findByIdentifier(ctx context.Context, identifier string) (*store.Record, error) {
	rec, err := p.store.FindByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, provider.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %v", provider.ErrUnavailable, err)
	}
	return rec, nil
}

func identityFromRecord(rec *store.Record) provider.Identity {
	return provider.Identity{
		ID:         rec.ID,
		Identifier: rec.Identifier,
		Confirmed:  rec.Confirmed,
		MFAKind:    rec.MFAKind,
		Attributes: rec.Attributes,
	}
}
