package authbridge

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/MrEthical07/authbridge/cache"
	"github.com/MrEthical07/authbridge/internal/rate"
	"github.com/MrEthical07/authbridge/mail"
	"github.com/MrEthical07/authbridge/provider"
)

// Core is the authentication orchestration engine. It owns no credential
// storage itself: accounts live behind the IdentityProvider, social sign-in
// behind the registered SocialProviders, and all ephemeral flow state in
// the cache. Construct it with New().…().Build(); a zero Core is unusable.
type Core struct {
	config   Config
	identity provider.IdentityProvider
	social   map[string]provider.SocialProvider
	cache    cache.Cache
	mailer   mail.Sender
	logger   *zap.Logger

	resets     *resetStore
	challenges *challengeStore
	denied     *denylist
	totp       *totpManager
	audit      *auditDispatcher
	metrics    *metrics

	loginLimiter    *rate.Limiter
	registerLimiter *rate.Limiter
	resetLimiter    *rate.Limiter
}

func (c *Core) ready() error {
	if c == nil || c.identity == nil || c.cache == nil {
		return ErrCoreNotReady
	}
	return nil
}

// Login verifies credentials. When the account has a second factor, the
// password check still runs first and the result carries a challenge
// instead of tokens; no session exists until VerifyMFAChallenge succeeds.
func (c *Core) Login(ctx context.Context, identifier, password string) (*LoginResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	if err := c.checkLoginThrottle(ctx, identifier); err != nil {
		return nil, err
	}

	identity, err := c.identity.VerifyCredentials(ctx, identifier, password)
	if err != nil {
		mapped := mapProviderErr(err)
		if errors.Is(mapped, ErrInvalidCredentials) {
			c.recordLoginFailure(ctx, identifier)
		}
		c.emit(ctx, "login", "", false, mapped)
		c.metrics.op("login", resultFailure)
		return nil, mapped
	}

	_ = c.loginLimiter.Reset(ctx, "login", c.throttleSubject(ctx, identifier))

	if identity.MFAKind != "" {
		result, err := c.openChallenge(ctx, identity)
		if err != nil {
			return nil, err
		}
		c.emit(ctx, "login.mfa_required", identity.ID, true, nil)
		c.metrics.mfaChallenge(result.MFAKind, "issued")
		return result, nil
	}

	tokens, err := c.identity.IssueTokens(ctx, identity.ID)
	if err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "login", identity.ID, false, mapped)
		c.metrics.op("login", resultFailure)
		return nil, mapped
	}

	c.emit(ctx, "login", identity.ID, true, nil)
	c.metrics.op("login", resultSuccess)
	c.metrics.sessionIssued()
	return &LoginResult{Tokens: sessionTokens(tokens)}, nil
}

// RefreshSession rotates the refresh token and mints a new access token.
// A consumed or unknown refresh token reports ErrRevoked; presenting an
// already-rotated token also destroys the live session it raced against.
func (c *Core) RefreshSession(ctx context.Context, refreshToken string) (*SessionTokens, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	tokens, err := c.identity.Refresh(ctx, refreshToken)
	if err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "refresh", "", false, mapped)
		c.metrics.op("refresh", resultFailure)
		return nil, mapped
	}

	c.emit(ctx, "refresh", "", true, nil)
	c.metrics.op("refresh", resultSuccess)
	c.metrics.sessionIssued()
	return sessionTokens(tokens), nil
}

// Logout revokes the session behind accessToken and denylists the token
// itself so it stops validating before its natural expiry.
func (c *Core) Logout(ctx context.Context, accessToken string) error {
	if err := c.ready(); err != nil {
		return err
	}

	if err := c.identity.Revoke(ctx, accessToken); err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "logout", "", false, mapped)
		c.metrics.op("logout", resultFailure)
		return mapped
	}
	if err := c.denied.Add(ctx, accessToken); err != nil {
		c.logger.Warn("denylist write failed after revoke", zap.Error(err))
	}

	c.emit(ctx, "logout", "", true, nil)
	c.metrics.op("logout", resultSuccess)
	return nil
}

// GetUserInfo resolves accessToken to its account. Denylisted tokens fail
// with ErrRevoked before the backend is consulted.
func (c *Core) GetUserInfo(ctx context.Context, accessToken string) (*UserIdentity, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	denied, err := c.denied.Contains(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	if denied {
		return nil, ErrRevoked
	}

	identity, err := c.identity.GetUserInfo(ctx, accessToken)
	if err != nil {
		return nil, mapProviderErr(err)
	}
	return userIdentity(identity), nil
}

// AuditDropped reports how many audit events were discarded because the
// buffer was full.
func (c *Core) AuditDropped() uint64 {
	if c == nil {
		return 0
	}
	return c.audit.Dropped()
}

// Close flushes the audit dispatcher. The Core must not be used afterward.
func (c *Core) Close() {
	if c == nil {
		return
	}
	c.audit.Close()
}

func (c *Core) checkLoginThrottle(ctx context.Context, identifier string) error {
	if err := c.loginLimiter.Check(ctx, "login", c.throttleSubject(ctx, identifier)); err != nil {
		if errors.Is(err, rate.ErrLimited) {
			c.metrics.op("login", resultRateLimited)
			return ErrRateLimited
		}
		return ErrProviderUnavailable
	}
	return nil
}

func (c *Core) recordLoginFailure(ctx context.Context, identifier string) {
	if err := c.loginLimiter.RecordFailure(ctx, "login", c.throttleSubject(ctx, identifier)); err != nil && !errors.Is(err, rate.ErrLimited) {
		c.logger.Warn("login throttle update failed", zap.Error(err))
	}
}

// throttleSubject keys throttles by identifier, widened with the client IP
// when per-IP limiting is on so one address cannot burn a victim's budget
// from everywhere at once.
func (c *Core) throttleSubject(ctx context.Context, identifier string) string {
	if c.config.RateLimit.PerIP {
		if ip := clientIPFromContext(ctx); ip != "" {
			return identifier + "|" + ip
		}
	}
	return identifier
}

func (c *Core) emit(ctx context.Context, eventType, userID string, success bool, opErr error) {
	event := AuditEvent{
		Timestamp: time.Now(),
		EventType: eventType,
		UserID:    userID,
		IP:        clientIPFromContext(ctx),
		Success:   success,
	}
	if opErr != nil {
		event.Error = opErr.Error()
	}
	c.audit.Emit(ctx, event)
}

// mapProviderErr folds the provider error set onto the Core taxonomy.
func mapProviderErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, provider.ErrExists):
		return ErrAlreadyExists
	case errors.Is(err, provider.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, provider.ErrInvalidCredentials):
		return ErrInvalidCredentials
	case errors.Is(err, provider.ErrNotConfirmed):
		return ErrNotConfirmed
	case errors.Is(err, provider.ErrInvalidCode):
		return ErrInvalidCode
	case errors.Is(err, provider.ErrExpired):
		return ErrExpired
	case errors.Is(err, provider.ErrInvalidToken):
		return ErrInvalidToken
	case errors.Is(err, provider.ErrRevoked):
		return ErrRevoked
	case errors.Is(err, provider.ErrRejected):
		return ErrProviderRejected
	case errors.Is(err, provider.ErrUnavailable):
		return ErrProviderUnavailable
	default:
		return err
	}
}

func sessionTokens(t *provider.Tokens) *SessionTokens {
	if t == nil {
		return nil
	}
	return &SessionTokens{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		ExpiresAt:    t.ExpiresAt,
	}
}

func userIdentity(i *provider.Identity) *UserIdentity {
	if i == nil {
		return nil
	}
	return &UserIdentity{
		ID:         i.ID,
		Identifier: i.Identifier,
		Confirmed:  i.Confirmed,
		MFAKind:    MFAKind(i.MFAKind),
		Attributes: i.Attributes,
	}
}
