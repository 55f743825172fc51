package authbridge

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/MrEthical07/authbridge/cache"
	"github.com/MrEthical07/authbridge/internal"
)

const socialStateKeyPrefix = "social:state:"

// InitiateSocialLogin builds the authorization redirect for providerName and
// binds a one-time state nonce to it. The callback must present the state
// unchanged; an unknown or replayed state fails the exchange.
func (c *Core) InitiateSocialLogin(ctx context.Context, providerName, redirectURI string) (*SocialLoginIntent, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	sp, ok := c.social[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}

	id, err := internal.NewID()
	if err != nil {
		return nil, err
	}
	secret, err := internal.NewSecret()
	if err != nil {
		return nil, err
	}
	state := internal.EncodeToken(id, secret)

	digest := internal.HashSecret(secret)
	stored, err := c.cache.SetIfAbsent(ctx, socialStateKeyPrefix+id.String(), digest[:], c.config.Social.StateTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	if !stored {
		// 128-bit ID collision; practically unreachable.
		return nil, ErrProviderUnavailable
	}

	c.emit(ctx, "social.initiate", "", true, nil)
	return &SocialLoginIntent{
		AuthorizeURL: sp.BuildAuthorizeURL(state, redirectURI),
		State:        state,
	}, nil
}

// ExchangeAuthorizationCode consumes the state nonce, redeems code with the
// provider, and tries to link the verified claims to a local account by
// identifier. Linked claims come back with a full session; unlinked claims
// come back bare and the caller decides whether to register them.
func (c *Core) ExchangeAuthorizationCode(ctx context.Context, providerName, code, state, redirectURI string) (*SocialLoginResult, error) {
	if err := c.ready(); err != nil {
		return nil, err
	}

	sp, ok := c.social[providerName]
	if !ok {
		return nil, ErrUnknownProvider
	}

	if err := c.consumeState(ctx, state); err != nil {
		c.emit(ctx, "social.exchange", "", false, err)
		c.metrics.op("social_login", resultFailure)
		return nil, err
	}

	exchange, err := sp.ExchangeCode(ctx, code, redirectURI)
	if err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "social.exchange", "", false, mapped)
		c.metrics.op("social_login", resultFailure)
		return nil, mapped
	}

	result := &SocialLoginResult{
		Claims: SocialClaims{
			Provider:      providerName,
			Subject:       exchange.Claims.Subject,
			Email:         exchange.Claims.Email,
			EmailVerified: exchange.Claims.EmailVerified,
			Name:          exchange.Claims.Name,
		},
	}

	// Only a verified email may link to a local account; an attacker who
	// registers an unverified address at the social backend must not inherit
	// the local account behind it.
	if !exchange.Claims.EmailVerified || exchange.Claims.Email == "" {
		c.emit(ctx, "social.exchange", "", true, nil)
		c.metrics.op("social_login", resultSuccess)
		return result, nil
	}

	identity, err := c.identity.Lookup(ctx, exchange.Claims.Email)
	if err != nil {
		mapped := mapProviderErr(err)
		if errors.Is(mapped, ErrNotFound) {
			c.emit(ctx, "social.exchange", "", true, nil)
			c.metrics.op("social_login", resultSuccess)
			return result, nil
		}
		return nil, mapped
	}

	tokens, err := c.identity.IssueTokens(ctx, identity.ID)
	if err != nil {
		mapped := mapProviderErr(err)
		c.emit(ctx, "social.exchange", identity.ID, false, mapped)
		c.metrics.op("social_login", resultFailure)
		return nil, mapped
	}

	result.Linked = true
	result.Tokens = sessionTokens(tokens)

	c.emit(ctx, "social.exchange", identity.ID, true, nil)
	c.metrics.op("social_login", resultSuccess)
	c.metrics.sessionIssued()
	return result, nil
}

// SocialLogoutURL returns the provider's logout redirect, or "" when the
// provider has none.
func (c *Core) SocialLogoutURL(providerName, redirectURI string) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	sp, ok := c.social[providerName]
	if !ok {
		return "", ErrUnknownProvider
	}
	return sp.BuildLogoutURL(redirectURI), nil
}

// consumeState destroys the state nonce. A second presentation, a forged
// state, or one past its TTL all collapse to ErrStateMismatch.
func (c *Core) consumeState(ctx context.Context, state string) error {
	id, secret, err := internal.DecodeToken(state)
	if err != nil {
		return ErrStateMismatch
	}

	stored, err := c.cache.GetDel(ctx, socialStateKeyPrefix+id.String())
	if err != nil {
		if errors.Is(err, cache.ErrMiss) {
			return ErrStateMismatch
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	digest := internal.HashSecret(secret)
	if subtle.ConstantTimeCompare(stored, digest[:]) != 1 {
		return ErrStateMismatch
	}
	return nil
}
