// Package provider defines the IdentityProvider and SocialProvider ports.
//
// An IdentityProvider owns authentication and session issuance for one
// backend: the in-tree hosted implementation, or a thin wrapper over a
// managed identity service. A SocialProvider wraps one third-party OAuth
// backend and only produces verified identity claims; session issuance for
// social logins stays with the deployment's IdentityProvider.
//
// Adapters map every native failure onto the sentinel errors below. Driver
// and SDK error types must never cross this boundary.
package provider

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrExists is returned by SignUp when the identifier is taken.
	ErrExists = errors.New("provider: identifier already exists")
	// ErrNotFound is returned when no identity matches.
	ErrNotFound = errors.New("provider: identity not found")
	// ErrInvalidCredentials is returned on a failed password check.
	ErrInvalidCredentials = errors.New("provider: invalid credentials")
	// ErrNotConfirmed is returned when the identity has not completed confirmation.
	ErrNotConfirmed = errors.New("provider: identity not confirmed")
	// ErrInvalidCode is returned on a wrong confirmation code.
	ErrInvalidCode = errors.New("provider: invalid confirmation code")
	// ErrExpired is returned when a code or token passed its deadline.
	ErrExpired = errors.New("provider: expired")
	// ErrInvalidToken is returned on a malformed or unverifiable token.
	ErrInvalidToken = errors.New("provider: invalid token")
	// ErrRevoked is returned when a token was rotated away or revoked.
	ErrRevoked = errors.New("provider: token revoked")
	// ErrRejected is returned when a social backend rejects an exchange.
	ErrRejected = errors.New("provider: rejected by backend")
	// ErrUnavailable is returned on transport or backend failure; retryable.
	ErrUnavailable = errors.New("provider: backend unavailable")
)

// Tokens is one issued session: an access/refresh pair and the access
// token's expiry. Both tokens are opaque to the orchestration core and must
// be presented back to the provider that issued them.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

// Identity is the provider-neutral view of a user record.
type Identity struct {
	ID         string
	Identifier string
	Confirmed  bool
	MFAKind    string
	Attributes map[string]string
}

// SignUpResult reports what a SignUp call produced. ConfirmationCode is
// non-empty only when the backend leaves delivery to the caller; managed
// services that send their own confirmation messages return it empty.
type SignUpResult struct {
	Identity  Identity
	Confirmed bool

	ConfirmationCode string
}

// IdentityProvider is the capability surface the orchestration core is
// written against. VerifyCredentials/IssueTokens exist so the core can
// interleave an MFA challenge between the password check and session
// issuance; Authenticate is the single-shot path when MFA is off.
type IdentityProvider interface {
	SignUp(ctx context.Context, identifier, password string, attrs map[string]string) (*SignUpResult, error)
	ConfirmSignUp(ctx context.Context, identifier, code string) error
	Authenticate(ctx context.Context, identifier, password string) (*Tokens, error)
	VerifyCredentials(ctx context.Context, identifier, password string) (*Identity, error)
	IssueTokens(ctx context.Context, userID string) (*Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	Revoke(ctx context.Context, accessToken string) error
	GetUserInfo(ctx context.Context, accessToken string) (*Identity, error)

	// Lookup finds an identity by identifier without checking credentials.
	// Administrative path; never exposed to unauthenticated callers directly.
	Lookup(ctx context.Context, identifier string) (*Identity, error)
	// SetPassword replaces the identity's password out of band, e.g. after a
	// reset challenge succeeded.
	SetPassword(ctx context.Context, userID, password string) error
	// UpdateAttributes merges attrs into the identity's attribute set.
	UpdateAttributes(ctx context.Context, userID string, attrs map[string]string) error
	// SetMFA records the active second factor. An empty kind disables MFA.
	SetMFA(ctx context.Context, userID, kind, secret string) error
	// MFASecret returns the active second factor's kind and secret material,
	// or two empty strings when no factor is enrolled.
	MFASecret(ctx context.Context, userID string) (kind, secret string, err error)
}

// Claims are the verified identity assertions extracted from a social
// backend's token response.
type Claims struct {
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
}

// Exchange is the result of redeeming an authorization code.
type Exchange struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    time.Duration
	Claims       Claims
}

// SocialProvider wraps one OAuth/OIDC backend.
type SocialProvider interface {
	// Name is the stable registry key, e.g. "google".
	Name() string
	// BuildAuthorizeURL is pure URL construction; no I/O.
	BuildAuthorizeURL(state, redirectURI string) string
	// ExchangeCode redeems code and returns verified claims.
	ExchangeCode(ctx context.Context, code, redirectURI string) (*Exchange, error)
	// BuildLogoutURL returns the backend's logout redirect, or "" when the
	// backend has no logout endpoint.
	BuildLogoutURL(redirectURI string) string
}
