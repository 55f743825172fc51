package authbridge

import (
	"errors"
	"strings"
	"time"
)

// Config tunes the orchestration core. Zero values fall back to
// DefaultConfig at Build time; pass a modified DefaultConfig rather than
// building Config from scratch.
type Config struct {
	Confirmation ConfirmationConfig
	Reset        ResetConfig
	MFA          MFAConfig
	Denylist     DenylistConfig
	Social       SocialConfig
	RateLimit    RateLimitConfig
	Audit        AuditConfig
	Metrics      MetricsConfig
}

/*
====================================
CONFIRMATION CONFIG
====================================
*/

// ConfirmationConfig covers registration confirmation delivery.
type ConfirmationConfig struct {
	// EmailSubject is the subject line for confirmation code mail.
	EmailSubject string
}

/*
====================================
RESET CONFIG
====================================
*/

// ResetConfig covers the password reset flow.
type ResetConfig struct {
	// TokenTTL bounds how long a reset token stays redeemable.
	TokenTTL time.Duration
	// MaxAttempts bounds wrong-secret presentations against one token
	// before it is destroyed.
	MaxAttempts int
	// EmailSubject is the subject line for reset token mail.
	EmailSubject string
}

/*
====================================
MFA CONFIG
====================================
*/

// MFAConfig covers second-factor enrollment and login challenges.
type MFAConfig struct {
	// Issuer is the label shown in authenticator apps.
	Issuer string
	// Digits is the TOTP and SMS code length.
	Digits int
	// Period is the TOTP step in seconds.
	Period int
	// Skew is how many steps either side of now a TOTP code is accepted.
	Skew int
	// Algorithm is the TOTP HMAC: SHA1, SHA256, or SHA512.
	Algorithm string
	// ChallengeTTL bounds how long a login challenge stays answerable.
	ChallengeTTL time.Duration
	// MaxAttempts bounds wrong codes against one challenge before it is
	// destroyed.
	MaxAttempts int
	// EnrollmentTTL bounds how long a pending enrollment stays confirmable.
	EnrollmentTTL time.Duration
	// PhoneAttribute is the account attribute holding the SMS number.
	PhoneAttribute string
	// PhoneVerifiedAttribute is the account attribute that must equal
	// "true" before SMS enrollment is allowed.
	PhoneVerifiedAttribute string
}

/*
====================================
DENYLIST CONFIG
====================================
*/

// DenylistConfig covers post-logout access token rejection.
type DenylistConfig struct {
	// TTL is how long a revoked access token's digest is remembered. Set it
	// to at least the access token lifetime.
	TTL time.Duration
}

/*
====================================
SOCIAL CONFIG
====================================
*/

// SocialConfig covers the OAuth state handshake.
type SocialConfig struct {
	// StateTTL bounds how long an issued state nonce stays redeemable. The
	// user has this long to complete the provider's consent screen.
	StateTTL time.Duration
}

/*
====================================
RATE LIMIT CONFIG
====================================
*/

// RateLimitConfig holds the per-flow throttle budgets. A zero MaxAttempts
// disables that throttle.
type RateLimitConfig struct {
	LoginMaxAttempts int
	LoginWindow      time.Duration

	RegisterMaxAttempts int
	RegisterWindow      time.Duration

	ResetMaxAttempts int
	ResetWindow      time.Duration

	// PerIP also keys login throttles by the context client IP.
	PerIP bool
}

/*
====================================
AUDIT CONFIG
====================================
*/

// AuditConfig controls the async audit event dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	// DropIfFull drops events instead of blocking the calling flow when the
	// buffer is saturated.
	DropIfFull bool
}

/*
====================================
METRICS CONFIG
====================================
*/

// MetricsConfig controls Prometheus instrumentation.
type MetricsConfig struct {
	Enabled bool
	// Namespace prefixes every metric name. Defaults to "authbridge".
	Namespace string
}

// DefaultConfig returns the baseline configuration. Rate limits default off;
// production deployments should set budgets.
func DefaultConfig() Config {
	return Config{
		Confirmation: ConfirmationConfig{
			EmailSubject: "Confirm your account",
		},
		Reset: ResetConfig{
			TokenTTL:     30 * time.Minute,
			MaxAttempts:  5,
			EmailSubject: "Password reset",
		},
		MFA: MFAConfig{
			Issuer:                 "authbridge",
			Digits:                 6,
			Period:                 30,
			Skew:                   1,
			Algorithm:              "SHA1",
			ChallengeTTL:           5 * time.Minute,
			MaxAttempts:            5,
			EnrollmentTTL:          10 * time.Minute,
			PhoneAttribute:         "phone_number",
			PhoneVerifiedAttribute: "phone_number_verified",
		},
		Denylist: DenylistConfig{
			TTL: time.Hour,
		},
		Social: SocialConfig{
			StateTTL: 10 * time.Minute,
		},
		RateLimit: RateLimitConfig{
			LoginWindow:    15 * time.Minute,
			RegisterWindow: time.Hour,
			ResetWindow:    time.Hour,
			PerIP:          true,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Namespace: "authbridge",
		},
	}
}

// Validate rejects configurations the Core cannot run safely with.
func (c *Config) Validate() error {
	if c.Reset.TokenTTL <= 0 {
		return errors.New("reset token TTL must be positive")
	}
	if c.Reset.MaxAttempts <= 0 {
		return errors.New("reset max attempts must be positive")
	}
	if c.MFA.Digits < 6 || c.MFA.Digits > 10 {
		return errors.New("mfa digits must be 6 to 10")
	}
	if c.MFA.Period <= 0 {
		return errors.New("mfa period must be positive")
	}
	if c.MFA.Skew < 0 || c.MFA.Skew > 2 {
		return errors.New("mfa skew must be 0 to 2")
	}
	switch strings.ToUpper(c.MFA.Algorithm) {
	case "SHA1", "SHA256", "SHA512":
	default:
		return errors.New("mfa algorithm must be SHA1, SHA256, or SHA512")
	}
	if c.MFA.ChallengeTTL <= 0 {
		return errors.New("mfa challenge TTL must be positive")
	}
	if c.MFA.MaxAttempts <= 0 {
		return errors.New("mfa max attempts must be positive")
	}
	if c.MFA.EnrollmentTTL <= 0 {
		return errors.New("mfa enrollment TTL must be positive")
	}
	if c.Denylist.TTL <= 0 {
		return errors.New("denylist TTL must be positive")
	}
	if c.Social.StateTTL <= 0 {
		return errors.New("social state TTL must be positive")
	}
	if c.RateLimit.LoginMaxAttempts > 0 && c.RateLimit.LoginWindow <= 0 {
		return errors.New("login rate limit window must be positive")
	}
	if c.RateLimit.RegisterMaxAttempts > 0 && c.RateLimit.RegisterWindow <= 0 {
		return errors.New("register rate limit window must be positive")
	}
	if c.RateLimit.ResetMaxAttempts > 0 && c.RateLimit.ResetWindow <= 0 {
		return errors.New("reset rate limit window must be positive")
	}
	if c.Audit.Enabled && c.Audit.BufferSize < 0 {
		return errors.New("audit buffer size must be non-negative")
	}
	return nil
}

// cloneConfig returns a deep copy so a caller mutating its Config after
// Build cannot reach into a running Core.
func cloneConfig(cfg Config) Config {
	out := cfg
	return out
}
