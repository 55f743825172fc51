package authbridge

import (
	"strings"
	"testing"
	"time"
)

func TestDefaultConfigValidates(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestConfigValidateRejections(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"zero reset ttl", func(c *Config) { c.Reset.TokenTTL = 0 }, "reset token TTL"},
		{"zero reset attempts", func(c *Config) { c.Reset.MaxAttempts = 0 }, "reset max attempts"},
		{"short mfa digits", func(c *Config) { c.MFA.Digits = 4 }, "mfa digits"},
		{"zero mfa period", func(c *Config) { c.MFA.Period = 0 }, "mfa period"},
		{"wild skew", func(c *Config) { c.MFA.Skew = 5 }, "mfa skew"},
		{"bad algorithm", func(c *Config) { c.MFA.Algorithm = "MD5" }, "mfa algorithm"},
		{"zero challenge ttl", func(c *Config) { c.MFA.ChallengeTTL = 0 }, "challenge TTL"},
		{"zero mfa attempts", func(c *Config) { c.MFA.MaxAttempts = 0 }, "mfa max attempts"},
		{"zero enrollment ttl", func(c *Config) { c.MFA.EnrollmentTTL = 0 }, "enrollment TTL"},
		{"zero denylist ttl", func(c *Config) { c.Denylist.TTL = 0 }, "denylist TTL"},
		{"zero state ttl", func(c *Config) { c.Social.StateTTL = 0 }, "state TTL"},
		{"limit without window", func(c *Config) {
			c.RateLimit.LoginMaxAttempts = 5
			c.RateLimit.LoginWindow = 0
		}, "login rate limit window"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error about %q, got %v", tc.want, err)
			}
		})
	}
}

func TestBuildRejectsCallerConfigMutation(t *testing.T) {
	cfg := DefaultConfig()
	env := newTestCore(t, cfg)

	// Mutating the caller's copy after Build must not reach the Core.
	cfg.Reset.TokenTTL = time.Nanosecond
	if env.core.config.Reset.TokenTTL == time.Nanosecond {
		t.Fatal("expected Core to hold its own config copy")
	}
}
