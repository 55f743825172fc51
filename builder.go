package authbridge

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/MrEthical07/authbridge/cache"
	"github.com/MrEthical07/authbridge/internal/rate"
	"github.com/MrEthical07/authbridge/mail"
	"github.com/MrEthical07/authbridge/provider"
)

// Builder assembles a Core. Construction order does not matter; Build
// validates the result and a Builder must not be reused after Build.
type Builder struct {
	config Config
	cache  cache.Cache

	identity provider.IdentityProvider
	social   map[string]provider.SocialProvider

	mailer    mail.Sender
	auditSink AuditSink
	logger    *zap.Logger
	registry  prometheus.Registerer

	built bool
}

func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
		social: make(map[string]provider.SocialProvider),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithCache sets the ephemeral-state backend. Required; reset tokens, MFA
// challenges, denylist entries, and rate counters all live here.
func (b *Builder) WithCache(c cache.Cache) *Builder {
	b.cache = c
	return b
}

// WithProvider sets the authoritative identity backend. Required.
func (b *Builder) WithProvider(p provider.IdentityProvider) *Builder {
	b.identity = p
	return b
}

// WithSocialProvider registers a social backend under its Name. Repeatable.
func (b *Builder) WithSocialProvider(p provider.SocialProvider) *Builder {
	if p != nil {
		b.social[p.Name()] = p
	}
	return b
}

// WithMailer sets the outbound email channel. Without one, confirmation
// codes and reset tokens are returned to the caller for delivery.
func (b *Builder) WithMailer(s mail.Sender) *Builder {
	b.mailer = s
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithLogger sets the operational logger. Defaults to a no-op logger.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger
	return b
}

// WithMetricsRegisterer enables Prometheus instrumentation against reg.
// Passing nil with Metrics.Enabled set uses the default registerer.
func (b *Builder) WithMetricsRegisterer(reg prometheus.Registerer) *Builder {
	b.registry = reg
	return b
}

func (b *Builder) Build() (*Core, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if b.cache == nil {
		return nil, errors.New("cache required")
	}
	if b.identity == nil {
		return nil, errors.New("identity provider required")
	}

	logger := b.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	social := make(map[string]provider.SocialProvider, len(b.social))
	for name, p := range b.social {
		social[name] = p
	}

	core := &Core{
		config:   cfg,
		identity: b.identity,
		social:   social,
		cache:    b.cache,
		mailer:   b.mailer,
		logger:   logger,

		resets:     newResetStore(b.cache, cfg.Reset),
		challenges: newChallengeStore(b.cache, cfg.MFA),
		denied:     newDenylist(b.cache, cfg.Denylist),
		totp:       newTOTPManager(cfg.MFA),
		audit:      newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:    newMetrics(cfg.Metrics, b.registry),

		loginLimiter: rate.New(b.cache, rate.Config{
			MaxAttempts: cfg.RateLimit.LoginMaxAttempts,
			Window:      cfg.RateLimit.LoginWindow,
		}),
		registerLimiter: rate.New(b.cache, rate.Config{
			MaxAttempts: cfg.RateLimit.RegisterMaxAttempts,
			Window:      cfg.RateLimit.RegisterWindow,
		}),
		resetLimiter: rate.New(b.cache, rate.Config{
			MaxAttempts: cfg.RateLimit.ResetMaxAttempts,
			Window:      cfg.RateLimit.ResetWindow,
		}),
	}

	b.built = true
	return core, nil
}
