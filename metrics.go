package authbridge

import (
	"github.com/prometheus/client_golang/prometheus"
)

const (
	resultSuccess     = "success"
	resultFailure     = "failure"
	resultRateLimited = "rate_limited"
)

// metrics holds the Prometheus instruments. A nil *metrics (instrumentation
// disabled) is safe to call.
type metrics struct {
	operations    *prometheus.CounterVec
	sessions      prometheus.Counter
	mfaChallenges *prometheus.CounterVec
	resetTokens   prometheus.Counter
}

func newMetrics(cfg MetricsConfig, reg prometheus.Registerer) *metrics {
	if !cfg.Enabled {
		return nil
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "authbridge"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "operations_total",
			Help:      "Authentication operations by name and result.",
		}, []string{"op", "result"}),
		sessions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "sessions_issued_total",
			Help:      "Sessions issued, counting logins, MFA completions, refreshes, and social logins.",
		}),
		mfaChallenges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "mfa_challenges_total",
			Help:      "MFA login challenges by factor kind and result.",
		}, []string{"kind", "result"}),
		resetTokens: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: ns,
			Name:      "reset_tokens_issued_total",
			Help:      "Password reset tokens issued.",
		}),
	}

	reg.MustRegister(m.operations, m.sessions, m.mfaChallenges, m.resetTokens)
	return m
}

func (m *metrics) op(name, result string) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(name, result).Inc()
}

func (m *metrics) sessionIssued() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *metrics) mfaChallenge(kind MFAKind, result string) {
	if m == nil {
		return
	}
	m.mfaChallenges.WithLabelValues(string(kind), result).Inc()
}

func (m *metrics) resetIssued() {
	if m == nil {
		return
	}
	m.resetTokens.Inc()
}
