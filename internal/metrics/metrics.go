// Package metrics exposes the Prometheus instrumentation for the
// authorization core.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the counters for credential and authorization activity.
type Metrics struct {
	authAttempts   prometheus.Counter
	authFailures   prometheus.Counter
	keyValidations prometheus.Counter
	authzDecisions *prometheus.CounterVec
	catalogWrites  prometheus.Counter
}

var (
	metricsOnce   sync.Once
	globalMetrics *Metrics
)

// New returns the process-wide metrics set (singleton to avoid duplicate
// registration).
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			authAttempts: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cdn_auth_attempts_total",
				Help: "Total number of credential verification attempts",
			}),
			authFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cdn_auth_failures_total",
				Help: "Total number of failed credential verifications",
			}),
			keyValidations: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cdn_api_key_validations_total",
				Help: "Total number of API key validations",
			}),
			authzDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "cdn_authz_decisions_total",
				Help: "Authorization decisions by outcome",
			}, []string{"outcome"}),
			catalogWrites: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "cdn_catalog_writes_total",
				Help: "Total number of object metadata writes",
			}),
		}

		prometheus.MustRegister(
			globalMetrics.authAttempts,
			globalMetrics.authFailures,
			globalMetrics.keyValidations,
			globalMetrics.authzDecisions,
			globalMetrics.catalogWrites,
		)
	})

	return globalMetrics
}

// RecordAuthAttempt records a credential verification attempt.
func (m *Metrics) RecordAuthAttempt() {
	m.authAttempts.Inc()
}

// RecordAuthFailure records a failed credential verification.
func (m *Metrics) RecordAuthFailure() {
	m.authFailures.Inc()
}

// RecordKeyValidation records an API key validation.
func (m *Metrics) RecordKeyValidation() {
	m.keyValidations.Inc()
}

// RecordDecision records an authorization decision outcome ("allow" or
// "deny").
func (m *Metrics) RecordDecision(allowed bool) {
	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	m.authzDecisions.WithLabelValues(outcome).Inc()
}

// RecordCatalogWrite records an object metadata write.
func (m *Metrics) RecordCatalogWrite() {
	m.catalogWrites.Inc()
}
