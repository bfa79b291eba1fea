// Package metrics exposes Prometheus counters for registrations and record
// store recoveries. Collectors live in a private registry so tests can build
// as many instances as they need.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/patric-chuzhbe/regform/internal/models"
)

const namespace = "regform"

// Registration outcomes.
const (
	OutcomeCreated   = "created"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
	OutcomeError     = "error"
)

// Metrics holds the application collectors.
type Metrics struct {
	registry      *prometheus.Registry
	registrations *prometheus.CounterVec
	recoveries    *prometheus.CounterVec
}

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		registrations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "registrations_total",
				Help:      "Registration attempts by schema and outcome.",
			},
			[]string{"schema", "outcome"},
		),
		recoveries: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "store_recoveries_total",
				Help:      "Times the record store reset its backing file, by reason.",
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		m.registrations,
		m.recoveries,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// ObserveRegistration counts one registration attempt.
func (m *Metrics) ObserveRegistration(schema models.Schema, outcome string) {
	m.registrations.WithLabelValues(string(schema), outcome).Inc()
}

// ObserveRecovery counts one store recovery.
func (m *Metrics) ObserveRecovery(reason string) {
	m.recoveries.WithLabelValues(reason).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
