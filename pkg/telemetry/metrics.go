package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides Prometheus metrics for planning and execution. A
// disabled collector is a safe no-op so call sites never need nil checks.
type Metrics struct {
	config MetricsConfig

	plansGenerated  *prometheus.CounterVec
	actionsPlanned  *prometheus.CounterVec
	actionsApplied  *prometheus.CounterVec
	executeDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

// NewMetrics creates a metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return &Metrics{config: cfg}
	}

	registry := prometheus.NewRegistry()
	m := &Metrics{
		config:   cfg,
		registry: registry,

		plansGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "plans_generated_total",
				Help:      "Total number of reconciliation plans generated",
			},
			[]string{"status"},
		),
		actionsPlanned: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "actions_planned_total",
				Help:      "Total number of actions emitted into plans",
			},
			[]string{"action", "service"},
		),
		actionsApplied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: cfg.Namespace,
				Name:      "actions_applied_total",
				Help:      "Total number of plan actions applied through the backend",
			},
			[]string{"action", "service", "status"},
		),
		executeDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: cfg.Namespace,
				Name:      "execute_duration_seconds",
				Help:      "Duration of plan execution in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.plansGenerated,
		m.actionsPlanned,
		m.actionsApplied,
		m.executeDuration,
	)
	return m
}

// RecordPlanGenerated counts one planning attempt by outcome status.
func (m *Metrics) RecordPlanGenerated(status string) {
	if m.registry == nil {
		return
	}
	m.plansGenerated.WithLabelValues(status).Inc()
}

// RecordActionPlanned counts one action emitted into a plan.
func (m *Metrics) RecordActionPlanned(action, service string) {
	if m.registry == nil {
		return
	}
	m.actionsPlanned.WithLabelValues(action, service).Inc()
}

// RecordActionApplied counts one applied action by outcome status.
func (m *Metrics) RecordActionApplied(action, service, status string) {
	if m.registry == nil {
		return
	}
	m.actionsApplied.WithLabelValues(action, service, status).Inc()
}

// RecordExecuteDuration observes one execution run's duration.
func (m *Metrics) RecordExecuteDuration(status string, d time.Duration) {
	if m.registry == nil {
		return
	}
	m.executeDuration.WithLabelValues(status).Observe(d.Seconds())
}

// Handler returns an HTTP handler exposing the metrics registry, or nil
// when metrics are disabled.
func (m *Metrics) Handler() http.Handler {
	if m.registry == nil {
		return nil
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
