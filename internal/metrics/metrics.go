package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "divesite"

// Metrics holds the service collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	operations     *prometheus.CounterVec
	durations      *prometheus.HistogramVec
	fieldEdits     *prometheus.CounterVec
	geocodes       *prometheus.CounterVec
	persistErrors  prometheus.Counter
	sites          prometheus.Gauge
	activeSessions prometheus.Gauge
}

// New creates and registers every collector, plus the Go runtime and
// process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Editor operations by name and result.",
		}, []string{"operation", "result"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Editor operation latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"operation"}),
		fieldEdits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "field_edits_total",
			Help:      "Session field edits by field and outcome (changed, unchanged, rejected).",
		}, []string{"field", "outcome"}),
		geocodes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_lookups_total",
			Help:      "Reverse geocode lookups by outcome (applied, stale, failed).",
		}, []string{"outcome"}),
		persistErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "persist_errors_total",
			Help:      "Failed writes to the backing store.",
		}),
		sites: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "catalog_sites",
			Help:      "Sites currently in the catalog.",
		}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Edit sessions currently open.",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.operations, m.durations, m.fieldEdits, m.geocodes,
		m.persistErrors, m.sites, m.activeSessions,
	)
	return m
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Observe records the outcome and latency of an editor operation.
func (m *Metrics) Observe(operation string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.operations.WithLabelValues(operation, result).Inc()
	m.durations.WithLabelValues(operation).Observe(d.Seconds())
}

func (m *Metrics) FieldEdit(field, outcome string) {
	if m == nil {
		return
	}
	m.fieldEdits.WithLabelValues(field, outcome).Inc()
}

func (m *Metrics) Geocode(outcome string) {
	if m == nil {
		return
	}
	m.geocodes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) PersistError() {
	if m == nil {
		return
	}
	m.persistErrors.Inc()
}

func (m *Metrics) SetSites(n int) {
	if m == nil {
		return
	}
	m.sites.Set(float64(n))
}

func (m *Metrics) SetSessions(n int) {
	if m == nil {
		return
	}
	m.activeSessions.Set(float64(n))
}
