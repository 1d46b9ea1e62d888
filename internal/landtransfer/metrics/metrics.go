package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the transfer workflow.
type Metrics struct {
	// Workflow operations by name and outcome (ok, rejected, error)
	Operations *prometheus.CounterVec

	// Operation latency by name
	OperationLatency *prometheus.HistogramVec

	// Cache lookups by key family and result (hit, miss)
	CacheLookups *prometheus.CounterVec

	// Cache errors swallowed by the read-through path
	CacheErrors *prometheus.CounterVec
}

// New registers the transfer metrics on the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers on reg, so tests can use a private registry.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "land_admin_transfer_operations_total",
			Help: "Transfer workflow operations by name and outcome",
		}, []string{"operation", "outcome"}),

		OperationLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "land_admin_transfer_operation_duration_seconds",
			Help:    "Duration of transfer workflow operations including the transaction",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),

		CacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "land_admin_transfer_cache_lookups_total",
			Help: "Transfer cache lookups by key family and result",
		}, []string{"family", "result"}),

		CacheErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "land_admin_transfer_cache_errors_total",
			Help: "Cache failures that fell back to the store",
		}, []string{"operation"}),
	}
}

// ObserveOperation records one finished workflow operation.
func (m *Metrics) ObserveOperation(operation, outcome string, start time.Time) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
	m.OperationLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func (m *Metrics) CacheHit(family string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(family, "hit").Inc()
	}
}

func (m *Metrics) CacheMiss(family string) {
	if m != nil {
		m.CacheLookups.WithLabelValues(family, "miss").Inc()
	}
}

func (m *Metrics) CacheError(operation string) {
	if m != nil {
		m.CacheErrors.WithLabelValues(operation).Inc()
	}
}
