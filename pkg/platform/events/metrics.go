package events

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics counts event deliveries.
type Metrics struct {
	Published *prometheus.CounterVec
	Failures  *prometheus.CounterVec
	Dropped   prometheus.Counter
}

// NewMetrics registers event metrics on the default registerer.
func NewMetrics() *Metrics {
	return NewMetricsWithRegisterer(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegisterer registers event metrics on reg.
func NewMetricsWithRegisterer(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "land_admin_events_published_total",
			Help: "Domain events handed to the sink successfully",
		}, []string{"type"}),
		Failures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "land_admin_events_publish_failures_total",
			Help: "Domain events the sink failed to accept",
		}, []string{"type"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "land_admin_events_dropped_total",
			Help: "Domain events dropped because the async buffer was full",
		}),
	}
}

func (m *Metrics) incPublished(t Type) {
	if m != nil {
		m.Published.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) incFailure(t Type) {
	if m != nil {
		m.Failures.WithLabelValues(string(t)).Inc()
	}
}

func (m *Metrics) incDropped() {
	if m != nil {
		m.Dropped.Inc()
	}
}
