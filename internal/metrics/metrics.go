// Package metrics exposes prometheus counters for refresh decisions and fetches.
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the collectors of one process
type Metrics struct {
	triggers      *prometheus.CounterVec
	submitted     prometheus.Counter
	coalesced     prometheus.Counter
	deduplicated  prometheus.Counter
	results       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	renderErrors  prometheus.Counter
	sseClients    prometheus.Gauge
}

// New registers the collectors with reg
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		triggers: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgraph_refresh_triggers_total",
				Help: "The total number of fired refetch triggers, labeled by trigger",
			},
			[]string{"trigger"},
		),
		submitted: factory.NewCounter(prometheus.CounterOpts{
			Name: "meshgraph_fetches_submitted_total",
			Help: "The total number of fetch requests submitted to the data source",
		}),
		coalesced: factory.NewCounter(prometheus.CounterOpts{
			Name: "meshgraph_fetches_coalesced_total",
			Help: "The total number of triggers folded into a pending follow-up fetch",
		}),
		deduplicated: factory.NewCounter(prometheus.CounterOpts{
			Name: "meshgraph_fetches_deduplicated_total",
			Help: "The total number of requests dropped because an identical one was in flight",
		}),
		results: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "meshgraph_fetch_results_total",
				Help: "The total number of completed fetches, labeled by outcome",
			},
			[]string{"outcome"},
		),
		fetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "meshgraph_fetch_duration_seconds",
			Help:    "Backend graph fetch latency",
			Buckets: prometheus.DefBuckets,
		}),
		renderErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "meshgraph_render_errors_total",
			Help: "The total number of failures caught at the render boundary",
		}),
		sseClients: factory.NewGauge(prometheus.GaugeOpts{
			Name: "meshgraph_sse_clients",
			Help: "Connected server-sent event clients",
		}),
	}
}

// InitTriggers exports a zero count for every trigger name so rates are
// defined before the first fire
func (m *Metrics) InitTriggers(names ...string) {
	if m == nil {
		return
	}
	for _, name := range names {
		m.triggers.WithLabelValues(name)
	}
}

// Trigger counts a fired refetch trigger
func (m *Metrics) Trigger(name string) {
	if m == nil {
		return
	}
	m.triggers.WithLabelValues(name).Inc()
}

// Submitted counts a fetch handed to the data source
func (m *Metrics) Submitted() {
	if m == nil {
		return
	}
	m.submitted.Inc()
}

// Coalesced counts a trigger absorbed by the pending follow-up
func (m *Metrics) Coalesced() {
	if m == nil {
		return
	}
	m.coalesced.Inc()
}

// Deduplicated counts a request dropped in favour of an identical in-flight one
func (m *Metrics) Deduplicated() {
	if m == nil {
		return
	}
	m.deduplicated.Inc()
}

// FetchDone records the outcome and latency of a fetch
func (m *Metrics) FetchDone(outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.results.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(elapsed.Seconds())
}

// RenderError counts a render failure
func (m *Metrics) RenderError() {
	if m == nil {
		return
	}
	m.renderErrors.Inc()
}

// SSEClients sets the number of connected event stream clients
func (m *Metrics) SSEClients(n int) {
	if m == nil {
		return
	}
	m.sseClients.Set(float64(n))
}
