// Package metrics exposes Prometheus counters for ALPC correlation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the correlation collectors. A nil *Metrics is valid and
// records nothing, so components can be built without a registry.
type Metrics struct {
	events          *prometheus.CounterVec
	lookupMisses    prometheus.Counter
	correlations    *prometheus.CounterVec
	pendingMessages prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		events: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alpc_events_total",
				Help: "ALPC trace events dispatched, by event kind.",
			},
			[]string{"kind"},
		),
		lookupMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "alpc_lookup_misses_total",
				Help: "Receive events whose message id had no known sender.",
			},
		),
		correlations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "alpc_correlations_total",
				Help: "Sender/receiver pairs involving the target process, by direction.",
			},
			[]string{"direction"},
		),
		pendingMessages: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "alpc_pending_messages",
				Help: "Message ids currently held in the pending-message cache.",
			},
		),
	}
}

// ObserveEvent counts one dispatched event.
func (m *Metrics) ObserveEvent(kind string) {
	if m == nil {
		return
	}
	m.events.WithLabelValues(kind).Inc()
}

// ObserveLookupMiss counts a receive that could not be attributed.
func (m *Metrics) ObserveLookupMiss() {
	if m == nil {
		return
	}
	m.lookupMisses.Inc()
}

// ObserveCorrelation counts a correlated interaction.
func (m *Metrics) ObserveCorrelation(direction string) {
	if m == nil {
		return
	}
	m.correlations.WithLabelValues(direction).Inc()
}

// SetPending records the current cache size.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pendingMessages.Set(float64(n))
}
