// Package metrics exposes reconciliation counters to Prometheus.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "prefetcharr"

// Metrics holds the daemon's collectors. Each instance registers on its
// own registry so tests can create as many as they like.
type Metrics struct {
	Registry *prometheus.Registry

	CyclesTotal      *prometheus.CounterVec
	CycleDuration    prometheus.Histogram
	SessionsObserved prometheus.Counter
	Decisions        *prometheus.CounterVec
	DedupEntries     prometheus.Gauge
	BreakerState     *prometheus.GaugeVec
	LastCycle        prometheus.Gauge
}

// New creates and registers the collectors, including the Go and process
// collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		CyclesTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cycles_total",
				Help:      "Completed poll cycles by result.",
			},
			[]string{"result"}, // "ok", "poll_error"
		),

		CycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "cycle_duration_seconds",
				Help:      "Duration of a poll cycle in seconds.",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
			},
		),

		SessionsObserved: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "sessions_observed_total",
				Help:      "Playback sessions returned by the media server.",
			},
		),

		Decisions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "decisions_total",
				Help:      "Session decisions by outcome.",
			},
			[]string{"outcome"},
		),

		DedupEntries: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "dedup_entries",
				Help:      "Live entries in the seven-day dedup cache.",
			},
		),

		BreakerState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "circuit_breaker_state",
				Help:      "Media server circuit breaker state (0=closed, 1=half-open, 2=open).",
			},
			[]string{"backend"},
		),

		LastCycle: f.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_cycle_timestamp_seconds",
				Help:      "Unix time the last poll cycle finished.",
			},
		),
	}
}

// InitOutcomes pre-creates a series for each outcome label so that rates
// are defined from the first scrape.
func (m *Metrics) InitOutcomes(outcomes ...string) {
	for _, o := range outcomes {
		m.Decisions.WithLabelValues(o)
	}
}

// ObserveCycle records a finished cycle.
func (m *Metrics) ObserveCycle(result string, started time.Time, finished time.Time) {
	m.CyclesTotal.WithLabelValues(result).Inc()
	m.CycleDuration.Observe(finished.Sub(started).Seconds())
	m.LastCycle.Set(float64(finished.Unix()))
}
