// Package metrics records run counters and latencies and writes them in the
// Prometheus text format, for node_exporter's textfile collector.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "webscenario"

// Metrics holds the run's collectors. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	scenariosTotal   *prometheus.CounterVec
	scenarioDuration *prometheus.HistogramVec
	stepDuration     *prometheus.HistogramVec
	retriesTotal     prometheus.Counter
	activeSessions   prometheus.Gauge
	lastRun          prometheus.Gauge
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		scenariosTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "scenario",
				Name:      "results_total",
				Help:      "Scenarios finished, by suite and terminal state.",
			},
			[]string{"suite", "state"},
		),
		scenarioDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "scenario",
				Name:      "duration_seconds",
				Help:      "Wall time of a scenario including retries.",
				Buckets:   prometheus.ExponentialBuckets(0.25, 2, 10), // 250ms to ~2m
			},
			[]string{"suite"},
		),
		stepDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "step",
				Name:      "duration_seconds",
				Help:      "Wall time of a single step, by step kind and outcome.",
				Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10), // 10ms to ~5s
			},
			[]string{"kind", "outcome"},
		),
		retriesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "scenario",
			Name:      "retries_total",
			Help:      "Attempts repeated after a failed attempt.",
		}),
		activeSessions: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Browser sessions currently held by running scenarios.",
		}),
		lastRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ScenarioFinished(suite, state string, d time.Duration) {
	if m == nil {
		return
	}
	m.scenariosTotal.WithLabelValues(suite, state).Inc()
	m.scenarioDuration.WithLabelValues(suite).Observe(d.Seconds())
}

func (m *Metrics) StepFinished(kind string, ok bool, d time.Duration) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.stepDuration.WithLabelValues(kind, outcome).Observe(d.Seconds())
}

func (m *Metrics) Retried() {
	if m == nil {
		return
	}
	m.retriesTotal.Inc()
}

func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.activeSessions.Inc()
}

func (m *Metrics) SessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

// WriteTextfile stamps the finish time and writes every metric to path.
func (m *Metrics) WriteTextfile(path string) error {
	if m == nil {
		return nil
	}
	m.lastRun.SetToCurrentTime()
	return prometheus.WriteToTextfile(path, m.registry)
}
