// Package metrics provides Prometheus metrics for the analysis pipeline.
// All recording methods are safe on a nil *Manager.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels for finished analyses
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

var defaultBuckets = []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30}

// Manager owns every collector on its registry
type Manager struct {
	namespace string
	buckets   []float64
	registry  *prometheus.Registry

	gamesFetched     *prometheus.CounterVec
	gamesSkipped     *prometheus.CounterVec
	evaluations      prometheus.Counter
	evalLatency      prometheus.Histogram
	engineFailures   prometheus.Counter
	enginesAlive     prometheus.Gauge
	mistakes         *prometheus.CounterVec
	analyses         *prometheus.CounterVec
	analysisDuration prometheus.Histogram
}

// NewManager creates a manager on its own registry unless one is supplied.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "chessmate",
		buckets:   defaultBuckets,
		registry:  prometheus.NewRegistry(),
	}

	for _, opt := range opts {
		opt(m)
	}

	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.gamesFetched = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "platform",
		Name:      "games_fetched_total",
		Help:      "Games normalized from a platform",
	}, []string{"platform"})

	m.gamesSkipped = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "platform",
		Name:      "games_skipped_total",
		Help:      "Platform records skipped as malformed or unsupported",
	}, []string{"platform", "reason"})

	m.evaluations = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "evaluations_total",
		Help:      "Positions evaluated by the engine",
	})

	m.evalLatency = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "evaluation_seconds",
		Help:      "Engine evaluation latency",
		Buckets:   m.buckets,
	})

	m.engineFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "failures_total",
		Help:      "Engine handles that broke or failed to start",
	})

	m.enginesAlive = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "engine",
		Name:      "handles_alive",
		Help:      "Pool workers currently holding a live engine",
	})

	m.mistakes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "analysis",
		Name:      "mistakes_total",
		Help:      "Classified mistakes by label",
	}, []string{"label"})

	m.analyses = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "analysis",
		Name:      "requests_total",
		Help:      "Analysis requests by platform and outcome",
	}, []string{"platform", "outcome"})

	m.analysisDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "analysis",
		Name:      "duration_seconds",
		Help:      "Wall time of a full analysis request",
		Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
	})
}

// Registry exposes the underlying registry for gathering
func (m *Manager) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format
func (m *Manager) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Manager) RecordGameFetched(platform string) {
	if m == nil {
		return
	}
	m.gamesFetched.WithLabelValues(platform).Inc()
}

func (m *Manager) RecordGameSkipped(platform, reason string) {
	if m == nil {
		return
	}
	m.gamesSkipped.WithLabelValues(platform, reason).Inc()
}

func (m *Manager) RecordEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.Inc()
	m.evalLatency.Observe(d.Seconds())
}

func (m *Manager) RecordEngineFailure() {
	if m == nil {
		return
	}
	m.engineFailures.Inc()
}

func (m *Manager) AddEnginesAlive(delta int) {
	if m == nil {
		return
	}
	m.enginesAlive.Add(float64(delta))
}

func (m *Manager) RecordMistake(label string) {
	if m == nil {
		return
	}
	m.mistakes.WithLabelValues(label).Inc()
}

func (m *Manager) RecordAnalysis(platform, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.analyses.WithLabelValues(platform, outcome).Inc()
	m.analysisDuration.Observe(d.Seconds())
}
