// Package metrics exposes Prometheus counters for digest runs.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "tuxletter"

// Run outcomes.
const (
	OutcomeDelivered = "delivered"
	OutcomeEmpty     = "empty"
	OutcomeFailed    = "failed"
	OutcomeSkipped   = "skipped"
)

// Metrics holds the collectors of one process. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ItemsCollected *prometheus.CounterVec
	ScannerErrors  *prometheus.CounterVec
	BotChallenges  prometheus.Counter
	Runs           *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	CachedLinks    prometheus.Gauge
}

// New registers every collector on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		ItemsCollected: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "items_collected_total",
			Help:      "Items collected per source after cross-source dedup",
		}, []string{"source"}),
		ScannerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scanner_errors_total",
			Help:      "Scanner runs that returned an error or panicked",
		}, []string{"source"}),
		BotChallenges: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bot_challenges_total",
			Help:      "Anti-bot verification pages met while scraping",
		}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_total",
			Help:      "Pipeline runs by outcome",
		}, []string{"outcome"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of a pipeline run",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		CachedLinks: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cached_links",
			Help:      "Links held by the seen-link cache",
		}),
	}
}

// ObserveScan records the items a source contributed and the challenges it met.
func (m *Metrics) ObserveScan(source string, items, challenges int) {
	if m == nil {
		return
	}
	m.ItemsCollected.WithLabelValues(source).Add(float64(items))
	if challenges > 0 {
		m.BotChallenges.Add(float64(challenges))
	}
}

// ScannerFailed counts a scanner that errored or panicked.
func (m *Metrics) ScannerFailed(source string) {
	if m == nil {
		return
	}
	m.ScannerErrors.WithLabelValues(source).Inc()
}

// ObserveRun records a finished run.
func (m *Metrics) ObserveRun(outcome string, took time.Duration, cachedLinks int) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(outcome).Inc()
	if outcome != OutcomeSkipped {
		m.RunDuration.Observe(took.Seconds())
		m.CachedLinks.Set(float64(cachedLinks))
	}
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
