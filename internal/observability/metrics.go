package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors for the anomaly pipeline.
type Metrics struct {
	FetchAttempts      *prometheus.CounterVec // labels: source, outcome={success,error}
	SyntheticFallbacks prometheus.Counter
	CacheLookups       *prometheus.CounterVec // labels: result={hit,miss}
	RequestDuration    prometheus.Histogram
}

// NewMetrics creates and registers all pipeline metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.FetchAttempts,
		m.SyntheticFallbacks,
		m.CacheLookups,
		m.RequestDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		FetchAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gfs_anomaly",
			Name:      "fetch_attempts_total",
			Help:      "Upstream grid fetch attempts by source and outcome.",
		}, []string{"source", "outcome"}),
		SyntheticFallbacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gfs_anomaly",
			Name:      "synthetic_fallbacks_total",
			Help:      "Requests answered with synthetic data because the real pipeline failed.",
		}),
		CacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gfs_anomaly",
			Name:      "cache_lookups_total",
			Help:      "Response cache lookups by result.",
		}, []string{"result"}),
		RequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "gfs_anomaly",
			Name:      "request_duration_seconds",
			Help:      "Duration of anomaly requests, including upstream fetches.",
			Buckets:   []float64{0.005, 0.05, 0.25, 1, 5, 15, 30, 60, 90},
		}),
	}
}
