// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the harvester.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Fetch metrics
	WindowsFetched *prometheus.CounterVec
	FetchFailures  *prometheus.CounterVec
	FetchLatency   *prometheus.HistogramVec

	// Output metrics
	RowsWritten  *prometheus.CounterVec
	NewAssetKeys *prometheus.CounterVec

	// Consolidation metrics
	Consolidations *prometheus.CounterVec

	// Run metrics
	RunDuration       *prometheus.HistogramVec
	LastSuccessfulRun prometheus.Gauge
}

// NewMetrics creates the harvester metrics on reg. A nil reg uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer, namespace string) *Metrics {
	if namespace == "" {
		namespace = "aeso_harvester"
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		WindowsFetched: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "windows_total",
			Help:      "Total number of fetch windows completed by endpoint",
		}, []string{"endpoint"}),
		FetchFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "failures_total",
			Help:      "Total number of recorded failures by endpoint, stage and kind",
		}, []string{"endpoint", "stage", "kind"}),
		FetchLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "fetch",
			Name:      "latency_seconds",
			Help:      "AESO API fetch latency in seconds, retries included",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"endpoint"}),

		RowsWritten: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "output",
			Name:      "rows_written_total",
			Help:      "Total number of normalized rows written by endpoint",
		}, []string{"endpoint"}),
		NewAssetKeys: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "identity",
			Name:      "new_keys_total",
			Help:      "Total number of asset keys seen for the first time in a run",
		}, []string{"endpoint"}),

		Consolidations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "consolidation",
			Name:      "runs_total",
			Help:      "Total number of consolidations by endpoint and status",
		}, []string{"endpoint", "status"}),

		RunDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "run",
			Name:      "duration_seconds",
			Help:      "Harvest run duration in seconds by phase",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600, 1800, 3600},
		}, []string{"phase"}),
		LastSuccessfulRun: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of the last run without recorded failures",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint serving g.
func Handler(g prometheus.Gatherer) http.Handler {
	if g == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// RecordWindow records one fetched window and its latency.
func (m *Metrics) RecordWindow(endpoint string, seconds float64) {
	if m == nil {
		return
	}
	m.WindowsFetched.WithLabelValues(endpoint).Inc()
	m.FetchLatency.WithLabelValues(endpoint).Observe(seconds)
}

// RecordFailure records a failure collected during a run.
func (m *Metrics) RecordFailure(endpoint, stage, kind string) {
	if m == nil {
		return
	}
	m.FetchFailures.WithLabelValues(endpoint, stage, kind).Inc()
}

// RecordRows records rows written for an endpoint.
func (m *Metrics) RecordRows(endpoint string, n int) {
	if m == nil {
		return
	}
	m.RowsWritten.WithLabelValues(endpoint).Add(float64(n))
}

// RecordNewKeys records asset keys first seen in a window.
func (m *Metrics) RecordNewKeys(endpoint string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.NewAssetKeys.WithLabelValues(endpoint).Add(float64(n))
}

// RecordConsolidation records a consolidation outcome ("ok" or "failed").
func (m *Metrics) RecordConsolidation(endpoint, status string) {
	if m == nil {
		return
	}
	m.Consolidations.WithLabelValues(endpoint, status).Inc()
}

// RecordRun records a run phase duration. ok marks the run healthy.
func (m *Metrics) RecordRun(phase string, durationSeconds float64, ok bool, unix float64) {
	if m == nil {
		return
	}
	m.RunDuration.WithLabelValues(phase).Observe(durationSeconds)
	if ok {
		m.LastSuccessfulRun.Set(unix)
	}
}
