// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Pipeline metrics
	PipelineRunsTotal  *prometheus.CounterVec
	StageDuration      *prometheus.HistogramVec
	StageSkips         *prometheus.CounterVec

	// Data metrics
	RowsExtracted prometheus.Counter
	RowsLoaded    prometheus.Counter
	RowsDropped   prometheus.Counter
	FactorRows    prometheus.Gauge

	// Reconciliation metrics
	GapsFound     prometheus.Counter
	GapsRepaired  prometheus.Counter
	FetchFailures prometheus.Counter

	// Health metrics
	LastSuccessfulRun prometheus.Gauge
	CursorDate        prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "market_pipeline"
	}

	return &Metrics{
		PipelineRunsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total number of pipeline runs by status",
		}, []string{"status"}),
		StageDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_duration_seconds",
			Help:      "Stage execution duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		}, []string{"stage"}),
		StageSkips: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "stage_skips_total",
			Help:      "Total number of stage skips (no work to do)",
		}, []string{"stage"}),

		RowsExtracted: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "rows_extracted_total",
			Help:      "Total number of raw rows extracted",
		}),
		RowsLoaded: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "rows_loaded_total",
			Help:      "Total number of rows loaded to storage",
		}),
		RowsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "rows_dropped_total",
			Help:      "Total number of rows dropped by validation",
		}),
		FactorRows: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "data",
			Name:      "factor_rows",
			Help:      "Number of rows in the factor table after the last rebuild",
		}),

		GapsFound: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "gaps_found_total",
			Help:      "Total number of missing (ticker, date) gaps detected",
		}),
		GapsRepaired: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "gaps_repaired_total",
			Help:      "Total number of gaps successfully backfilled",
		}),
		FetchFailures: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconcile",
			Name:      "fetch_failures_total",
			Help:      "Total number of provider fetch failures during repair",
		}),

		LastSuccessfulRun: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "last_successful_run_timestamp",
			Help:      "Unix timestamp of last successful pipeline run",
		}),
		CursorDate: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "health",
			Name:      "cursor_date_timestamp",
			Help:      "Unix timestamp of the last loaded data date",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRun records a pipeline run outcome.
func (m *Metrics) RecordRun(status string) {
	if m == nil {
		return
	}
	m.PipelineRunsTotal.WithLabelValues(status).Inc()
}

// RecordStage records one stage's duration and skip state.
func (m *Metrics) RecordStage(stage string, seconds float64, skipped bool) {
	if m == nil {
		return
	}
	m.StageDuration.WithLabelValues(stage).Observe(seconds)
	if skipped {
		m.StageSkips.WithLabelValues(stage).Inc()
	}
}
