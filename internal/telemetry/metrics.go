// Package telemetry wires OpenTelemetry tracing and Prometheus metrics:
// an OTLP-HTTP trace exporter plus promauto gauges and counters for the
// scheduler, runners, and edits worker.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	ActiveRuns = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "takopi_active_runs",
			Help: "Number of runner invocations currently in flight",
		},
		[]string{"engine"},
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "takopi_queue_depth",
			Help: "Number of jobs waiting to start per thread (the running job is not counted)",
		},
		[]string{"thread"},
	)

	EditsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "takopi_edits_total",
			Help: "Progress message edit attempts",
		},
		[]string{"result"},
	)

	RunnerExitsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "takopi_runner_exits_total",
			Help: "Runner completions by engine and outcome",
		},
		[]string{"engine", "ok"},
	)

	ResumeLockAcquiredTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "takopi_resume_lock_acquired_total",
			Help: "Per-resume lock acquisitions, by engine",
		},
		[]string{"engine"},
	)

	LockAcquired = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "takopi_lock_acquired",
			Help: "Whether this process currently holds the single-instance bot lockfile (0/1)",
		},
	)

	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "takopi_run_duration_seconds",
			Help:    "Wall-clock duration of a runner invocation",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
		[]string{"engine"},
	)
)

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}
