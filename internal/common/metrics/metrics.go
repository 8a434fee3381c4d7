// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	JobsStarted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "specgen_jobs_started_total",
			Help: "Total number of generation jobs accepted",
		},
	)

	JobsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specgen_jobs_finished_total",
			Help: "Total number of generation jobs reaching a terminal state",
		},
		[]string{"status", "error_code"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "specgen_job_duration_seconds",
			Help:    "Duration of generation runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"status"},
	)

	JobsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "specgen_jobs_active",
			Help: "Number of generation runs currently executing",
		},
	)

	GenerationTokens = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specgen_generation_tokens_total",
			Help: "Tokens consumed by the generation service",
		},
		[]string{"direction"},
	)

	StaleJobsReconciled = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "specgen_stale_jobs_reconciled_total",
			Help: "Jobs moved to failed because they were orphaned",
		},
	)

	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specgen_worker_jobs_completed_total",
			Help: "Total number of Zeebe jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "specgen_worker_jobs_failed_total",
			Help: "Total number of Zeebe jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)
)
