// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	PipelineRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesight_pipeline_runs_total",
			Help: "Pipeline runs by outcome (success, or the failing error code)",
		},
		[]string{"outcome"},
	)

	PipelineDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sitesight_pipeline_duration_seconds",
			Help:    "Wall time of a full ranking run",
			Buckets: prometheus.DefBuckets,
		},
	)

	SitesRanked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sitesight_sites_ranked_total",
			Help: "Sites that received a rank score",
		},
	)

	Recommendations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesight_recommendations_total",
			Help: "Resources recommended for, by path (model or fallback)",
		},
		[]string{"path"},
	)

	UnmappedStatuses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesight_unmapped_status_total",
			Help: "Status strings that had no entry in their dimension's score table",
		},
		[]string{"dimension"},
	)

	SinkWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sitesight_sink_writes_total",
			Help: "Result sink writes by sink and outcome",
		},
		[]string{"sink", "outcome"},
	)
)
