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

	FormsRendered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forms_rendered_total",
			Help: "Forms built from a schema, by schema key",
		},
		[]string{"schema_key"},
	)

	FormSubmissions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forms_submissions_total",
			Help: "Form submissions by schema key and outcome (accepted, rejected)",
		},
		[]string{"schema_key", "outcome"},
	)

	SchemaCacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "forms_schema_cache_total",
			Help: "Schema cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	DocumentsStored = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "forms_documents_stored_total",
			Help: "Documents written to object storage",
		},
	)
)
