package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	pipelineRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "querypilot_pipeline_requests_total",
			Help: "Total number of question-to-SQL pipeline runs by terminal outcome.",
		},
		[]string{"outcome"},
	)
	pipelineDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querypilot_pipeline_duration_seconds",
			Help:    "End-to-end pipeline latency including generation and correction.",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
	)
	pipelineCandidatesPerRequest = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "querypilot_pipeline_candidates_per_request",
			Help:    "Number of SQL candidates tried per request (initial plus corrections).",
			Buckets: []float64{1, 2, 3, 4, 5, 6},
		},
	)
	validationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querypilot_validation_failures_total",
			Help: "Total number of candidates rejected by static validation.",
		},
	)
	executionFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querypilot_execution_failures_total",
			Help: "Total number of candidates rejected by the database engine.",
		},
	)
	correctionCallsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "querypilot_correction_calls_total",
			Help: "Total number of corrective regeneration calls.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		pipelineRequestsTotal,
		pipelineDurationSeconds,
		pipelineCandidatesPerRequest,
		validationFailuresTotal,
		executionFailuresTotal,
		correctionCallsTotal,
	)
}

func ObservePipelineRun(outcome string, candidates int, duration time.Duration) {
	pipelineRequestsTotal.WithLabelValues(outcome).Inc()
	pipelineDurationSeconds.Observe(duration.Seconds())
	pipelineCandidatesPerRequest.Observe(float64(candidates))
}

func RecordValidationFailure() {
	validationFailuresTotal.Inc()
}

func RecordExecutionFailure() {
	executionFailuresTotal.Inc()
}

func RecordCorrectionCall() {
	correctionCallsTotal.Inc()
}
