package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	inferenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsense_inference_requests_total",
			Help: "Total number of inference calls by backend and outcome.",
		},
		[]string{"backend", "outcome"},
	)
	inferenceDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sheetsense_inference_duration_seconds",
			Help:    "Inference call latency by backend, including retries.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"backend"},
	)
	backendSelectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsense_backend_selections_total",
			Help: "Backend selection results, including unavailable.",
		},
		[]string{"backend"},
	)
	backendFallbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsense_backend_fallbacks_total",
			Help: "Number of times the remote backend served a call after the local backend failed.",
		},
		[]string{"reason"},
	)
	rateLimitRetriesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetsense_rate_limit_retries_total",
			Help: "Number of backoff waits caused by remote rate limiting.",
		},
	)
	translationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsense_translations_total",
			Help: "Translated operations by mode and source (model, fallback, none).",
		},
		[]string{"mode", "source"},
	)
	filterEvaluationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsense_filter_evaluations_total",
			Help: "Filter expression evaluations by outcome.",
		},
		[]string{"outcome"},
	)
	datasetsUploadedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sheetsense_datasets_uploaded_total",
			Help: "Total number of datasets stored.",
		},
	)
	authFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sheetsense_auth_failures_total",
			Help: "Rejected API requests by reason.",
		},
		[]string{"reason"},
	)
	datasetRowsUploaded = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sheetsense_dataset_rows",
			Help:    "Row counts of uploaded datasets.",
			Buckets: prometheus.ExponentialBuckets(10, 4, 8),
		},
	)
)

func init() {
	prometheus.MustRegister(
		inferenceRequestsTotal,
		inferenceDurationSeconds,
		backendSelectionsTotal,
		backendFallbacksTotal,
		rateLimitRetriesTotal,
		translationsTotal,
		filterEvaluationsTotal,
		datasetsUploadedTotal,
		datasetRowsUploaded,
		authFailuresTotal,
	)
}

func ObserveInference(backend, outcome string, elapsed time.Duration) {
	inferenceRequestsTotal.WithLabelValues(backend, outcome).Inc()
	inferenceDurationSeconds.WithLabelValues(backend).Observe(elapsed.Seconds())
}

func IncrementBackendSelection(backend string) {
	backendSelectionsTotal.WithLabelValues(backend).Inc()
}

func IncrementBackendFallback(reason string) {
	backendFallbacksTotal.WithLabelValues(reason).Inc()
}

func IncrementRateLimitRetry() {
	rateLimitRetriesTotal.Inc()
}

func IncrementTranslation(mode, source string) {
	translationsTotal.WithLabelValues(mode, source).Inc()
}

func IncrementFilterEvaluation(outcome string) {
	filterEvaluationsTotal.WithLabelValues(outcome).Inc()
}

func ObserveDatasetUpload(rows int) {
	datasetsUploadedTotal.Inc()
	if rows < 0 {
		rows = 0
	}
	datasetRowsUploaded.Observe(float64(rows))
}

func IncrementAuthFailure(reason string) {
	authFailuresTotal.WithLabelValues(reason).Inc()
}
