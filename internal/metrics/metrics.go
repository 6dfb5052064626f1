package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Batch metrics
	batchRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crop_batch_runs_total",
			Help: "Total number of create-needed-croppings runs",
		},
		[]string{"trigger", "status"},
	)

	batchRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crop_batch_run_duration_seconds",
			Help:    "Duration of create-needed-croppings runs in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300, 900},
		},
		[]string{"trigger"},
	)

	croppingsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crop_croppings_created_total",
			Help: "Total number of default croppings created",
		},
	)

	referencesSkippedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crop_references_skipped_total",
			Help: "Total number of file references skipped during generation",
		},
		[]string{"reason"},
	)

	// Render metrics
	renderPlansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crop_render_plans_total",
			Help: "Total number of resolved render plans",
		},
		[]string{"cache"},
	)

	renderDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "crop_render_duration_seconds",
			Help:    "Render plan resolution duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2},
		},
	)

	// Processing metrics
	processJobsPublishedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "crop_process_jobs_published_total",
			Help: "Total number of image processing jobs published",
		},
	)

	// Message consumption metrics
	messagesConsumedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crop_messages_consumed_total",
			Help: "Total number of messages consumed from RabbitMQ",
		},
		[]string{"queue", "status"},
	)
)

// RecordBatchRun records a finished batch run
func RecordBatchRun(trigger, status string, duration time.Duration) {
	batchRunsTotal.WithLabelValues(trigger, status).Inc()
	batchRunDuration.WithLabelValues(trigger).Observe(duration.Seconds())
}

// RecordCroppingsCreated adds n created croppings
func RecordCroppingsCreated(n int) {
	if n > 0 {
		croppingsCreatedTotal.Add(float64(n))
	}
}

// RecordReferenceSkipped records a reference left without default croppings
func RecordReferenceSkipped(reason string) {
	referencesSkippedTotal.WithLabelValues(reason).Inc()
}

// RecordRenderPlan records a resolved render plan, cache is "hit" or "miss"
func RecordRenderPlan(cache string, duration time.Duration) {
	renderPlansTotal.WithLabelValues(cache).Inc()
	renderDuration.Observe(duration.Seconds())
}

// RecordProcessJobPublished records a published processing job
func RecordProcessJobPublished() {
	processJobsPublishedTotal.Inc()
}

// RecordMessageConsumed records a consumed message
func RecordMessageConsumed(queue, status string) {
	messagesConsumedTotal.WithLabelValues(queue, status).Inc()
}

// MetricsHandler returns the Prometheus metrics handler
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
