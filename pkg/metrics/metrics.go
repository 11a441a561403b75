// Package metrics defines the service's Prometheus collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTPRequests counts API requests by method, route, and status class.
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memora_http_requests_total",
		Help: "HTTP requests processed, by method, route, and status code.",
	}, []string{"method", "route", "status"})

	// HTTPDuration observes API request latency per route.
	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memora_http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})

	// JobsProcessed counts finished pipeline jobs by terminal status.
	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memora_jobs_processed_total",
		Help: "Pipeline jobs finished, by terminal status.",
	}, []string{"status"})

	// JobDuration observes end-to-end pipeline duration.
	JobDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "memora_job_duration_seconds",
		Help:    "End-to-end pipeline job duration.",
		Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
	})

	// QueueDepth tracks pending jobs, updated by the worker pool.
	QueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "memora_queue_depth",
		Help: "Pending AI jobs waiting for a worker.",
	})

	// ProviderRequests counts AI provider calls by provider, operation, and outcome.
	ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memora_provider_requests_total",
		Help: "AI provider calls, by provider, operation, and outcome.",
	}, []string{"provider", "operation", "outcome"})

	// ProviderLatency observes AI provider call latency.
	ProviderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "memora_provider_latency_seconds",
		Help:    "AI provider call latency.",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
	}, []string{"provider", "operation"})

	// CreditsDebited counts credits spent on finalization.
	CreditsDebited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memora_credits_debited_total",
		Help: "Credits debited from user balances.",
	})

	// CreditsGranted counts credits granted by completed payments.
	CreditsGranted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memora_credits_granted_total",
		Help: "Credits granted by completed payments.",
	})

	// WebhookEvents counts Stripe webhook deliveries by event type and outcome.
	WebhookEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "memora_webhook_events_total",
		Help: "Stripe webhook events, by type and outcome.",
	}, []string{"event_type", "outcome"})

	// EmbeddingChunks counts chunks embedded and stored.
	EmbeddingChunks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memora_embedding_chunks_total",
		Help: "Text chunks embedded and stored.",
	})

	// OrphansRecovered counts jobs re-queued by orphan detection.
	OrphansRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "memora_orphans_recovered_total",
		Help: "Orphaned jobs recovered by the scanner.",
	})
)

// ObserveProvider records one provider call. Outcome is "ok" or "error".
func ObserveProvider(provider, operation string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	ProviderRequests.WithLabelValues(provider, operation, outcome).Inc()
	ProviderLatency.WithLabelValues(provider, operation).Observe(time.Since(start).Seconds())
}
