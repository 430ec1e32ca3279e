// Package metrics defines the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Job metrics
var (
	JobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasweep_jobs_total",
			Help: "Total number of transcode jobs by category and outcome",
		},
		[]string{"category", "outcome"},
	)

	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediasweep_job_duration_seconds",
			Help:    "Transcode job duration in seconds",
			Buckets: []float64{1, 5, 30, 60, 300, 600, 1800, 3600, 7200, 14400},
		},
		[]string{"outcome"},
	)

	JobsInProgress = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediasweep_jobs_in_progress",
			Help: "Number of transcode jobs currently running",
		},
	)

	EncodeAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasweep_encode_attempts_total",
			Help: "Total number of ffmpeg invocations by attempt kind and result",
		},
		[]string{"attempt", "result"},
	)

	BytesSavedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediasweep_bytes_saved_total",
			Help: "Total bytes reclaimed by transcoding (negative growth is not subtracted)",
		},
	)

	LockedRemovalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "mediasweep_locked_removals_total",
			Help: "Superseded files that could not be removed after every attempt",
		},
	)
)

// Queue metrics
var (
	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "mediasweep_queue_depth",
			Help: "Number of jobs waiting in the queue",
		},
	)

	QueueRejectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasweep_queue_rejected_total",
			Help: "Enqueue attempts rejected by reason",
		},
		[]string{"reason"},
	)

	ScansTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasweep_scans_total",
			Help: "Library scans by trigger",
		},
		[]string{"trigger"},
	)
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasweep_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "mediasweep_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mediasweep_webhook_events_total",
			Help: "Webhook events received by source and event type",
		},
		[]string{"source", "event"},
	)
)
