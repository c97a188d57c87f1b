// Package monitoring provides metrics and observability for the rank tracking backend
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Tracking job metrics
	trackingJobsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranktrack_jobs_total",
			Help: "Total number of tracking jobs that reached a terminal state",
		},
		[]string{"type", "status"},
	)

	trackingJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranktrack_job_duration_seconds",
			Help:    "Duration of tracking jobs from start to terminal state",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type", "status"},
	)

	trackingJobItems = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranktrack_job_items_count",
			Help:    "Number of items per tracking job",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
		[]string{"type"},
	)

	// Per-item tracker call metrics
	itemTrackTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranktrack_item_track_total",
			Help: "Total number of per-item tracker calls",
		},
		[]string{"type", "status"},
	)

	itemTrackDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranktrack_item_track_duration_seconds",
			Help:    "Duration of per-item tracker calls",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type", "status"},
	)

	// Scheduler metrics
	queueSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ranktrack_queue_size",
			Help: "Current number of jobs waiting in the scheduler queue",
		},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ranktrack_active_workers",
			Help: "Number of scheduler workers",
		},
	)

	// Event bus metrics
	eventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranktrack_events_published_total",
			Help: "Total number of events published onto the bus",
		},
		[]string{"type"},
	)

	eventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ranktrack_events_dropped_total",
			Help: "Total number of events dropped from slow subscriber queues",
		},
	)

	busSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ranktrack_bus_subscribers",
			Help: "Current number of event bus subscribers",
		},
	)

	// Streaming gateway metrics
	streamClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "ranktrack_stream_clients",
			Help: "Current number of open streaming connections",
		},
	)

	// Archive metrics
	archiveOperations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranktrack_archive_operations_total",
			Help: "Total number of datastore archive operations",
		},
		[]string{"operation", "status"},
	)

	// HTTP metrics
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ranktrack_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ranktrack_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
)

// RecordJob records a job that reached a terminal state
func RecordJob(jobType, status string, duration float64, items int) {
	trackingJobsTotal.WithLabelValues(jobType, status).Inc()
	trackingJobDuration.WithLabelValues(jobType, status).Observe(duration)
	if items >= 0 {
		trackingJobItems.WithLabelValues(jobType).Observe(float64(items))
	}
}

// RecordItemTrack records a single tracker call
func RecordItemTrack(jobType, status string, duration float64) {
	itemTrackTotal.WithLabelValues(jobType, status).Inc()
	itemTrackDuration.WithLabelValues(jobType, status).Observe(duration)
}

// UpdateQueueSize updates the scheduler queue gauge
func UpdateQueueSize(size int) {
	queueSize.Set(float64(size))
}

// UpdateActiveWorkers updates the worker count gauge
func UpdateActiveWorkers(count int) {
	activeWorkers.Set(float64(count))
}

// RecordEventPublished records an event published onto the bus
func RecordEventPublished(eventType string) {
	eventsPublished.WithLabelValues(eventType).Inc()
}

// RecordEventDropped records an event dropped from a subscriber queue
func RecordEventDropped() {
	eventsDropped.Inc()
}

// UpdateBusSubscribers updates the bus subscriber gauge
func UpdateBusSubscribers(count int) {
	busSubscribers.Set(float64(count))
}

// StreamClientConnected increments the streaming connection gauge
func StreamClientConnected() {
	streamClients.Inc()
}

// StreamClientDisconnected decrements the streaming connection gauge
func StreamClientDisconnected() {
	streamClients.Dec()
}

// RecordArchiveOperation records a datastore archive operation
func RecordArchiveOperation(operation, status string) {
	archiveOperations.WithLabelValues(operation, status).Inc()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, endpoint, status string, duration float64) {
	httpRequestsTotal.WithLabelValues(method, endpoint, status).Inc()
	httpRequestDuration.WithLabelValues(method, endpoint, status).Observe(duration)
}
