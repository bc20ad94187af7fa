package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsvc_http_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "confsvc_http_request_duration_seconds",
			Help:    "HTTP request duration",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"method", "path"},
	)

	// Signaling metrics
	SignalingConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "confsvc_signaling_connections",
			Help: "Open signaling channels",
		},
	)

	SignalingRooms = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "confsvc_signaling_rooms",
			Help: "Rooms with at least one subscribed channel",
		},
	)

	EnvelopesRelayed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsvc_envelopes_relayed_total",
			Help: "Signaling envelopes delivered to at least one recipient",
		},
		[]string{"event"},
	)

	EnvelopesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsvc_envelopes_dropped_total",
			Help: "Signaling envelopes dropped",
		},
		[]string{"reason"}, // "stale_target", "malformed", "rejected"
	)

	SlowConsumers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "confsvc_slow_consumers_total",
			Help: "Channels closed because their send buffer was full",
		},
	)

	// Business metrics
	ConferencesCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "confsvc_conferences_created_total",
			Help: "Total conferences created",
		},
	)

	ConferencesEnded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "confsvc_conferences_ended_total",
			Help: "Total conferences ended by their creator",
		},
	)

	SummariesGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsvc_summaries_generated_total",
			Help: "Auto summary attempts",
		},
		[]string{"result"}, // "ok", "error", "unavailable", "empty"
	)

	// Worker metrics
	JobsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confsvc_jobs_processed_total",
			Help: "Background jobs processed",
		},
		[]string{"type", "result"}, // result: "ok", "retry", "dlq"
	)
)
