// Kampai - Location Sharing and Check-in Community Server
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/kampai

// Package metrics holds the Prometheus collectors for the server. Collectors
// are registered on the default registry at init and exposed on /metrics.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Database Metrics
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kampai_db_query_duration_seconds",
			Help:    "Duration of DuckDB queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_db_query_errors_total",
			Help: "Total number of DuckDB query errors",
		},
		[]string{"operation", "table"},
	)

	// API Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kampai_api_request_duration_seconds",
			Help:    "API request latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kampai_api_active_requests",
			Help: "Number of API requests currently being served",
		},
	)

	// Map pipeline
	BoundsFetchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_bounds_fetches_total",
			Help: "Viewport location fetches by outcome",
		},
		[]string{"result"}, // "ok", "error", "stale"
	)

	BoundsFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kampai_bounds_fetch_duration_seconds",
			Help:    "Latency of viewport location queries",
			Buckets: prometheus.DefBuckets,
		},
	)

	MapSessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kampai_map_sessions_active",
			Help: "Open interactive map sessions",
		},
	)

	MarkersRendered = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "kampai_markers_rendered",
			Help:    "Markers attached per rendered frame",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)

	// Geocoding
	GeocodeCacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_geocode_cache_requests_total",
			Help: "Reverse geocode cache lookups by outcome",
		},
		[]string{"result"}, // "hit", "miss", "stale"
	)

	GeocodeCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kampai_geocode_cache_entries",
			Help: "Entries held in the reverse geocode cache",
		},
	)

	// Outbound HTTP (geocoding, weather, assistant, object storage)
	ExternalRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_external_requests_total",
			Help: "Calls to third-party services by outcome",
		},
		[]string{"service", "result"},
	)

	ExternalRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kampai_external_request_duration_seconds",
			Help:    "Latency of third-party calls",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"service"},
	)

	// Generic cache metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache_name"},
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache_name"},
	)

	// Circuit Breaker Metrics
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kampai_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_circuit_breaker_transitions_total",
			Help: "Circuit breaker state transitions",
		},
		[]string{"name", "from", "to"},
	)

	// WebSocket Metrics
	WSConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kampai_websocket_connections",
			Help: "Number of active WebSocket connections",
		},
	)

	WSMessagesSent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kampai_websocket_messages_sent_total",
			Help: "Total number of WebSocket messages sent",
		},
	)

	WSMessagesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kampai_websocket_messages_dropped_total",
			Help: "Messages dropped because a client send buffer was full",
		},
	)

	// Realtime feed
	RealtimeEventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_realtime_events_published_total",
			Help: "Row changes published to the realtime feed",
		},
		[]string{"table"},
	)

	RealtimeEventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_realtime_events_delivered_total",
			Help: "Row changes delivered to subscribers after filtering",
		},
		[]string{"table"},
	)

	// Community features
	KampaiCooldownRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "kampai_now_cooldown_rejections_total",
			Help: "Kampai announcements rejected by the per-user cooldown",
		},
	)

	ImageUploadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_image_uploads_total",
			Help: "Image uploads by bucket and outcome",
		},
		[]string{"bucket", "result"},
	)

	DetectionAlerts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kampai_detection_alerts_total",
			Help: "Check-in anomaly alerts by rule",
		},
		[]string{"rule"},
	)

	// Application Info
	AppInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kampai_app_info",
			Help: "Application version and build information",
		},
		[]string{"version", "go_version"},
	)
)

// RecordDBQuery records a database query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		DBQueryErrors.WithLabelValues(operation, table).Inc()
	}
}

// RecordAPIRequest records an API request metric
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest tracks active API requests
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordExternalCall records one outbound call.
func RecordExternalCall(service string, duration time.Duration, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	ExternalRequestsTotal.WithLabelValues(service, result).Inc()
	ExternalRequestDuration.WithLabelValues(service).Observe(duration.Seconds())
}

// RecordBreakerTransition updates the state gauge and transition counter.
// States are the gobreaker names: "closed", "half-open", "open".
func RecordBreakerTransition(name, from, to string) {
	CircuitBreakerTransitions.WithLabelValues(name, from, to).Inc()
	CircuitBreakerState.WithLabelValues(name).Set(breakerStateValue(to))
}

func breakerStateValue(state string) float64 {
	switch state {
	case "half-open":
		return 1
	case "open":
		return 2
	default:
		return 0
	}
}
