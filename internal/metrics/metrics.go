// Package metrics provides Prometheus metrics for FieldSense.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "fieldsense"
)

// HTTP metrics
var (
	// HTTPRequestsTotal counts HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration tracks HTTP request latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// HTTPRequestsInFlight tracks concurrent HTTP requests.
	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)
)

// Ingestion metrics
var (
	// ReadingsTotal counts processed sensor readings by source.
	ReadingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "readings_total",
			Help:      "Total sensor readings processed",
		},
		[]string{"source"}, // http, mqtt
	)

	// MQTTMessagesTotal counts MQTT readings messages by outcome.
	MQTTMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "mqtt",
			Name:      "messages_total",
			Help:      "Total MQTT reading messages received",
		},
		[]string{"result"}, // processed, invalid
	)

	// DeviceCommandsTotal counts device commands emitted.
	DeviceCommandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "device_commands_total",
			Help:      "Total device commands emitted",
		},
		[]string{"type"},
	)
)

// Alert metrics
var (
	// AlertCandidatesTotal counts alerts produced by the rule engine.
	AlertCandidatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "candidates_total",
			Help:      "Total alert candidates produced by rule evaluation",
		},
		[]string{"kind"},
	)

	// AlertsAdmittedTotal counts alerts that passed the cooldown.
	AlertsAdmittedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "admitted_total",
			Help:      "Total alerts admitted by the cooldown store",
		},
		[]string{"kind"},
	)

	// AlertsSuppressedTotal counts alerts dropped by the cooldown.
	AlertsSuppressedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "suppressed_total",
			Help:      "Total alerts suppressed during cooldown",
		},
		[]string{"kind"},
	)
)

// Notification metrics
var (
	// NotificationsSentTotal counts successful deliveries per notifier.
	NotificationsSentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "sent_total",
			Help:      "Total notifications delivered",
		},
		[]string{"notifier"},
	)

	// NotificationErrorsTotal counts failed deliveries per notifier.
	NotificationErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "errors_total",
			Help:      "Total notification delivery errors",
		},
		[]string{"notifier"},
	)

	// NotificationsDroppedTotal counts alerts dropped before reaching a worker.
	NotificationsDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "dropped_total",
			Help:      "Total alerts dropped before delivery",
		},
		[]string{"reason"}, // queue_full, rate_limited, closed
	)

	// NotificationQueueDepth tracks alerts waiting for a worker.
	NotificationQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "queue_depth",
			Help:      "Alerts waiting in the dispatch queue",
		},
	)

	// DispatchPanicsRecovered counts notifier panics caught by the dispatcher.
	DispatchPanicsRecovered = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notifications",
			Name:      "panics_recovered_total",
			Help:      "Total notifier panics recovered",
		},
	)
)

// Weather metrics
var (
	// WeatherProviderCalls counts forecast provider calls by result.
	WeatherProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "provider_calls_total",
			Help:      "Total weather provider calls",
		},
		[]string{"provider", "result"}, // success, failure
	)

	// WeatherRainProbability is the last assessed rain probability.
	WeatherRainProbability = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "rain_probability",
			Help:      "Highest rain probability within the lookahead window",
		},
	)

	// WeatherRainImminent is 1 while rain is expected within the lookahead.
	WeatherRainImminent = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "weather",
			Name:      "rain_imminent",
			Help:      "Whether rain is expected within the lookahead window",
		},
	)
)

// Storage metrics
var (
	// StorageQueryDuration tracks query latency.
	StorageQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "query_duration_seconds",
			Help:      "Storage query latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	// StorageErrors counts storage operation errors.
	StorageErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "storage",
			Name:      "errors_total",
			Help:      "Total storage operation errors",
		},
		[]string{"operation"},
	)
)

// Info metric
var (
	// BuildInfo exposes build information.
	BuildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "commit", "build_time"},
	)
)

// SetBuildInfo sets the build info metric.
func SetBuildInfo(version, commit, buildTime string) {
	BuildInfo.WithLabelValues(version, commit, buildTime).Set(1)
}
