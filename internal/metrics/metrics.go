// Package metrics provides Prometheus metrics for HomeWatch.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "homewatch"
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

// Security engine metrics
var (
	// RecomputationsTotal counts completed status recomputation cycles.
	RecomputationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "recomputations_total",
			Help:      "Total completed security status recomputation cycles",
		},
	)

	// RecomputationDuration tracks the latency of one recomputation cycle.
	RecomputationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "recomputation_duration_seconds",
			Help:      "Security status recomputation latency in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)

	// ProviderErrorsTotal counts failed provider calls by provider key.
	ProviderErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "provider_errors_total",
			Help:      "Total failed security signal provider calls",
		},
		[]string{"provider"},
	)

	// ActiveAlerts tracks the active alert count of the latest status.
	ActiveAlerts = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "active_alerts",
			Help:      "Active alerts in the latest security status",
		},
	)

	// DebounceSignalsTotal counts relevant registry notifications received.
	DebounceSignalsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "debounce_signals_total",
			Help:      "Relevant registry notifications accepted by the debouncer",
		},
	)

	// EventsRecordedTotal counts persisted security events by type.
	EventsRecordedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "security",
			Name:      "events_recorded_total",
			Help:      "Total security events written to the events log",
		},
		[]string{"type"},
	)
)
