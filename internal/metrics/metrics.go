// Package metrics defines the Prometheus collectors for the extraction
// pipeline. Collectors register themselves via promauto and are served by
// the ops server's /metrics endpoint.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	APICallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soar_api_calls_total",
			Help: "API calls made to external services",
		},
		[]string{"api", "status"}, // api=aqs/envista, status=success/failure
	)

	HTTPErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soar_http_errors_total",
			Help: "HTTP errors by class",
		},
		[]string{"api", "class"}, // 4xx, 5xx, 429, network, malformed
	)

	RequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "soar_request_duration_seconds",
			Help:    "Duration of external API requests",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 12),
		},
		[]string{"api"},
	)

	RowsWrittenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soar_rows_written_total",
			Help: "Rows appended to data lake CSV files",
		},
		[]string{"service", "group_store"},
	)

	SkippedParametersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "soar_skipped_parameters_total",
			Help: "Parameter-year tasks recorded to the skip ledger",
		},
		[]string{"service"},
	)

	CircuitOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soar_circuit_open",
			Help: "Whether the circuit breaker for an API is currently open",
		},
		[]string{"api"},
	)

	YearsInFlight = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "soar_years_in_flight",
			Help: "Year extractions currently running per service",
		},
		[]string{"service"},
	)
)
