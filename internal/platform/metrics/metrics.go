package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Operation outcomes
const (
	OutcomeSuccess  = "success"
	OutcomeRejected = "rejected"
	OutcomeError    = "error"
)

var (
	degradedReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favorites_degraded_reads_total",
			Help: "Total number of country listings served empty because the country index was unavailable",
		},
		[]string{"store", "reason"},
	)

	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "favorites_operations_total",
			Help: "Total number of favorite operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "favorites_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RecordDegradedRead counts a country listing that could not use the index
func RecordDegradedRead(store, reason string) {
	degradedReadsTotal.WithLabelValues(store, reason).Inc()
}

// RecordOperation counts a service operation
func RecordOperation(operation, outcome string) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveRequest records the duration of an API request
func ObserveRequest(method, route, status string, seconds float64) {
	requestDuration.WithLabelValues(method, route, status).Observe(seconds)
}
