// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	RequestCount = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"path", "method", "status"},
	)
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"path"},
	)
	Classifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "food_classifications_total",
			Help: "Classification requests by outcome",
		}, []string{"outcome"},
	)
)

// Classification outcomes.
const (
	OutcomePredicted    = "predicted"
	OutcomeUnrecognized = "unrecognized"
	OutcomeUnavailable  = "unavailable"
	OutcomeError        = "error"
)

func init() {
	prometheus.MustRegister(RequestCount, RequestDuration, Classifications)
}
