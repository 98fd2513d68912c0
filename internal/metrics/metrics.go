package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Request counters
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statwizard",
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "statwizard",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"method", "route"},
	)

	// Completion outcomes by preamble variant: success, empty_input, completion_failed
	CompletionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "statwizard",
			Name:      "completions_total",
			Help:      "Orchestrated completion requests by outcome",
		},
		[]string{"variant", "outcome"},
	)

	CompletionDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "statwizard",
			Name:      "completion_duration_seconds",
			Help:      "Latency of calls to the completion provider",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"provider"},
	)

	PendingRejections = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "statwizard",
			Name:      "pending_rejections_total",
			Help:      "Submissions rejected because the conversation already had one in flight",
		},
	)
)
