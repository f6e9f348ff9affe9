package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	QueueRefreshesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxi_admin", Name: "queue_refreshes_total", Help: "Pending-hire queue refreshes by result"},
		[]string{"result"},
	)
	QueueRefreshDuration = promauto.NewHistogram(prometheus.HistogramOpts{Namespace: "taxi_admin", Name: "queue_refresh_duration_seconds", Help: "Queue refresh latency seconds"})
	QueueSize            = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "taxi_admin", Name: "queue_size", Help: "Hires currently in the assignment queue"})

	AssignmentsTotal        = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_admin", Name: "assignments_total", Help: "Total driver assignments committed"})
	AcceptanceMarkFailures  = promauto.NewCounter(prometheus.CounterOpts{Namespace: "taxi_admin", Name: "assignment_acceptance_mark_failures_total", Help: "Assignments where the hire was patched but the request acceptance write failed"})
	RecordStoreRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxi_admin", Name: "record_store_requests_total", Help: "Requests issued against the record store"},
		[]string{"collection", "method", "status"},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "taxi_admin", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "taxi_admin",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
