// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuition",
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "tuition",
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	FeeUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuition",
		Name:      "fee_updates_total",
		Help:      "Fee entries written, by action (paid, cleared).",
	}, []string{"action"})

	RemindersQueued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "tuition",
		Name:      "reminders_queued_total",
		Help:      "Fee reminders created and published.",
	})

	RemindersProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuition",
		Name:      "reminders_processed_total",
		Help:      "Fee reminders handled by the worker, by outcome.",
	}, []string{"status"})

	SignIns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "tuition",
		Name:      "sign_ins_total",
		Help:      "Sign-in attempts by method and result.",
	}, []string{"method", "result"})
)
