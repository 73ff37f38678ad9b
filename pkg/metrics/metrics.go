package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records magic-link authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadvault_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ActiveSessions tracks sessions that are neither expired nor signed out.
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "leadvault_active_sessions",
			Help: "Number of active sessions",
		},
	)

	// LeadsImported counts buyer leads ingested through the CSV pipeline.
	LeadsImported = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leadvault_leads_imported_total",
			Help: "Total number of buyer leads imported via CSV",
		},
	)

	// RateLimitDenials counts requests rejected by a rate limiter, labelled by limiter name.
	RateLimitDenials = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadvault_rate_limit_denials_total",
			Help: "Total number of rate-limited requests",
		},
		[]string{"limiter"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadvault_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
