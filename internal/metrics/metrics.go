// Package metrics holds the gateway's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// GatewayRequests counts CRM API requests by resource, method and status.
	GatewayRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadkit_gateway_requests_total",
			Help: "Total number of CRM API requests handled by the gateway",
		},
		[]string{"resource", "method", "status"},
	)

	// GatewayDuration observes end-to-end gateway latency.
	GatewayDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadkit_gateway_request_duration_seconds",
			Help:    "CRM API request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"resource", "method"},
	)

	// AuthFailures counts rejected credentials by status code.
	AuthFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadkit_auth_failures_total",
			Help: "Requests rejected by the authenticator",
		},
		[]string{"status"},
	)

	// RateLimitRejections counts requests refused for exceeding a quota.
	RateLimitRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadkit_ratelimit_rejections_total",
		Help: "Requests rejected by the per-key rate limiter",
	})

	// RateLimitDegraded counts limiter checks that could not reach the
	// counter backend.
	RateLimitDegraded = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadkit_ratelimit_degraded_total",
		Help: "Rate limit checks that failed against the counter backend",
	})

	// AuditDropped counts audit entries discarded because the buffer was full.
	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadkit_audit_dropped_total",
		Help: "Audit log entries dropped because the write buffer was full",
	})

	// AuditWriteErrors counts audit entries the sink failed to persist.
	AuditWriteErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "leadkit_audit_write_errors_total",
		Help: "Audit log entries that failed to persist",
	})

	// HTTPRequests counts requests to the operational and admin routes.
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leadkit_http_requests_total",
			Help: "Total number of HTTP requests by route pattern",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration observes latency of the operational and admin routes.
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leadkit_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
)
