package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Backend API client metrics
var (
	// APIRequests tracks calls made to the backend API
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_api_requests_total",
			Help: "Total backend API calls by method, route (normalized path), and status code",
		},
		[]string{"method", "route", "status_code"},
	)

	// APIDuration tracks backend API latency
	APIDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "tally_api_request_duration_ms",
			Help:                            "Backend API call duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "route"},
	)

	// APIErrors tracks backend API errors
	APIErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_api_errors_total",
			Help: "Total backend API errors by route and error type",
		},
		[]string{"route", "error_type"},
	)
)

// Token refresh metrics
var (
	// TokenRefreshes counts refresh endpoint calls by outcome
	TokenRefreshes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_token_refreshes_total",
			Help: "Total token refresh calls by result (success, failure)",
		},
		[]string{"result"},
	)

	// RefreshWaiters counts requests that queued behind an in-flight refresh
	RefreshWaiters = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_refresh_waiters_total",
			Help: "Total requests that waited for an in-flight token refresh instead of starting one",
		},
	)

	// SessionsExpired counts unrecoverable refresh failures that sent a user back to login
	SessionsExpired = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tally_sessions_expired_total",
			Help: "Total sessions that required a new login after a failed refresh",
		},
	)
)

// HTTP/Web Handler Metrics
var (
	// HTTPRequests tracks HTTP requests
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tally_http_requests_total",
			Help: "Total HTTP requests by method, path, and status",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPDuration tracks HTTP request duration
	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:                            "tally_http_request_duration_ms",
			Help:                            "HTTP request duration in milliseconds",
			NativeHistogramBucketFactor:     1.1,
			NativeHistogramMaxBucketNumber:  100,
			NativeHistogramMinResetDuration: 1 * time.Hour,
		},
		[]string{"method", "path"},
	)

	// ActiveSessions tracks browser sessions holding an API client
	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "tally_sessions_active",
			Help: "Number of web sessions with a live API client",
		},
	)
)
