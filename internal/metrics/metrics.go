// Package metrics holds the Prometheus collectors for authentication,
// sessions and HTTP traffic.
//
// Collectors are package-level so any package can record without wiring.
// RegisterCollectors attaches them to a registry once at startup.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "schooldesk"

var (
	// LoginAttempts counts login requests by result:
	// success, invalid_credentials, invalid_request, throttled, error.
	LoginAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "login_attempts_total", Help: "Login attempts by provider and result."},
		[]string{"provider", "result"},
	)
	SessionsCreated = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "sessions_created_total", Help: "Sessions established by provider."},
		[]string{"provider"},
	)
	// SessionsEnded counts sessions removed by reason: logout, expired, orphaned.
	SessionsEnded = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "sessions_ended_total", Help: "Sessions destroyed by reason."},
		[]string{"reason"},
	)
	RateLimitRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{Namespace: namespace, Name: "rate_limit_rejected_total", Help: "Requests rejected by limiter type."},
		[]string{"limiter"},
	)
	SessionsSwept = prometheus.NewCounter(
		prometheus.CounterOpts{Namespace: namespace, Name: "sessions_swept_total", Help: "Expired session rows removed by the sweeper."},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)
)

// RegisterCollectors registers every collector with reg.
func RegisterCollectors(reg prometheus.Registerer) {
	reg.MustRegister(
		LoginAttempts,
		SessionsCreated,
		SessionsEnded,
		RateLimitRejected,
		SessionsSwept,
		HTTPRequestDuration,
	)
}

// GinMiddleware observes request latency labelled by the matched route
// pattern, so path parameters do not explode label cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}
