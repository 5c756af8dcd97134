package http

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/schooldesk/schooldesk/internal/auth"
	"github.com/schooldesk/schooldesk/internal/config"
)

// RouterConfig contains all dependencies and configuration needed
// to create the HTTP router.
type RouterConfig struct {
	// Auth is the mode and cookie configuration, read once at startup.
	Auth           config.Auth
	AuthService    *auth.Service
	SessionManager *auth.SessionManager
	AuthMiddleware *auth.Middleware
	RateLimiter    *auth.RateLimiter // optional

	// Required when Auth.Mode is oidc.
	HostedProvider        HostedProvider
	PostLogoutRedirectURL string

	SchoolStore SchoolStore

	// Named dependencies reported by /health.
	HealthChecks map[string]Pinger

	// TrustedProxies lists the proxies allowed to set X-Forwarded-For.
	// When empty the client IP is always the connection's peer address.
	TrustedProxies []string

	// Metrics enables /metrics and request instrumentation when set.
	Metrics *prometheus.Registry

	Version string
}
