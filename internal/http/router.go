package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/schooldesk/schooldesk/internal/auth"
	"github.com/schooldesk/schooldesk/internal/logger"
	"github.com/schooldesk/schooldesk/internal/metrics"
)

// hstsMaxAge is one year, applied only when cookies are HTTPS-only.
const hstsMaxAge = 31536000

// NewRouter creates and configures the HTTP router with all endpoints.
// The login routes registered depend on cfg.Auth.Mode; everything under
// /api except login, logout, callback and mode requires a session.
// It panics if the request validators cannot be registered.
func NewRouter(cfg RouterConfig) *gin.Engine {
	if err := registerValidators(); err != nil {
		panic(err)
	}

	router := gin.New()
	setTrustedProxies(router, cfg.TrustedProxies)
	router.Use(gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log := logger.Get()
		log.Error().Interface("panic", recovered).Str("path", c.Request.URL.Path).Msg("recovered from panic")
		c.AbortWithStatusJSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}))
	router.Use(logger.GinMiddleware())
	if cfg.Metrics != nil {
		router.Use(metrics.GinMiddleware())
	}

	router.Use(auth.SecurityHeadersMiddleware())
	if cfg.Auth.SecureCookies {
		router.Use(auth.StrictTransportSecurityMiddleware(hstsMaxAge))
	}

	// Session load must precede identity resolution.
	router.Use(cfg.SessionManager.SessionLoadSave())
	router.Use(cfg.AuthMiddleware.Resolve())

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, ErrorResponse{Error: "not found", Code: "not_found"})
	})

	health := NewHealthController(cfg.Version, cfg.HealthChecks)
	router.GET("/health", health.Status)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Metrics, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	authController := NewAuthController(cfg.AuthService, cfg.SessionManager, cfg.RateLimiter, cfg.Auth)

	if cfg.Auth.IsLocal() {
		login := []gin.HandlerFunc{authController.Login}
		if cfg.RateLimiter != nil {
			login = append([]gin.HandlerFunc{cfg.RateLimiter.RequestLimitMiddleware()}, login...)
		}
		api.POST("/login", login...)
		api.GET("/logout", authController.Logout)
	} else {
		hosted := NewHostedAuthController(cfg.HostedProvider, cfg.AuthService, cfg.SessionManager, cfg.PostLogoutRedirectURL)
		api.GET("/login", hosted.Login)
		api.GET("/callback", hosted.Callback)
		api.GET("/logout", hosted.Logout)
	}
	api.GET("/auth/mode", authController.Mode)

	protected := api.Group("", cfg.AuthMiddleware.RequireAuth())
	protected.GET("/auth/user", authController.User)

	if cfg.SchoolStore != nil {
		NewResourcesController(cfg.SchoolStore).RegisterRoutes(protected, cfg.AuthMiddleware)
	}

	return router
}

// setTrustedProxies limits X-Forwarded-For to the configured proxies.
// gin trusts every peer unless told otherwise.
func setTrustedProxies(router *gin.Engine, proxies []string) {
	if len(proxies) == 0 {
		proxies = nil
	}
	if err := router.SetTrustedProxies(proxies); err != nil {
		log := logger.Get()
		log.Error().Err(err).Strs("proxies", proxies).Msg("invalid trusted proxies, ignoring forwarded headers")
		_ = router.SetTrustedProxies(nil)
	}
}
