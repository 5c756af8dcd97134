package entrypoint

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/schooldesk/schooldesk/internal/auth"
	"github.com/schooldesk/schooldesk/internal/auth/oidc"
	"github.com/schooldesk/schooldesk/internal/config"
	"github.com/schooldesk/schooldesk/internal/database"
	"github.com/schooldesk/schooldesk/internal/database/school"
	"github.com/schooldesk/schooldesk/internal/database/users"
	http_controllers "github.com/schooldesk/schooldesk/internal/http"
	"github.com/schooldesk/schooldesk/internal/logger"
	"github.com/schooldesk/schooldesk/internal/metrics"
	"github.com/schooldesk/schooldesk/internal/scheduler"
	"github.com/schooldesk/schooldesk/internal/sessionstore"
)

// ShutdownFunc is called during graceful shutdown to clean up resources.
type ShutdownFunc func(ctx context.Context)

// sessionBackend is a session store that can also report its health.
type sessionBackend interface {
	scs.Store
	http_controllers.Pinger
}

func Serve(router *gin.Engine, cfg *config.Config, onShutdown ShutdownFunc) {
	log := logger.Get()
	timeout := time.Duration(cfg.Global.ShutdownTimeoutInSeconds) * time.Second

	srv := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("starting server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Dur("timeout", timeout).Msg("shutting down server")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}

	// Background jobs and stores go last so in-flight requests can finish.
	if onShutdown != nil {
		onShutdown(ctx)
	}

	log.Info().Msg("server exiting")
}

func Run(cfg *config.Config, version string) {
	log := logger.Init(logger.Options{Level: cfg.Log.Level, Pretty: cfg.Log.Pretty})
	log.Info().Str("version", version).Msg("starting schooldesk")

	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("invalid configuration")
	}

	db, err := database.NewDatabase(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize database")
	}

	var (
		store      sessionBackend
		sweeper    *scheduler.SessionSweepScheduler
		redisStore *sessionstore.RedisStore
	)

	switch cfg.Sessions.Store {
	case config.SessionStoreRedis:
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		redisStore = sessionstore.NewRedisStore(rdb, cfg.Redis.Prefix)
		pingCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := redisStore.Ping(pingCtx); err != nil {
			log.Warn().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis not reachable yet")
		}
		cancel()
		store = redisStore
		log.Info().Str("addr", cfg.Redis.Addr).Msg("using redis session store")

	default:
		sqlDB, err := db.SQL()
		if err != nil {
			log.Fatal().Err(err).Msg("failed to get SQL DB for sessions")
		}
		sqliteStore, err := sessionstore.NewSQLiteStore(sqlDB)
		if err != nil {
			log.Fatal().Err(err).Msg("failed to initialize session store")
		}
		store = sqliteStore

		sweeper = scheduler.NewSessionSweepScheduler(sqliteStore, cfg.Sessions.SweepSchedule)
		if err := sweeper.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start session sweep")
		}
		log.Info().Str("schedule", cfg.Sessions.SweepSchedule).Msg("using sqlite session store")
	}

	sessionManager := auth.NewSessionManager(store, cfg.Auth)
	authService := auth.NewService(users.NewRepository(db.DB), cfg.Auth)
	authMiddleware := auth.NewMiddleware(authService, sessionManager)

	routerCfg := http_controllers.RouterConfig{
		Auth:           cfg.Auth,
		AuthService:    authService,
		SessionManager: sessionManager,
		AuthMiddleware: authMiddleware,
		SchoolStore:    school.NewRepository(db.DB),
		HealthChecks: map[string]http_controllers.Pinger{
			"database": db,
			"sessions": store,
		},
		TrustedProxies: cfg.HTTP.TrustedProxies,
		Version:        version,
	}

	var limiter *auth.RateLimiter
	if cfg.Auth.IsLocal() {
		limiter = auth.NewRateLimiter(auth.RateLimitConfigFromAuth(cfg.Auth))
		routerCfg.RateLimiter = limiter

		hasUsers, err := authService.HasUsers(context.Background())
		if err != nil {
			log.Error().Err(err).Msg("failed to count users")
		} else if !hasUsers {
			log.Warn().Msg("no users found; run the seed-user command to create an administrator")
		}
		log.Info().Msg("authentication mode: local")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		provider, err := oidc.NewProvider(ctx, cfg.OIDC)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("issuer", cfg.OIDC.IssuerURL).Msg("failed to discover identity provider")
		}
		routerCfg.HostedProvider = provider
		routerCfg.PostLogoutRedirectURL = cfg.OIDC.PostLogoutRedirectURL
		log.Info().Str("issuer", cfg.OIDC.IssuerURL).Msg("authentication mode: oidc")
	}

	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		reg.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		metrics.RegisterCollectors(reg)
		routerCfg.Metrics = reg
	}

	router := http_controllers.NewRouter(routerCfg)

	onShutdown := func(ctx context.Context) {
		if sweeper != nil {
			sweeper.Stop()
		}
		if limiter != nil {
			limiter.Stop()
		}
		if redisStore != nil {
			if err := redisStore.Close(); err != nil {
				log.Error().Err(err).Msg("error closing redis client")
			}
		}
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("error closing database")
		}
	}

	Serve(router, cfg, onShutdown)
}
