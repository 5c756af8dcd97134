package config

import (
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type AuthMode string

const (
	AuthModeLocal AuthMode = "local" // Email/password against the local user table (default)
	AuthModeOIDC  AuthMode = "oidc"  // Redirect-based login against a hosted OpenID provider
)

type SessionStoreKind string

const (
	SessionStoreSQLite SessionStoreKind = "sqlite"
	SessionStoreRedis  SessionStoreKind = "redis"
)

type (
	Config struct {
		HTTP
		Global
		Database
		Auth
		OIDC
		Sessions
		Redis
		Log
		Metrics
	}

	HTTP struct {
		Port int32
		Host string
		// Proxies whose X-Forwarded-For is believed when resolving the
		// client IP. Empty means the socket peer address is always used.
		TrustedProxies []string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Driver string // "sqlite" or "postgres"
		Path   string // sqlite file path
		DSN    string // postgres connection string
	}
	Auth struct {
		Mode            AuthMode
		SessionLifetime time.Duration // Fixed window, never extended by activity
		SecureCookies   bool          // Set to false for local dev without HTTPS
		DefaultRole     string        // Role given to first-time hosted sign-ins

		// Argon2id parameters for new password hashes
		Argon2MemoryKiB   uint32
		Argon2Iterations  uint32
		Argon2Parallelism uint8

		// Rate limiting configuration
		MaxLoginAttempts int           // Max failed attempts before lockout (default: 5)
		RateLimitWindow  time.Duration // Time window for counting attempts (default: 15m)
		LockoutDuration  time.Duration // How long to lock out (default: 30m)
		LoginRPS         float64       // Per-IP token bucket refill rate on the login endpoint
		LoginBurst       int
	}
	OIDC struct {
		IssuerURL             string
		ClientID              string
		ClientSecret          string
		RedirectURL           string
		PostLogoutRedirectURL string
	}
	Sessions struct {
		Store         SessionStoreKind
		SweepSchedule string // Cron format, sqlite store only
	}
	Redis struct {
		Addr     string
		Password string
		DB       int
		Prefix   string
	}
	Log struct {
		Level  string
		Pretty bool
	}
	Metrics struct {
		Enabled bool
	}
)

// IsLocal reports whether the process runs local credential auth.
func (a Auth) IsLocal() bool {
	return a.Mode != AuthModeOIDC
}

// Validate checks combinations that viper defaults cannot express.
func (c *Config) Validate() error {
	switch c.Auth.Mode {
	case AuthModeLocal:
	case AuthModeOIDC:
		if c.OIDC.IssuerURL == "" || c.OIDC.ClientID == "" || c.OIDC.RedirectURL == "" {
			return fmt.Errorf("AUTH_MODE=oidc requires OIDC_ISSUER_URL, OIDC_CLIENT_ID and OIDC_REDIRECT_URL")
		}
	default:
		return fmt.Errorf("unknown AUTH_MODE %q (expected %q or %q)", c.Auth.Mode, AuthModeLocal, AuthModeOIDC)
	}

	switch c.Sessions.Store {
	case SessionStoreSQLite:
		if c.Database.Driver != "sqlite" {
			return fmt.Errorf("SESSION_STORE=sqlite requires DATABASE_DRIVER=sqlite")
		}
	case SessionStoreRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("SESSION_STORE=redis requires REDIS_ADDR")
		}
	default:
		return fmt.Errorf("unknown SESSION_STORE %q", c.Sessions.Store)
	}

	for _, p := range c.HTTP.TrustedProxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("HTTP_TRUSTED_PROXIES: %q is not an IP address or CIDR", p)
		}
	}

	if c.Auth.SessionLifetime <= 0 {
		return fmt.Errorf("AUTH_SESSION_LIFETIME must be positive")
	}
	return nil
}

// NewConfig reads configuration from the environment once at startup.
// A .env file in the working directory is loaded first if present;
// real environment variables take precedence over it.
func NewConfig() *Config {
	_ = godotenv.Load()
	return newConfigFromViper(viper.New())
}

func newConfigFromViper(v *viper.Viper) *Config {
	v.AutomaticEnv()
	v.SetDefault("port", 8080)
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("shutdown_timeout_in_seconds", 5)
	v.SetDefault("http_trusted_proxies", "")

	v.SetDefault("database_driver", "sqlite")
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("database_dsn", "")

	// Auth defaults
	v.SetDefault("auth_mode", string(AuthModeLocal))
	v.SetDefault("auth_session_lifetime", "168h") // One week, fixed
	v.SetDefault("auth_secure_cookies", true)     // HTTPS-only cookies
	v.SetDefault("auth_default_role", "Admin")
	v.SetDefault("auth_argon2_memory_kib", 64*1024)
	v.SetDefault("auth_argon2_iterations", 3)
	v.SetDefault("auth_argon2_parallelism", 2)
	v.SetDefault("auth_max_login_attempts", 5)    // Max failed attempts
	v.SetDefault("auth_rate_limit_window", "15m") // Window for counting attempts
	v.SetDefault("auth_lockout_duration", "30m")  // Lockout duration
	v.SetDefault("auth_login_rps", 1.0)
	v.SetDefault("auth_login_burst", 10)

	v.SetDefault("oidc_issuer_url", "")
	v.SetDefault("oidc_client_id", "")
	v.SetDefault("oidc_client_secret", "")
	v.SetDefault("oidc_redirect_url", "")
	v.SetDefault("oidc_post_logout_redirect_url", "")

	v.SetDefault("session_store", string(SessionStoreSQLite))
	v.SetDefault("session_sweep_schedule", "*/5 * * * *")

	v.SetDefault("redis_addr", "localhost:6379")
	v.SetDefault("redis_password", "")
	v.SetDefault("redis_db", 0)
	v.SetDefault("redis_prefix", "session:")

	v.SetDefault("log_level", "info")
	v.SetDefault("log_pretty", false)
	v.SetDefault("metrics_enabled", true)

	return &Config{
		HTTP: HTTP{
			Port:           v.GetInt32("PORT"),
			Host:           v.GetString("HOST"),
			TrustedProxies: splitList(v.GetString("HTTP_TRUSTED_PROXIES")),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Driver: v.GetString("DATABASE_DRIVER"),
			Path:   v.GetString("DATABASE_PATH"),
			DSN:    v.GetString("DATABASE_DSN"),
		},
		Auth: Auth{
			Mode:              AuthMode(v.GetString("AUTH_MODE")),
			SessionLifetime:   v.GetDuration("AUTH_SESSION_LIFETIME"),
			SecureCookies:     v.GetBool("AUTH_SECURE_COOKIES"),
			DefaultRole:       v.GetString("AUTH_DEFAULT_ROLE"),
			Argon2MemoryKiB:   v.GetUint32("AUTH_ARGON2_MEMORY_KIB"),
			Argon2Iterations:  v.GetUint32("AUTH_ARGON2_ITERATIONS"),
			Argon2Parallelism: uint8(v.GetUint("AUTH_ARGON2_PARALLELISM")),
			MaxLoginAttempts:  v.GetInt("AUTH_MAX_LOGIN_ATTEMPTS"),
			RateLimitWindow:   v.GetDuration("AUTH_RATE_LIMIT_WINDOW"),
			LockoutDuration:   v.GetDuration("AUTH_LOCKOUT_DURATION"),
			LoginRPS:          v.GetFloat64("AUTH_LOGIN_RPS"),
			LoginBurst:        v.GetInt("AUTH_LOGIN_BURST"),
		},
		OIDC: OIDC{
			IssuerURL:             v.GetString("OIDC_ISSUER_URL"),
			ClientID:              v.GetString("OIDC_CLIENT_ID"),
			ClientSecret:          v.GetString("OIDC_CLIENT_SECRET"),
			RedirectURL:           v.GetString("OIDC_REDIRECT_URL"),
			PostLogoutRedirectURL: v.GetString("OIDC_POST_LOGOUT_REDIRECT_URL"),
		},
		Sessions: Sessions{
			Store:         SessionStoreKind(v.GetString("SESSION_STORE")),
			SweepSchedule: v.GetString("SESSION_SWEEP_SCHEDULE"),
		},
		Redis: Redis{
			Addr:     v.GetString("REDIS_ADDR"),
			Password: v.GetString("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
			Prefix:   v.GetString("REDIS_PREFIX"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Pretty: v.GetBool("LOG_PRETTY"),
		},
		Metrics: Metrics{
			Enabled: v.GetBool("METRICS_ENABLED"),
		},
	}
}

// splitList parses a comma-separated env value, dropping blanks.
func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
