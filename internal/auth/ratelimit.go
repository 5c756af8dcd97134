package auth

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"github.com/schooldesk/schooldesk/internal/config"
	"github.com/schooldesk/schooldesk/internal/entities"
	"github.com/schooldesk/schooldesk/internal/metrics"
)

// RateLimiter throttles login attempts two ways: a failure counter per
// IP+email pair that locks the pair out after too many misses, and a
// token bucket per IP that caps raw request rate on the login route.
type RateLimiter struct {
	mu              sync.Mutex
	attempts        map[string]*attemptRecord
	buckets         map[string]*bucket
	maxAttempts     int
	windowDuration  time.Duration
	lockoutDuration time.Duration
	cleanupInterval time.Duration
	rps             rate.Limit
	burst           int
	now             func() time.Time
	stopCleanup     chan struct{}
	stopOnce        sync.Once
}

type attemptRecord struct {
	count        int
	firstAttempt time.Time
	lockedUntil  time.Time
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimitConfig contains configuration for the rate limiter.
type RateLimitConfig struct {
	MaxAttempts       int           // Maximum failures before lockout (default: 5)
	WindowDuration    time.Duration // Time window for counting failures (default: 15m)
	LockoutDuration   time.Duration // How long to lock out after max failures (default: 30m)
	CleanupInterval   time.Duration // How often to drop stale records (default: 5m)
	RequestsPerSecond float64       // Per-IP refill rate (default: 1)
	Burst             int           // Per-IP bucket size (default: 10)
}

// DefaultRateLimitConfig returns sensible defaults for rate limiting.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxAttempts:       5,
		WindowDuration:    15 * time.Minute,
		LockoutDuration:   30 * time.Minute,
		CleanupInterval:   5 * time.Minute,
		RequestsPerSecond: 1,
		Burst:             10,
	}
}

// RateLimitConfigFromAuth maps auth configuration onto limiter settings.
func RateLimitConfigFromAuth(cfg config.Auth) RateLimitConfig {
	rc := DefaultRateLimitConfig()
	rc.MaxAttempts = cfg.MaxLoginAttempts
	rc.WindowDuration = cfg.RateLimitWindow
	rc.LockoutDuration = cfg.LockoutDuration
	rc.RequestsPerSecond = cfg.LoginRPS
	rc.Burst = cfg.LoginBurst
	return rc
}

// NewRateLimiter creates a rate limiter and starts its cleanup goroutine.
// Call Stop on shutdown.
func NewRateLimiter(cfg RateLimitConfig) *RateLimiter {
	def := DefaultRateLimitConfig()
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = def.MaxAttempts
	}
	if cfg.WindowDuration <= 0 {
		cfg.WindowDuration = def.WindowDuration
	}
	if cfg.LockoutDuration <= 0 {
		cfg.LockoutDuration = def.LockoutDuration
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = def.CleanupInterval
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = def.RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}

	rl := &RateLimiter{
		attempts:        make(map[string]*attemptRecord),
		buckets:         make(map[string]*bucket),
		maxAttempts:     cfg.MaxAttempts,
		windowDuration:  cfg.WindowDuration,
		lockoutDuration: cfg.LockoutDuration,
		cleanupInterval: cfg.CleanupInterval,
		rps:             rate.Limit(cfg.RequestsPerSecond),
		burst:           cfg.Burst,
		now:             time.Now,
		stopCleanup:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop stops the background cleanup goroutine. Safe to call twice.
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCleanup) })
}

func (rl *RateLimiter) makeKey(ip, email string) string {
	return ip + "|" + entities.NormalizeEmail(email)
}

// Allow checks whether a login attempt for the pair may proceed.
// If not, retryAfter tells when the lockout ends.
func (rl *RateLimiter) Allow(ip, email string) (bool, time.Duration) {
	key := rl.makeKey(ip, email)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, exists := rl.attempts[key]
	if !exists {
		return true, 0
	}

	if !record.lockedUntil.IsZero() && now.Before(record.lockedUntil) {
		return false, record.lockedUntil.Sub(now)
	}

	// Lockout served or window elapsed: start over.
	if !record.lockedUntil.IsZero() || now.Sub(record.firstAttempt) > rl.windowDuration {
		delete(rl.attempts, key)
	}

	return true, 0
}

// RecordFailure records a failed login attempt and reports whether the
// pair is now locked out.
func (rl *RateLimiter) RecordFailure(ip, email string) (bool, time.Duration) {
	key := rl.makeKey(ip, email)
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	record, exists := rl.attempts[key]
	if !exists || now.Sub(record.firstAttempt) > rl.windowDuration {
		record = &attemptRecord{firstAttempt: now}
		rl.attempts[key] = record
	}

	record.count++

	if record.count >= rl.maxAttempts {
		record.lockedUntil = now.Add(rl.lockoutDuration)
		return true, rl.lockoutDuration
	}

	return false, 0
}

// RecordSuccess clears the failure record for a successful login.
func (rl *RateLimiter) RecordSuccess(ip, email string) {
	key := rl.makeKey(ip, email)

	rl.mu.Lock()
	delete(rl.attempts, key)
	rl.mu.Unlock()
}

// Check returns a *RateLimitError when the pair is locked out.
func (rl *RateLimiter) Check(ip, email string) error {
	if allowed, retryAfter := rl.Allow(ip, email); !allowed {
		metrics.RateLimitRejected.WithLabelValues("lockout").Inc()
		return &RateLimitError{RetryAfter: retryAfter}
	}
	return nil
}

// AllowRequest takes one token from the IP's bucket. When empty it
// returns false and the wait until the next token.
func (rl *RateLimiter) AllowRequest(ip string) (bool, time.Duration) {
	now := rl.now()

	rl.mu.Lock()
	b, ok := rl.buckets[ip]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rl.rps, rl.burst)}
		rl.buckets[ip] = b
	}
	b.lastSeen = now
	rl.mu.Unlock()

	r := b.limiter.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Second
	}
	if delay := r.DelayFrom(now); delay > 0 {
		r.CancelAt(now)
		return false, delay
	}
	return true, 0
}

// RequestLimitMiddleware applies the per-IP token bucket. Attach it to the
// login route only.
func (rl *RateLimiter) RequestLimitMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		allowed, retryAfter := rl.AllowRequest(c.ClientIP())
		if !allowed {
			metrics.RateLimitRejected.WithLabelValues("token_bucket").Inc()
			metrics.LoginAttempts.WithLabelValues(string(ProviderLocal), "throttled").Inc()
			c.Header("Retry-After", RetryAfterSeconds(retryAfter))
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": ErrTooManyAttempts.Error(),
				"code":  "too_many_attempts",
			})
			return
		}
		c.Next()
	}
}

// RetryAfterSeconds formats d for a Retry-After header, rounding up.
func RetryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}

func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup()
		case <-rl.stopCleanup:
			return
		}
	}
}

// cleanup removes records whose window and lockout have both passed, and
// buckets idle long enough to have refilled.
func (rl *RateLimiter) cleanup() {
	now := rl.now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, record := range rl.attempts {
		windowExpired := now.Sub(record.firstAttempt) > rl.windowDuration
		lockoutExpired := record.lockedUntil.IsZero() || now.After(record.lockedUntil)
		if windowExpired && lockoutExpired {
			delete(rl.attempts, key)
		}
	}

	refill := time.Duration(float64(rl.burst) / float64(rl.rps) * float64(time.Second))
	for ip, b := range rl.buckets {
		if now.Sub(b.lastSeen) > refill {
			delete(rl.buckets, ip)
		}
	}
}
