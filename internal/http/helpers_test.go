package http

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/schooldesk/internal/auth"
	"github.com/schooldesk/schooldesk/internal/config"
	"github.com/schooldesk/schooldesk/internal/database"
	"github.com/schooldesk/schooldesk/internal/database/school"
	"github.com/schooldesk/schooldesk/internal/database/users"
	"github.com/schooldesk/schooldesk/internal/entities"
	"github.com/schooldesk/schooldesk/internal/sessionstore"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// testEnv is a fully wired router over a temp-file sqlite database.
type testEnv struct {
	router   *gin.Engine
	db       *database.Database
	service  *auth.Service
	sessions *auth.SessionManager
	limiter  *auth.RateLimiter
	registry *prometheus.Registry
	now      time.Time
}

func testAuthConfig() config.Auth {
	return config.Auth{
		Mode:              config.AuthModeLocal,
		SessionLifetime:   time.Hour,
		SecureCookies:     false,
		DefaultRole:       string(entities.UserRoleTeacher),
		Argon2MemoryKiB:   1024,
		Argon2Iterations:  1,
		Argon2Parallelism: 1,
		MaxLoginAttempts:  3,
		RateLimitWindow:   time.Minute,
		LockoutDuration:   time.Minute,
		LoginRPS:          1000,
		LoginBurst:        1000,
	}
}

// newTestEnv builds the router. mutate may adjust the auth config or the
// router config before the router is built.
func newTestEnv(t *testing.T, mutate func(*config.Auth, *RouterConfig)) *testEnv {
	t.Helper()

	db, err := database.NewDatabase(config.Database{
		Driver: "sqlite",
		Path:   filepath.Join(t.TempDir(), "schooldesk.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sqlDB, err := db.SQL()
	require.NoError(t, err)
	store, err := sessionstore.NewSQLiteStore(sqlDB)
	require.NoError(t, err)

	authCfg := testAuthConfig()
	routerCfg := RouterConfig{
		SchoolStore:  school.NewRepository(db.DB),
		HealthChecks: map[string]Pinger{"database": db, "sessions": store},
		Version:      "test",
	}
	if mutate != nil {
		mutate(&authCfg, &routerCfg)
	}

	env := &testEnv{db: db, now: time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)}
	env.service = auth.NewService(users.NewRepository(db.DB), authCfg)
	env.sessions = auth.NewSessionManager(store, authCfg)
	env.sessions.SetClock(func() time.Time { return env.now })
	env.limiter = auth.NewRateLimiter(auth.RateLimitConfigFromAuth(authCfg))
	t.Cleanup(env.limiter.Stop)

	routerCfg.Auth = authCfg
	routerCfg.AuthService = env.service
	routerCfg.SessionManager = env.sessions
	routerCfg.AuthMiddleware = auth.NewMiddleware(env.service, env.sessions)
	routerCfg.RateLimiter = env.limiter
	env.registry = routerCfg.Metrics

	env.router = NewRouter(routerCfg)
	return env
}

func (e *testEnv) seedUser(t *testing.T, email, password string, role entities.UserRole) *entities.User {
	t.Helper()
	user, err := e.service.CreateLocalUser(context.Background(), auth.LocalUserInput{
		Email:     email,
		Password:  password,
		FirstName: "Test",
		LastName:  "User",
		Role:      role,
	})
	require.NoError(t, err)
	return user
}

// seedAdmin creates the admin@test.com / admin123 account.
func (e *testEnv) seedAdmin(t *testing.T) *entities.User {
	t.Helper()
	user, err := e.service.CreateLocalUser(context.Background(), auth.LocalUserInput{
		ID:        "test-admin-user",
		Email:     "admin@test.com",
		Password:  "admin123",
		FirstName: "Admin",
		LastName:  "User",
		Role:      entities.UserRoleAdmin,
	})
	require.NoError(t, err)
	return user
}

func (e *testEnv) do(method, path, body string, cookie *http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	if cookie != nil {
		req.AddCookie(cookie)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// login posts credentials and returns the response and its session cookie.
func (e *testEnv) login(t *testing.T, email, password string) (*httptest.ResponseRecorder, *http.Cookie) {
	t.Helper()
	w := e.do(http.MethodPost, "/api/login", `{"email":"`+email+`","password":"`+password+`"}`, nil)
	return w, sessionCookie(w)
}

// sessionCookie returns the sid cookie set by the response, or nil.
func sessionCookie(w *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == auth.SessionCookieName {
			return c
		}
	}
	return nil
}

func TestParseIDParam_Valid(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Params = gin.Params{{Key: "id", Value: "123"}}

	id, ok := parseIDParam(c, "id")

	assert.True(t, ok)
	assert.Equal(t, uint(123), id)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestParseIDParam_Invalid(t *testing.T) {
	for _, value := range []string{"abc", "-1", ""} {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Params = gin.Params{{Key: "id", Value: value}}

		id, ok := parseIDParam(c, "id")

		assert.False(t, ok, value)
		assert.Equal(t, uint(0), id)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Contains(t, w.Body.String(), "invalid id")
	}
}

func TestRespondError_Mapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"validation", auth.NewValidationError("email", "is required"), http.StatusBadRequest, "validation_error"},
		{"invalid credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, "invalid_credentials"},
		{"unauthorized", auth.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"state mismatch", auth.ErrStateMismatch, http.StatusUnauthorized, "unauthorized"},
		{"forbidden", auth.ErrForbidden, http.StatusForbidden, "forbidden"},
		{"throttled", &auth.RateLimitError{RetryAfter: 90 * time.Second}, http.StatusTooManyRequests, "too_many_attempts"},
		{"not found", school.ErrNotFound, http.StatusNotFound, "not_found"},
		{"duplicate", school.ErrDuplicate, http.StatusConflict, "conflict"},
		{"user exists", auth.ErrUserExists, http.StatusConflict, "conflict"},
		{"unknown", errors.New("disk on fire"), http.StatusInternalServerError, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

			respondError(c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Contains(t, w.Body.String(), `"code":"`+tt.wantCode+`"`)
			}
		})
	}
}

func TestRespondError_InternalNotEchoed(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/", nil)

	respondError(c, errors.New("pq: password authentication failed for user root"))

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "pq:")
	assert.Contains(t, w.Body.String(), "internal server error")
}

func TestRespondError_RetryAfter(t *testing.T) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/login", nil)

	respondError(c, &auth.RateLimitError{RetryAfter: 1500 * time.Millisecond})

	assert.Equal(t, "2", w.Header().Get("Retry-After"))
}

func TestMoneyValidator(t *testing.T) {
	require.NoError(t, registerValidators())

	type fee struct {
		Amount string `json:"amount" binding:"money"`
	}
	assert.NoError(t, binding.Validator.ValidateStruct(fee{Amount: "12.50"}))
	assert.Error(t, binding.Validator.ValidateStruct(fee{Amount: "12.345"}))

	valid := []string{"0", "12", "12.5", "12.50", "1000000.00"}
	invalid := []string{"", "-1", "12.345", "abc", "1,000"}

	for _, v := range valid {
		assert.True(t, moneyPattern.MatchString(v), v)
	}
	for _, v := range invalid {
		assert.False(t, moneyPattern.MatchString(v), v)
	}
}

func TestRegisterRules_ReportsFailure(t *testing.T) {
	v := validator.New()

	err := registerRules(v, map[string]validator.Func{
		"": func(validator.FieldLevel) bool { return true },
	})
	assert.Error(t, err)

	assert.NoError(t, registerRules(v, customRules))
	assert.NoError(t, v.Var("10.25", "money"))
	assert.Error(t, v.Var("ten", "money"))
}
