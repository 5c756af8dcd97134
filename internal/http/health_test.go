package http

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schooldesk/schooldesk/internal/logger"
)

type pingerFunc func(ctx context.Context) error

func (f pingerFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealthController_Status(t *testing.T) {
	t.Run("returns healthy when every dependency answers", func(t *testing.T) {
		env := newTestEnv(t, nil)

		w := env.do(http.MethodGet, "/health", "", nil)
		assert.Equal(t, http.StatusOK, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))

		assert.Equal(t, "healthy", response.Status)
		assert.Equal(t, "test", response.Version)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.Equal(t, "ok", response.Checks["sessions"])
		assert.NotEmpty(t, response.Time)
	})

	t.Run("returns unhealthy when a dependency fails", func(t *testing.T) {
		var logs bytes.Buffer
		logger.Init(logger.Options{Output: &logs})
		t.Cleanup(func() { logger.Init(logger.Options{Output: io.Discard}) })

		controller := NewHealthController("1.0.0", map[string]Pinger{
			"database": pingerFunc(func(context.Context) error { return nil }),
			"sessions": pingerFunc(func(context.Context) error {
				return errors.New("dial tcp 10.1.2.3:6379: connect: connection refused")
			}),
		})

		router := gin.New()
		router.GET("/health", controller.Status)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var response HealthResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.Equal(t, "unhealthy", response.Status)
		assert.Equal(t, "ok", response.Checks["database"])
		assert.Equal(t, "error", response.Checks["sessions"])

		// Driver details go to the log, not the response.
		assert.NotContains(t, w.Body.String(), "10.1.2.3")
		assert.Contains(t, logs.String(), "10.1.2.3:6379")
		assert.Contains(t, logs.String(), `"dependency":"sessions"`)
	})

	t.Run("reports nil dependencies as not configured", func(t *testing.T) {
		controller := NewHealthController("1.0.0", map[string]Pinger{"database": nil})

		router := gin.New()
		router.GET("/health", controller.Status)

		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)
		assert.Contains(t, w.Body.String(), "not configured")
	})
}
