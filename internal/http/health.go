package http

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/schooldesk/schooldesk/internal/logger"
)

// Pinger is a dependency whose connectivity is reported by /health.
type Pinger interface {
	Ping(ctx context.Context) error
}

type HealthController struct {
	checks  map[string]Pinger
	version string
	timeout time.Duration
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status  string            `json:"status"`
	Time    string            `json:"time"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks,omitempty"`
}

// NewHealthController reports on each named dependency. A nil Pinger is
// reported as "not configured" and marks the service unhealthy.
func NewHealthController(version string, checks map[string]Pinger) *HealthController {
	return &HealthController{
		checks:  checks,
		version: version,
		timeout: 2 * time.Second,
	}
}

func (h *HealthController) Status(c *gin.Context) {
	status := "healthy"
	checks := make(map[string]string, len(h.checks))

	for name, p := range h.checks {
		if p == nil {
			checks[name] = "not configured"
			status = "unhealthy"
			continue
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
		err := p.Ping(ctx)
		cancel()
		if err != nil {
			log := logger.Get()
			log.Error().Err(err).Str("dependency", name).Msg("health check failed")
			checks[name] = "error"
			status = "unhealthy"
			continue
		}
		checks[name] = "ok"
	}

	health := HealthResponse{
		Status:  status,
		Time:    time.Now().Format(time.RFC3339),
		Version: h.version,
		Checks:  checks,
	}

	statusCode := http.StatusOK
	if status != "healthy" {
		statusCode = http.StatusServiceUnavailable
	}

	c.IndentedJSON(statusCode, health)
}
