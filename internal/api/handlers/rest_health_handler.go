package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

const healthTimeout = 2 * time.Second

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// RestHealthHandler reports liveness plus store connectivity.
type RestHealthHandler struct {
	checks map[string]HealthCheck
}

// NewRestHealthHandler creates a handler over named checks.
func NewRestHealthHandler(checks map[string]HealthCheck) *RestHealthHandler {
	return &RestHealthHandler{checks: checks}
}

// Health handles GET /api/health
func (h *RestHealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	results := make(map[string]string, len(h.checks))
	healthy := true
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			results[name] = err.Error()
			healthy = false
			continue
		}
		results[name] = "ok"
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": results, "time": time.Now().UTC()})
}
