package handlers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/stwalsh4118/fieldwatch/internal/middleware"
)

// APIVersion is the current version of the API
const APIVersion = "0.1.0"

// Prober is the part of the dashboard service the health endpoints use.
type Prober interface {
	Backend() string
	Healthy(ctx context.Context) bool
}

// HealthHandler handles health check and readiness endpoints.
type HealthHandler struct {
	prober    Prober
	startTime time.Time
	env       string
}

// NewHealthHandler creates a new HealthHandler instance.
func NewHealthHandler(prober Prober, env string) *HealthHandler {
	return &HealthHandler{
		prober:    prober,
		startTime: time.Now(),
		env:       env,
	}
}

// HealthResponse represents the basic health check response.
type HealthResponse struct {
	Status string `json:"status"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status     string `json:"status"`
	Backend    string `json:"backend"`
	DataSource string `json:"data_source"`
}

// InfoResponse represents the API information response.
type InfoResponse struct {
	Version     string `json:"version"`
	Environment string `json:"environment"`
	Backend     string `json:"backend"`
	Uptime      string `json:"uptime"`
}

// Health handles GET /health. It is a liveness check without dependencies.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, HealthResponse{Status: "healthy"})
}

// Ready handles GET /health/ready by probing the data source.
// Returns 503 Service Unavailable when the probe fails or times out.
func (h *HealthHandler) Ready(c *gin.Context) {
	backend := h.prober.Backend()

	if !h.prober.Healthy(c.Request.Context()) {
		if log := middleware.GetLogger(c); log != nil {
			log.Warn("Data source health check failed", map[string]interface{}{
				"backend": backend,
			})
		}

		c.JSON(http.StatusServiceUnavailable, ReadyResponse{
			Status:     "not_ready",
			Backend:    backend,
			DataSource: "unreachable",
		})
		return
	}

	c.JSON(http.StatusOK, ReadyResponse{
		Status:     "ready",
		Backend:    backend,
		DataSource: "connected",
	})
}

// Info handles GET /api/v1/info.
func (h *HealthHandler) Info(c *gin.Context) {
	c.JSON(http.StatusOK, InfoResponse{
		Version:     APIVersion,
		Environment: h.env,
		Backend:     h.prober.Backend(),
		Uptime:      formatUptime(time.Since(h.startTime)),
	})
}

// formatUptime formats a duration into a human-readable string.
func formatUptime(d time.Duration) string {
	days := int(d.Hours() / 24)
	hours := int(d.Hours()) % 24
	minutes := int(d.Minutes()) % 60
	seconds := int(d.Seconds()) % 60

	if days > 0 {
		return fmt.Sprintf("%dd %dh %dm %ds", days, hours, minutes, seconds)
	}
	return fmt.Sprintf("%dh %dm %ds", hours, minutes, seconds)
}
