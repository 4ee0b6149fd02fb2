package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/framepulse/framepulse-core/pkg/logger"
)

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	log     logger.Logger
	started time.Time
	version string
}

func NewHealthHandler(version string, log logger.Logger) *HealthHandler {
	return &HealthHandler{log: log, started: time.Now(), version: version}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":         "healthy",
		"version":        h.version,
		"uptime_seconds": int64(time.Since(h.started).Seconds()),
	})
}

// ReadinessCheck reports ready once the process is serving. Detection is
// purely in-process, so liveness and readiness coincide.
func (h *HealthHandler) ReadinessCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ready"})
}
