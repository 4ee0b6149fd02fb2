package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/stream"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// StreamHandler serves the stream worker lifecycle.
type StreamHandler struct {
	manager *stream.Manager
	log     logger.Logger
}

func NewStreamHandler(manager *stream.Manager, log logger.Logger) *StreamHandler {
	return &StreamHandler{manager: manager, log: log}
}

type startStreamRequest struct {
	URL    string              `json:"url"`
	Kind   models.StreamKind   `json:"kind"`
	Config models.StreamConfig `json:"config"`
}

// StartStream launches a worker for a live source.
func (h *StreamHandler) StartStream(c *gin.Context) {
	const op = "api.StartStream"
	var req startStreamRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(models.E(models.KindInput, op, err))
		return
	}
	desc, err := h.manager.Start(c.Request.Context(), req.URL, req.Kind, req.Config)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusCreated, desc)
}

// StopStream shuts one worker down.
func (h *StreamHandler) StopStream(c *gin.Context) {
	if err := h.manager.Stop(c.Param("id")); err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "stopped"})
}

// ListStreams returns all stream descriptors.
func (h *StreamHandler) ListStreams(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"streams": h.manager.List()})
}

// GetStream returns one stream descriptor.
func (h *StreamHandler) GetStream(c *gin.Context) {
	desc, err := h.manager.Status(c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, desc)
}

// GetStreamResults returns recent detection results, newest last. Supports
// ?limit=N and ?since=RFC3339.
func (h *StreamHandler) GetStreamResults(c *gin.Context) {
	const op = "api.GetStreamResults"
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.Error(models.E(models.KindInput, op, "bad limit"))
			return
		}
		limit = n
	}
	var since time.Time
	if raw := c.Query("since"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			c.Error(models.E(models.KindInput, op, "since must be RFC3339"))
			return
		}
		since = t
	}
	results, err := h.manager.Results(c.Param("id"), limit, since)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"results": results})
}
