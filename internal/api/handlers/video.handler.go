package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/services"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// VideoHandler serves video diagnosis.
type VideoHandler struct {
	video *services.VideoService
	log   logger.Logger
}

func NewVideoHandler(video *services.VideoService, log logger.Logger) *VideoHandler {
	return &VideoHandler{video: video, log: log}
}

type diagnoseVideoRequest struct {
	Path string `json:"path"`
	services.VideoDiagnoseOptions
}

// DiagnoseVideo diagnoses a server-side frame-sequence directory.
func (h *VideoHandler) DiagnoseVideo(c *gin.Context) {
	const op = "api.DiagnoseVideo"
	var req diagnoseVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(models.E(models.KindInput, op, err))
		return
	}
	if req.Path == "" {
		c.Error(models.E(models.KindInput, op, "path is required"))
		return
	}
	verdict, err := h.video.DiagnoseVideo(c.Request.Context(), req.Path, req.VideoDiagnoseOptions)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

// ListVideoDetectors returns the temporal detector catalog.
func (h *VideoHandler) ListVideoDetectors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"detectors": h.video.ListVideoDetectors()})
}
