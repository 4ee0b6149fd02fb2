package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/internal/services"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// maxUploadBytes caps multipart image uploads.
const maxUploadBytes = 32 << 20

// DiagnoseHandler serves single-image and batch diagnosis.
type DiagnoseHandler struct {
	diag *services.DiagnosisService
	log  logger.Logger
}

func NewDiagnoseHandler(diag *services.DiagnosisService, log logger.Logger) *DiagnoseHandler {
	return &DiagnoseHandler{diag: diag, log: log}
}

type diagnoseImageRequest struct {
	Path string `json:"path"`
	services.DiagnoseOptions
}

// DiagnoseImage accepts either a multipart upload under the "image" field
// with options in the "options" field, or a JSON body naming a server-side
// path.
func (h *DiagnoseHandler) DiagnoseImage(c *gin.Context) {
	const op = "api.DiagnoseImage"

	if file, err := c.FormFile("image"); err == nil {
		if file.Size > maxUploadBytes {
			c.Error(models.E(models.KindResourceExhausted, op, "upload exceeds size limit"))
			return
		}
		var opts services.DiagnoseOptions
		if raw := c.PostForm("options"); raw != "" {
			if err := json.Unmarshal([]byte(raw), &opts); err != nil {
				c.Error(models.E(models.KindInput, op, "bad options field", err))
				return
			}
		}
		f, err := file.Open()
		if err != nil {
			c.Error(models.E(models.KindInput, op, err))
			return
		}
		defer f.Close()
		data, err := io.ReadAll(io.LimitReader(f, maxUploadBytes))
		if err != nil {
			c.Error(models.E(models.KindInput, op, err))
			return
		}
		verdict, err := h.diag.DiagnoseImage(c.Request.Context(), data, opts)
		if err != nil {
			c.Error(err)
			return
		}
		verdict.Source = file.Filename
		c.JSON(http.StatusOK, verdict)
		return
	}

	var req diagnoseImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(models.E(models.KindInput, op, "image upload or json body required", err))
		return
	}
	if req.Path == "" {
		c.Error(models.E(models.KindInput, op, "path is required"))
		return
	}
	verdict, err := h.diag.DiagnoseImageFile(c.Request.Context(), req.Path, req.DiagnoseOptions)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, verdict)
}

type diagnoseBatchRequest struct {
	Paths []string `json:"paths"`
	services.DiagnoseOptions
}

// DiagnoseBatch diagnoses a list of server-side image paths.
func (h *DiagnoseHandler) DiagnoseBatch(c *gin.Context) {
	const op = "api.DiagnoseBatch"
	var req diagnoseBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(models.E(models.KindInput, op, err))
		return
	}
	result, err := h.diag.DiagnoseBatch(c.Request.Context(), req.Paths, req.DiagnoseOptions)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// ListDetectors returns the image detector catalog.
func (h *DiagnoseHandler) ListDetectors(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"detectors": h.diag.ListDetectors()})
}
