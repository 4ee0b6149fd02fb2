package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/framepulse/framepulse-core/internal/models"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

// ErrorResponse is the standardized error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

// ErrorHandler converts errors attached to the gin context into JSON
// responses, mapping the error kind to an HTTP status.
func ErrorHandler(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err
		kind := models.KindOf(err)
		status := StatusForKind(kind)

		if status >= 500 {
			log.Error("request failed", "path", c.Request.URL.Path, "error", err)
		} else {
			log.Warn("request rejected", "path", c.Request.URL.Path, "error", err)
		}
		c.JSON(status, ErrorResponse{Error: err.Error(), Code: string(kind)})
	}
}

// StatusForKind maps the error taxonomy onto HTTP statuses.
func StatusForKind(kind models.Kind) int {
	switch kind {
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindConflict:
		return http.StatusConflict
	case models.KindInput, models.KindConfig:
		return http.StatusBadRequest
	case models.KindUnsupportedFormat:
		return http.StatusUnsupportedMediaType
	case models.KindResourceExhausted:
		return http.StatusTooManyRequests
	case models.KindTimeout:
		return http.StatusGatewayTimeout
	case models.KindSourceUnavailable, models.KindConnectionLost:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
