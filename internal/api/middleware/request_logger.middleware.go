package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/framepulse/framepulse-core/pkg/logger"
)

// RequestLogger logs every HTTP request with level derived from status.
func RequestLogger(log logger.Logger) gin.HandlerFunc {
	return gin.LoggerWithFormatter(func(param gin.LogFormatterParams) string {
		fields := []interface{}{
			"method", param.Method,
			"path", param.Path,
			"status", param.StatusCode,
			"latency", param.Latency,
			"client_ip", param.ClientIP,
			"request_id", param.Request.Header.Get("X-Request-ID"),
		}
		if param.ErrorMessage != "" {
			fields = append(fields, "error", param.ErrorMessage)
		}
		switch {
		case param.StatusCode >= 500:
			log.Error("HTTP request", fields...)
		case param.StatusCode >= 400:
			log.Warn("HTTP request", fields...)
		default:
			log.Info("HTTP request", fields...)
		}
		return ""
	})
}
