package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/framepulse/framepulse-core/internal/metrics"
	"github.com/framepulse/framepulse-core/internal/stream"
	"github.com/framepulse/framepulse-core/pkg/logger"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
)

var wsUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Browser clients connect cross-origin from the dashboard.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// StreamWSHandler pushes live detection results over a websocket.
type StreamWSHandler struct {
	manager *stream.Manager
	log     logger.Logger
}

func NewStreamWSHandler(manager *stream.Manager, log logger.Logger) *StreamWSHandler {
	return &StreamWSHandler{manager: manager, log: log}
}

// Subscribe upgrades the connection and forwards every new result for the
// stream until either side disconnects.
func (h *StreamWSHandler) Subscribe(c *gin.Context) {
	id := c.Param("id")
	results, cancel, err := h.manager.Subscribe(id)
	if err != nil {
		c.Error(err)
		return
	}
	defer cancel()

	conn, err := wsUpgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "stream_id", id, "error", err)
		return
	}
	defer conn.Close()

	metrics.ActiveWebSocketConnections.WithLabelValues(id).Inc()
	defer metrics.ActiveWebSocketConnections.WithLabelValues(id).Dec()
	h.log.Info("websocket subscriber attached", "stream_id", id)

	// Reader goroutine: only consumes control frames and detects close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(wsPingInterval)
	defer ping.Stop()
	for {
		select {
		case <-done:
			return
		case <-ping.C:
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case result, ok := <-results:
			if !ok {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteJSON(result); err != nil {
				h.log.Debug("websocket write failed", "stream_id", id, "error", err)
				return
			}
		}
	}
}
