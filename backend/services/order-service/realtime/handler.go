package realtime

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Handler upgrades GET /ws and serves the connection until it closes.
type Handler struct {
	hub      *Hub
	upgrader websocket.Upgrader
	buffer   int
	logger   *zap.Logger
}

// NewHandler accepts any origin; the gateway owns CORS.
func NewHandler(hub *Hub, buffer int, logger *zap.Logger) *Handler {
	return &Handler{
		hub: hub,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		buffer: buffer,
		logger: logger,
	}
}

func (h *Handler) ServeWS(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the HTTP error
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := newClient(h.hub, conn, h.buffer, h.logger)
	h.logger.Info("websocket connected",
		zap.String("client_id", client.ID()),
		zap.String("remote", c.ClientIP()),
	)

	go client.writePump()
	client.readPump()
	h.logger.Info("websocket disconnected", zap.String("client_id", client.ID()))
}
