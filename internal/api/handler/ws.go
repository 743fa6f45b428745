package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"mediaguard/backend/internal/eventhub"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// The stream is owner-only and token-gated, so any origin may connect.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades an owner request and subscribes it to the event
// stream. An optional types query parameter (repeatable) filters by event
// type.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	types := c.QueryArray("types")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		h.log.Debug("websocket upgrade failed", "err", err)
		return
	}

	id := callerFrom(c).String() + "/" + uuid.NewString()
	h.Hub.Register(eventhub.NewWebSocketClient(id, conn, h.Hub, types...))
}
