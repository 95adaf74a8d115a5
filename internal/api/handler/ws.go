package handler

import (
	"net/http"

	"crimewatch/backend/internal/hub"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// TODO: restrict to the web client origin once it has a fixed domain.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ServeWebSocket upgrades an authenticated request and attaches a notification client to the hub.
func (h *Handler) ServeWebSocket(c *gin.Context) {
	id, ok := h.authenticate(c)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// Upgrade has already written the error response
		h.Log.WithError(err).Debug("websocket upgrade failed")
		return
	}

	client := hub.NewWebSocketClient(conn, h.Hub, id.Feed(), h.Storage, h.Snapshots, h.Config.FeedLimit, h.Log)
	if !h.Hub.Register(client) {
		conn.Close()
		return
	}
	client.Run()
}
