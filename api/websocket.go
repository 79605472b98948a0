package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/roomcraft/collab/internal/slogging"
)

// CloseAuthenticationFailure is sent before the receive loop when the
// connection token cannot be resolved to an identity
const CloseAuthenticationFailure = 4001

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Allow all origins for development; restrict in production
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// CollabSocketHandler upgrades HTTP requests into collaboration sessions
type CollabSocketHandler struct {
	hub       *CollaborationHub
	resolver  IdentityResolver
	readLimit int64
}

// NewCollabSocketHandler wires the hub to an identity resolver
func NewCollabSocketHandler(hub *CollaborationHub, resolver IdentityResolver, readLimit int64) *CollabSocketHandler {
	return &CollabSocketHandler{hub: hub, resolver: resolver, readLimit: readLimit}
}

// HandleWS handles GET /ws/rooms/:id. The room id rides in the path and the
// authentication token in the query string because the browser WebSocket API
// cannot set custom headers.
func (h *CollabSocketHandler) HandleWS(c *gin.Context) {
	roomID := c.Param("id")
	if roomID == "" {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_request", Message: "Room id is required"})
		return
	}

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slogging.Get().Warn("Failed to upgrade connection for room %s: %v", roomID, err)
		return
	}

	identity, err := h.resolver.Resolve(c.Query("token"))
	if err != nil {
		slogging.Get().Warn("Authentication failed for room %s: %v", roomID, err)
		closeWithReason(conn, CloseAuthenticationFailure, "authentication failed")
		return
	}

	client := newClient(h.hub, conn, identity, h.readLimit)
	h.hub.Join(roomID, client)

	go client.WritePump()
	go client.ReadPump()
}

// closeWithReason sends a close frame with a status code and reason, then
// drops the connection
func closeWithReason(conn *websocket.Conn, code int, reason string) {
	msg := websocket.FormatCloseMessage(code, reason)
	if err := conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second)); err != nil {
		slogging.Get().Debug("Failed to send close message: %v", err)
	}
	if err := conn.Close(); err != nil {
		slogging.Get().Debug("Failed to close connection: %v", err)
	}
}
