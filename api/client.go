package api

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/roomcraft/collab/internal/slogging"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send pings to peer with this period; must be less than pongWait
	pingPeriod = 30 * time.Second
	// Default maximum inbound frame size
	defaultReadLimit = 65536
)

// WebSocketClient represents one live session. The hub owns the connection;
// room and presence structures reference the session by id only.
type WebSocketClient struct {
	Hub       *CollaborationHub
	Conn      *websocket.Conn
	SessionID string
	RoomID    string
	User      Identity

	readLimit int64
	send      chan []byte

	sendMu    sync.Mutex
	closed    bool
	closeOnce sync.Once
}

func newClient(hub *CollaborationHub, conn *websocket.Conn, user Identity, readLimit int64) *WebSocketClient {
	if readLimit <= 0 {
		readLimit = defaultReadLimit
	}
	return &WebSocketClient{
		Hub:       hub,
		Conn:      conn,
		SessionID: uuid.New().String(),
		User:      user,
		readLimit: readLimit,
		send:      make(chan []byte, hub.Options().SendBufferSize),
	}
}

// trySend queues data for the write pump without blocking. A closed session
// or full buffer reports ErrSendFailed; messages that do queue are delivered
// to this session in submission order.
func (c *WebSocketClient) trySend(data []byte) error {
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	if c.closed {
		return ErrSendFailed
	}
	select {
	case c.send <- data:
		return nil
	default:
		return ErrSendFailed
	}
}

// close shuts the outbound channel and the connection exactly once. The read
// pump observes the closed connection and funnels into CollaborationHub.Leave,
// which is itself idempotent, so concurrent read errors and explicit closes
// cannot double-clean.
func (c *WebSocketClient) close() {
	c.closeOnce.Do(func() {
		c.sendMu.Lock()
		c.closed = true
		close(c.send)
		c.sendMu.Unlock()
		if c.Conn != nil {
			_ = c.Conn.Close()
		}
	})
}

// ReadPump pumps inbound frames from the connection into the dispatcher.
// It is the single reader for the connection, so two messages from the same
// session never interleave.
func (c *WebSocketClient) ReadPump() {
	defer func() {
		c.Hub.Leave(c.SessionID)
	}()

	c.Conn.SetReadLimit(c.readLimit)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				slogging.Get().Warn("WebSocket read error for session %s: %v", c.SessionID, err)
			}
			return
		}
		c.Hub.router.RouteMessage(c.Hub, c, message)
	}
}

// WritePump pumps queued messages to the connection and keeps the peer alive
// with periodic pings
func (c *WebSocketClient) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
