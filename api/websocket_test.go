package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startCollabServer(t *testing.T) (*CollaborationHub, *httptest.Server) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	hub := NewCollaborationHubForTests()
	r := gin.New()
	ws := NewCollabSocketHandler(hub, NewJWTIdentityResolver(testJWTSecret, ""), 0)
	RegisterRoutes(r, ws, NewAdminHandlers(hub))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return hub, srv
}

func dialRoom(t *testing.T, srv *httptest.Server, roomID, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/" + roomID + "?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readWire(t *testing.T, conn *websocket.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(data, &m))
	return m
}

func writeWire(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func userToken(t *testing.T, userID, name string) string {
	return signTestToken(t, map[string]any{
		"sub":  userID,
		"name": name,
		"exp":  time.Now().Add(time.Hour).Unix(),
	})
}

func TestCollaborationSessionLifecycle(t *testing.T) {
	hub, srv := startCollabServer(t)

	// Alice joins an empty room
	connA := dialRoom(t, srv, "proj-1", userToken(t, "alice", "Alice"))
	snap := readWire(t, connA)
	require.Equal(t, string(MessageTypeConnectionEstablished), snap["type"])
	assert.Equal(t, float64(1), snap["user_count"])
	assert.Equal(t, "proj-1", snap["room_id"])
	assert.NotEmpty(t, snap["session_id"])

	// Bob joins; Alice is notified, Bob's snapshot shows both users
	connB := dialRoom(t, srv, "proj-1", userToken(t, "bob", "Bob"))
	snapB := readWire(t, connB)
	require.Equal(t, string(MessageTypeConnectionEstablished), snapB["type"])
	assert.Equal(t, float64(2), snapB["user_count"])
	users, ok := snapB["users"].([]any)
	require.True(t, ok)
	assert.Len(t, users, 2)

	joined := readWire(t, connA)
	require.Equal(t, string(MessageTypeUserJoined), joined["type"])
	assert.Equal(t, float64(2), joined["user_count"])

	// Alice locks chair-1
	writeWire(t, connA, `{"type":"element_lock","element_id":"chair-1"}`)
	ack := readWire(t, connA)
	require.Equal(t, string(MessageTypeLockAcquired), ack["type"])
	assert.Equal(t, "chair-1", ack["element_id"])

	locked := readWire(t, connB)
	require.Equal(t, string(MessageTypeElementLocked), locked["type"])
	assert.Equal(t, "alice", locked["locked_by"])

	// Bob's lock attempt fails with the holder's identity
	writeWire(t, connB, `{"type":"element_lock","element_id":"chair-1"}`)
	failed := readWire(t, connB)
	require.Equal(t, string(MessageTypeLockFailed), failed["type"])
	assert.Equal(t, "alice", failed["locked_by"])

	// Alice disconnects; Bob learns the lock was freed with the departure
	require.NoError(t, connA.Close())
	left := readWire(t, connB)
	require.Equal(t, string(MessageTypeUserLeft), left["type"])
	assert.Equal(t, "alice", left["user_id"])
	assert.Equal(t, float64(1), left["user_count"])
	unlocked, ok := left["unlocked_elements"].([]any)
	require.True(t, ok)
	assert.Equal(t, []any{"chair-1"}, unlocked)

	// The last departure deletes the room
	require.NoError(t, connB.Close())
	require.Eventually(t, func() bool {
		return hub.RoomCount() == 0 && hub.ConnectionCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}

func TestChatOverWire(t *testing.T) {
	_, srv := startCollabServer(t)

	connA := dialRoom(t, srv, "proj-1", userToken(t, "alice", "Alice"))
	readWire(t, connA)
	connB := dialRoom(t, srv, "proj-1", userToken(t, "bob", "Bob"))
	readWire(t, connB)
	readWire(t, connA) // user_joined

	writeWire(t, connA, `{"type":"chat_message","text":"hello from alice"}`)

	// Both members receive the same message, sender included
	chatA := readWire(t, connA)
	chatB := readWire(t, connB)
	require.Equal(t, string(MessageTypeChatMessage), chatA["type"])
	assert.Equal(t, "hello from alice", chatA["text"])
	assert.Equal(t, "alice", chatA["user_id"])
	assert.Equal(t, chatA["id"], chatB["id"])
}

func TestMalformedFrameKeepsConnectionOpen(t *testing.T) {
	_, srv := startCollabServer(t)

	conn := dialRoom(t, srv, "proj-1", userToken(t, "alice", "Alice"))
	readWire(t, conn)

	writeWire(t, conn, "not json at all")
	errFrame := readWire(t, conn)
	require.Equal(t, string(MessageTypeError), errFrame["type"])
	assert.Equal(t, "invalid_message", errFrame["error"])

	// The session still works after the rejection
	writeWire(t, conn, `{"type":"element_lock","element_id":"desk-1"}`)
	ack := readWire(t, conn)
	assert.Equal(t, string(MessageTypeLockAcquired), ack["type"])
}

func TestAuthenticationFailureClosesWithPolicyCode(t *testing.T) {
	hub, srv := startCollabServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/proj-1?token=bogus"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, CloseAuthenticationFailure),
		"expected close code %d, got %v", CloseAuthenticationFailure, err)

	assert.Equal(t, 0, hub.RoomCount())
	assert.Equal(t, 0, hub.ConnectionCount())
}

func TestMissingTokenClosesWithPolicyCode(t *testing.T) {
	_, srv := startCollabServer(t)

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/rooms/proj-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer func() { _ = conn.Close() }()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	require.Error(t, err)
	assert.True(t, websocket.IsCloseError(err, CloseAuthenticationFailure))
}
