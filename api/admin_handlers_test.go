package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAdminTestRouter(hub *CollaborationHub) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	ws := NewCollabSocketHandler(hub, NewJWTIdentityResolver(testJWTSecret, ""), 0)
	RegisterRoutes(r, ws, NewAdminHandlers(hub))
	return r
}

func doRequest(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListRooms(t *testing.T) {
	hub := NewCollaborationHubForTests()
	r := newAdminTestRouter(hub)

	w := doRequest(r, http.MethodGet, "/api/collab/rooms", "")
	require.Equal(t, http.StatusOK, w.Code)
	var empty []RoomSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &empty))
	assert.Empty(t, empty)

	joinTestClient(hub, "proj-1", "alice")
	clientB, _ := joinTestClient(hub, "proj-2", "bob")
	joinTestClient(hub, "proj-2", "carol")
	nextFrame(t, clientB)

	w = doRequest(r, http.MethodGet, "/api/collab/rooms", "")
	require.Equal(t, http.StatusOK, w.Code)
	var summaries []RoomSummary
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &summaries))
	require.Len(t, summaries, 2)

	byID := map[string]RoomSummary{}
	for _, s := range summaries {
		byID[s.RoomID] = s
	}
	assert.Equal(t, 1, byID["proj-1"].UserCount)
	assert.Equal(t, 2, byID["proj-2"].UserCount)
	assert.True(t, byID["proj-2"].Active)
}

func TestGetRoom(t *testing.T) {
	hub := NewCollaborationHubForTests()
	r := newAdminTestRouter(hub)

	clientA, _ := joinTestClient(hub, "proj-1", "alice")
	room, _ := hub.Room("proj-1")
	require.NoError(t, room.AcquireLock("chair-1", clientA.SessionID))

	w := doRequest(r, http.MethodGet, "/api/collab/rooms/proj-1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var detail RoomDetail
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &detail))
	assert.Equal(t, "proj-1", detail.RoomID)
	assert.Equal(t, 1, detail.UserCount)
	assert.Equal(t, 1, detail.LockCount)
	require.Len(t, detail.Users, 1)
	assert.Equal(t, "alice", detail.Users[0].UserID)
	assert.Equal(t, clientA.SessionID, detail.Locks["chair-1"])

	w = doRequest(r, http.MethodGet, "/api/collab/rooms/no-such-room", "")
	require.Equal(t, http.StatusNotFound, w.Code)
	var errBody Error
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &errBody))
	assert.Equal(t, "room_not_found", errBody.Error)
}

func TestGetStats(t *testing.T) {
	hub := NewCollaborationHubForTests()
	r := newAdminTestRouter(hub)

	clientA, _ := joinTestClient(hub, "proj-1", "alice")
	joinTestClient(hub, "proj-1", "bob")
	joinTestClient(hub, "proj-2", "carol")
	nextFrame(t, clientA)

	w := doRequest(r, http.MethodGet, "/api/collab/stats", "")
	require.Equal(t, http.StatusOK, w.Code)
	var stats HubStats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.RoomCount)
	assert.Equal(t, 3, stats.TotalUsers)
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Len(t, stats.Rooms, 2)
}

func TestCloseRoomEndpoint(t *testing.T) {
	hub := NewCollaborationHubForTests()
	r := newAdminTestRouter(hub)

	joinTestClient(hub, "proj-1", "alice")

	w := doRequest(r, http.MethodDelete, "/api/collab/rooms/proj-1", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, hub.RoomCount())

	w = doRequest(r, http.MethodDelete, "/api/collab/rooms/proj-1", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTriggerSweep(t *testing.T) {
	hub := NewCollaborationHubForTests()
	r := newAdminTestRouter(hub)

	clientA, _ := joinTestClient(hub, "proj-1", "alice")
	room, _ := hub.Room("proj-1")
	room.mu.Lock()
	room.users[clientA.SessionID].LastActivity = time.Now().UTC().Add(-time.Hour)
	room.mu.Unlock()

	w := doRequest(r, http.MethodPost, "/api/collab/sweep", `{"threshold_seconds":300}`)
	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]int
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body["reaped_sessions"])
	assert.Equal(t, 0, hub.RoomCount())

	// Threshold is required and must be positive
	w = doRequest(r, http.MethodPost, "/api/collab/sweep", `{}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w = doRequest(r, http.MethodPost, "/api/collab/sweep", `{"threshold_seconds":-5}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
