package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// RoomSummary is the admin view of one active room
type RoomSummary struct {
	RoomID    string    `json:"room_id"`
	CreatedAt time.Time `json:"created_at"`
	UserCount int       `json:"user_count"`
	LockCount int       `json:"lock_count"`
	Active    bool      `json:"active"`
}

// RoomDetail adds per-user presence and the lock table to the summary
type RoomDetail struct {
	RoomSummary
	Users []CollaborationUser `json:"users"`
	Locks map[string]string   `json:"locks"`
}

// HubStats aggregates activity across all rooms
type HubStats struct {
	RoomCount        int           `json:"room_count"`
	TotalUsers       int           `json:"total_users"`
	TotalConnections int           `json:"total_connections"`
	Rooms            []RoomSummary `json:"rooms"`
}

// AdminHandlers exposes the read/mutate query surface over the same guarded
// hub operations the live dispatcher uses
type AdminHandlers struct {
	hub *CollaborationHub
}

// NewAdminHandlers creates the admin surface for a hub
func NewAdminHandlers(hub *CollaborationHub) *AdminHandlers {
	return &AdminHandlers{hub: hub}
}

func (a *AdminHandlers) summarize(room *CollaborationRoom) RoomSummary {
	return RoomSummary{
		RoomID:    room.ID,
		CreatedAt: room.CreatedAt,
		UserCount: room.UserCount(),
		LockCount: len(room.Locks()),
		Active:    room.UserCount() > 0,
	}
}

// ListRooms handles GET /api/collab/rooms
func (a *AdminHandlers) ListRooms(c *gin.Context) {
	summaries := make([]RoomSummary, 0)
	for _, roomID := range a.hub.RoomIDs() {
		if room, ok := a.hub.Room(roomID); ok {
			summaries = append(summaries, a.summarize(room))
		}
	}
	c.JSON(http.StatusOK, summaries)
}

// GetRoom handles GET /api/collab/rooms/:id
func (a *AdminHandlers) GetRoom(c *gin.Context) {
	room, ok := a.hub.Room(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, Error{Error: "room_not_found", Message: "No active room with that id"})
		return
	}
	c.JSON(http.StatusOK, RoomDetail{
		RoomSummary: a.summarize(room),
		Users:       room.Users(),
		Locks:       room.Locks(),
	})
}

// GetStats handles GET /api/collab/stats
func (a *AdminHandlers) GetStats(c *gin.Context) {
	stats := HubStats{
		TotalConnections: a.hub.ConnectionCount(),
		Rooms:            make([]RoomSummary, 0),
	}
	for _, roomID := range a.hub.RoomIDs() {
		if room, ok := a.hub.Room(roomID); ok {
			summary := a.summarize(room)
			stats.Rooms = append(stats.Rooms, summary)
			stats.TotalUsers += summary.UserCount
		}
	}
	stats.RoomCount = len(stats.Rooms)
	c.JSON(http.StatusOK, stats)
}

// CloseRoom handles DELETE /api/collab/rooms/:id, disconnecting every session
func (a *AdminHandlers) CloseRoom(c *gin.Context) {
	if err := a.hub.CloseRoom(c.Param("id")); err != nil {
		c.JSON(http.StatusNotFound, Error{Error: "room_not_found", Message: "No active room with that id"})
		return
	}
	c.Status(http.StatusNoContent)
}

// SweepRequest carries the caller-supplied reaper threshold
type SweepRequest struct {
	ThresholdSeconds int `json:"threshold_seconds" binding:"required,gt=0"`
}

// TriggerSweep handles POST /api/collab/sweep
func (a *AdminHandlers) TriggerSweep(c *gin.Context) {
	var req SweepRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, Error{Error: "invalid_input", Message: err.Error()})
		return
	}
	reaped := a.hub.SweepInactive(time.Duration(req.ThresholdSeconds) * time.Second)
	c.JSON(http.StatusOK, gin.H{"reaped_sessions": reaped})
}

// RegisterRoutes attaches the collaboration endpoints to a gin engine
func RegisterRoutes(r *gin.Engine, ws *CollabSocketHandler, admin *AdminHandlers) {
	r.GET("/ws/rooms/:id", ws.HandleWS)

	collab := r.Group("/api/collab")
	collab.GET("/rooms", admin.ListRooms)
	collab.GET("/rooms/:id", admin.GetRoom)
	collab.GET("/stats", admin.GetStats)
	collab.DELETE("/rooms/:id", admin.CloseRoom)
	collab.POST("/sweep", admin.TriggerSweep)
}
