package api

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/roomcraft/collab/internal/slogging"
)

// snapshotEventCount is how many recent events a new joiner receives
const snapshotEventCount = 10

// HubOptions tunes per-room capacities and per-client buffering
type HubOptions struct {
	EventLogCapacity     int
	ChatHistoryCapacity  int
	SendBufferSize       int
	MaxChatMessageLength int
}

func (o HubOptions) withDefaults() HubOptions {
	if o.EventLogCapacity <= 0 {
		o.EventLogCapacity = 100
	}
	if o.ChatHistoryCapacity <= 0 {
		o.ChatHistoryCapacity = 100
	}
	if o.SendBufferSize <= 0 {
		o.SendBufferSize = 256
	}
	if o.MaxChatMessageLength <= 0 {
		o.MaxChatMessageLength = 2000
	}
	return o
}

// CollaborationHub owns the set of active rooms and the session registry.
// Room creation and destruction happen under the hub mutex so two concurrent
// joins can never both observe an empty registry and race a duplicate room;
// in-room mutation is serialized by the per-room mutex so activity in one
// room never blocks another.
type CollaborationHub struct {
	opts    HubOptions
	metrics *Metrics
	router  *MessageRouter

	mu    sync.RWMutex
	rooms map[string]*CollaborationRoom
	// Live sessions by session id; the only place connections are owned
	clients map[string]*WebSocketClient
}

// NewCollaborationHub creates a hub with the given tuning and metrics registry
func NewCollaborationHub(opts HubOptions, reg prometheus.Registerer) *CollaborationHub {
	h := &CollaborationHub{
		opts:    opts.withDefaults(),
		metrics: NewMetrics(reg),
		rooms:   make(map[string]*CollaborationRoom),
		clients: make(map[string]*WebSocketClient),
	}
	h.router = NewMessageRouter()
	return h
}

// NewCollaborationHubForTests creates a hub with an isolated metrics registry
func NewCollaborationHubForTests() *CollaborationHub {
	return NewCollaborationHub(HubOptions{}, prometheus.NewRegistry())
}

// Options returns the hub's effective tuning
func (h *CollaborationHub) Options() HubOptions {
	return h.opts
}

// Join attaches a session to a room, creating the room if absent, and
// returns the connection_established snapshot for the new session. The
// snapshot is queued on the client before the hub mutex is released: sends
// from other members go through the same mutex, so the snapshot is always
// the first frame the session receives. Existing room members are notified
// with a user_joined broadcast.
func (h *CollaborationHub) Join(roomID string, client *WebSocketClient) *ConnectionEstablishedMessage {
	now := time.Now().UTC()

	h.mu.Lock()
	room, exists := h.rooms[roomID]
	if !exists {
		room = newCollaborationRoom(roomID, h.opts.EventLogCapacity, h.opts.ChatHistoryCapacity)
		h.rooms[roomID] = room
		h.metrics.RoomsActive.Set(float64(len(h.rooms)))
		slogging.Get().Info("Created collaboration room %s", roomID)
	}

	client.RoomID = roomID
	h.clients[client.SessionID] = client
	h.metrics.ConnectionsActive.Set(float64(len(h.clients)))

	user := &CollaborationUser{
		UserID:           client.User.UserID,
		SessionID:        client.SessionID,
		Name:             client.User.Name,
		Email:            client.User.Email,
		JoinedAt:         now,
		LastActivity:     now,
		SelectedElements: []string{},
		Active:           true,
	}
	room.AddUser(user)
	room.AppendEvent(NewCollaborationEvent(EventJoined, roomID, user.UserID, user.SessionID, map[string]any{
		"user_name": user.Name,
	}))

	snapshot := &ConnectionEstablishedMessage{
		Type:         MessageTypeConnectionEstablished,
		SessionID:    client.SessionID,
		RoomID:       roomID,
		Users:        room.Users(),
		Locks:        room.Locks(),
		RecentEvents: room.RecentEvents(snapshotEventCount),
		UserCount:    room.UserCount(),
		Timestamp:    now,
	}
	if err := client.trySend(mustMarshal(snapshot)); err != nil {
		slogging.Get().Error("Failed to queue snapshot for session %s: %v", client.SessionID, err)
	}
	h.mu.Unlock()

	slogging.Get().Info("Session %s (user %s) joined room %s", client.SessionID, user.UserID, roomID)

	joined := UserJoinedMessage{
		Type:      MessageTypeUserJoined,
		User:      *user,
		UserCount: snapshot.UserCount,
		Timestamp: now,
	}
	h.BroadcastAndReap(roomID, mustMarshal(joined), client.SessionID)

	return snapshot
}

// Leave detaches a session from its room, releases its locks, broadcasts
// user_left with the freed element ids, and deletes the room if it is now
// empty. It is the single disconnect path and is idempotent: client close,
// read errors, send failures and the reaper all funnel through here.
func (h *CollaborationHub) Leave(sessionID string) {
	h.mu.Lock()
	client, ok := h.clients[sessionID]
	if !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, sessionID)
	h.metrics.ConnectionsActive.Set(float64(len(h.clients)))

	roomID := client.RoomID
	room := h.rooms[roomID]
	var (
		user     *CollaborationUser
		unlocked []string
		remains  int
	)
	if room != nil {
		user, unlocked = room.RemoveUser(sessionID)
		remains = room.UserCount()
		if remains == 0 {
			delete(h.rooms, roomID)
			h.metrics.RoomsActive.Set(float64(len(h.rooms)))
			slogging.Get().Info("Deleted empty collaboration room %s", roomID)
		} else if user != nil {
			room.AppendEvent(NewCollaborationEvent(EventLeft, roomID, user.UserID, sessionID, map[string]any{
				"user_name":         user.Name,
				"unlocked_elements": unlocked,
			}))
		}
	}
	h.mu.Unlock()

	client.close()

	if user == nil {
		return
	}
	slogging.Get().Info("Session %s (user %s) left room %s, released %d locks",
		sessionID, user.UserID, roomID, len(unlocked))

	if remains > 0 {
		left := UserLeftMessage{
			Type:             MessageTypeUserLeft,
			UserID:           user.UserID,
			UserName:         user.Name,
			SessionID:        sessionID,
			UserCount:        remains,
			UnlockedElements: unlocked,
			Timestamp:        time.Now().UTC(),
		}
		h.BroadcastAndReap(roomID, mustMarshal(left), sessionID)
	}
}

// Send queues a message for one session. It never blocks: a full buffer or
// closed session reports ErrSendFailed and the caller decides what that means.
func (h *CollaborationHub) Send(sessionID string, data []byte) error {
	h.mu.RLock()
	client, ok := h.clients[sessionID]
	h.mu.RUnlock()
	if !ok {
		return ErrSessionNotFound
	}
	return client.trySend(data)
}

// Broadcast delivers data to every session in the room except the excluded
// one and returns the session ids whose send failed. It does not perform
// cleanup itself so there is exactly one disconnect code path (Leave).
func (h *CollaborationHub) Broadcast(roomID string, data []byte, excludeSessionID string) []string {
	h.mu.RLock()
	room, ok := h.rooms[roomID]
	h.mu.RUnlock()
	if !ok {
		return nil
	}

	var failed []string
	for _, sessionID := range room.SessionIDs() {
		if sessionID == excludeSessionID {
			continue
		}
		if err := h.Send(sessionID, data); err != nil {
			failed = append(failed, sessionID)
		}
	}
	return failed
}

// BroadcastAndReap broadcasts and feeds every failed session into the
// disconnect path. Failure detection piggybacks on normal traffic; the
// inactivity reaper covers dead peers in silent rooms.
func (h *CollaborationHub) BroadcastAndReap(roomID string, data []byte, excludeSessionID string) {
	h.reap(h.Broadcast(roomID, data, excludeSessionID))
}

// AppendAndBroadcast appends a room event and queues its broadcast as one
// step under the room's order mutex, so two messages dispatched concurrently
// in the same room reach every receiver's send queue in event-log order.
// trySend never blocks, which keeps the hold time to the member walk.
func (h *CollaborationHub) AppendAndBroadcast(room *CollaborationRoom, event CollaborationEvent, data []byte, excludeSessionID string) {
	room.ordered.Lock()
	room.AppendEvent(event)
	failed := h.Broadcast(room.ID, data, excludeSessionID)
	room.ordered.Unlock()
	h.reap(failed)
}

// AppendChatAndBroadcast is the chat counterpart of AppendAndBroadcast:
// chat history order and delivery order agree for every member.
func (h *CollaborationHub) AppendChatAndBroadcast(room *CollaborationRoom, msg ChatMessage, data []byte) {
	room.ordered.Lock()
	room.AppendChat(msg)
	failed := h.Broadcast(room.ID, data, "")
	room.ordered.Unlock()
	h.reap(failed)
}

// reap disconnects every session whose broadcast send failed. It runs after
// the order mutex is released because Leave broadcasts user_left itself.
func (h *CollaborationHub) reap(failed []string) {
	for _, sessionID := range failed {
		h.metrics.BroadcastFailuresTotal.Inc()
		slogging.Get().Warn("Send to session %s failed during broadcast, disconnecting", sessionID)
		h.Leave(sessionID)
	}
}

// Room returns the active room for the given id
func (h *CollaborationHub) Room(roomID string) (*CollaborationRoom, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	room, ok := h.rooms[roomID]
	return room, ok
}

// RoomIDs lists the active room ids
func (h *CollaborationHub) RoomIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, 0, len(h.rooms))
	for id := range h.rooms {
		out = append(out, id)
	}
	return out
}

// RoomCount returns the number of active rooms
func (h *CollaborationHub) RoomCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms)
}

// ConnectionCount returns the number of registered sessions
func (h *CollaborationHub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// CloseRoom disconnects every session in a room; the last Leave deletes it
func (h *CollaborationHub) CloseRoom(roomID string) error {
	room, ok := h.Room(roomID)
	if !ok {
		return ErrRoomNotFound
	}
	for _, sessionID := range room.SessionIDs() {
		h.Leave(sessionID)
	}
	return nil
}

// SweepInactive disconnects sessions idle longer than threshold through the
// normal leave path and returns how many were reaped. Sweeping a session
// that already left is a no-op.
func (h *CollaborationHub) SweepInactive(threshold time.Duration) int {
	now := time.Now().UTC()

	h.mu.RLock()
	rooms := make([]*CollaborationRoom, 0, len(h.rooms))
	for _, room := range h.rooms {
		rooms = append(rooms, room)
	}
	h.mu.RUnlock()

	reaped := 0
	for _, room := range rooms {
		for _, sessionID := range room.InactiveSessions(now, threshold) {
			slogging.Get().Info("Reaping inactive session %s in room %s", sessionID, room.ID)
			h.Leave(sessionID)
			h.metrics.SessionsReapedTotal.Inc()
			reaped++
		}
	}
	return reaped
}

// StartReaper periodically sweeps inactive sessions until the context ends
func (h *CollaborationHub) StartReaper(ctx context.Context, interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := h.SweepInactive(threshold); n > 0 {
				slogging.Get().Info("Inactivity sweep disconnected %d sessions", n)
			}
		case <-ctx.Done():
			return
		}
	}
}

// Shutdown force-closes every room, used during graceful server shutdown
func (h *CollaborationHub) Shutdown() {
	for _, roomID := range h.RoomIDs() {
		if err := h.CloseRoom(roomID); err != nil {
			slogging.Get().Debug("Room %s already gone during shutdown: %v", roomID, err)
		}
	}
}
