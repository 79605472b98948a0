package api

import (
	"time"

	"github.com/google/uuid"
)

// EventKind discriminates collaboration events. The cursor, selection,
// comment and presence kinds are part of the wire enumeration but are never
// appended by the dispatcher: presence traffic is ephemeral and comments have
// no live operation.
type EventKind string

const (
	EventJoined           EventKind = "joined"
	EventLeft             EventKind = "left"
	EventDesignUpdated    EventKind = "design_updated"
	EventFurnitureMoved   EventKind = "furniture_moved"
	EventFurnitureAdded   EventKind = "furniture_added"
	EventFurnitureRemoved EventKind = "furniture_removed"
	EventCursorUpdated    EventKind = "cursor_updated"
	EventSelectionChanged EventKind = "selection_changed"
	EventCommentAdded     EventKind = "comment_added"
	EventCommentUpdated   EventKind = "comment_updated"
	EventCommentDeleted   EventKind = "comment_deleted"
	EventElementLocked    EventKind = "element_locked"
	EventElementUnlocked  EventKind = "element_unlocked"
	EventChatMessage      EventKind = "chat_message"
	EventPresenceUpdated  EventKind = "presence_updated"
)

// CollaborationEvent is one immutable entry in a room's recent-history log
type CollaborationEvent struct {
	ID        string         `json:"id"`
	Kind      EventKind      `json:"kind"`
	RoomID    string         `json:"room_id"`
	UserID    string         `json:"user_id"`
	SessionID string         `json:"session_id"`
	Timestamp time.Time      `json:"timestamp"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewCollaborationEvent assigns the event id and timestamp at creation
func NewCollaborationEvent(kind EventKind, roomID, userID, sessionID string, payload map[string]any) CollaborationEvent {
	return CollaborationEvent{
		ID:        uuid.New().String(),
		Kind:      kind,
		RoomID:    roomID,
		UserID:    userID,
		SessionID: sessionID,
		Timestamp: time.Now().UTC(),
		Payload:   payload,
	}
}

// ChatMessage is one entry in a room's chat history
type ChatMessage struct {
	ID        string    `json:"id"`
	RoomID    string    `json:"room_id"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// eventLog is a fixed-capacity FIFO of collaboration events.
// Oldest entries are evicted first; callers hold the room mutex.
type eventLog struct {
	capacity int
	entries  []CollaborationEvent
}

func newEventLog(capacity int) *eventLog {
	return &eventLog{capacity: capacity, entries: make([]CollaborationEvent, 0, capacity)}
}

func (l *eventLog) Append(e CollaborationEvent) {
	l.entries = append(l.entries, e)
	if len(l.entries) > l.capacity {
		evicted := len(l.entries) - l.capacity
		l.entries = append(l.entries[:0:0], l.entries[evicted:]...)
	}
}

func (l *eventLog) Len() int {
	return len(l.entries)
}

// Recent returns up to n newest entries, oldest first
func (l *eventLog) Recent(n int) []CollaborationEvent {
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]CollaborationEvent, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}

// chatLog is a fixed-capacity FIFO of chat messages
type chatLog struct {
	capacity int
	entries  []ChatMessage
}

func newChatLog(capacity int) *chatLog {
	return &chatLog{capacity: capacity, entries: make([]ChatMessage, 0, capacity)}
}

func (l *chatLog) Append(m ChatMessage) {
	l.entries = append(l.entries, m)
	if len(l.entries) > l.capacity {
		evicted := len(l.entries) - l.capacity
		l.entries = append(l.entries[:0:0], l.entries[evicted:]...)
	}
}

func (l *chatLog) Len() int {
	return len(l.entries)
}

func (l *chatLog) Recent(n int) []ChatMessage {
	if n > len(l.entries) {
		n = len(l.entries)
	}
	out := make([]ChatMessage, n)
	copy(out, l.entries[len(l.entries)-n:])
	return out
}
