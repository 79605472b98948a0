package api

import (
	"encoding/json"
	"fmt"
	"time"
)

// MessageType represents the type of a WebSocket message.
// Every frame in either direction is a JSON object with a "type" field.
type MessageType string

const (
	// Client -> server message types
	MessageTypeFurnitureMove   MessageType = "furniture_move"
	MessageTypeFurnitureAdd    MessageType = "furniture_add"
	MessageTypeFurnitureRemove MessageType = "furniture_remove"
	MessageTypeCursorUpdate    MessageType = "cursor_update"
	MessageTypeSelectionChange MessageType = "selection_change"
	MessageTypeElementLock     MessageType = "element_lock"
	MessageTypeElementUnlock   MessageType = "element_unlock"
	MessageTypeChatMessage     MessageType = "chat_message"
	MessageTypeDesignUpdate    MessageType = "design_update"

	// Server -> client message types
	MessageTypeConnectionEstablished MessageType = "connection_established"
	MessageTypeUserJoined            MessageType = "user_joined"
	MessageTypeUserLeft              MessageType = "user_left"
	MessageTypeFurnitureMoved        MessageType = "furniture_moved"
	MessageTypeFurnitureAdded        MessageType = "furniture_added"
	MessageTypeFurnitureRemoved      MessageType = "furniture_removed"
	MessageTypeCursorUpdated         MessageType = "cursor_updated"
	MessageTypeSelectionChanged      MessageType = "selection_changed"
	MessageTypeLockAcquired          MessageType = "lock_acquired"
	MessageTypeLockFailed            MessageType = "lock_failed"
	MessageTypeElementLocked         MessageType = "element_locked"
	MessageTypeLockReleased          MessageType = "lock_released"
	MessageTypeUnlockFailed          MessageType = "unlock_failed"
	MessageTypeElementUnlocked       MessageType = "element_unlocked"
	MessageTypeDesignUpdated         MessageType = "design_updated"
	MessageTypeError                 MessageType = "error"
)

// Envelope is the minimal inbound frame used to determine routing
type Envelope struct {
	Type MessageType `json:"type"`
}

// Client request messages

// FurnitureMoveRequest repositions a furniture element
type FurnitureMoveRequest struct {
	Type        MessageType     `json:"type"`
	FurnitureID string          `json:"furniture_id"`
	Position    json.RawMessage `json:"position"`
}

func (m FurnitureMoveRequest) Validate() error {
	if m.FurnitureID == "" {
		return fmt.Errorf("furniture_id is required")
	}
	if len(m.Position) == 0 {
		return fmt.Errorf("position is required")
	}
	return nil
}

// FurnitureAddRequest adds a furniture element to the design
type FurnitureAddRequest struct {
	Type          MessageType     `json:"type"`
	FurnitureData json.RawMessage `json:"furniture_data"`
}

func (m FurnitureAddRequest) Validate() error {
	if len(m.FurnitureData) == 0 {
		return fmt.Errorf("furniture_data is required")
	}
	return nil
}

// FurnitureRemoveRequest removes a furniture element from the design
type FurnitureRemoveRequest struct {
	Type        MessageType `json:"type"`
	FurnitureID string      `json:"furniture_id"`
}

func (m FurnitureRemoveRequest) Validate() error {
	if m.FurnitureID == "" {
		return fmt.Errorf("furniture_id is required")
	}
	return nil
}

// CursorUpdateRequest reports the sender's cursor position
type CursorUpdateRequest struct {
	Type           MessageType     `json:"type"`
	CursorPosition *CursorPosition `json:"cursor_position"`
}

func (m CursorUpdateRequest) Validate() error {
	if m.CursorPosition == nil {
		return fmt.Errorf("cursor_position is required")
	}
	return nil
}

// SelectionChangeRequest reports the sender's selected elements
type SelectionChangeRequest struct {
	Type             MessageType `json:"type"`
	SelectedElements *[]string   `json:"selected_elements"`
}

func (m SelectionChangeRequest) Validate() error {
	if m.SelectedElements == nil {
		return fmt.Errorf("selected_elements is required")
	}
	return nil
}

// ElementLockRequest asks for an exclusive edit lock on an element
type ElementLockRequest struct {
	Type      MessageType `json:"type"`
	ElementID string      `json:"element_id"`
}

func (m ElementLockRequest) Validate() error {
	if m.ElementID == "" {
		return fmt.Errorf("element_id is required")
	}
	return nil
}

// ElementUnlockRequest releases an exclusive edit lock
type ElementUnlockRequest struct {
	Type      MessageType `json:"type"`
	ElementID string      `json:"element_id"`
}

func (m ElementUnlockRequest) Validate() error {
	if m.ElementID == "" {
		return fmt.Errorf("element_id is required")
	}
	return nil
}

// ChatMessageRequest posts a chat message to the room
type ChatMessageRequest struct {
	Type MessageType `json:"type"`
	Text string      `json:"text"`
}

func (m ChatMessageRequest) Validate() error {
	if m.Text == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// DesignUpdateRequest carries an opaque batch of design changes
type DesignUpdateRequest struct {
	Type          MessageType     `json:"type"`
	DesignChanges json.RawMessage `json:"design_changes"`
}

func (m DesignUpdateRequest) Validate() error {
	if len(m.DesignChanges) == 0 {
		return fmt.Errorf("design_changes is required")
	}
	return nil
}

// Server messages

// ConnectionEstablishedMessage is the initial snapshot sent to a new session
type ConnectionEstablishedMessage struct {
	Type         MessageType          `json:"type"`
	SessionID    string               `json:"session_id"`
	RoomID       string               `json:"room_id"`
	Users        []CollaborationUser  `json:"users"`
	Locks        map[string]string    `json:"locks"`
	RecentEvents []CollaborationEvent `json:"recent_events"`
	UserCount    int                  `json:"user_count"`
	Timestamp    time.Time            `json:"timestamp"`
}

// UserJoinedMessage notifies existing members of a new session
type UserJoinedMessage struct {
	Type      MessageType       `json:"type"`
	User      CollaborationUser `json:"user"`
	UserCount int               `json:"user_count"`
	Timestamp time.Time         `json:"timestamp"`
}

// UserLeftMessage notifies remaining members and lists elements whose locks
// were released by the departure
type UserLeftMessage struct {
	Type             MessageType `json:"type"`
	UserID           string      `json:"user_id"`
	UserName         string      `json:"user_name"`
	SessionID        string      `json:"session_id"`
	UserCount        int         `json:"user_count"`
	UnlockedElements []string    `json:"unlocked_elements"`
	Timestamp        time.Time   `json:"timestamp"`
}

// FurnitureMovedMessage broadcasts a furniture reposition
type FurnitureMovedMessage struct {
	Type        MessageType     `json:"type"`
	UserID      string          `json:"user_id"`
	SessionID   string          `json:"session_id"`
	FurnitureID string          `json:"furniture_id"`
	Position    json.RawMessage `json:"position"`
	Timestamp   time.Time       `json:"timestamp"`
}

// FurnitureAddedMessage broadcasts a furniture addition
type FurnitureAddedMessage struct {
	Type          MessageType     `json:"type"`
	UserID        string          `json:"user_id"`
	SessionID     string          `json:"session_id"`
	FurnitureData json.RawMessage `json:"furniture_data"`
	Timestamp     time.Time       `json:"timestamp"`
}

// FurnitureRemovedMessage broadcasts a furniture removal
type FurnitureRemovedMessage struct {
	Type        MessageType `json:"type"`
	UserID      string      `json:"user_id"`
	SessionID   string      `json:"session_id"`
	FurnitureID string      `json:"furniture_id"`
	Timestamp   time.Time   `json:"timestamp"`
}

// CursorUpdatedMessage broadcasts a cursor position change
type CursorUpdatedMessage struct {
	Type           MessageType    `json:"type"`
	UserID         string         `json:"user_id"`
	SessionID      string         `json:"session_id"`
	CursorPosition CursorPosition `json:"cursor_position"`
	Timestamp      time.Time      `json:"timestamp"`
}

// SelectionChangedMessage broadcasts a selection change
type SelectionChangedMessage struct {
	Type             MessageType `json:"type"`
	UserID           string      `json:"user_id"`
	SessionID        string      `json:"session_id"`
	SelectedElements []string    `json:"selected_elements"`
	Timestamp        time.Time   `json:"timestamp"`
}

// LockAcquiredMessage acknowledges a successful lock to the requester
type LockAcquiredMessage struct {
	Type      MessageType `json:"type"`
	ElementID string      `json:"element_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// LockFailedMessage reports a lock conflict to the requester only
type LockFailedMessage struct {
	Type      MessageType `json:"type"`
	ElementID string      `json:"element_id"`
	LockedBy  string      `json:"locked_by"`
	Timestamp time.Time   `json:"timestamp"`
}

// ElementLockedMessage notifies other members that an element is now locked
type ElementLockedMessage struct {
	Type      MessageType `json:"type"`
	ElementID string      `json:"element_id"`
	LockedBy  string      `json:"locked_by"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// LockReleasedMessage acknowledges a successful unlock to the requester
type LockReleasedMessage struct {
	Type      MessageType `json:"type"`
	ElementID string      `json:"element_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// UnlockFailedMessage reports an unlock failure to the requester only
type UnlockFailedMessage struct {
	Type      MessageType `json:"type"`
	ElementID string      `json:"element_id"`
	Reason    string      `json:"reason"`
	Timestamp time.Time   `json:"timestamp"`
}

// ElementUnlockedMessage notifies other members that an element is editable again
type ElementUnlockedMessage struct {
	Type      MessageType `json:"type"`
	ElementID string      `json:"element_id"`
	SessionID string      `json:"session_id"`
	Timestamp time.Time   `json:"timestamp"`
}

// ChatBroadcastMessage delivers a chat message to all room members
type ChatBroadcastMessage struct {
	Type      MessageType `json:"type"`
	ID        string      `json:"id"`
	UserID    string      `json:"user_id"`
	UserName  string      `json:"user_name"`
	Text      string      `json:"text"`
	Timestamp time.Time   `json:"timestamp"`
}

// DesignUpdatedMessage broadcasts an opaque design change batch
type DesignUpdatedMessage struct {
	Type          MessageType     `json:"type"`
	UserID        string          `json:"user_id"`
	SessionID     string          `json:"session_id"`
	DesignChanges json.RawMessage `json:"design_changes"`
	Timestamp     time.Time       `json:"timestamp"`
}

// ErrorFrame reports a recoverable error to the sender only
type ErrorFrame struct {
	Type      MessageType `json:"type"`
	Error     string      `json:"error"`
	Message   string      `json:"message"`
	Timestamp time.Time   `json:"timestamp"`
}

// NewErrorFrame builds an error frame with the current timestamp
func NewErrorFrame(code, message string) ErrorFrame {
	return ErrorFrame{
		Type:      MessageTypeError,
		Error:     code,
		Message:   message,
		Timestamp: time.Now().UTC(),
	}
}

// mustMarshal serializes a server message. Server message structs contain
// only marshalable fields, so failure indicates a programming error.
func mustMarshal(msg any) []byte {
	data, err := json.Marshal(msg)
	if err != nil {
		panic(fmt.Sprintf("failed to marshal server message %T: %v", msg, err))
	}
	return data
}

// rawToPayload decodes an opaque JSON value into an event payload entry
func rawToPayload(raw json.RawMessage) any {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return string(raw)
	}
	return v
}
