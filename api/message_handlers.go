package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/roomcraft/collab/internal/unicodecheck"
)

// parseRequest decodes a typed client message and validates its fields,
// reporting failures to the sender as an error frame
func parseRequest[T interface{ Validate() error }](hub *CollaborationHub, client *WebSocketClient, message []byte, out *T) error {
	if err := json.Unmarshal(message, out); err != nil {
		sendErrorFrame(hub, client, "invalid_message", "Malformed message body")
		return fmt.Errorf("unmarshal: %w", err)
	}
	if err := (*out).Validate(); err != nil {
		sendErrorFrame(hub, client, "invalid_message", err.Error())
		return err
	}
	return nil
}

// senderRoom resolves the sender's room, reporting to the sender if it is gone
func senderRoom(hub *CollaborationHub, client *WebSocketClient) (*CollaborationRoom, error) {
	room, ok := hub.Room(client.RoomID)
	if !ok {
		sendErrorFrame(hub, client, "room_not_found", "Room is no longer active")
		return nil, ErrRoomNotFound
	}
	return room, nil
}

// FurnitureMoveHandler broadcasts furniture repositioning to other members
type FurnitureMoveHandler struct{}

func (h *FurnitureMoveHandler) MessageType() MessageType { return MessageTypeFurnitureMove }

func (h *FurnitureMoveHandler) HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error {
	var req FurnitureMoveRequest
	if err := parseRequest(hub, client, message, &req); err != nil {
		return err
	}
	room, err := senderRoom(hub, client)
	if err != nil {
		return err
	}

	event := NewCollaborationEvent(EventFurnitureMoved, room.ID, client.User.UserID, client.SessionID, map[string]any{
		"furniture_id": req.FurnitureID,
		"position":     rawToPayload(req.Position),
	})
	hub.AppendAndBroadcast(room, event, mustMarshal(FurnitureMovedMessage{
		Type:        MessageTypeFurnitureMoved,
		UserID:      client.User.UserID,
		SessionID:   client.SessionID,
		FurnitureID: req.FurnitureID,
		Position:    req.Position,
		Timestamp:   time.Now().UTC(),
	}), client.SessionID)
	return nil
}

// FurnitureAddHandler broadcasts furniture additions to other members
type FurnitureAddHandler struct{}

func (h *FurnitureAddHandler) MessageType() MessageType { return MessageTypeFurnitureAdd }

func (h *FurnitureAddHandler) HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error {
	var req FurnitureAddRequest
	if err := parseRequest(hub, client, message, &req); err != nil {
		return err
	}
	room, err := senderRoom(hub, client)
	if err != nil {
		return err
	}

	event := NewCollaborationEvent(EventFurnitureAdded, room.ID, client.User.UserID, client.SessionID, map[string]any{
		"furniture_data": rawToPayload(req.FurnitureData),
	})
	hub.AppendAndBroadcast(room, event, mustMarshal(FurnitureAddedMessage{
		Type:          MessageTypeFurnitureAdded,
		UserID:        client.User.UserID,
		SessionID:     client.SessionID,
		FurnitureData: req.FurnitureData,
		Timestamp:     time.Now().UTC(),
	}), client.SessionID)
	return nil
}

// FurnitureRemoveHandler broadcasts furniture removals to other members
type FurnitureRemoveHandler struct{}

func (h *FurnitureRemoveHandler) MessageType() MessageType { return MessageTypeFurnitureRemove }

func (h *FurnitureRemoveHandler) HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error {
	var req FurnitureRemoveRequest
	if err := parseRequest(hub, client, message, &req); err != nil {
		return err
	}
	room, err := senderRoom(hub, client)
	if err != nil {
		return err
	}

	event := NewCollaborationEvent(EventFurnitureRemoved, room.ID, client.User.UserID, client.SessionID, map[string]any{
		"furniture_id": req.FurnitureID,
	})
	hub.AppendAndBroadcast(room, event, mustMarshal(FurnitureRemovedMessage{
		Type:        MessageTypeFurnitureRemoved,
		UserID:      client.User.UserID,
		SessionID:   client.SessionID,
		FurnitureID: req.FurnitureID,
		Timestamp:   time.Now().UTC(),
	}), client.SessionID)
	return nil
}

// CursorUpdateHandler tracks and broadcasts cursor movement
type CursorUpdateHandler struct{}

func (h *CursorUpdateHandler) MessageType() MessageType { return MessageTypeCursorUpdate }

func (h *CursorUpdateHandler) HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error {
	var req CursorUpdateRequest
	if err := parseRequest(hub, client, message, &req); err != nil {
		return err
	}
	room, err := senderRoom(hub, client)
	if err != nil {
		return err
	}

	room.UpdateCursor(client.SessionID, *req.CursorPosition)

	hub.BroadcastAndReap(room.ID, mustMarshal(CursorUpdatedMessage{
		Type:           MessageTypeCursorUpdated,
		UserID:         client.User.UserID,
		SessionID:      client.SessionID,
		CursorPosition: *req.CursorPosition,
		Timestamp:      time.Now().UTC(),
	}), client.SessionID)
	return nil
}

// SelectionChangeHandler tracks and broadcasts element selection
type SelectionChangeHandler struct{}

func (h *SelectionChangeHandler) MessageType() MessageType { return MessageTypeSelectionChange }

func (h *SelectionChangeHandler) HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error {
	var req SelectionChangeRequest
	if err := parseRequest(hub, client, message, &req); err != nil {
		return err
	}
	room, err := senderRoom(hub, client)
	if err != nil {
		return err
	}

	room.UpdateSelection(client.SessionID, *req.SelectedElements)

	hub.BroadcastAndReap(room.ID, mustMarshal(SelectionChangedMessage{
		Type:             MessageTypeSelectionChanged,
		UserID:           client.User.UserID,
		SessionID:        client.SessionID,
		SelectedElements: *req.SelectedElements,
		Timestamp:        time.Now().UTC(),
	}), client.SessionID)
	return nil
}

// ElementLockHandler implements the exclusive edit lock protocol.
// The requester gets an ack or a failure; other members only hear about
// successful acquisitions.
type ElementLockHandler struct{}

func (h *ElementLockHandler) MessageType() MessageType { return MessageTypeElementLock }

func (h *ElementLockHandler) HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error {
	var req ElementLockRequest
	if err := parseRequest(hub, client, message, &req); err != nil {
		return err
	}
	room, err := senderRoom(hub, client)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := room.AcquireLock(req.ElementID, client.SessionID); err != nil {
		var locked *AlreadyLockedError
		if errors.As(err, &locked) {
			lockedBy := locked.Holder
			if holder, ok := room.User(locked.Holder); ok {
				lockedBy = holder.UserID
			}
			if sendErr := hub.Send(client.SessionID, mustMarshal(LockFailedMessage{
				Type:      MessageTypeLockFailed,
				ElementID: req.ElementID,
				LockedBy:  lockedBy,
				Timestamp: now,
			})); sendErr != nil {
				return sendErr
			}
			// Lock conflicts are expected; the sender stays active
			return nil
		}
		return err
	}

	if err := hub.Send(client.SessionID, mustMarshal(LockAcquiredMessage{
		Type:      MessageTypeLockAcquired,
		ElementID: req.ElementID,
		Timestamp: now,
	})); err != nil {
		return err
	}

	event := NewCollaborationEvent(EventElementLocked, room.ID, client.User.UserID, client.SessionID, map[string]any{
		"element_id": req.ElementID,
	})
	hub.AppendAndBroadcast(room, event, mustMarshal(ElementLockedMessage{
		Type:      MessageTypeElementLocked,
		ElementID: req.ElementID,
		LockedBy:  client.User.UserID,
		SessionID: client.SessionID,
		Timestamp: now,
	}), client.SessionID)
	return nil
}

// ElementUnlockHandler releases an exclusive edit lock
type ElementUnlockHandler struct{}

func (h *ElementUnlockHandler) MessageType() MessageType { return MessageTypeElementUnlock }

func (h *ElementUnlockHandler) HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error {
	var req ElementUnlockRequest
	if err := parseRequest(hub, client, message, &req); err != nil {
		return err
	}
	room, err := senderRoom(hub, client)
	if err != nil {
		return err
	}

	now := time.Now().UTC()
	if err := room.ReleaseLock(req.ElementID, client.SessionID); err != nil {
		if sendErr := hub.Send(client.SessionID, mustMarshal(UnlockFailedMessage{
			Type:      MessageTypeUnlockFailed,
			ElementID: req.ElementID,
			Reason:    "element is not locked by this session",
			Timestamp: now,
		})); sendErr != nil {
			return sendErr
		}
		return nil
	}

	if err := hub.Send(client.SessionID, mustMarshal(LockReleasedMessage{
		Type:      MessageTypeLockReleased,
		ElementID: req.ElementID,
		Timestamp: now,
	})); err != nil {
		return err
	}

	event := NewCollaborationEvent(EventElementUnlocked, room.ID, client.User.UserID, client.SessionID, map[string]any{
		"element_id": req.ElementID,
	})
	hub.AppendAndBroadcast(room, event, mustMarshal(ElementUnlockedMessage{
		Type:      MessageTypeElementUnlocked,
		ElementID: req.ElementID,
		SessionID: client.SessionID,
		Timestamp: now,
	}), client.SessionID)
	return nil
}

// ChatMessageHandler appends to the room chat history and broadcasts to all
// members including the sender. Whitespace-only messages are silently
// dropped; over-long messages and text with spoofing characters are rejected
// with an error frame.
type ChatMessageHandler struct{}

func (h *ChatMessageHandler) MessageType() MessageType { return MessageTypeChatMessage }

func (h *ChatMessageHandler) HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error {
	var req ChatMessageRequest
	if err := parseRequest(hub, client, message, &req); err != nil {
		return err
	}
	room, err := senderRoom(hub, client)
	if err != nil {
		return err
	}

	text := unicodecheck.NormalizeNFC(strings.TrimSpace(req.Text))
	if text == "" {
		return nil
	}
	if max := hub.Options().MaxChatMessageLength; len([]rune(text)) > max {
		sendErrorFrame(hub, client, "chat_too_long", fmt.Sprintf("Chat messages are limited to %d characters", max))
		return fmt.Errorf("chat message exceeds %d characters", max)
	}
	if err := unicodecheck.Check(text); err != nil {
		sendErrorFrame(hub, client, "invalid_characters", "Chat text contains disallowed characters")
		return err
	}

	chat := ChatMessage{
		ID:        uuid.New().String(),
		RoomID:    room.ID,
		UserID:    client.User.UserID,
		UserName:  client.User.Name,
		Text:      text,
		Timestamp: time.Now().UTC(),
	}
	hub.AppendChatAndBroadcast(room, chat, mustMarshal(ChatBroadcastMessage{
		Type:      MessageTypeChatMessage,
		ID:        chat.ID,
		UserID:    chat.UserID,
		UserName:  chat.UserName,
		Text:      chat.Text,
		Timestamp: chat.Timestamp,
	}))
	return nil
}

// DesignUpdateHandler broadcasts opaque design change batches
type DesignUpdateHandler struct{}

func (h *DesignUpdateHandler) MessageType() MessageType { return MessageTypeDesignUpdate }

func (h *DesignUpdateHandler) HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error {
	var req DesignUpdateRequest
	if err := parseRequest(hub, client, message, &req); err != nil {
		return err
	}
	room, err := senderRoom(hub, client)
	if err != nil {
		return err
	}

	event := NewCollaborationEvent(EventDesignUpdated, room.ID, client.User.UserID, client.SessionID, map[string]any{
		"design_changes": rawToPayload(req.DesignChanges),
	})
	hub.AppendAndBroadcast(room, event, mustMarshal(DesignUpdatedMessage{
		Type:          MessageTypeDesignUpdated,
		UserID:        client.User.UserID,
		SessionID:     client.SessionID,
		DesignChanges: req.DesignChanges,
		Timestamp:     time.Now().UTC(),
	}), client.SessionID)
	return nil
}
