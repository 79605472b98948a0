package api

import (
	"encoding/json"
	"runtime/debug"

	"github.com/roomcraft/collab/internal/slogging"
)

// MessageHandler handles one inbound WebSocket message type
type MessageHandler interface {
	HandleMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) error
	MessageType() MessageType
}

// MessageRouter routes inbound frames to the handler for their declared type
type MessageRouter struct {
	handlers map[MessageType]MessageHandler
}

// NewMessageRouter creates a router with all collaboration handlers registered
func NewMessageRouter() *MessageRouter {
	router := &MessageRouter{
		handlers: make(map[MessageType]MessageHandler),
	}

	router.RegisterHandler(&FurnitureMoveHandler{})
	router.RegisterHandler(&FurnitureAddHandler{})
	router.RegisterHandler(&FurnitureRemoveHandler{})
	router.RegisterHandler(&CursorUpdateHandler{})
	router.RegisterHandler(&SelectionChangeHandler{})
	router.RegisterHandler(&ElementLockHandler{})
	router.RegisterHandler(&ElementUnlockHandler{})
	router.RegisterHandler(&ChatMessageHandler{})
	router.RegisterHandler(&DesignUpdateHandler{})

	return router
}

// RegisterHandler registers a message handler for its message type
func (r *MessageRouter) RegisterHandler(handler MessageHandler) {
	r.handlers[handler.MessageType()] = handler
}

// RouteMessage decodes the envelope and dispatches to the matching handler.
// Malformed or unknown frames produce an error frame to the sender only; the
// connection stays open and other room members are unaffected. A handler
// that succeeds refreshes the sender's last-activity timestamp.
func (r *MessageRouter) RouteMessage(hub *CollaborationHub, client *WebSocketClient, message []byte) {
	defer func() {
		if rec := recover(); rec != nil {
			slogging.Get().Error("PANIC in RouteMessage - Session: %s, User: %s, Error: %v, Stack: %s",
				client.SessionID, client.User.UserID, rec, debug.Stack())
			sendErrorFrame(hub, client, "internal_error", "Internal error while handling message")
		}
	}()

	var envelope Envelope
	if err := json.Unmarshal(message, &envelope); err != nil {
		slogging.Get().Warn("Failed to parse message from session %s: %v", client.SessionID, err)
		sendErrorFrame(hub, client, "invalid_message", "Message is not a valid JSON object")
		return
	}
	if envelope.Type == "" {
		sendErrorFrame(hub, client, "invalid_message", "Message is missing the type field")
		return
	}

	handler, exists := r.handlers[envelope.Type]
	if !exists {
		slogging.Get().Warn("Unsupported message type %q from session %s", envelope.Type, client.SessionID)
		sendErrorFrame(hub, client, "unsupported_message_type", "Message type '"+string(envelope.Type)+"' is not supported")
		return
	}

	hub.metrics.MessagesTotal.WithLabelValues(string(envelope.Type)).Inc()

	if err := handler.HandleMessage(hub, client, message); err != nil {
		slogging.Get().Debug("Handler for %s rejected message from session %s: %v",
			envelope.Type, client.SessionID, err)
		return
	}

	if room, ok := hub.Room(client.RoomID); ok {
		room.Touch(client.SessionID)
	}
}

// sendErrorFrame reports a recoverable problem to the sender only
func sendErrorFrame(hub *CollaborationHub, client *WebSocketClient, code, message string) {
	if err := hub.Send(client.SessionID, mustMarshal(NewErrorFrame(code, message))); err != nil {
		slogging.Get().Debug("Failed to deliver error frame to session %s: %v", client.SessionID, err)
	}
}
