package api

import (
	"errors"
	"fmt"
)

var (
	// ErrSendFailed indicates a message could not be queued for a session.
	// The broadcast path treats it as an implicit disconnect of that session.
	ErrSendFailed = errors.New("send failed")

	// ErrSessionNotFound indicates the session id is not registered
	ErrSessionNotFound = errors.New("session not found")

	// ErrRoomNotFound indicates no active room exists for the given id
	ErrRoomNotFound = errors.New("room not found")

	// ErrNotLockHolder indicates an unlock attempt by a session that does
	// not hold the lock (or the element is not locked at all)
	ErrNotLockHolder = errors.New("not lock holder")
)

// AlreadyLockedError is returned when an element already has a lock entry
type AlreadyLockedError struct {
	ElementID string
	Holder    string
}

func (e *AlreadyLockedError) Error() string {
	return fmt.Sprintf("element %s already locked by session %s", e.ElementID, e.Holder)
}

// Error is the JSON body returned by the admin surface on failure
type Error struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}
