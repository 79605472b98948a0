package api

import (
	"sync"
	"time"
)

// CursorPosition represents 2D cursor coordinates on the design canvas
type CursorPosition struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// CollaborationUser is the presence record for one session in a room
type CollaborationUser struct {
	UserID           string          `json:"user_id"`
	SessionID        string          `json:"session_id"`
	Name             string          `json:"name"`
	Email            string          `json:"email,omitempty"`
	JoinedAt         time.Time       `json:"joined_at"`
	LastActivity     time.Time       `json:"last_activity"`
	Cursor           *CursorPosition `json:"cursor,omitempty"`
	SelectedElements []string        `json:"selected_elements"`
	Active           bool            `json:"active"`
}

// CollaborationRoom holds all shared state for one project being edited.
// All mutation goes through methods that hold the room mutex; the raw maps
// are never handed to callers.
type CollaborationRoom struct {
	ID        string
	CreatedAt time.Time

	mu    sync.RWMutex
	users map[string]*CollaborationUser // session id -> presence record
	locks map[string]string             // element id -> holder session id
	log   *eventLog
	chat  *chatLog

	// ordered serializes append-then-enqueue in the dispatcher's broadcast
	// path so receivers observe events in event-log order. Never acquired
	// while holding hub.mu or room.mu.
	ordered sync.Mutex
}

func newCollaborationRoom(id string, eventCapacity, chatCapacity int) *CollaborationRoom {
	return &CollaborationRoom{
		ID:        id,
		CreatedAt: time.Now().UTC(),
		users:     make(map[string]*CollaborationUser),
		locks:     make(map[string]string),
		log:       newEventLog(eventCapacity),
		chat:      newChatLog(chatCapacity),
	}
}

// AddUser registers a presence record for a session
func (r *CollaborationRoom) AddUser(u *CollaborationUser) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.SessionID] = u
}

// RemoveUser deletes the presence record for a session and releases every
// lock it held, returning the removed user and the unlocked element ids.
// Removing an unknown session is a no-op.
func (r *CollaborationRoom) RemoveUser(sessionID string) (*CollaborationUser, []string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.users[sessionID]
	if !ok {
		return nil, nil
	}
	delete(r.users, sessionID)

	unlocked := make([]string, 0)
	for elementID, holder := range r.locks {
		if holder == sessionID {
			delete(r.locks, elementID)
			unlocked = append(unlocked, elementID)
		}
	}
	return user, unlocked
}

// Touch refreshes the last-activity timestamp for a session
func (r *CollaborationRoom) Touch(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[sessionID]; ok {
		u.LastActivity = time.Now().UTC()
	}
}

// UpdateCursor records a session's cursor position
func (r *CollaborationRoom) UpdateCursor(sessionID string, pos CursorPosition) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[sessionID]
	if !ok {
		return false
	}
	u.Cursor = &pos
	u.LastActivity = time.Now().UTC()
	return true
}

// UpdateSelection records a session's currently selected element ids
func (r *CollaborationRoom) UpdateSelection(sessionID string, elements []string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[sessionID]
	if !ok {
		return false
	}
	u.SelectedElements = append([]string(nil), elements...)
	u.LastActivity = time.Now().UTC()
	return true
}

// AcquireLock inserts an exclusive lock entry for the element.
// It fails with *AlreadyLockedError if any session (including the caller)
// already holds the element.
func (r *CollaborationRoom) AcquireLock(elementID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if holder, exists := r.locks[elementID]; exists {
		return &AlreadyLockedError{ElementID: elementID, Holder: holder}
	}
	r.locks[elementID] = sessionID
	return nil
}

// ReleaseLock removes the lock entry if the session holds it
func (r *CollaborationRoom) ReleaseLock(elementID, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	holder, exists := r.locks[elementID]
	if !exists || holder != sessionID {
		return ErrNotLockHolder
	}
	delete(r.locks, elementID)
	return nil
}

// LockHolder returns the session holding the element, if any
func (r *CollaborationRoom) LockHolder(elementID string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	holder, ok := r.locks[elementID]
	return holder, ok
}

// AppendEvent records an event in the room's bounded history
func (r *CollaborationRoom) AppendEvent(e CollaborationEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.log.Append(e)
}

// AppendChat records a chat message in the room's bounded chat history
func (r *CollaborationRoom) AppendChat(m ChatMessage) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.chat.Append(m)
}

// RecentEvents returns up to n newest events, oldest first
func (r *CollaborationRoom) RecentEvents(n int) []CollaborationEvent {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.log.Recent(n)
}

// RecentChat returns up to n newest chat messages, oldest first
func (r *CollaborationRoom) RecentChat(n int) []ChatMessage {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.chat.Recent(n)
}

// UserCount returns the number of sessions currently in the room
func (r *CollaborationRoom) UserCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.users)
}

// Users returns a copy of the current presence records
func (r *CollaborationRoom) Users() []CollaborationUser {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]CollaborationUser, 0, len(r.users))
	for _, u := range r.users {
		cu := *u
		cu.SelectedElements = append([]string(nil), u.SelectedElements...)
		if u.Cursor != nil {
			pos := *u.Cursor
			cu.Cursor = &pos
		}
		out = append(out, cu)
	}
	return out
}

// User returns a copy of one session's presence record
func (r *CollaborationRoom) User(sessionID string) (CollaborationUser, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.users[sessionID]
	if !ok {
		return CollaborationUser{}, false
	}
	return *u, true
}

// Locks returns a copy of the element lock table
func (r *CollaborationRoom) Locks() map[string]string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]string, len(r.locks))
	for elementID, holder := range r.locks {
		out[elementID] = holder
	}
	return out
}

// SessionIDs returns the sessions currently in the room
func (r *CollaborationRoom) SessionIDs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.users))
	for sessionID := range r.users {
		out = append(out, sessionID)
	}
	return out
}

// InactiveSessions returns sessions whose last activity is older than the
// threshold relative to now
func (r *CollaborationRoom) InactiveSessions(now time.Time, threshold time.Duration) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0)
	for sessionID, u := range r.users {
		if now.Sub(u.LastActivity) > threshold {
			out = append(out, sessionID)
		}
	}
	return out
}
