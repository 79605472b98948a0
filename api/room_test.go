package api

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testUser(sessionID, userID string) *CollaborationUser {
	now := time.Now().UTC()
	return &CollaborationUser{
		UserID:           userID,
		SessionID:        sessionID,
		Name:             userID,
		JoinedAt:         now,
		LastActivity:     now,
		SelectedElements: []string{},
		Active:           true,
	}
}

func TestRoomPresence(t *testing.T) {
	room := newCollaborationRoom("proj-1", 100, 100)

	room.AddUser(testUser("sess-a", "alice"))
	room.AddUser(testUser("sess-b", "bob"))
	assert.Equal(t, 2, room.UserCount())

	u, ok := room.User("sess-a")
	require.True(t, ok)
	assert.Equal(t, "alice", u.UserID)

	user, unlocked := room.RemoveUser("sess-a")
	require.NotNil(t, user)
	assert.Equal(t, "alice", user.UserID)
	assert.Empty(t, unlocked)
	assert.Equal(t, 1, room.UserCount())

	// Removing an unknown session is a no-op
	user, unlocked = room.RemoveUser("sess-a")
	assert.Nil(t, user)
	assert.Nil(t, unlocked)
}

func TestRoomLockProtocol(t *testing.T) {
	room := newCollaborationRoom("proj-1", 100, 100)
	room.AddUser(testUser("sess-a", "alice"))
	room.AddUser(testUser("sess-b", "bob"))

	require.NoError(t, room.AcquireLock("chair-1", "sess-a"))

	// Second acquire fails and names the holder
	err := room.AcquireLock("chair-1", "sess-b")
	var locked *AlreadyLockedError
	require.ErrorAs(t, err, &locked)
	assert.Equal(t, "sess-a", locked.Holder)
	assert.Equal(t, "chair-1", locked.ElementID)

	// Re-acquire by the holder also fails: locks are not reentrant
	err = room.AcquireLock("chair-1", "sess-a")
	require.ErrorAs(t, err, &locked)

	// Only the holder may release
	assert.ErrorIs(t, room.ReleaseLock("chair-1", "sess-b"), ErrNotLockHolder)
	assert.ErrorIs(t, room.ReleaseLock("table-9", "sess-a"), ErrNotLockHolder)
	require.NoError(t, room.ReleaseLock("chair-1", "sess-a"))

	// After release the element is lockable again
	require.NoError(t, room.AcquireLock("chair-1", "sess-b"))
	holder, ok := room.LockHolder("chair-1")
	require.True(t, ok)
	assert.Equal(t, "sess-b", holder)
}

func TestRemoveUserReleasesAllLocks(t *testing.T) {
	room := newCollaborationRoom("proj-1", 100, 100)
	room.AddUser(testUser("sess-a", "alice"))
	room.AddUser(testUser("sess-b", "bob"))

	require.NoError(t, room.AcquireLock("e1", "sess-a"))
	require.NoError(t, room.AcquireLock("e2", "sess-a"))
	require.NoError(t, room.AcquireLock("e3", "sess-b"))

	_, unlocked := room.RemoveUser("sess-a")
	assert.ElementsMatch(t, []string{"e1", "e2"}, unlocked)

	// No dangling locks: every remaining entry names a present session
	locks := room.Locks()
	assert.Len(t, locks, 1)
	for _, holder := range locks {
		_, present := room.User(holder)
		assert.True(t, present, "lock held by absent session %s", holder)
	}
}

func TestRoomCursorAndSelection(t *testing.T) {
	room := newCollaborationRoom("proj-1", 100, 100)
	room.AddUser(testUser("sess-a", "alice"))

	assert.True(t, room.UpdateCursor("sess-a", CursorPosition{X: 10.5, Y: -3}))
	assert.True(t, room.UpdateSelection("sess-a", []string{"sofa-1", "lamp-2"}))
	assert.False(t, room.UpdateCursor("sess-ghost", CursorPosition{}))
	assert.False(t, room.UpdateSelection("sess-ghost", nil))

	u, ok := room.User("sess-a")
	require.True(t, ok)
	require.NotNil(t, u.Cursor)
	assert.Equal(t, 10.5, u.Cursor.X)
	assert.Equal(t, []string{"sofa-1", "lamp-2"}, u.SelectedElements)
}

func TestRoomUsersReturnsCopies(t *testing.T) {
	room := newCollaborationRoom("proj-1", 100, 100)
	room.AddUser(testUser("sess-a", "alice"))
	room.UpdateSelection("sess-a", []string{"sofa-1"})

	users := room.Users()
	require.Len(t, users, 1)
	users[0].SelectedElements[0] = "mutated"
	users[0].UserID = "mutated"

	u, ok := room.User("sess-a")
	require.True(t, ok)
	assert.Equal(t, "alice", u.UserID)
	assert.Equal(t, []string{"sofa-1"}, u.SelectedElements)

	locks := room.Locks()
	locks["injected"] = "sess-x"
	_, held := room.LockHolder("injected")
	assert.False(t, held)
}

func TestRoomTouchAndInactiveSessions(t *testing.T) {
	room := newCollaborationRoom("proj-1", 100, 100)
	stale := testUser("sess-stale", "alice")
	stale.LastActivity = time.Now().UTC().Add(-time.Hour)
	room.AddUser(stale)
	room.AddUser(testUser("sess-fresh", "bob"))

	now := time.Now().UTC()
	inactive := room.InactiveSessions(now, 10*time.Minute)
	assert.Equal(t, []string{"sess-stale"}, inactive)

	// Touching revives the session
	room.Touch("sess-stale")
	assert.Empty(t, room.InactiveSessions(now, 10*time.Minute))
}
