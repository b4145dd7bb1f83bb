package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDB(t *testing.T) *DB {
	t.Helper()
	db, err := Open(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestUserLifecycle(t *testing.T) {
	db := testDB(t)

	id, err := db.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)

	user, err := db.FindUserByID(id)
	require.NoError(t, err)
	assert.Equal(t, "alice", user.Username)
	assert.Equal(t, "offline", user.Status)

	require.NoError(t, db.SetUserStatus(id, "online"))
	user, err = db.FindUserByID(id)
	require.NoError(t, err)
	assert.Equal(t, "online", user.Status)
	require.NotNil(t, user.LastSeen)

	_, err = db.FindUserByID(9999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestMarkAllOffline(t *testing.T) {
	db := testDB(t)

	a, err := db.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)
	b, err := db.CreateUser("bob", "bob@example.com")
	require.NoError(t, err)
	require.NoError(t, db.SetUserStatus(a, "online"))
	require.NoError(t, db.SetUserStatus(b, "away"))

	require.NoError(t, db.MarkAllOffline())

	// Only online users transition; away is preserved
	user, err := db.FindUserByID(a)
	require.NoError(t, err)
	assert.Equal(t, "offline", user.Status)

	user, err = db.FindUserByID(b)
	require.NoError(t, err)
	assert.Equal(t, "away", user.Status)
}

func TestRoomLifecycle(t *testing.T) {
	db := testDB(t)

	desc := "general talk"
	id, err := db.CreateRoom("General", &desc, "public", nil)
	require.NoError(t, err)

	room, err := db.FindRoom(id)
	require.NoError(t, err)
	assert.Equal(t, "General", room.Name)
	assert.Equal(t, "public", room.Type)
	require.NotNil(t, room.Description)
	assert.Equal(t, desc, *room.Description)

	_, err = db.FindRoom(9999)
	assert.ErrorIs(t, err, ErrRoomNotFound)
}

func TestSeedRoomsIdempotent(t *testing.T) {
	db := testDB(t)

	seeds := []SeedRoom{
		{Name: "General", Description: "General discussion"},
		{Name: "Random", Description: "Off-topic chat"},
	}
	require.NoError(t, db.SeedRooms(seeds))
	require.NoError(t, db.SeedRooms(seeds))

	var count int
	err := db.conn.QueryRow(`SELECT COUNT(*) FROM chat_rooms`).Scan(&count)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestParticipants(t *testing.T) {
	db := testDB(t)

	userID, err := db.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)
	roomID, err := db.CreateRoom("General", nil, "public", nil)
	require.NoError(t, err)

	ok, err := db.IsParticipant(roomID, userID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, db.InsertParticipant(roomID, userID))
	// Re-inserting an existing membership is a no-op
	require.NoError(t, db.InsertParticipant(roomID, userID))

	ok, err = db.IsParticipant(roomID, userID)
	require.NoError(t, err)
	assert.True(t, ok)

	participants, err := db.ListParticipants(roomID)
	require.NoError(t, err)
	require.Len(t, participants, 1)
	assert.Equal(t, "alice", participants[0].Username)
}

func TestMessageHistory(t *testing.T) {
	db := testDB(t)

	userID, err := db.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)
	roomID, err := db.CreateRoom("General", nil, "public", nil)
	require.NoError(t, err)

	bodies := []string{"first", "second", "third", "fourth"}
	for _, body := range bodies {
		_, err := db.InsertMessage(roomID, userID, body, "text")
		require.NoError(t, err)
	}

	// History is limited and ordered oldest first
	messages, err := db.RecentMessages(roomID, 3)
	require.NoError(t, err)
	require.Len(t, messages, 3)
	assert.Equal(t, "second", messages[0].Message)
	assert.Equal(t, "fourth", messages[2].Message)
	assert.Equal(t, "alice", messages[0].Username)

	all, err := db.RecentMessages(roomID, 50)
	require.NoError(t, err)
	assert.Len(t, all, 4)

	empty, err := db.RecentMessages(9999, 50)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestGetMessage(t *testing.T) {
	db := testDB(t)

	userID, err := db.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)
	roomID, err := db.CreateRoom("General", nil, "public", nil)
	require.NoError(t, err)

	id, err := db.InsertMessage(roomID, userID, "hello", "text")
	require.NoError(t, err)

	msg, err := db.GetMessage(id)
	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Message)
	assert.Equal(t, "alice", msg.Username)
	assert.Equal(t, roomID, msg.RoomID)
	assert.NotZero(t, msg.CreatedAt)

	_, err = db.GetMessage(9999)
	assert.ErrorIs(t, err, ErrMessageNotFound)
}

func TestConnectionRecords(t *testing.T) {
	db := testDB(t)

	userID, err := db.CreateUser("alice", "alice@example.com")
	require.NoError(t, err)

	require.NoError(t, db.InsertConnection(userID, "conn-1", "127.0.0.1"))

	roomID := int64(42)
	require.NoError(t, db.UpdateConnectionRoom("conn-1", &roomID))
	require.NoError(t, db.UpdateConnectionRoom("conn-1", nil))
	require.NoError(t, db.TouchConnection("conn-1"))

	require.NoError(t, db.DeleteConnection("conn-1"))

	require.NoError(t, db.InsertConnection(userID, "conn-2", "127.0.0.1"))
	require.NoError(t, db.ClearConnections())

	var count int
	err = db.conn.QueryRow(`SELECT COUNT(*) FROM websocket_connections`).Scan(&count)
	require.NoError(t, err)
	assert.Zero(t, count)
}
