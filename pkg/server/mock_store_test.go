package server

import (
	"errors"
	"sync"
	"time"

	"livechat/pkg/database"
)

// mockStore is a simple in-memory store for testing
type mockStore struct {
	mu           sync.Mutex
	users        map[int64]*database.User
	rooms        map[int64]*database.Room
	participants map[int64]map[int64]bool // room id -> user id set
	messages     map[int64]*database.Message
	connections  map[string]int64 // connection id -> user id
	nextMsgID    int64

	statusUpdates []statusUpdate
	insertedMsgs  int
	failInsert    bool
	clearedConns  int
	markedOffline int
}

type statusUpdate struct {
	userID int64
	status string
}

func newMockStore() *mockStore {
	return &mockStore{
		users:        make(map[int64]*database.User),
		rooms:        make(map[int64]*database.Room),
		participants: make(map[int64]map[int64]bool),
		messages:     make(map[int64]*database.Message),
		connections:  make(map[string]int64),
		nextMsgID:    1,
	}
}

func (m *mockStore) AddUser(id int64, username string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[id] = &database.User{ID: id, Username: username, Email: username + "@example.com", Status: "offline"}
}

func (m *mockStore) AddRoom(id int64, name, roomType string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rooms[id] = &database.Room{ID: id, Name: name, Type: roomType}
}

func (m *mockStore) FindUserByID(id int64) (*database.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return nil, database.ErrUserNotFound
	}
	return user, nil
}

func (m *mockStore) SetUserStatus(id int64, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if user, ok := m.users[id]; ok {
		user.Status = status
	}
	m.statusUpdates = append(m.statusUpdates, statusUpdate{userID: id, status: status})
	return nil
}

func (m *mockStore) MarkAllOffline() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Status == "online" {
			user.Status = "offline"
			m.markedOffline++
		}
	}
	return nil
}

func (m *mockStore) FindRoom(id int64) (*database.Room, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	room, ok := m.rooms[id]
	if !ok {
		return nil, database.ErrRoomNotFound
	}
	return room, nil
}

func (m *mockStore) IsParticipant(roomID, userID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.participants[roomID][userID], nil
}

func (m *mockStore) InsertParticipant(roomID, userID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.participants[roomID] == nil {
		m.participants[roomID] = make(map[int64]bool)
	}
	m.participants[roomID][userID] = true
	return nil
}

func (m *mockStore) ListParticipants(roomID int64) ([]*database.Participant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.Participant
	for userID := range m.participants[roomID] {
		user := m.users[userID]
		if user == nil {
			continue
		}
		out = append(out, &database.Participant{UserID: userID, Username: user.Username, Status: user.Status})
	}
	return out, nil
}

func (m *mockStore) RecentMessages(roomID int64, limit int) ([]*database.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*database.Message
	for id := int64(1); id < m.nextMsgID && len(out) < limit; id++ {
		if msg, ok := m.messages[id]; ok && msg.RoomID == roomID {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (m *mockStore) InsertMessage(roomID, userID int64, body, messageType string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failInsert {
		return 0, errors.New("insert failed")
	}

	user := m.users[userID]
	username := ""
	if user != nil {
		username = user.Username
	}

	id := m.nextMsgID
	m.nextMsgID++
	m.messages[id] = &database.Message{
		ID:          id,
		RoomID:      roomID,
		UserID:      userID,
		Message:     body,
		MessageType: messageType,
		Username:    username,
		CreatedAt:   time.Now().UnixMilli(),
	}
	m.insertedMsgs++
	return id, nil
}

func (m *mockStore) GetMessage(id int64) (*database.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.messages[id]
	if !ok {
		return nil, database.ErrMessageNotFound
	}
	return msg, nil
}

func (m *mockStore) InsertConnection(userID int64, connectionID, ipAddress string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connections[connectionID] = userID
	return nil
}

func (m *mockStore) UpdateConnectionRoom(connectionID string, roomID *int64) error {
	return nil
}

func (m *mockStore) TouchConnection(connectionID string) error {
	return nil
}

func (m *mockStore) DeleteConnection(connectionID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.connections, connectionID)
	return nil
}

func (m *mockStore) ClearConnections() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clearedConns++
	m.connections = make(map[string]int64)
	return nil
}

func (m *mockStore) MessageCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertedMsgs
}

func (m *mockStore) StatusUpdates() []statusUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]statusUpdate, len(m.statusUpdates))
	copy(out, m.statusUpdates)
	return out
}

func (m *mockStore) HasConnection(connectionID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.connections[connectionID]
	return ok
}
