package protocol

import (
	"encoding/json"
	"time"
)

// Every outbound event carries a "type" discriminator. Constructors return the
// encoded frame so broadcast paths can share one encoding per fan-out.

// ConnectionEstablishedEvent is sent once immediately after accept.
type ConnectionEstablishedEvent struct {
	Type         string `json:"type"`
	ConnectionID string `json:"connection_id"`
	ServerTime   string `json:"server_time"`
}

// AuthenticatedEvent confirms a successful authenticate frame.
type AuthenticatedEvent struct {
	Type string `json:"type"`
	User User   `json:"user"`
}

// RoomJoinedEvent is the join payload sent to the joining connection.
type RoomJoinedEvent struct {
	Type         string        `json:"type"`
	Room         Room          `json:"room"`
	Messages     []Message     `json:"messages"`
	Participants []Participant `json:"participants"`
}

// RoomUserEvent covers user_joined_room, user_left_room and the two typing
// notices, which share a shape.
type RoomUserEvent struct {
	Type   string `json:"type"`
	User   User   `json:"user"`
	RoomID int64  `json:"room_id"`
}

// NewMessageEvent carries a persisted message to every room member.
type NewMessageEvent struct {
	Type    string  `json:"type"`
	Message Message `json:"message"`
	RoomID  int64   `json:"room_id"`
}

// UserStatusUpdateEvent announces an online/offline transition to all
// authenticated connections.
type UserStatusUpdateEvent struct {
	Type      string `json:"type"`
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// PongEvent answers a ping frame.
type PongEvent struct {
	Type string `json:"type"`
}

// ErrorEvent reports a per-connection failure without closing the connection.
type ErrorEvent struct {
	Type      string `json:"type"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// ServerShutdownEvent is the last frame sent before a graceful shutdown.
type ServerShutdownEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

func mustMarshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		// Event structs contain only marshalable fields; this cannot fail at
		// runtime short of a programming error.
		panic(err)
	}
	return data
}

// NewConnectionEstablished encodes a connection_established event.
func NewConnectionEstablished(connectionID string, now time.Time) []byte {
	return mustMarshal(ConnectionEstablishedEvent{
		Type:         TypeConnectionEstablished,
		ConnectionID: connectionID,
		ServerTime:   now.Format(time.RFC3339),
	})
}

// NewAuthenticated encodes an authenticated event.
func NewAuthenticated(user User) []byte {
	return mustMarshal(AuthenticatedEvent{Type: TypeAuthenticated, User: user})
}

// NewRoomJoined encodes a room_joined event.
func NewRoomJoined(room Room, messages []Message, participants []Participant) []byte {
	if messages == nil {
		messages = []Message{}
	}
	if participants == nil {
		participants = []Participant{}
	}
	return mustMarshal(RoomJoinedEvent{
		Type:         TypeRoomJoined,
		Room:         room,
		Messages:     messages,
		Participants: participants,
	})
}

// NewUserJoinedRoom encodes a user_joined_room event.
func NewUserJoinedRoom(user User, roomID int64) []byte {
	return mustMarshal(RoomUserEvent{Type: TypeUserJoinedRoom, User: user, RoomID: roomID})
}

// NewUserLeftRoom encodes a user_left_room event.
func NewUserLeftRoom(user User, roomID int64) []byte {
	return mustMarshal(RoomUserEvent{Type: TypeUserLeftRoom, User: user, RoomID: roomID})
}

// NewUserTyping encodes a typing notice. start selects between the
// user_typing_start and user_typing_stop types.
func NewUserTyping(user User, roomID int64, start bool) []byte {
	eventType := TypeUserTypingStop
	if start {
		eventType = TypeUserTypingStart
	}
	return mustMarshal(RoomUserEvent{Type: eventType, User: user, RoomID: roomID})
}

// NewMessageBroadcast encodes a new_message event.
func NewMessageBroadcast(msg Message, roomID int64) []byte {
	return mustMarshal(NewMessageEvent{Type: TypeNewMessage, Message: msg, RoomID: roomID})
}

// NewUserStatusUpdate encodes a user_status_update event.
func NewUserStatusUpdate(userID int64, status string, now time.Time) []byte {
	return mustMarshal(UserStatusUpdateEvent{
		Type:      TypeUserStatusUpdate,
		UserID:    userID,
		Status:    status,
		Timestamp: now.Format(time.RFC3339),
	})
}

// NewPong encodes a pong event.
func NewPong() []byte {
	return mustMarshal(PongEvent{Type: TypePong})
}

// NewError encodes an error event.
func NewError(message string, now time.Time) []byte {
	return mustMarshal(ErrorEvent{
		Type:      TypeError,
		Message:   message,
		Timestamp: now.Format(time.RFC3339),
	})
}

// NewServerShutdown encodes a server_shutdown event.
func NewServerShutdown(message string) []byte {
	return mustMarshal(ServerShutdownEvent{Type: TypeServerShutdown, Message: message})
}
