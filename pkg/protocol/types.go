package protocol

import (
	"encoding/json"
	"errors"
	"strings"
)

// Client frame types (received from clients)
const (
	TypeAuthenticate = "authenticate"
	TypeJoinRoom     = "join_room"
	TypeLeaveRoom    = "leave_room"
	TypeSendMessage  = "send_message"
	TypeTypingStart  = "typing_start"
	TypeTypingStop   = "typing_stop"
	TypePing         = "ping"
)

// Server event types (sent to clients)
const (
	TypeConnectionEstablished = "connection_established"
	TypeAuthenticated         = "authenticated"
	TypeRoomJoined            = "room_joined"
	TypeUserJoinedRoom        = "user_joined_room"
	TypeUserLeftRoom          = "user_left_room"
	TypeNewMessage            = "new_message"
	TypeUserTypingStart       = "user_typing_start"
	TypeUserTypingStop        = "user_typing_stop"
	TypeUserStatusUpdate      = "user_status_update"
	TypePong                  = "pong"
	TypeError                 = "error"
	TypeServerShutdown        = "server_shutdown"
)

// User status values
const (
	StatusOnline  = "online"
	StatusAway    = "away"
	StatusOffline = "offline"
)

// Room visibility values
const (
	RoomPublic  = "public"
	RoomPrivate = "private"
)

// Message kinds
const (
	MessageText   = "text"
	MessageSystem = "system"
)

// ErrInvalidFrame indicates a frame that could not be decoded or is missing
// its type field.
var ErrInvalidFrame = errors.New("invalid frame")

// ClientFrame is the envelope for every inbound frame. Fields beyond Type are
// populated depending on the frame type.
type ClientFrame struct {
	Type         string `json:"type"`
	UserID       int64  `json:"user_id,omitempty"`
	SessionToken string `json:"session_token,omitempty"`
	RoomID       int64  `json:"room_id,omitempty"`
	Message      string `json:"message,omitempty"`
}

// DecodeClientFrame parses an inbound frame. A frame without a type field is
// rejected the same way as malformed JSON.
func DecodeClientFrame(data []byte) (*ClientFrame, error) {
	var frame ClientFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return nil, ErrInvalidFrame
	}
	if strings.TrimSpace(frame.Type) == "" {
		return nil, ErrInvalidFrame
	}
	return &frame, nil
}

// User is the wire representation of a user.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Status   string `json:"status"`
	Avatar   string `json:"avatar,omitempty"`
}

// Room is the wire representation of a room.
type Room struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Type        string `json:"type"`
	CreatedBy   int64  `json:"created_by,omitempty"`
}

// Message is the wire representation of a persisted message, including the
// sender's display fields.
type Message struct {
	ID          int64  `json:"id"`
	RoomID      int64  `json:"room_id"`
	UserID      int64  `json:"user_id"`
	Message     string `json:"message"`
	MessageType string `json:"message_type"`
	Username    string `json:"username"`
	Avatar      string `json:"avatar,omitempty"`
	CreatedAt   string `json:"created_at"`
}

// Participant is the wire representation of a durable room participant.
type Participant struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	Status   string `json:"status"`
	Avatar   string `json:"avatar,omitempty"`
}
