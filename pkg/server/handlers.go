package server

import (
	"errors"
	"strings"
	"time"

	"livechat/pkg/database"
	"livechat/pkg/protocol"
)

// handleFrame decodes one inbound frame, applies the rate limit and routes
// to the matching handler. Errors are reported to the offending connection
// only; the connection is never closed here.
func (s *Server) handleFrame(c *Client, data []byte) {
	frame, err := protocol.DecodeClientFrame(data)
	if err != nil {
		s.sendError(c, "Invalid message format")
		return
	}

	if s.metrics != nil {
		s.metrics.RecordFrameReceived(frame.Type)
	}

	// The limit covers every frame type, so authentication and join floods
	// are bounded as well.
	if !c.limiter.Allow(time.Now()) {
		if s.metrics != nil {
			s.metrics.RecordRateLimited()
		}
		s.sendError(c, "Rate limit exceeded")
		return
	}

	switch frame.Type {
	case protocol.TypeAuthenticate:
		s.handleAuthenticate(c, frame)
	case protocol.TypeJoinRoom:
		s.handleJoinRoom(c, frame)
	case protocol.TypeLeaveRoom:
		s.handleLeaveRoom(c)
	case protocol.TypeSendMessage:
		s.handleSendMessage(c, frame)
	case protocol.TypeTypingStart:
		s.handleTyping(c, true)
	case protocol.TypeTypingStop:
		s.handleTyping(c, false)
	case protocol.TypePing:
		s.handlePing(c)
	default:
		s.sendError(c, "Unknown message type: "+frame.Type)
	}
}

// handleAuthenticate verifies the user against the user directory and runs
// the authenticated transition. Failure leaves the connection open and
// unauthenticated so the client may retry.
func (s *Server) handleAuthenticate(c *Client, frame *protocol.ClientFrame) {
	authenticated, _, _ := s.hub.ClientState(c)
	if authenticated {
		s.sendError(c, "Already authenticated")
		return
	}

	if frame.UserID == 0 || frame.SessionToken == "" {
		s.sendError(c, "Missing authentication data")
		return
	}

	user, err := s.store.FindUserByID(frame.UserID)
	if err != nil {
		if errors.Is(err, database.ErrUserNotFound) {
			s.sendError(c, "Invalid user")
			return
		}
		errorLog.Printf("Connection %s: user lookup failed: %v", c.ID, err)
		s.sendError(c, "Authentication failed")
		return
	}

	if err := s.store.InsertConnection(user.ID, c.ID, c.remoteAddr); err != nil {
		errorLog.Printf("Connection %s: failed to record connection: %v", c.ID, err)
		s.sendError(c, "Authentication failed")
		return
	}

	if err := s.store.SetUserStatus(user.ID, protocol.StatusOnline); err != nil {
		errorLog.Printf("Connection %s: failed to set user %d online: %v", c.ID, user.ID, err)
	}

	s.hub.Authenticate(c, protocol.User{
		ID:       user.ID,
		Username: user.Username,
		Status:   protocol.StatusOnline,
		Avatar:   derefString(user.Avatar),
	})

	debugLog.Printf("Connection %s: user %s authenticated", c.ID, user.Username)
}

// handleJoinRoom verifies the room and the caller's access, assembles the
// room_joined payload from the store, and applies the membership change.
func (s *Server) handleJoinRoom(c *Client, frame *protocol.ClientFrame) {
	authenticated, user, _ := s.hub.ClientState(c)
	if !authenticated {
		s.sendError(c, "Not authenticated")
		return
	}

	if frame.RoomID == 0 {
		s.sendError(c, "Room ID required")
		return
	}

	room, err := s.store.FindRoom(frame.RoomID)
	if err != nil {
		if errors.Is(err, database.ErrRoomNotFound) {
			s.sendError(c, "Room not found")
			return
		}
		errorLog.Printf("Connection %s: room lookup failed: %v", c.ID, err)
		s.sendError(c, "Server error occurred")
		return
	}

	if room.Type == protocol.RoomPrivate {
		participant, err := s.store.IsParticipant(room.ID, user.ID)
		if err != nil {
			errorLog.Printf("Connection %s: participant check failed: %v", c.ID, err)
			s.sendError(c, "Server error occurred")
			return
		}
		if !participant {
			s.sendError(c, "Access denied to private room")
			return
		}
	}

	if err := s.store.InsertParticipant(room.ID, user.ID); err != nil {
		errorLog.Printf("Connection %s: failed to record participant: %v", c.ID, err)
		s.sendError(c, "Server error occurred")
		return
	}

	messages, err := s.store.RecentMessages(room.ID, s.config.HistoryLimit)
	if err != nil {
		errorLog.Printf("Connection %s: failed to load history for room %d: %v", c.ID, room.ID, err)
		s.sendError(c, "Server error occurred")
		return
	}

	participants, err := s.store.ListParticipants(room.ID)
	if err != nil {
		errorLog.Printf("Connection %s: failed to list participants for room %d: %v", c.ID, room.ID, err)
		s.sendError(c, "Server error occurred")
		return
	}

	payload := protocol.NewRoomJoined(
		roomToProtocol(room),
		messagesToProtocol(messages),
		participantsToProtocol(participants),
	)

	s.hub.JoinRoom(c, room.ID, payload)

	roomID := room.ID
	if err := s.store.UpdateConnectionRoom(c.ID, &roomID); err != nil {
		errorLog.Printf("Connection %s: failed to record room change: %v", c.ID, err)
	}

	debugLog.Printf("Connection %s: user %s joined room %d", c.ID, user.Username, room.ID)
}

// handleLeaveRoom removes the connection from its room and notifies the rest
func (s *Server) handleLeaveRoom(c *Client) {
	authenticated, _, _ := s.hub.ClientState(c)
	if !authenticated {
		s.sendError(c, "Not authenticated")
		return
	}

	roomID, left := s.hub.LeaveRoom(c)
	if !left {
		s.sendError(c, "Not in a room")
		return
	}

	if err := s.store.UpdateConnectionRoom(c.ID, nil); err != nil {
		errorLog.Printf("Connection %s: failed to clear room record: %v", c.ID, err)
	}

	debugLog.Printf("Connection %s: left room %d", c.ID, roomID)
}

// handleSendMessage persists the message and broadcasts the canonical stored
// form to the whole room, sender included.
func (s *Server) handleSendMessage(c *Client, frame *protocol.ClientFrame) {
	authenticated, user, roomID := s.hub.ClientState(c)
	if !authenticated || roomID == 0 {
		s.sendError(c, "Not in a room")
		return
	}

	body := strings.TrimSpace(frame.Message)
	if body == "" {
		s.sendError(c, "Message cannot be empty")
		return
	}
	if len(body) > s.config.MaxMessageLength {
		s.sendError(c, "Message too long")
		return
	}

	messageID, err := s.store.InsertMessage(roomID, user.ID, body, protocol.MessageText)
	if err != nil {
		errorLog.Printf("Connection %s: failed to persist message: %v", c.ID, err)
		s.sendError(c, "Failed to send message")
		return
	}

	// Broadcast the persisted form so every recipient, sender included, sees
	// the canonical record.
	stored, err := s.store.GetMessage(messageID)
	if err != nil {
		errorLog.Printf("Connection %s: failed to load message %d: %v", c.ID, messageID, err)
		s.sendError(c, "Failed to send message")
		return
	}

	s.hub.BroadcastToRoom(roomID, protocol.NewMessageBroadcast(messageToProtocol(stored), roomID), "")

	if s.metrics != nil {
		s.metrics.RecordMessageBroadcast()
	}
	debugLog.Printf("Connection %s: user %s sent message %d to room %d", c.ID, user.Username, messageID, roomID)
}

// handleTyping relays an ephemeral typing notice to the rest of the room
func (s *Server) handleTyping(c *Client, start bool) {
	authenticated, user, roomID := s.hub.ClientState(c)
	if !authenticated || roomID == 0 {
		s.sendError(c, "Not in a room")
		return
	}

	s.hub.BroadcastToRoom(roomID, protocol.NewUserTyping(user, roomID, start), c.ID)
}

// handlePing answers with a pong and refreshes the connection's liveness record
func (s *Server) handlePing(c *Client) {
	authenticated, _, _ := s.hub.ClientState(c)
	if authenticated {
		if err := s.store.TouchConnection(c.ID); err != nil {
			errorLog.Printf("Connection %s: failed to refresh ping record: %v", c.ID, err)
		}
	}

	c.trySend(protocol.NewPong())
}

// sendError reports a failure to a single connection via an error frame
func (s *Server) sendError(c *Client, message string) {
	if s.metrics != nil {
		s.metrics.RecordErrorSent()
	}
	c.trySend(protocol.NewError(message, time.Now()))
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func roomToProtocol(room *database.Room) protocol.Room {
	return protocol.Room{
		ID:          room.ID,
		Name:        room.Name,
		Description: derefString(room.Description),
		Type:        room.Type,
		CreatedBy:   derefInt64(room.CreatedBy),
	}
}

func derefInt64(v *int64) int64 {
	if v == nil {
		return 0
	}
	return *v
}

func messageToProtocol(msg *database.Message) protocol.Message {
	return protocol.Message{
		ID:          msg.ID,
		RoomID:      msg.RoomID,
		UserID:      msg.UserID,
		Message:     msg.Message,
		MessageType: msg.MessageType,
		Username:    msg.Username,
		Avatar:      derefString(msg.Avatar),
		CreatedAt:   time.UnixMilli(msg.CreatedAt).UTC().Format(time.RFC3339),
	}
}

func messagesToProtocol(msgs []*database.Message) []protocol.Message {
	out := make([]protocol.Message, len(msgs))
	for i, msg := range msgs {
		out[i] = messageToProtocol(msg)
	}
	return out
}

func participantsToProtocol(participants []*database.Participant) []protocol.Participant {
	out := make([]protocol.Participant, len(participants))
	for i, p := range participants {
		out[i] = protocol.Participant{
			UserID:   p.UserID,
			Username: p.Username,
			Status:   p.Status,
			Avatar:   derefString(p.Avatar),
		}
	}
	return out
}
