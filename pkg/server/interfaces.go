package server

import "livechat/pkg/database"

// Store defines the interface for persistence operations used by the server.
// This abstraction allows for easier testing and potential future database backends.
type Store interface {
	// User directory
	FindUserByID(id int64) (*database.User, error)
	SetUserStatus(id int64, status string) error
	MarkAllOffline() error

	// Rooms and participants
	FindRoom(id int64) (*database.Room, error)
	IsParticipant(roomID, userID int64) (bool, error)
	InsertParticipant(roomID, userID int64) error
	ListParticipants(roomID int64) ([]*database.Participant, error)

	// Messages
	RecentMessages(roomID int64, limit int) ([]*database.Message, error)
	InsertMessage(roomID, userID int64, body, messageType string) (int64, error)
	GetMessage(id int64) (*database.Message, error)

	// Live connection records
	InsertConnection(userID int64, connectionID, ipAddress string) error
	UpdateConnectionRoom(connectionID string, roomID *int64) error
	TouchConnection(connectionID string) error
	DeleteConnection(connectionID string) error
	ClearConnections() error
}
