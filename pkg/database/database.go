package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

var (
	// ErrUserNotFound indicates the user does not exist.
	ErrUserNotFound = errors.New("user not found")
	// ErrRoomNotFound indicates the room does not exist.
	ErrRoomNotFound = errors.New("room not found")
	// ErrMessageNotFound indicates the message does not exist.
	ErrMessageNotFound = errors.New("message not found")
)

// DB wraps the SQLite database connection
type DB struct {
	conn      *sql.DB // Read connection pool
	writeConn *sql.DB // Dedicated write connection (1 connection)
}

// Open opens a connection to the SQLite database at the given path
// and initializes the schema if needed
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Allow multiple readers in WAL mode, writes go through writeConn
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := applyPragmas(conn); err != nil {
		conn.Close()
		return nil, err
	}

	// Dedicated write connection: exactly 1 connection, no pooling
	writeConn, err := sql.Open("sqlite", path)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to open write connection: %w", err)
	}
	writeConn.SetMaxOpenConns(1)
	writeConn.SetMaxIdleConns(1)
	writeConn.SetConnMaxLifetime(0)

	if err := applyPragmas(writeConn); err != nil {
		conn.Close()
		writeConn.Close()
		return nil, err
	}

	db := &DB{
		conn:      conn,
		writeConn: writeConn,
	}

	if err := db.initSchema(); err != nil {
		conn.Close()
		writeConn.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return db, nil
}

// applyPragmas configures a SQLite connection for concurrent access
func applyPragmas(conn *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
		"PRAGMA synchronous = NORMAL",
	}
	for _, pragma := range pragmas {
		if _, err := conn.Exec(pragma); err != nil {
			return fmt.Errorf("failed to apply %q: %w", pragma, err)
		}
	}
	return nil
}

// Close closes the database connections
func (db *DB) Close() error {
	db.writeConn.Close()
	return db.conn.Close()
}

// initSchema creates all tables and indexes if they don't exist
func (db *DB) initSchema() error {
	schema := `
-- User table
CREATE TABLE IF NOT EXISTS users (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	username TEXT NOT NULL UNIQUE,
	email TEXT NOT NULL UNIQUE,
	password TEXT NOT NULL DEFAULT '',
	avatar TEXT,
	status TEXT NOT NULL DEFAULT 'offline',
	last_seen INTEGER,
	created_at INTEGER NOT NULL
);

-- Room table
CREATE TABLE IF NOT EXISTS chat_rooms (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT NOT NULL,
	description TEXT,
	type TEXT NOT NULL DEFAULT 'public',
	created_by INTEGER,
	created_at INTEGER NOT NULL,
	FOREIGN KEY (created_by) REFERENCES users(id) ON DELETE SET NULL
);

-- Durable participant records (distinct from live membership)
CREATE TABLE IF NOT EXISTS room_participants (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	joined_at INTEGER NOT NULL,
	UNIQUE (room_id, user_id),
	FOREIGN KEY (room_id) REFERENCES chat_rooms(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Message table
CREATE TABLE IF NOT EXISTS messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	room_id INTEGER NOT NULL,
	user_id INTEGER NOT NULL,
	message TEXT NOT NULL,
	message_type TEXT NOT NULL DEFAULT 'text',
	created_at INTEGER NOT NULL,
	FOREIGN KEY (room_id) REFERENCES chat_rooms(id) ON DELETE CASCADE,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Live connection records, cleared on startup and shutdown
CREATE TABLE IF NOT EXISTS websocket_connections (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	user_id INTEGER NOT NULL,
	connection_id TEXT NOT NULL UNIQUE,
	room_id INTEGER,
	ip_address TEXT,
	connected_at INTEGER NOT NULL,
	last_ping INTEGER NOT NULL,
	FOREIGN KEY (user_id) REFERENCES users(id) ON DELETE CASCADE
);

-- Indexes
CREATE INDEX IF NOT EXISTS idx_messages_room ON messages(room_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_participants_room ON room_participants(room_id);
CREATE INDEX IF NOT EXISTS idx_connections_user ON websocket_connections(user_id);
`

	_, err := db.conn.Exec(schema)
	return err
}

// User represents a user record
type User struct {
	ID       int64
	Username string
	Email    string
	Avatar   *string
	Status   string
	LastSeen *int64 // Unix timestamp in milliseconds
}

// Room represents a chat room record
type Room struct {
	ID          int64
	Name        string
	Description *string
	Type        string // "public" or "private"
	CreatedBy   *int64
	CreatedAt   int64 // Unix timestamp in milliseconds
}

// Message represents a message record joined with its sender
type Message struct {
	ID          int64
	RoomID      int64
	UserID      int64
	Message     string
	MessageType string // "text" or "system"
	Username    string
	Avatar      *string
	CreatedAt   int64 // Unix timestamp in milliseconds
}

// Participant represents a durable room participant joined with user info
type Participant struct {
	UserID   int64
	Username string
	Status   string
	Avatar   *string
}

// nowMillis returns current time as Unix timestamp in milliseconds
func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// SeedRoom describes a public room created at startup when missing
type SeedRoom struct {
	Name        string
	Description string
}

// SeedRooms creates the given public rooms if rooms with those names don't exist
func (db *DB) SeedRooms(rooms []SeedRoom) error {
	for _, room := range rooms {
		var count int
		err := db.conn.QueryRow(`SELECT COUNT(*) FROM chat_rooms WHERE name = ?`, room.Name).Scan(&count)
		if err != nil {
			return fmt.Errorf("failed to check room %s: %w", room.Name, err)
		}
		if count > 0 {
			continue
		}
		desc := room.Description
		if _, err := db.CreateRoom(room.Name, &desc, "public", nil); err != nil {
			return fmt.Errorf("failed to seed room %s: %w", room.Name, err)
		}
	}

	return nil
}

// CreateUser creates a new user and returns its ID
func (db *DB) CreateUser(username, email string) (int64, error) {
	result, err := db.writeConn.Exec(`
		INSERT INTO users (username, email, created_at)
		VALUES (?, ?, ?)
	`, username, email, nowMillis())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FindUserByID returns a user by ID
func (db *DB) FindUserByID(id int64) (*User, error) {
	user := &User{}
	var avatar sql.NullString
	var lastSeen sql.NullInt64

	err := db.conn.QueryRow(`
		SELECT id, username, email, avatar, status, last_seen
		FROM users
		WHERE id = ?
	`, id).Scan(&user.ID, &user.Username, &user.Email, &avatar, &user.Status, &lastSeen)

	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}

	if avatar.Valid {
		user.Avatar = &avatar.String
	}
	if lastSeen.Valid {
		user.LastSeen = &lastSeen.Int64
	}

	return user, nil
}

// SetUserStatus updates a user's durable status and last_seen timestamp
func (db *DB) SetUserStatus(id int64, status string) error {
	_, err := db.writeConn.Exec(`
		UPDATE users SET status = ?, last_seen = ? WHERE id = ?
	`, status, nowMillis(), id)
	return err
}

// MarkAllOffline marks every online user offline. Used during shutdown.
func (db *DB) MarkAllOffline() error {
	_, err := db.writeConn.Exec(`
		UPDATE users SET status = 'offline', last_seen = ? WHERE status = 'online'
	`, nowMillis())
	return err
}

// CreateRoom creates a new room and returns its ID
func (db *DB) CreateRoom(name string, description *string, roomType string, createdBy *int64) (int64, error) {
	desc := sql.NullString{}
	if description != nil {
		desc.Valid = true
		desc.String = *description
	}
	creator := sql.NullInt64{}
	if createdBy != nil {
		creator.Valid = true
		creator.Int64 = *createdBy
	}

	result, err := db.writeConn.Exec(`
		INSERT INTO chat_rooms (name, description, type, created_by, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, name, desc, roomType, creator, nowMillis())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// FindRoom returns a room by ID
func (db *DB) FindRoom(id int64) (*Room, error) {
	room := &Room{}
	var desc sql.NullString
	var createdBy sql.NullInt64

	err := db.conn.QueryRow(`
		SELECT id, name, description, type, created_by, created_at
		FROM chat_rooms
		WHERE id = ?
	`, id).Scan(&room.ID, &room.Name, &desc, &room.Type, &createdBy, &room.CreatedAt)

	if err == sql.ErrNoRows {
		return nil, ErrRoomNotFound
	}
	if err != nil {
		return nil, err
	}

	if desc.Valid {
		room.Description = &desc.String
	}
	if createdBy.Valid {
		room.CreatedBy = &createdBy.Int64
	}

	return room, nil
}

// IsParticipant reports whether a user has a durable participant record for a room
func (db *DB) IsParticipant(roomID, userID int64) (bool, error) {
	var count int
	err := db.conn.QueryRow(`
		SELECT COUNT(*) FROM room_participants WHERE room_id = ? AND user_id = ?
	`, roomID, userID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// InsertParticipant records a durable participant. No-op if already present.
func (db *DB) InsertParticipant(roomID, userID int64) error {
	_, err := db.writeConn.Exec(`
		INSERT OR IGNORE INTO room_participants (room_id, user_id, joined_at)
		VALUES (?, ?, ?)
	`, roomID, userID, nowMillis())
	return err
}

// ListParticipants returns all durable participants of a room with user info
func (db *DB) ListParticipants(roomID int64) ([]*Participant, error) {
	rows, err := db.conn.Query(`
		SELECT rp.user_id, u.username, u.status, u.avatar
		FROM room_participants rp
		JOIN users u ON u.id = rp.user_id
		WHERE rp.room_id = ?
		ORDER BY u.username ASC
	`, roomID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []*Participant
	for rows.Next() {
		p := &Participant{}
		var avatar sql.NullString

		if err := rows.Scan(&p.UserID, &p.Username, &p.Status, &avatar); err != nil {
			return nil, err
		}
		if avatar.Valid {
			p.Avatar = &avatar.String
		}

		participants = append(participants, p)
	}

	return participants, rows.Err()
}

// RecentMessages returns the most recent messages in a room, oldest first
func (db *DB) RecentMessages(roomID int64, limit int) ([]*Message, error) {
	rows, err := db.conn.Query(`
		SELECT m.id, m.room_id, m.user_id, m.message, m.message_type, m.created_at, u.username, u.avatar
		FROM messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.room_id = ?
		ORDER BY m.created_at DESC, m.id DESC
		LIMIT ?
	`, roomID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []*Message
	for rows.Next() {
		msg, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Query returns newest first; reverse into chronological order
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}

	return messages, nil
}

// InsertMessage persists a message and returns its ID
func (db *DB) InsertMessage(roomID, userID int64, body, messageType string) (int64, error) {
	result, err := db.writeConn.Exec(`
		INSERT INTO messages (room_id, user_id, message, message_type, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, roomID, userID, body, messageType, nowMillis())
	if err != nil {
		return 0, err
	}
	return result.LastInsertId()
}

// GetMessage returns a message by ID joined with its sender
func (db *DB) GetMessage(id int64) (*Message, error) {
	row := db.conn.QueryRow(`
		SELECT m.id, m.room_id, m.user_id, m.message, m.message_type, m.created_at, u.username, u.avatar
		FROM messages m
		JOIN users u ON u.id = m.user_id
		WHERE m.id = ?
	`, id)

	msg, err := scanMessage(row)
	if err == sql.ErrNoRows {
		return nil, ErrMessageNotFound
	}
	if err != nil {
		return nil, err
	}
	return msg, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanMessage(row rowScanner) (*Message, error) {
	msg := &Message{}
	var avatar sql.NullString

	err := row.Scan(&msg.ID, &msg.RoomID, &msg.UserID, &msg.Message, &msg.MessageType, &msg.CreatedAt, &msg.Username, &avatar)
	if err != nil {
		return nil, err
	}
	if avatar.Valid {
		msg.Avatar = &avatar.String
	}
	return msg, nil
}
