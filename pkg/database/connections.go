package database

import "database/sql"

// InsertConnection records a live connection for an authenticated user
func (db *DB) InsertConnection(userID int64, connectionID, ipAddress string) error {
	now := nowMillis()
	_, err := db.writeConn.Exec(`
		INSERT INTO websocket_connections (user_id, connection_id, ip_address, connected_at, last_ping)
		VALUES (?, ?, ?, ?, ?)
	`, userID, connectionID, ipAddress, now, now)
	return err
}

// UpdateConnectionRoom records which room a connection is currently in.
// A nil roomID clears the association.
func (db *DB) UpdateConnectionRoom(connectionID string, roomID *int64) error {
	room := sql.NullInt64{}
	if roomID != nil {
		room.Valid = true
		room.Int64 = *roomID
	}
	_, err := db.writeConn.Exec(`
		UPDATE websocket_connections SET room_id = ? WHERE connection_id = ?
	`, room, connectionID)
	return err
}

// TouchConnection refreshes a connection's last_ping timestamp
func (db *DB) TouchConnection(connectionID string) error {
	_, err := db.writeConn.Exec(`
		UPDATE websocket_connections SET last_ping = ? WHERE connection_id = ?
	`, nowMillis(), connectionID)
	return err
}

// DeleteConnection removes a live connection record
func (db *DB) DeleteConnection(connectionID string) error {
	_, err := db.writeConn.Exec(`
		DELETE FROM websocket_connections WHERE connection_id = ?
	`, connectionID)
	return err
}

// ClearConnections removes all live connection records. Called on startup
// (stale rows from a crash) and on shutdown.
func (db *DB) ClearConnections() error {
	_, err := db.writeConn.Exec(`DELETE FROM websocket_connections`)
	return err
}
