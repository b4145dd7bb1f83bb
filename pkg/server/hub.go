package server

import (
	"sync"
	"time"

	"livechat/pkg/protocol"
)

// Hub owns all live connection state: the connection registry, the room
// index (room id -> member connections) and the presence map (user id ->
// that user's connections). Every mutation goes through a Hub method under
// one mutex, so compound transitions like join-then-notify or
// last-connection-offline are indivisible with respect to other frames.
type Hub struct {
	mu       sync.Mutex
	clients  map[string]*Client
	rooms    map[int64]map[string]*Client
	presence map[int64]map[string]*Client
	metrics  *Metrics
}

// DisconnectResult reports what the disconnect cascade removed, so the
// caller can mirror the transitions into the durable store.
type DisconnectResult struct {
	Registered    bool
	Authenticated bool
	UserID        int64
	RoomID        int64 // room the connection was in, 0 if none
	WentOffline   bool  // true when this was the user's last connection
}

// NewHub creates an empty hub
func NewHub() *Hub {
	return &Hub{
		clients:  make(map[string]*Client),
		rooms:    make(map[int64]map[string]*Client),
		presence: make(map[int64]map[string]*Client),
	}
}

// SetMetrics attaches metrics to the hub
func (h *Hub) SetMetrics(metrics *Metrics) {
	h.metrics = metrics
}

// Register adds a connection to the registry
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	h.clients[c.ID] = c
	count := len(h.clients)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordActiveConnections(count)
		h.metrics.RecordConnectionOpened()
	}
}

// Client returns a registered connection by id
func (h *Hub) Client(connectionID string) (*Client, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	c, ok := h.clients[connectionID]
	return c, ok
}

// ClientCount returns the number of registered connections
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// ClientState returns a consistent snapshot of a connection's mutable state
func (h *Hub) ClientState(c *Client) (authenticated bool, user protocol.User, roomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return c.authenticated, clientUserLocked(c), c.roomID
}

func clientUserLocked(c *Client) protocol.User {
	return protocol.User{
		ID:       c.userID,
		Username: c.username,
		Status:   protocol.StatusOnline,
		Avatar:   c.avatar,
	}
}

// Authenticate marks a connection authenticated, registers presence, sends
// the authenticated confirmation to the caller and announces the online
// status to all authenticated connections in one step.
func (h *Hub) Authenticate(c *Client, user protocol.User) {
	statusUpdate := protocol.NewUserStatusUpdate(user.ID, protocol.StatusOnline, time.Now())

	h.mu.Lock()
	c.userID = user.ID
	c.username = user.Username
	c.avatar = user.Avatar
	c.authenticated = true

	conns, ok := h.presence[user.ID]
	if !ok {
		conns = make(map[string]*Client)
		h.presence[user.ID] = conns
	}
	conns[c.ID] = c

	c.trySend(protocol.NewAuthenticated(user))
	h.broadcastAuthenticatedLocked(statusUpdate)
	onlineUsers := len(h.presence)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordOnlineUsers(onlineUsers)
	}
}

// JoinRoom places a connection in a room, leaving its previous room first.
// The prepared room_joined payload goes to the caller and a join notice to
// the rest of the room, atomically with the membership change. Joining the
// room the connection is already in just resends the payload.
func (h *Hub) JoinRoom(c *Client, roomID int64, joinedPayload []byte) (previousRoomID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	previousRoomID = c.roomID
	if previousRoomID == roomID {
		c.trySend(joinedPayload)
		return previousRoomID
	}

	if previousRoomID != 0 {
		h.removeFromRoomLocked(c, previousRoomID)
	}

	members, ok := h.rooms[roomID]
	if !ok {
		members = make(map[string]*Client)
		h.rooms[roomID] = members
	}
	members[c.ID] = c
	c.roomID = roomID

	c.trySend(joinedPayload)
	h.broadcastRoomLocked(roomID, protocol.NewUserJoinedRoom(clientUserLocked(c), roomID), c.ID)
	return previousRoomID
}

// LeaveRoom removes a connection from its current room and notifies the
// remaining members. Reports false when the connection was not in a room.
func (h *Hub) LeaveRoom(c *Client) (roomID int64, left bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if c.roomID == 0 {
		return 0, false
	}

	roomID = c.roomID
	h.removeFromRoomLocked(c, roomID)
	return roomID, true
}

// removeFromRoomLocked detaches a connection from a room, prunes the room
// entry when it empties, and notifies the remaining members. Callers must
// hold h.mu.
func (h *Hub) removeFromRoomLocked(c *Client, roomID int64) {
	members, ok := h.rooms[roomID]
	if ok {
		delete(members, c.ID)
		if len(members) == 0 {
			delete(h.rooms, roomID)
		}
	}
	c.roomID = 0

	h.broadcastRoomLocked(roomID, protocol.NewUserLeftRoom(clientUserLocked(c), roomID), "")
}

// RoomMembers returns the connection ids currently joined to a room
func (h *Hub) RoomMembers(roomID int64) []string {
	h.mu.Lock()
	defer h.mu.Unlock()

	members := h.rooms[roomID]
	ids := make([]string, 0, len(members))
	for id := range members {
		ids = append(ids, id)
	}
	return ids
}

// IsOnline reports whether a user has at least one registered connection
func (h *Hub) IsOnline(userID int64) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.presence[userID]) > 0
}

// BroadcastToRoom delivers a payload to every member of a room, optionally
// excluding one connection. Delivery is best-effort per member.
func (h *Hub) BroadcastToRoom(roomID int64, payload []byte, excludeConnectionID string) {
	h.mu.Lock()
	h.broadcastRoomLocked(roomID, payload, excludeConnectionID)
	h.mu.Unlock()
}

// BroadcastToAuthenticated delivers a payload to every authenticated connection
func (h *Hub) BroadcastToAuthenticated(payload []byte) {
	h.mu.Lock()
	h.broadcastAuthenticatedLocked(payload)
	h.mu.Unlock()
}

func (h *Hub) broadcastRoomLocked(roomID int64, payload []byte, excludeConnectionID string) {
	members := h.rooms[roomID]
	delivered := 0
	for id, member := range members {
		if excludeConnectionID != "" && id == excludeConnectionID {
			continue
		}
		if !member.trySend(payload) {
			errorLog.Printf("Connection %s: dropped room %d broadcast (queue full)", id, roomID)
			if h.metrics != nil {
				h.metrics.RecordDeliveryDropped()
			}
			continue
		}
		delivered++
	}
	if h.metrics != nil {
		h.metrics.RecordBroadcastFanout("room", delivered)
	}
}

func (h *Hub) broadcastAuthenticatedLocked(payload []byte) {
	delivered := 0
	for id, c := range h.clients {
		if !c.authenticated {
			continue
		}
		if !c.trySend(payload) {
			errorLog.Printf("Connection %s: dropped global broadcast (queue full)", id)
			if h.metrics != nil {
				h.metrics.RecordDeliveryDropped()
			}
			continue
		}
		delivered++
	}
	if h.metrics != nil {
		h.metrics.RecordBroadcastFanout("global", delivered)
	}
}

// Deregister runs the in-memory half of the disconnect cascade: room leave
// (with notice), presence removal (with offline announcement when this was
// the user's last connection) and registry removal. Idempotent; the second
// call for a connection reports Registered=false.
func (h *Hub) Deregister(c *Client) DisconnectResult {
	h.mu.Lock()

	if _, ok := h.clients[c.ID]; !ok {
		h.mu.Unlock()
		return DisconnectResult{}
	}
	delete(h.clients, c.ID)

	res := DisconnectResult{
		Registered:    true,
		Authenticated: c.authenticated,
		UserID:        c.userID,
	}

	if c.authenticated {
		if c.roomID != 0 {
			res.RoomID = c.roomID
			h.removeFromRoomLocked(c, c.roomID)
		}

		if conns, ok := h.presence[c.userID]; ok {
			delete(conns, c.ID)
			if len(conns) == 0 {
				delete(h.presence, c.userID)
				res.WentOffline = true
			}
		}

		if res.WentOffline {
			h.broadcastAuthenticatedLocked(protocol.NewUserStatusUpdate(c.userID, protocol.StatusOffline, time.Now()))
		}
	}

	count := len(h.clients)
	onlineUsers := len(h.presence)
	h.mu.Unlock()

	if h.metrics != nil {
		h.metrics.RecordActiveConnections(count)
		h.metrics.RecordOnlineUsers(onlineUsers)
		h.metrics.RecordConnectionClosed()
	}

	return res
}

// CloseAll sends a final payload to every connection and closes them all.
// Used during graceful shutdown.
func (h *Hub) CloseAll(payload []byte) {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for _, c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[string]*Client)
	h.rooms = make(map[int64]map[string]*Client)
	h.presence = make(map[int64]map[string]*Client)
	h.mu.Unlock()

	for _, c := range clients {
		c.trySend(payload)
		c.closeSend()
	}

	if h.metrics != nil {
		h.metrics.RecordActiveConnections(0)
		h.metrics.RecordOnlineUsers(0)
	}
}
