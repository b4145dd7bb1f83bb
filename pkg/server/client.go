package server

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// Time allowed to write a message to the peer
	writeWait = 10 * time.Second
	// Time allowed to read the next pong message from the peer
	pongWait = 60 * time.Second
	// Send transport-level pings with this period (must be less than pongWait)
	pingPeriod = (pongWait * 9) / 10
	// Maximum inbound frame size in bytes
	maxFrameSize = 65536
	// Outbound queue depth per connection
	sendQueueSize = 256
)

// Client holds the per-connection state. It is created at accept time and
// destroyed by the disconnect cascade. The identity and room fields are
// owned by the Hub and must only be touched while holding the hub mutex.
type Client struct {
	ID          string
	conn        *websocket.Conn
	send        chan []byte
	remoteAddr  string
	connectedAt time.Time
	limiter     *slidingWindow
	closeOnce   sync.Once

	// Guarded by Hub.mu
	userID        int64
	username      string
	avatar        string
	authenticated bool
	roomID        int64 // 0 when not in a room
}

func newClient(conn *websocket.Conn, limit int, window time.Duration) *Client {
	remoteAddr := "unknown"
	if conn != nil && conn.RemoteAddr() != nil {
		remoteAddr = conn.RemoteAddr().String()
	}
	return &Client{
		ID:          uuid.NewString(),
		conn:        conn,
		send:        make(chan []byte, sendQueueSize),
		remoteAddr:  remoteAddr,
		connectedAt: time.Now(),
		limiter:     newSlidingWindow(limit, window),
	}
}

// trySend queues a frame for delivery without blocking. Delivery is
// best-effort: a full queue means the frame is dropped for this connection
// and the fan-out continues.
func (c *Client) trySend(payload []byte) bool {
	defer func() {
		// The send channel is closed by the disconnect cascade; a concurrent
		// broadcast racing that close is treated as a failed delivery.
		recover()
	}()

	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

// closeSend closes the outbound queue exactly once, stopping the writePump
func (c *Client) closeSend() {
	c.closeOnce.Do(func() {
		close(c.send)
	})
}

// writePump drains the outbound queue onto the WebSocket connection. It also
// sends transport-level pings to keep the connection alive. One writePump
// runs per connection; it exits when the send channel is closed or a write
// fails.
func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				debugLog.Printf("Connection %s: write failed: %v", c.ID, err)
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump reads inbound frames and hands them to the dispatcher. Frames from
// one connection are processed in order, to completion, before the next is
// read. Exits on any read error and runs the disconnect cascade.
func (s *Server) readPump(c *Client) {
	defer s.disconnect(c)

	c.conn.SetReadLimit(maxFrameSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				debugLog.Printf("Connection %s: read error: %v", c.ID, err)
			}
			return
		}

		s.handleFrame(c, data)
	}
}
