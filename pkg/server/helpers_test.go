package server

import (
	"encoding/json"
	"io"
	"log"
	"testing"
	"time"
)

// initTestLoggers discards log output to keep test output clean
func initTestLoggers(t *testing.T) {
	t.Helper()
	errorLog = log.New(io.Discard, "ERROR: ", log.LstdFlags)
	debugLog = log.New(io.Discard, "DEBUG: ", log.LstdFlags)
}

// testServer creates a server backed by a mock store. Metrics stay nil to
// avoid Prometheus registration conflicts between tests.
func testServer(t *testing.T) (*Server, *mockStore) {
	t.Helper()
	initTestLoggers(t)
	store := newMockStore()
	return NewServer(store, DefaultConfig()), store
}

// testClient registers a connection without a network transport; events queue
// up in the send channel for inspection.
func testClient(srv *Server) *Client {
	c := newClient(nil, srv.config.MessageRateLimit, time.Duration(srv.config.RateLimitWindowSeconds)*time.Second)
	srv.hub.Register(c)
	return c
}

// sendFrame feeds one raw frame through the dispatcher
func sendFrame(s *Server, c *Client, frame string) {
	s.handleFrame(c, []byte(frame))
}

// drainEvents empties a client's send queue and returns the decoded events
func drainEvents(t *testing.T, c *Client) []map[string]interface{} {
	t.Helper()
	var events []map[string]interface{}
	for {
		select {
		case payload, ok := <-c.send:
			if !ok {
				return events
			}
			var event map[string]interface{}
			if err := json.Unmarshal(payload, &event); err != nil {
				t.Fatalf("failed to decode event %q: %v", payload, err)
			}
			events = append(events, event)
		default:
			return events
		}
	}
}

// eventTypes maps drained events to their type discriminators
func eventTypes(events []map[string]interface{}) []string {
	types := make([]string, len(events))
	for i, event := range events {
		types[i], _ = event["type"].(string)
	}
	return types
}

// lastEventOfType returns the last drained event with the given type
func lastEventOfType(events []map[string]interface{}, eventType string) map[string]interface{} {
	for i := len(events) - 1; i >= 0; i-- {
		if events[i]["type"] == eventType {
			return events[i]
		}
	}
	return nil
}

// authenticate runs a connection through the authenticate handler and drops
// the resulting events
func authenticate(t *testing.T, s *Server, c *Client, userID int64) {
	t.Helper()
	sendFrame(s, c, `{"type":"authenticate","user_id":`+jsonInt(userID)+`,"session_token":"token"}`)
	events := drainEvents(t, c)
	if lastEventOfType(events, "authenticated") == nil {
		t.Fatalf("expected authenticated event, got %v", eventTypes(events))
	}
}

// joinRoom runs a connection through the join_room handler and drops the
// resulting events
func joinRoom(t *testing.T, s *Server, c *Client, roomID int64) {
	t.Helper()
	sendFrame(s, c, `{"type":"join_room","room_id":`+jsonInt(roomID)+`}`)
	events := drainEvents(t, c)
	if lastEventOfType(events, "room_joined") == nil {
		t.Fatalf("expected room_joined event, got %v", eventTypes(events))
	}
}

func jsonInt(v int64) string {
	data, _ := json.Marshal(v)
	return string(data)
}
