package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"livechat/pkg/protocol"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		// Session tokens are verified per connection; cross-origin pages can
		// open a socket but cannot authenticate without one.
		return true
	},
}

// Server accepts WebSocket connections and relays chat traffic between them.
// All live connection state lives in the Hub; durable state goes through the
// Store.
type Server struct {
	store      Store
	hub        *Hub
	config     ServerConfig
	metrics    *Metrics
	httpServer *http.Server
	startTime  time.Time
}

// NewServer creates a new server instance
func NewServer(store Store, config ServerConfig) *Server {
	return &Server{
		store:     store,
		hub:       NewHub(),
		config:    config,
		startTime: time.Now(),
	}
}

// SetMetrics attaches metrics to the server and its hub
func (s *Server) SetMetrics(metrics *Metrics) {
	s.metrics = metrics
	s.hub.SetMetrics(metrics)
}

// Hub exposes the hub for inspection
func (s *Server) Hub() *Hub {
	return s.hub
}

// Start binds the HTTP listener and begins accepting connections. Stale
// connection records from a previous run are cleared first.
func (s *Server) Start() error {
	if err := s.store.ClearConnections(); err != nil {
		return err
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/health", s.HealthHandler)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	s.httpServer = &http.Server{
		Addr:              s.config.ListenAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("Listening on %s", s.config.ListenAddr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errorLog.Printf("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop gracefully shuts the server down: every connection receives a
// server_shutdown frame and is closed, online users are marked offline in
// the store, and live connection records are cleared.
func (s *Server) Stop() error {
	// Stop accepting first. A connection upgraded after CloseAll would miss
	// the shutdown frame and repopulate the hub.
	var shutdownErr error
	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		shutdownErr = s.httpServer.Shutdown(ctx)
	}

	s.hub.CloseAll(protocol.NewServerShutdown("Server is shutting down"))

	if err := s.store.MarkAllOffline(); err != nil {
		errorLog.Printf("Failed to mark users offline during shutdown: %v", err)
	}
	if err := s.store.ClearConnections(); err != nil {
		errorLog.Printf("Failed to clear connection records during shutdown: %v", err)
	}

	return shutdownErr
}

// HandleWebSocket upgrades an HTTP request and runs the connection lifecycle
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		errorLog.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	c := newClient(ws, s.config.MessageRateLimit, time.Duration(s.config.RateLimitWindowSeconds)*time.Second)
	s.hub.Register(c)

	debugLog.Printf("Connection %s: accepted from %s", c.ID, c.remoteAddr)

	c.trySend(protocol.NewConnectionEstablished(c.ID, time.Now()))

	go c.writePump()
	go s.readPump(c)
}

// disconnect runs the disconnect cascade for a connection. Safe to call more
// than once; the hub reports whether this call actually removed state.
func (s *Server) disconnect(c *Client) {
	res := s.hub.Deregister(c)
	if res.Registered && res.Authenticated {
		if res.WentOffline {
			if err := s.store.SetUserStatus(res.UserID, protocol.StatusOffline); err != nil {
				errorLog.Printf("Connection %s: failed to set user %d offline: %v", c.ID, res.UserID, err)
			}
		}
		if err := s.store.DeleteConnection(c.ID); err != nil {
			errorLog.Printf("Connection %s: failed to delete connection record: %v", c.ID, err)
		}
	}

	c.closeSend()
	if c.conn != nil {
		c.conn.Close()
	}

	if res.Registered {
		debugLog.Printf("Connection %s: closed", c.ID)
	}
}

// HealthHandler serves health check status
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := map[string]interface{}{
		"status":             "healthy",
		"uptime_seconds":     int64(time.Since(s.startTime).Seconds()),
		"active_connections": s.hub.ClientCount(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(health); err != nil {
		errorLog.Printf("Error encoding health JSON: %v", err)
	}
}
