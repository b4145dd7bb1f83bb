package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the server
type Metrics struct {
	// Connection metrics
	activeConnections prometheus.Gauge
	connectionsTotal  prometheus.Counter
	disconnectsTotal  prometheus.Counter
	onlineUsers       prometheus.Gauge

	// Frame metrics
	framesReceived    *prometheus.CounterVec // by frame type
	errorsSent        prometheus.Counter
	rateLimited       prometheus.Counter
	messagesBroadcast prometheus.Counter

	// Fan-out metrics
	broadcastFanout   *prometheus.HistogramVec
	deliveriesDropped prometheus.Counter
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		activeConnections: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "livechat_active_connections",
				Help: "Current number of open WebSocket connections",
			},
		),
		connectionsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "livechat_connections_total",
				Help: "Total number of accepted connections",
			},
		),
		disconnectsTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "livechat_disconnects_total",
				Help: "Total number of closed connections",
			},
		),
		onlineUsers: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "livechat_online_users",
				Help: "Current number of users with at least one connection",
			},
		),
		framesReceived: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "livechat_frames_received_total",
				Help: "Total number of frames received from clients by type",
			},
			[]string{"type"},
		),
		errorsSent: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "livechat_errors_sent_total",
				Help: "Total number of error frames sent to clients",
			},
		),
		rateLimited: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "livechat_rate_limited_total",
				Help: "Total number of frames rejected by the rate limiter",
			},
		),
		messagesBroadcast: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "livechat_messages_broadcast_total",
				Help: "Total number of chat messages broadcast to rooms",
			},
		),
		broadcastFanout: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "livechat_broadcast_fanout",
				Help:    "Number of connections that received each broadcast",
				Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
			},
			[]string{"scope"}, // "room" or "global"
		),
		deliveriesDropped: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "livechat_deliveries_dropped_total",
				Help: "Total number of broadcast deliveries skipped because a connection's queue was full",
			},
		),
	}
}

// RecordActiveConnections updates the open connection count
func (m *Metrics) RecordActiveConnections(count int) {
	m.activeConnections.Set(float64(count))
}

// RecordConnectionOpened increments the accepted connection counter
func (m *Metrics) RecordConnectionOpened() {
	m.connectionsTotal.Inc()
}

// RecordConnectionClosed increments the closed connection counter
func (m *Metrics) RecordConnectionClosed() {
	m.disconnectsTotal.Inc()
}

// RecordOnlineUsers updates the online user count
func (m *Metrics) RecordOnlineUsers(count int) {
	m.onlineUsers.Set(float64(count))
}

// RecordFrameReceived increments the received frame counter for a type
func (m *Metrics) RecordFrameReceived(frameType string) {
	m.framesReceived.WithLabelValues(frameType).Inc()
}

// RecordErrorSent increments the error frame counter
func (m *Metrics) RecordErrorSent() {
	m.errorsSent.Inc()
}

// RecordRateLimited increments the rate limit rejection counter
func (m *Metrics) RecordRateLimited() {
	m.rateLimited.Inc()
}

// RecordMessageBroadcast increments the broadcast message counter
func (m *Metrics) RecordMessageBroadcast() {
	m.messagesBroadcast.Inc()
}

// RecordBroadcastFanout records how many connections received a broadcast
func (m *Metrics) RecordBroadcastFanout(scope string, recipientCount int) {
	m.broadcastFanout.WithLabelValues(scope).Observe(float64(recipientCount))
}

// RecordDeliveryDropped increments the skipped delivery counter
func (m *Metrics) RecordDeliveryDropped() {
	m.deliveriesDropped.Inc()
}
