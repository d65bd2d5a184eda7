package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Client session metrics
	ConnectionState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roomchat_client_connection_state",
			Help: "1 for the state the session's channel is currently in, 0 otherwise",
		},
		[]string{"session", "state"},
	)

	ReconnectAttempts = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_client_reconnect_attempts_total",
			Help: "Total reconnect attempts scheduled",
		},
	)

	ConnectFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_client_connect_failures_total",
			Help: "Total sessions that exhausted their reconnect budget",
		},
	)

	FramesSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_client_frames_sent_total",
			Help: "Total frames written to the channel",
		},
		[]string{"type"},
	)

	FramesReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_client_frames_received_total",
			Help: "Total frames decoded from the channel",
		},
		[]string{"type"},
	)

	FramesDropped = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_client_frames_dropped_total",
			Help: "Total inbound frames discarded",
		},
		[]string{"reason"}, // "undecodable" or "unknown_type"
	)

	QueueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "roomchat_client_outbound_queue_depth",
			Help: "Envelopes waiting for the channel to open",
		},
		[]string{"session"},
	)

	// Development server metrics
	ServerConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "roomchat_server_connections",
			Help: "Currently connected WebSocket clients",
		},
	)

	ServerMessagesRelayed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "roomchat_server_messages_relayed_total",
			Help: "Total chat messages stored and broadcast",
		},
	)

	ServerHTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roomchat_server_http_requests_total",
			Help: "Total REST requests",
		},
		[]string{"method", "route", "status"},
	)
)
