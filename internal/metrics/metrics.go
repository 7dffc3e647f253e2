// Package metrics exposes Prometheus instrumentation for the feed and the
// outbound dispatcher, served on the liveness HTTP server under /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FeedUp is 1 while the trade feed connection is open.
	FeedUp = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rollwatch_feed_up",
			Help: "Whether the trade feed WebSocket is currently connected.",
		},
	)

	FeedReconnectsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rollwatch_feed_reconnects_total",
			Help: "Total number of feed reconnection attempts.",
		},
	)

	HeartbeatTimeoutsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rollwatch_feed_heartbeat_timeouts_total",
			Help: "Connections torn down because a pong was not observed in time.",
		},
	)

	TradesReceivedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rollwatch_trades_received_total",
			Help: "Trade events extracted from feed frames.",
		},
	)

	FramesDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rollwatch_frames_dropped_total",
			Help: "Feed frames dropped as malformed or without trade data.",
		},
	)

	QueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "rollwatch_outbound_queue_depth",
			Help: "Notification jobs currently waiting in the outbound queue.",
		},
	)

	// NotificationsTotal counts drained jobs by direction and outcome
	// ("delivered" or "dropped").
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "rollwatch_notifications_total",
			Help: "Notification jobs drained from the outbound queue.",
		},
		[]string{"direction", "outcome"},
	)

	ThrottleRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rollwatch_throttle_retries_total",
			Help: "Delivery attempts repeated after a 429 response.",
		},
	)
)
