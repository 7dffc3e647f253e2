package csgoroll

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/rollmaster/rollwatch/internal/domain"
	"github.com/rollmaster/rollwatch/internal/metrics"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// handshakeTimeout bounds the WebSocket dial and upgrade.
	handshakeTimeout = 15 * time.Second

	// subprotocol is the GraphQL subscription sub-protocol negotiated on the
	// connection.
	subprotocol = "graphql-transport-ws"
)

// Frame types of the graphql-transport-ws protocol.
const (
	frameConnectionInit = "connection_init"
	frameConnectionAck  = "connection_ack"
	frameSubscribe      = "subscribe"
)

// TradeHandler is called for every trade event extracted from the feed,
// in the order the transport delivered them.
type TradeHandler func(domain.TradeEvent)

// FeedOptions configures the trade feed connection lifecycle.
type FeedOptions struct {
	WsURL     string
	Cookie    string
	UserAgent string

	// HeartbeatInterval is the transport ping cadence. A pong not observed
	// before the next tick forcibly terminates the connection.
	HeartbeatInterval time.Duration
	// ReconnectDelay is the fixed wait before each reconnection attempt.
	ReconnectDelay time.Duration
	// MaxReconnectAttempts bounds consecutive connection failures before the
	// feed gives up.
	MaxReconnectAttempts int
}

// Feed owns the streaming trade subscription: connect, subscribe, heartbeat,
// staleness detection, and bounded reconnection. Extracted trade events are
// handed to a single TradeHandler.
type Feed struct {
	opts    FeedOptions
	handler TradeHandler
	logger  *slog.Logger

	// pingTimeout bounds each heartbeat ping write. Shortened in tests to
	// force the ping-failure path.
	pingTimeout time.Duration

	// session is the one active connection, owned by the Run goroutine.
	session *Session
}

// NewFeed creates a Feed. The handler must not be nil; it is invoked from the
// feed's read loop, so a slow handler backpressures frame processing.
func NewFeed(opts FeedOptions, handler TradeHandler, logger *slog.Logger) *Feed {
	return &Feed{
		opts:        opts,
		handler:     handler,
		logger:      logger.With(slog.String("component", "csgoroll_feed")),
		pingTimeout: writeWait,
	}
}

// Run connects to the trade feed and blocks, serving frames until the context
// is cancelled or the reconnect bound is exhausted. It returns
// domain.ErrReconnectExhausted after MaxReconnectAttempts consecutive
// failures; the caller decides whether that halts the process (it should
// not, the liveness surface stays up).
func (f *Feed) Run(ctx context.Context) error {
	failures := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		sess, err := f.connect(ctx)
		if err != nil {
			failures++
			f.logger.WarnContext(ctx, "feed connect failed",
				slog.String("error", err.Error()),
				slog.Int("consecutive_failures", failures),
			)
			if failures >= f.opts.MaxReconnectAttempts {
				return f.exhausted(ctx, failures)
			}
			metrics.FeedReconnectsTotal.Inc()
			if err := sleepCtx(ctx, f.opts.ReconnectDelay); err != nil {
				return err
			}
			continue
		}

		// A successful open resets the failure lineage.
		failures = 0
		f.session = sess
		metrics.FeedUp.Set(1)
		f.logger.InfoContext(ctx, "trade feed open")

		err = f.serve(ctx, sess)
		sess.Terminate()
		metrics.FeedUp.Set(0)

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		failures++
		f.logger.WarnContext(ctx, "trade feed connection lost",
			slog.String("error", err.Error()),
			slog.Int("consecutive_failures", failures),
		)
		if failures >= f.opts.MaxReconnectAttempts {
			return f.exhausted(ctx, failures)
		}
		metrics.FeedReconnectsTotal.Inc()
		if err := sleepCtx(ctx, f.opts.ReconnectDelay); err != nil {
			return err
		}
	}
}

// Session returns the currently active session, for observability only.
func (f *Feed) Session() *Session {
	return f.session
}

// exhausted logs the permanently-down state so it is distinguishable from
// transient connection errors.
func (f *Feed) exhausted(ctx context.Context, failures int) error {
	f.logger.ErrorContext(ctx, "trade feed permanently down, reconnect attempts exhausted",
		slog.Int("attempts", failures),
	)
	return domain.ErrReconnectExhausted
}

// connect dials the WebSocket, performs the graphql-transport-ws opening
// sequence (connection_init, then both trade subscriptions), and returns the
// open session.
func (f *Feed) connect(ctx context.Context) (*Session, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: handshakeTimeout,
		Subprotocols:     []string{subprotocol},
	}

	header := http.Header{}
	header.Set("Cookie", f.opts.Cookie)
	header.Set("User-Agent", f.opts.UserAgent)

	conn, _, err := dialer.DialContext(ctx, f.opts.WsURL, header)
	if err != nil {
		return nil, fmt.Errorf("csgoroll/ws: dial: %w", err)
	}

	sess := newSession(conn)

	if err := sess.sendJSON(writeWait, outFrame{Type: frameConnectionInit}); err != nil {
		sess.Terminate()
		return nil, fmt.Errorf("csgoroll/ws: connection_init: %w", err)
	}

	// Two independent subscriptions over the same connection: one for trades
	// being created, one for trades being updated.
	for _, query := range []string{createTradeSubscription, updateTradeSubscription} {
		frame := outFrame{
			ID:      uuid.NewString(),
			Type:    frameSubscribe,
			Payload: subscribePayload{Query: query},
		}
		if err := sess.sendJSON(writeWait, frame); err != nil {
			sess.Terminate()
			return nil, fmt.Errorf("csgoroll/ws: subscribe: %w", err)
		}
	}

	sess.setState(StateOpen)
	return sess, nil
}

// serve reads frames from the session until the connection drops or the
// context is cancelled. The heartbeat runs alongside the read loop and tears
// the connection down when a pong goes missing, which surfaces here as a read
// error.
func (f *Feed) serve(ctx context.Context, sess *Session) error {
	done := make(chan struct{})
	defer close(done)

	go f.heartbeatLoop(sess, done)
	go func() {
		select {
		case <-ctx.Done():
			sess.Terminate()
		case <-done:
		}
	}()

	for {
		_, data, err := sess.conn.ReadMessage()
		if err != nil {
			return err
		}
		f.handleFrame(ctx, data)
	}
}

// heartbeatLoop pings the peer on a fixed interval. A pong still pending from
// the previous tick means the connection is half-open; the transport itself
// would wait indefinitely, so the session is forcibly terminated instead.
func (f *Feed) heartbeatLoop(sess *Session, done <-chan struct{}) {
	ticker := time.NewTicker(f.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if sess.State() != StateOpen {
				return
			}
			if sess.PongPending() {
				metrics.HeartbeatTimeoutsTotal.Inc()
				f.logger.Warn("heartbeat timeout, terminating connection")
				sess.Terminate()
				return
			}
			if err := sess.Ping(f.pingTimeout); err != nil {
				// A stalled write can leave the read side blocked forever,
				// so a failed ping is a transport error like any other:
				// terminate so the read loop unblocks and reconnects.
				f.logger.Warn("heartbeat ping failed, terminating connection",
					slog.String("error", err.Error()),
				)
				sess.Terminate()
				return
			}
		}
	}
}

// outFrame is a client-to-server graphql-transport-ws frame.
type outFrame struct {
	ID      string `json:"id,omitempty"`
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// subscribePayload carries the subscription document.
type subscribePayload struct {
	Query string `json:"query"`
}

// inFrame is a server-to-client frame envelope.
type inFrame struct {
	ID      string          `json:"id,omitempty"`
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// tradeEnvelope wraps the trade inside either subscription's data path.
type tradeEnvelope struct {
	Trade *domain.TradeEvent `json:"trade"`
}

// handleFrame routes one inbound frame. The connection acknowledgement is a
// recognized no-op; data frames carry a trade under either subscription's
// path. Malformed frames and frames without trade data are logged and
// dropped; a bad frame must never take the feed down.
func (f *Feed) handleFrame(ctx context.Context, data []byte) {
	var frame inFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		metrics.FramesDroppedTotal.Inc()
		f.logger.WarnContext(ctx, "dropping malformed feed frame",
			slog.String("error", err.Error()),
			slog.Int("payload_len", len(data)),
		)
		return
	}

	if frame.Type == frameConnectionAck {
		f.logger.DebugContext(ctx, "connection acknowledged")
		return
	}

	if len(frame.Payload) == 0 {
		return
	}

	var payload struct {
		Data struct {
			CreateTrade *tradeEnvelope `json:"createTrade"`
			UpdateTrade *tradeEnvelope `json:"updateTrade"`
		} `json:"data"`
	}
	if err := json.Unmarshal(frame.Payload, &payload); err != nil {
		metrics.FramesDroppedTotal.Inc()
		f.logger.WarnContext(ctx, "dropping malformed data frame",
			slog.String("error", err.Error()),
			slog.String("frame_id", frame.ID),
		)
		return
	}

	var trade *domain.TradeEvent
	switch {
	case payload.Data.CreateTrade != nil && payload.Data.CreateTrade.Trade != nil:
		trade = payload.Data.CreateTrade.Trade
	case payload.Data.UpdateTrade != nil && payload.Data.UpdateTrade.Trade != nil:
		trade = payload.Data.UpdateTrade.Trade
	default:
		// Not a trade frame (e.g. subscription keep-alives); nothing to do.
		return
	}

	metrics.TradesReceivedTotal.Inc()
	f.handler(*trade)
}

// sleepCtx waits for d or until the context is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
