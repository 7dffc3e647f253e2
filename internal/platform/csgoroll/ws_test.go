package csgoroll

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rollmaster/rollwatch/internal/domain"
)

var testUpgrader = websocket.Upgrader{
	Subprotocols: []string{subprotocol},
	CheckOrigin:  func(*http.Request) bool { return true },
}

// wsURLOf converts an httptest server URL to its ws:// form.
func wsURLOf(srv *httptest.Server) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func feedOptions(wsURL string) FeedOptions {
	return FeedOptions{
		WsURL:                wsURL,
		Cookie:               "session=abc",
		UserAgent:            "test-agent",
		HeartbeatInterval:    time.Minute, // inert unless a test shortens it
		ReconnectDelay:       10 * time.Millisecond,
		MaxReconnectAttempts: 5,
	}
}

// readOpeningSequence consumes and checks connection_init plus the two
// subscribe frames the client must send on every fresh connection.
func readOpeningSequence(t *testing.T, conn *websocket.Conn) {
	t.Helper()

	var init inFrame
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &init))
	require.Equal(t, frameConnectionInit, init.Type)

	ids := map[string]bool{}
	queries := ""
	for i := 0; i < 2; i++ {
		var sub struct {
			ID      string `json:"id"`
			Type    string `json:"type"`
			Payload struct {
				Query string `json:"query"`
			} `json:"payload"`
		}
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		require.NoError(t, json.Unmarshal(data, &sub))
		require.Equal(t, frameSubscribe, sub.Type)
		require.NotEmpty(t, sub.ID)
		ids[sub.ID] = true
		queries += sub.Payload.Query
	}
	require.Len(t, ids, 2, "subscription ids must be distinct")
	require.Contains(t, queries, "OnCreateTrade")
	require.Contains(t, queries, "OnUpdateTrade")
}

func tradeFrame(path, tradeID, depositorID string) string {
	return `{"id":"sub-1","type":"next","payload":{"data":{"` + path + `":{"trade":{` +
		`"id":"` + tradeID + `","status":"COMPLETED",` +
		`"depositor":{"id":"` + depositorID + `"},"withdrawer":{"id":"W1"},` +
		`"tradeItems":[{"marketName":"AK-47","value":100,"markupPercent":5,` +
		`"stickers":[{"wear":0,"value":10,"name":"S1"}]}]}}}}}`
}

func TestFeedHandshakeAndTradeDelivery(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "session=abc", r.Header.Get("Cookie"))

		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		readOpeningSequence(t, conn)

		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"connection_ack"}`)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tradeFrame("createTrade", "t-1", "U1"))))
		// Malformed frames are dropped, not fatal.
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{not json`)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"type":"next","payload":{"data":{}}}`)))
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tradeFrame("updateTrade", "t-2", "U1"))))

		// Hold the connection open until the client goes away.
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	trades := make(chan domain.TradeEvent, 8)
	feed := NewFeed(feedOptions(wsURLOf(srv)), func(ev domain.TradeEvent) { trades <- ev }, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	runErr := make(chan error, 1)
	go func() { runErr <- feed.Run(ctx) }()

	first := <-trades
	assert.Equal(t, "t-1", first.ID)
	assert.Equal(t, domain.StatusCompleted, first.Status)
	require.Len(t, first.TradeItems, 1)
	assert.Equal(t, "AK-47", first.TradeItems[0].MarketName)

	second := <-trades
	assert.Equal(t, "t-2", second.ID, "trades must arrive in transport order")

	cancel()
	select {
	case err := <-runErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not stop on context cancellation")
	}
}

func TestFeedReconnectsAfterConnectionLoss(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)

		readOpeningSequence(t, conn)
		require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tradeFrame("createTrade", "t-"+string(rune('0'+n)), "U1"))))

		if n == 1 {
			conn.Close() // first connection dies; the feed must come back
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	trades := make(chan domain.TradeEvent, 8)
	feed := NewFeed(feedOptions(wsURLOf(srv)), func(ev domain.TradeEvent) { trades <- ev }, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	<-trades // from the first connection
	select {
	case <-trades: // from the second connection, after resubscribing
	case <-time.After(2 * time.Second):
		t.Fatal("feed did not resubscribe after reconnect")
	}
	assert.GreaterOrEqual(t, dials.Load(), int32(2))
}

func TestFeedStopsAfterReconnectBound(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		http.Error(w, "no", http.StatusForbidden) // never upgrades
	}))
	defer srv.Close()

	opts := feedOptions(wsURLOf(srv))
	feed := NewFeed(opts, func(domain.TradeEvent) {}, testLogger())

	err := feed.Run(context.Background())
	assert.ErrorIs(t, err, domain.ErrReconnectExhausted)
	assert.Equal(t, int32(opts.MaxReconnectAttempts), dials.Load(), "no attempt beyond the bound may be scheduled")
}

func TestFeedHeartbeatTimeoutForcesSingleReconnect(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := dials.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		// The first connection swallows pings so the client never sees a
		// pong; replacement connections answer them normally.
		if n == 1 {
			conn.SetPingHandler(func(string) error { return nil })
		}

		readOpeningSequence(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	opts := feedOptions(wsURLOf(srv))
	opts.HeartbeatInterval = 30 * time.Millisecond
	feed := NewFeed(opts, func(domain.TradeEvent) {}, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	// One ping goes unanswered, so the first connection lives for roughly two
	// heartbeat intervals before the forced teardown dials again.
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if dials.Load() == 2 {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	require.Equal(t, int32(2), dials.Load(), "missed pong must trigger a reconnect")

	// The healthy replacement connection must stay up: exactly one
	// reconnection sequence per timeout, never a teardown cascade.
	time.Sleep(5 * opts.HeartbeatInterval)
	assert.Equal(t, int32(2), dials.Load(), "healthy connection must not be torn down again")
}

func TestFeedPingWriteFailureForcesReconnect(t *testing.T) {
	var dials atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		dials.Add(1)
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()

		readOpeningSequence(t, conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	opts := feedOptions(wsURLOf(srv))
	opts.HeartbeatInterval = 20 * time.Millisecond
	feed := NewFeed(opts, func(domain.TradeEvent) {}, testLogger())
	// An expired write deadline fails every ping write while leaving the read
	// side of the connection intact, like a stalled write on a half-open
	// link. The failed ping must still tear the connection down.
	feed.pingTimeout = -time.Second

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = feed.Run(ctx) }()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if dials.Load() >= 2 {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected a reconnect after a failed ping write, got %d dial(s)", dials.Load())
}

func TestSessionStateTransitions(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := testUpgrader.Upgrade(w, r, nil)
		require.NoError(t, err)
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	dialer := websocket.Dialer{Subprotocols: []string{subprotocol}}
	conn, _, err := dialer.Dial(wsURLOf(srv), nil)
	require.NoError(t, err)

	sess := newSession(conn)
	assert.Equal(t, StateConnecting, sess.State())
	assert.Equal(t, "connecting", sess.State().String())

	sess.setState(StateOpen)
	assert.Equal(t, StateOpen, sess.State())
	assert.False(t, sess.PongPending())

	require.NoError(t, sess.Ping(time.Second))
	assert.True(t, sess.PongPending(), "ping must mark the session as awaiting a pong")

	sess.Terminate()
	sess.Terminate() // idempotent
	assert.Equal(t, StateClosed, sess.State())
}
