package csgoroll

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// SessionState tracks where a streaming connection is in its lifecycle.
type SessionState int32

const (
	StateConnecting SessionState = iota
	StateOpen
	StateReconnecting
	StateClosed
)

// String returns the lowercase state name for logging.
func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateReconnecting:
		return "reconnecting"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one streaming-connection instance. The feed owns exactly one
// live Session at a time; a new Session replaces the prior one on reconnect.
// The pong-pending flag implements half-open detection: it is set when a
// transport ping is written and must be cleared by a pong before the next
// heartbeat tick, otherwise the connection is forcibly terminated.
type Session struct {
	conn *websocket.Conn

	state       atomic.Int32
	pongPending atomic.Bool

	writeMu   sync.Mutex
	closeOnce sync.Once
}

// newSession wraps a freshly dialed connection. It registers the pong handler
// that clears the pong-pending flag.
func newSession(conn *websocket.Conn) *Session {
	s := &Session{conn: conn}
	s.state.Store(int32(StateConnecting))
	conn.SetPongHandler(func(string) error {
		s.pongPending.Store(false)
		return nil
	})
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	return SessionState(s.state.Load())
}

// setState transitions the session to the given state.
func (s *Session) setState(state SessionState) {
	s.state.Store(int32(state))
}

// PongPending reports whether a ping is still awaiting its pong.
func (s *Session) PongPending() bool {
	return s.pongPending.Load()
}

// Ping writes a transport-level ping control frame and marks the session as
// awaiting a pong.
func (s *Session) Ping(timeout time.Duration) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(timeout)); err != nil {
		return err
	}
	s.pongPending.Store(true)
	return nil
}

// sendJSON writes a JSON frame to the connection.
func (s *Session) sendJSON(timeout time.Duration, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.conn.SetWriteDeadline(time.Now().Add(timeout))
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// Terminate forcibly closes the underlying connection. It is idempotent, so
// a heartbeat timeout and a context cancellation cannot tear the same
// connection down twice; the blocked read unblocks with an error exactly
// once.
func (s *Session) Terminate() {
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		_ = s.conn.Close()
	})
}
