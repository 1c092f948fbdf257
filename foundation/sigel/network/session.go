package network

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// SessionState names where a session sits in its lifecycle.
type SessionState string

// The states a session moves through. Handshaking sessions are not yet
// registered with the node; Relaying is the steady state.
const (
	StateDisconnected SessionState = "disconnected"
	StateConnecting   SessionState = "connecting"
	StateHandshaking  SessionState = "handshaking"
	StateSynced       SessionState = "synced"
	StateRelaying     SessionState = "relaying"
)

// Session represents one live websocket connection to a peer.
type Session struct {
	host      string
	conn      *websocket.Conn
	initiated bool

	writeMu      sync.Mutex
	writeTimeout time.Duration

	mu      sync.Mutex
	state   SessionState
	height  uint64
	pending map[string]chan Envelope
}

func newSession(host string, conn *websocket.Conn, initiated bool, writeTimeout time.Duration) *Session {
	return &Session{
		host:         host,
		conn:         conn,
		initiated:    initiated,
		writeTimeout: writeTimeout,
		state:        StateHandshaking,
		pending:      make(map[string]chan Envelope),
	}
}

// Host returns the peer's public host.
func (s *Session) Host() string {
	return s.host
}

// Initiated reports whether this side dialed the connection.
func (s *Session) Initiated() bool {
	return s.initiated
}

// State returns the session's current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// PeerHeight returns the chain height the peer last reported.
func (s *Session) PeerHeight() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.height
}

func (s *Session) setState(state SessionState) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.state = state
}

func (s *Session) setPeerHeight(height uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.height = height
}

// send writes one envelope to the wire. Writes are serialized so concurrent
// relays and responses never interleave frames.
func (s *Session) send(env Envelope) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.SetWriteDeadline(time.Now().Add(s.writeTimeout)); err != nil {
		return err
	}
	return s.conn.WriteJSON(env)
}

// request sends an envelope and blocks until the matching response arrives
// on the read loop or the context expires.
func (s *Session) request(ctx context.Context, env Envelope) (Envelope, error) {
	ch := make(chan Envelope, 1)

	s.mu.Lock()
	s.pending[env.ID] = ch
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		delete(s.pending, env.ID)
		s.mu.Unlock()
	}()

	if err := s.send(env); err != nil {
		return Envelope{}, err
	}

	select {
	case resp := <-ch:
		return resp, nil
	case <-ctx.Done():
		return Envelope{}, fmt.Errorf("waiting for %s response from %s: %w", env.Type, s.host, ctx.Err())
	}
}

// resolve routes a response envelope to the request waiting on it. It
// reports whether anyone was waiting. The pending entry is claimed before
// the send and the send never blocks, so a peer repeating a correlation id
// cannot stall the read loop.
func (s *Session) resolve(env Envelope) bool {
	s.mu.Lock()
	ch, exists := s.pending[env.ID]
	if exists {
		delete(s.pending, env.ID)
	}
	s.mu.Unlock()

	if !exists {
		return false
	}

	select {
	case ch <- env:
	default:
	}
	return true
}

// close tears the session down. Safe to call more than once.
func (s *Session) close() {
	s.setState(StateDisconnected)
	s.conn.Close()
}
