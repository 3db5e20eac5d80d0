/*
Package chat contains the session and room synchronization engine.

This file defines the Session struct, the server-side state for one
authenticated connection: its identity, its subscription set, and the
outbound delivery queue with its overflow policy.
*/
package chat

import (
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"parley/internal/app/user"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/randx"
)

// SessionState models the session lifecycle. Transitions only move
// forward: Connecting -> Active -> Draining -> Closed.
type SessionState int32

const (
	// StateConnecting covers the window between transport accept and a
	// successful authentication handshake.
	StateConnecting SessionState = iota

	// StateActive means the handshake succeeded and intents are accepted.
	StateActive

	// StateDraining means the session is on its way out (outbox overflow
	// or graceful shutdown); no new events are enqueued.
	StateDraining

	// StateClosed is terminal.
	StateClosed
)

// String returns the state name for logging.
func (s SessionState) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateDraining:
		return "draining"
	case StateClosed:
		return "closed"
	}
	return "unknown"
}

// Session represents one authenticated client connection. The router is
// the only writer of its subscription set; the transport write pump is
// the only reader of its outbox.
type Session struct {
	// ID is the opaque session identifier, distinct from the user id. A
	// reconnect always produces a new Session with a new ID.
	ID string

	mu          sync.Mutex
	user        user.Identity
	state       SessionState
	joinedRooms map[string]struct{}

	// outbox queues events awaiting delivery. Enqueue never blocks; a
	// full outbox closes the session instead of stalling the room.
	outbox chan Event

	// done is closed exactly once when the session reaches StateClosed.
	done chan struct{}

	sendLimiter *rate.Limiter

	logger zerolog.Logger
}

// NewSession creates a Session in StateConnecting with the given outbox
// bound and per-session message rate.
func NewSession(outboxLimit int, sendRate float64, sendBurst int) *Session {
	id := randx.SessionID()

	return &Session{
		ID:          id,
		state:       StateConnecting,
		joinedRooms: make(map[string]struct{}),
		outbox:      make(chan Event, outboxLimit),
		done:        make(chan struct{}),
		sendLimiter: rate.NewLimiter(rate.Limit(sendRate), sendBurst),
		logger:      logx.Logger().With().Str("session_id", id).Logger(),
	}
}

// Activate transitions Connecting -> Active and binds the identity
// assigned during the handshake. It reports false if the session already
// left the Connecting state.
func (s *Session) Activate(identity user.Identity) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StateConnecting {
		return false
	}

	s.user = identity
	s.state = StateActive
	s.logger = s.logger.With().Str("user_id", identity.ID).Logger()

	return true
}

// User returns the identity bound at handshake time.
func (s *Session) User() user.Identity {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.user
}

// State returns the current lifecycle state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.state
}

// Send enqueues an event for delivery without blocking. On overflow the
// session transitions to Draining and is closed; the slow client is
// disconnected rather than stalling its rooms.
func (s *Session) Send(ev Event) bool {
	s.mu.Lock()
	if s.state == StateClosed || s.state == StateDraining {
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()

	select {
	case s.outbox <- ev:
		return true
	default:
		s.logger.Warn().
			Int("outbox_len", len(s.outbox)).
			Str("event_type", string(ev.Type)).
			Msg("Session outbox full. Draining and closing slow session.")

		s.BeginDrain()
		s.Close("outbox overflow")
		return false
	}
}

// BeginDrain transitions an Active session to Draining. Used for outbox
// overflow and graceful shutdown. No-op in any other state.
func (s *Session) BeginDrain() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateActive || s.state == StateConnecting {
		s.state = StateDraining
	}
}

// Close marks the session Closed and signals Done. Idempotent; there is
// no transition out of Closed.
func (s *Session) Close(reason string) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return
	}
	s.state = StateClosed
	s.mu.Unlock()

	s.logger.Info().Str("reason", reason).Msg("Session closed.")
	close(s.done)
}

// Outbox exposes the delivery queue to the transport write pump.
func (s *Session) Outbox() <-chan Event {
	return s.outbox
}

// Done is closed when the session is closed.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// AllowSend consumes one token from the session's message rate limiter.
func (s *Session) AllowSend() bool {
	return s.sendLimiter.Allow()
}

// JoinedRoom records membership from the session's perspective. The
// router keeps this set consistent with the rooms' member maps.
func (s *Session) JoinedRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.joinedRooms[room] = struct{}{}
}

// LeftRoom removes a room from the subscription set.
func (s *Session) LeftRoom(room string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.joinedRooms, room)
}

// InRoom reports whether the session considers itself a member of room.
func (s *Session) InRoom(room string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, ok := s.joinedRooms[room]
	return ok
}

// JoinedRooms returns a snapshot of the subscription set.
func (s *Session) JoinedRooms() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	rooms := make([]string, 0, len(s.joinedRooms))
	for room := range s.joinedRooms {
		rooms = append(rooms, room)
	}
	return rooms
}
