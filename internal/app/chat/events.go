/*
Package chat contains the session and room synchronization engine.

This file defines the wire event envelope the router emits toward
clients and the intent frames clients send inbound. Both sides carry a
type tag plus a JSON payload.
*/
package chat

import (
	"encoding/json"
	"time"

	"parley/internal/pkg/errs"
	"parley/internal/pkg/randx"
)

// EventType tags an outbound event envelope.
type EventType string

const (
	// EventJoined confirms a join to the requesting session and carries
	// the member list plus the history tail to replay.
	EventJoined EventType = "JOINED"

	// EventLeft confirms a leave to the requesting session.
	EventLeft EventType = "LEFT"

	// EventPresence announces a member going online or offline to the
	// other members of a room.
	EventPresence EventType = "PRESENCE"

	// EventMessage carries one accepted, sequence-ordered message.
	EventMessage EventType = "MESSAGE"

	// EventError reports a recoverable request error to the offending
	// session only.
	EventError EventType = "ERROR"
)

// Event is the outbound envelope written to sessions.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Room      string    `json:"roomName,omitempty"`
	Payload   any       `json:"payload"`
	Timestamp int64     `json:"timestamp"`
}

// NewEvent builds an envelope with a fresh id and the current time.
func NewEvent(eventType EventType, room string, payload any) Event {
	return Event{
		ID:        randx.EventID(),
		Type:      eventType,
		Room:      room,
		Payload:   payload,
		Timestamp: time.Now().UnixMilli(),
	}
}

// NewErrorEvent wraps a CustomError for delivery to one session.
func NewErrorEvent(room string, customErr *errs.CustomError) Event {
	return NewEvent(EventError, room, ErrorPayload{
		Code:   customErr.Code,
		Detail: customErr.Message,
	})
}

// MemberInfo describes one current room member.
type MemberInfo struct {
	SessionID string `json:"sessionId"`
	UserID    string `json:"userId"`
	Username  string `json:"username"`
}

// JoinedPayload is the body of an EventJoined envelope.
type JoinedPayload struct {
	Members     []MemberInfo `json:"members"`
	HistoryTail []Message    `json:"historyTail"`
}

// PresencePayload is the body of an EventPresence envelope.
type PresencePayload struct {
	SessionID string `json:"sessionId"`
	Username  string `json:"username"`
	Online    bool   `json:"online"`
}

// ErrorPayload is the body of an EventError envelope.
type ErrorPayload struct {
	Code   int    `json:"code"`
	Detail string `json:"detail"`
}

// IntentType tags an inbound client frame.
type IntentType string

const (
	// IntentHello is the authentication handshake frame; it must be the
	// first frame on every connection.
	IntentHello IntentType = "HELLO"

	// IntentJoin asks to join a room.
	IntentJoin IntentType = "JOIN"

	// IntentLeave asks to leave a room.
	IntentLeave IntentType = "LEAVE"

	// IntentSend posts a message to a room.
	IntentSend IntentType = "SEND"
)

// Intent is the inbound frame envelope.
type Intent struct {
	Type    IntentType      `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// HelloPayload carries the login-issued session token.
type HelloPayload struct {
	Token string `json:"token"`
}

// JoinPayload names the room to join.
type JoinPayload struct {
	Room string `json:"roomName"`
}

// LeavePayload names the room to leave.
type LeavePayload struct {
	Room string `json:"roomName"`
}

// SendPayload carries a message for a room.
type SendPayload struct {
	Room string `json:"roomName"`
	Text string `json:"text"`
}
