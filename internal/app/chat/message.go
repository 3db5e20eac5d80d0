/*
Package chat contains the session and room synchronization engine: room
membership, per-room message ordering, presence, and fan-out.

This file defines the Message value and text validation. A Message is
immutable once the owning room assigns its sequence number.
*/
package chat

import (
	"context"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"parley/internal/pkg/errs"
)

// Message is one accepted chat message. Seq is unique and strictly
// increasing within its room; SenderUsername is denormalized at send
// time so later renames never rewrite history.
type Message struct {
	Room           string    `json:"roomName"`
	Seq            uint64    `json:"seq"`
	SenderID       string    `json:"senderId"`
	SenderUsername string    `json:"senderUsername"`
	Text           string    `json:"text"`
	SentAt         time.Time `json:"sentAt"`
}

// MessageStore is the persistence interface the engine consumes. The
// in-memory room history is a cache in front of it; rooms are warmed
// from LoadHistoryTail on creation.
type MessageStore interface {
	// AppendMessage durably records an accepted message.
	AppendMessage(ctx context.Context, msg Message) error

	// LoadHistoryTail returns up to limit most recent messages for a
	// room in ascending seq order.
	LoadHistoryTail(ctx context.Context, room string, limit int) ([]Message, error)
}

// ValidateText trims text and checks it is 1..maxLen runes of printable
// or whitespace characters. It returns the trimmed text.
func ValidateText(text string, maxLen int) (string, *errs.CustomError) {
	trimmed := strings.TrimSpace(text)

	if trimmed == "" || utf8.RuneCountInString(trimmed) > maxLen {
		return "", errs.NewError(errs.ErrInvalidText, maxLen)
	}

	for _, r := range trimmed {
		if !unicode.IsPrint(r) && !unicode.IsSpace(r) {
			return "", errs.NewError(errs.ErrInvalidText, maxLen)
		}
	}

	return trimmed, nil
}
