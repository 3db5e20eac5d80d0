/*
Package randx generates the opaque identifiers the server hands out and
validates externally supplied names.
*/
package randx

import (
	"strings"

	"github.com/google/uuid"
)

const (
	// MaxRoomNameLength bounds the length of client-supplied room names.
	MaxRoomNameLength = 32

	// roomNameChars is the character set allowed in room names.
	roomNameChars = "abcdefghijklmnopqrstuvwxyz0123456789-_"
)

// SessionID returns a new opaque session identifier.
func SessionID() string {
	return uuid.New().String()
}

// UserID returns a new opaque user identifier, assigned once at login.
func UserID() string {
	return uuid.New().String()
}

// EventID returns a unique identifier for an outbound event envelope.
func EventID() string {
	return uuid.New().String()
}

// NormalizeRoomName lowercases and trims a client-supplied room name.
func NormalizeRoomName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// IsValidRoomName reports whether name is non-empty, within the length
// bound, and restricted to the allowed character set. Callers should
// normalize first.
func IsValidRoomName(name string) bool {
	if name == "" || len(name) > MaxRoomNameLength {
		return false
	}

	for _, char := range name {
		if !strings.ContainsRune(roomNameChars, char) {
			return false
		}
	}

	return true
}
