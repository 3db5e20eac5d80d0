/*
Package chat contains the session and room synchronization engine.

This file defines the presence tracker. Presence is derived, never
independently authoritative: a snapshot is a pure function of the
current room membership, and the join/leave deltas are the presence
events rooms emit during membership changes. The tracker is its own type
so an alternate policy (idle timeouts, aggregate status) can replace it
without touching Room or Session.
*/
package chat

// PresenceEntry is one member's derived presence state. Online means "is
// a current room member"; there is no separate away state.
type PresenceEntry struct {
	Username string `json:"username"`
	Online   bool   `json:"online"`
}

// RoomDirectory is the lookup surface the tracker derives from.
type RoomDirectory interface {
	Room(name string) (*Room, bool)
}

// Tracker derives per-room presence views from live room membership.
type Tracker struct {
	dir RoomDirectory
}

// NewTracker creates a Tracker over the given directory.
func NewTracker(dir RoomDirectory) *Tracker {
	return &Tracker{dir: dir}
}

// Snapshot returns the presence map for a room, keyed by session id. An
// unknown room yields an empty map.
func (t *Tracker) Snapshot(roomName string) map[string]PresenceEntry {
	snapshot := make(map[string]PresenceEntry)

	room, ok := t.dir.Room(roomName)
	if !ok {
		return snapshot
	}

	for _, member := range room.Members() {
		snapshot[member.SessionID] = PresenceEntry{
			Username: member.Username,
			Online:   true,
		}
	}

	return snapshot
}
