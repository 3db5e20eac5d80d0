package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceSnapshotTracksMembership(t *testing.T) {
	rt := newTestRouter(t, nil)
	tracker := rt.Presence()

	s1 := registerSession(t, rt, "alice")
	s2 := registerSession(t, rt, "bob")

	require.Nil(t, rt.HandleJoin(s1.ID, "general"))
	require.Nil(t, rt.HandleJoin(s2.ID, "general"))

	snapshot := tracker.Snapshot("general")
	require.Len(t, snapshot, 2)
	assert.Equal(t, PresenceEntry{Username: "alice", Online: true}, snapshot[s1.ID])
	assert.Equal(t, PresenceEntry{Username: "bob", Online: true}, snapshot[s2.ID])

	// Presence is derived from membership, never stored: it reflects a
	// leave immediately.
	require.Nil(t, rt.HandleLeave(s2.ID, "general"))

	snapshot = tracker.Snapshot("general")
	require.Len(t, snapshot, 1)
	_, ok := snapshot[s2.ID]
	assert.False(t, ok)
}

func TestPresenceSnapshotUnknownRoom(t *testing.T) {
	rt := newTestRouter(t, nil)

	snapshot := rt.Presence().Snapshot("nowhere")
	assert.NotNil(t, snapshot)
	assert.Empty(t, snapshot)
}
