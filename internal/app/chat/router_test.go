package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"parley/internal/app/user"
	"parley/internal/configs"
	"parley/internal/pkg/errs"
)

func testConfig() *configs.AppConfig {
	return &configs.AppConfig{
		Environment:       "test",
		Port:              8080,
		JWTSecret:         "test-secret",
		RoomCatalog:       []string{"general", "tech"},
		AllowDynamicRooms: true,
		HistoryLimit:      200,
		HistoryTail:       50,
		OutboxLimit:       256,
		MaxTextLen:        500,
		HandshakeTimeout:  10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		HeartbeatGrace:    2,
		SendRate:          1000,
		SendBurst:         1000,
	}
}

func newTestRouter(t *testing.T, cfg *configs.AppConfig) *Router {
	t.Helper()

	if cfg == nil {
		cfg = testConfig()
	}

	rt := NewRouter(cfg, nil)
	t.Cleanup(rt.Shutdown)
	return rt
}

func registerSession(t *testing.T, rt *Router, username string) *Session {
	t.Helper()

	sess := rt.NewSession()
	require.True(t, sess.Activate(user.Identity{ID: "user-" + username, Username: username}))
	rt.Register(sess)
	return sess
}

func TestRouterInstantiatesCatalogRooms(t *testing.T) {
	rt := newTestRouter(t, nil)

	for _, name := range []string{"general", "tech"} {
		_, ok := rt.Room(name)
		assert.True(t, ok, "catalog room %q not instantiated", name)
	}
}

func TestRouterScenarioGeneralRoom(t *testing.T) {
	rt := newTestRouter(t, nil)

	s1 := registerSession(t, rt, "alice")

	// S1 joins the empty room and is its only member.
	require.Nil(t, rt.HandleJoin(s1.ID, "general"))

	joined := eventsOfType(drainOutbox(s1), EventJoined)
	require.Len(t, joined, 1)
	payload := joined[0].Payload.(JoinedPayload)
	require.Len(t, payload.Members, 1)
	assert.Equal(t, s1.ID, payload.Members[0].SessionID)
	assert.Empty(t, payload.HistoryTail)

	// S1 sends "hello"; the sender renders from the authoritative event.
	require.Nil(t, rt.HandleSend(s1.ID, "general", "hello"))

	messages := eventsOfType(drainOutbox(s1), EventMessage)
	require.Len(t, messages, 1)
	first := messages[0].Payload.(Message)
	assert.Equal(t, uint64(1), first.Seq)
	assert.Equal(t, "hello", first.Text)

	// S2 joins: its replay carries seq 1, and S1 sees S2 come online.
	s2 := registerSession(t, rt, "bob")
	require.Nil(t, rt.HandleJoin(s2.ID, "general"))

	joined = eventsOfType(drainOutbox(s2), EventJoined)
	require.Len(t, joined, 1)
	payload = joined[0].Payload.(JoinedPayload)
	require.Len(t, payload.HistoryTail, 1)
	assert.Equal(t, uint64(1), payload.HistoryTail[0].Seq)
	require.Len(t, payload.Members, 2)

	presence := eventsOfType(drainOutbox(s1), EventPresence)
	require.Len(t, presence, 1)
	assert.True(t, presence[0].Payload.(PresencePayload).Online)

	// S2 sends "hi": both members get seq 2, never before seq 1.
	require.Nil(t, rt.HandleSend(s2.ID, "general", "hi"))

	for _, sess := range []*Session{s1, s2} {
		messages = eventsOfType(drainOutbox(sess), EventMessage)
		require.Len(t, messages, 1)
		second := messages[0].Payload.(Message)
		assert.Equal(t, uint64(2), second.Seq)
		assert.Equal(t, "hi", second.Text)
	}
}

func TestRouterJoinRejectsInvalidRoomName(t *testing.T) {
	rt := newTestRouter(t, nil)
	s1 := registerSession(t, rt, "alice")

	for _, name := range []string{"", "   ", "no spaces allowed", "UPPER CASE!", "way-too-long-room-name-that-exceeds-the-limit"} {
		customErr := rt.HandleJoin(s1.ID, name)
		require.NotNil(t, customErr, "room name %q accepted", name)
		assert.Equal(t, errs.ErrInvalidRoom, customErr.Code)
	}
}

func TestRouterJoinNormalizesRoomName(t *testing.T) {
	rt := newTestRouter(t, nil)
	s1 := registerSession(t, rt, "alice")

	require.Nil(t, rt.HandleJoin(s1.ID, "  General "))
	assert.True(t, s1.InRoom("general"))
}

func TestRouterJoinUnknownSession(t *testing.T) {
	rt := newTestRouter(t, nil)

	customErr := rt.HandleJoin("nonexistent", "general")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrNotAuthenticated, customErr.Code)
}

func TestRouterDynamicRoomsDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.AllowDynamicRooms = false

	rt := newTestRouter(t, cfg)
	s1 := registerSession(t, rt, "alice")

	require.Nil(t, rt.HandleJoin(s1.ID, "general"))

	customErr := rt.HandleJoin(s1.ID, "sidebar")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrInvalidRoom, customErr.Code)
}

func TestRouterSendToUnknownRoom(t *testing.T) {
	rt := newTestRouter(t, nil)
	s1 := registerSession(t, rt, "alice")

	customErr := rt.HandleSend(s1.ID, "nowhere", "hello")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrRoomNotFound, customErr.Code)
}

func TestRouterSendNotMember(t *testing.T) {
	rt := newTestRouter(t, nil)
	s1 := registerSession(t, rt, "alice")

	customErr := rt.HandleSend(s1.ID, "general", "hello")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrNotMember, customErr.Code)

	// The failed send mutated nothing: a member's next message is seq 1.
	require.Nil(t, rt.HandleJoin(s1.ID, "general"))
	require.Nil(t, rt.HandleSend(s1.ID, "general", "hello"))

	messages := eventsOfType(drainOutbox(s1), EventMessage)
	require.Len(t, messages, 1)
	assert.Equal(t, uint64(1), messages[0].Payload.(Message).Seq)
}

func TestRouterSendRateLimited(t *testing.T) {
	cfg := testConfig()
	cfg.SendRate = 1
	cfg.SendBurst = 1

	rt := newTestRouter(t, cfg)
	s1 := registerSession(t, rt, "alice")
	require.Nil(t, rt.HandleJoin(s1.ID, "general"))

	require.Nil(t, rt.HandleSend(s1.ID, "general", "first"))

	customErr := rt.HandleSend(s1.ID, "general", "second")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrRateLimited, customErr.Code)
}

func TestRouterLeaveSymmetricTeardown(t *testing.T) {
	rt := newTestRouter(t, nil)

	s1 := registerSession(t, rt, "alice")
	s2 := registerSession(t, rt, "bob")
	require.Nil(t, rt.HandleJoin(s1.ID, "general"))
	require.Nil(t, rt.HandleJoin(s2.ID, "general"))
	drainOutbox(s1)
	drainOutbox(s2)

	require.Nil(t, rt.HandleLeave(s2.ID, "general"))

	assert.False(t, s2.InRoom("general"))

	left := eventsOfType(drainOutbox(s2), EventLeft)
	require.Len(t, left, 1)

	presence := eventsOfType(drainOutbox(s1), EventPresence)
	require.Len(t, presence, 1)
	assert.False(t, presence[0].Payload.(PresencePayload).Online)

	// Leaving again is NotMember, reported to the requester only.
	customErr := rt.HandleLeave(s2.ID, "general")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrNotMember, customErr.Code)
}

func TestRouterDisconnectLeavesEveryRoomOnce(t *testing.T) {
	rt := newTestRouter(t, nil)

	s1 := registerSession(t, rt, "alice")
	s2 := registerSession(t, rt, "bob")

	for _, room := range []string{"general", "tech"} {
		require.Nil(t, rt.HandleJoin(s1.ID, room))
		require.Nil(t, rt.HandleJoin(s2.ID, room))
	}
	drainOutbox(s1)
	drainOutbox(s2)

	rt.HandleDisconnect(s2.ID)

	// Exactly one offline presence per shared room.
	presence := eventsOfType(drainOutbox(s1), EventPresence)
	require.Len(t, presence, 2)
	rooms := map[string]bool{}
	for _, ev := range presence {
		payload := ev.Payload.(PresencePayload)
		assert.Equal(t, s2.ID, payload.SessionID)
		assert.False(t, payload.Online)
		rooms[ev.Room] = true
	}
	assert.Len(t, rooms, 2)

	// The session id is gone from both member sets immediately.
	for _, name := range []string{"general", "tech"} {
		room, ok := rt.Room(name)
		require.True(t, ok)
		assert.False(t, room.Contains(s2.ID))
	}

	assert.Equal(t, StateClosed, s2.State())

	// A second disconnect is a no-op.
	rt.HandleDisconnect(s2.ID)
	assert.Empty(t, drainOutbox(s1))
}

func TestRouterDynamicRoomDestroyedOnEmpty(t *testing.T) {
	rt := newTestRouter(t, nil)
	s1 := registerSession(t, rt, "alice")

	require.Nil(t, rt.HandleJoin(s1.ID, "sidebar"))
	_, ok := rt.Room("sidebar")
	require.True(t, ok)

	require.Nil(t, rt.HandleLeave(s1.ID, "sidebar"))
	_, ok = rt.Room("sidebar")
	assert.False(t, ok, "empty dynamic room should be destroyed")
}

func TestRouterJoinRacingWithDynamicRoomDestroy(t *testing.T) {
	rt := newTestRouter(t, nil)

	s1 := registerSession(t, rt, "alice")
	require.Nil(t, rt.HandleJoin(s1.ID, "sidebar"))

	// Another session's join looks the room up, then stalls while the
	// last member leaves and the room is destroyed.
	stale, ok := rt.Room("sidebar")
	require.True(t, ok)

	require.Nil(t, rt.HandleLeave(s1.ID, "sidebar"))
	_, ok = rt.Room("sidebar")
	require.False(t, ok)

	// The destroyed room refuses the stale join instead of stranding the
	// session in a room the registry no longer knows.
	s2 := registerSession(t, rt, "bob")
	_, joined := stale.Join(s2)
	assert.False(t, joined)

	// The full join path retries onto a fresh room that is registered,
	// reachable, and consistent with the session's subscription set.
	require.Nil(t, rt.HandleJoin(s2.ID, "sidebar"))

	fresh, ok := rt.Room("sidebar")
	require.True(t, ok)
	assert.True(t, fresh.Contains(s2.ID))
	assert.True(t, s2.InRoom("sidebar"))

	require.Nil(t, rt.HandleSend(s2.ID, "sidebar", "made it"))

	messages := eventsOfType(drainOutbox(s2), EventMessage)
	require.Len(t, messages, 1)
	assert.Equal(t, uint64(1), messages[0].Payload.(Message).Seq)
}

func TestRouterCatalogRoomSurvivesEmpty(t *testing.T) {
	rt := newTestRouter(t, nil)
	s1 := registerSession(t, rt, "alice")

	require.Nil(t, rt.HandleJoin(s1.ID, "general"))
	require.Nil(t, rt.HandleLeave(s1.ID, "general"))

	room, ok := rt.Room("general")
	require.True(t, ok, "catalog room must stay instantiated")
	assert.Equal(t, 0, room.MemberCount())
}

func TestRouterReconnectDoesNotDoubleCountPresence(t *testing.T) {
	rt := newTestRouter(t, nil)

	old := registerSession(t, rt, "alice")
	require.Nil(t, rt.HandleJoin(old.ID, "general"))

	// A reconnect is a brand-new session; the old one's cleanup may
	// interleave with the new one's join.
	fresh := registerSession(t, rt, "alice")
	require.Nil(t, rt.HandleJoin(fresh.ID, "general"))

	rt.HandleDisconnect(old.ID)

	room, ok := rt.Room("general")
	require.True(t, ok)
	members := room.Members()
	require.Len(t, members, 1)
	assert.Equal(t, fresh.ID, members[0].SessionID)
}

func TestRouterInvariantViolationResetsOnlyThatRoom(t *testing.T) {
	rt := newTestRouter(t, nil)

	s1 := registerSession(t, rt, "alice")
	require.Nil(t, rt.HandleJoin(s1.ID, "general"))
	require.Nil(t, rt.HandleJoin(s1.ID, "tech"))
	drainOutbox(s1)

	// Corrupt the session side of the membership invariant.
	s1.LeftRoom("general")

	customErr := rt.HandleSend(s1.ID, "general", "hello")
	require.NotNil(t, customErr)
	assert.Equal(t, errs.ErrUnknown, customErr.Code)

	// The affected room was reset; the other room is untouched.
	general, ok := rt.Room("general")
	require.True(t, ok)
	assert.Equal(t, 0, general.MemberCount())

	tech, ok := rt.Room("tech")
	require.True(t, ok)
	assert.True(t, tech.Contains(s1.ID))

	require.Nil(t, rt.HandleSend(s1.ID, "tech", "still works"))
}

func TestRouterRoomSummaries(t *testing.T) {
	rt := newTestRouter(t, nil)
	s1 := registerSession(t, rt, "alice")

	require.Nil(t, rt.HandleJoin(s1.ID, "general"))
	require.Nil(t, rt.HandleJoin(s1.ID, "sidebar"))

	summaries := rt.RoomSummaries()
	require.Len(t, summaries, 3)

	byName := map[string]RoomSummary{}
	for _, s := range summaries {
		byName[s.Name] = s
	}

	assert.True(t, byName["general"].Catalog)
	assert.Equal(t, 1, byName["general"].MemberCount)
	assert.False(t, byName["sidebar"].Catalog)
	assert.True(t, byName["tech"].Catalog)
	assert.Equal(t, 0, byName["tech"].MemberCount)
}
