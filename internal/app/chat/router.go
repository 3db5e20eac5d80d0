/*
Package chat contains the session and room synchronization engine.

This file defines the Router, the single authority that maps client
intents and session lifecycle events onto Room and Session state and
resolves fan-out. The router owns the room registry and the live session
set; per-room serialization stays inside each Room so unrelated rooms
never contend.
*/
package chat

import (
	"sort"
	"sync"

	"github.com/rs/zerolog"

	"parley/internal/configs"
	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
	"parley/internal/pkg/randx"
)

// Router applies client intents to rooms and sessions. Client-caused
// errors are returned to the caller for delivery to the offending
// session only; they never mutate shared state.
type Router struct {
	cfg   *configs.AppConfig
	store MessageStore

	// mu guards the registries. Held only for map lookups and
	// create/destroy; never across room operations or store calls.
	mu       sync.RWMutex
	rooms    map[string]*Room
	sessions map[string]*Session
	catalog  map[string]struct{}

	presence *Tracker

	logger zerolog.Logger
}

// RoomSummary is the catalog view of one room.
type RoomSummary struct {
	Name        string `json:"name"`
	MemberCount int    `json:"memberCount"`
	Catalog     bool   `json:"catalog"`
}

// NewRouter builds a Router with the catalog rooms permanently
// instantiated. Dynamic rooms come and go with their membership.
func NewRouter(cfg *configs.AppConfig, store MessageStore) *Router {
	rt := &Router{
		cfg:      cfg,
		store:    store,
		rooms:    make(map[string]*Room),
		sessions: make(map[string]*Session),
		catalog:  make(map[string]struct{}),
		logger:   logx.Logger().With().Str("component", "Router").Logger(),
	}

	rt.presence = NewTracker(rt)

	for _, name := range cfg.RoomCatalog {
		normalized := randx.NormalizeRoomName(name)
		if !randx.IsValidRoomName(normalized) {
			rt.logger.Warn().Str("room", name).Msg("Skipping invalid catalog room name.")
			continue
		}
		rt.catalog[normalized] = struct{}{}
		rt.rooms[normalized] = rt.newRoomInstance(normalized, false)
	}

	return rt
}

// NewSession constructs a session with this router's configured outbox
// bound and send rate.
func (rt *Router) NewSession() *Session {
	return NewSession(rt.cfg.OutboxLimit, rt.cfg.SendRate, rt.cfg.SendBurst)
}

// Register adds an activated session to the live set.
func (rt *Router) Register(sess *Session) {
	rt.mu.Lock()
	defer rt.mu.Unlock()

	rt.sessions[sess.ID] = sess
}

// Session looks up a live session by id.
func (rt *Router) Session(id string) (*Session, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	sess, ok := rt.sessions[id]
	return sess, ok
}

// Room looks up a room by name. Implements RoomDirectory.
func (rt *Router) Room(name string) (*Room, bool) {
	rt.mu.RLock()
	defer rt.mu.RUnlock()

	room, ok := rt.rooms[name]
	return room, ok
}

// Presence returns the derived presence tracker.
func (rt *Router) Presence() *Tracker {
	return rt.presence
}

// RoomSummaries lists every instantiated room with its member count,
// sorted by name.
func (rt *Router) RoomSummaries() []RoomSummary {
	rt.mu.RLock()
	rooms := make([]*Room, 0, len(rt.rooms))
	for _, room := range rt.rooms {
		rooms = append(rooms, room)
	}
	rt.mu.RUnlock()

	summaries := make([]RoomSummary, 0, len(rooms))
	for _, room := range rooms {
		_, inCatalog := rt.catalog[room.Name]
		summaries = append(summaries, RoomSummary{
			Name:        room.Name,
			MemberCount: room.MemberCount(),
			Catalog:     inCatalog,
		})
	}

	sort.Slice(summaries, func(i, j int) bool {
		return summaries[i].Name < summaries[j].Name
	})

	return summaries
}

// HandleJoin subscribes a session to a room, replies with the member
// list and history tail, and lets the room announce presence to the
// other members.
func (rt *Router) HandleJoin(sessionID, roomName string) *errs.CustomError {
	sess, ok := rt.Session(sessionID)
	if !ok {
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	name := randx.NormalizeRoomName(roomName)
	if !randx.IsValidRoomName(name) {
		return errs.NewError(errs.ErrInvalidRoom)
	}

	// A dynamic room looked up here can be destroyed by its last member
	// leaving before Join runs. The destroyed room refuses the join, and
	// a fresh lookup recreates it.
	for attempt := 0; attempt < 3; attempt++ {
		room, customErr := rt.getOrCreateRoom(name)
		if customErr != nil {
			return customErr
		}

		if _, ok := room.Join(sess); !ok {
			continue
		}

		sess.JoinedRoom(name)
		return nil
	}

	return errs.NewError(errs.ErrRoomNotFound)
}

// HandleLeave unsubscribes a session from a room. The room emits the
// offline presence event; the requester gets a left confirmation.
func (rt *Router) HandleLeave(sessionID, roomName string) *errs.CustomError {
	sess, ok := rt.Session(sessionID)
	if !ok {
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	name := randx.NormalizeRoomName(roomName)

	room, ok := rt.Room(name)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	removed, _ := room.Leave(sessionID)
	sess.LeftRoom(name)

	if !removed {
		return errs.NewError(errs.ErrNotMember)
	}

	sess.Send(NewEvent(EventLeft, name, struct{}{}))

	rt.maybeDestroyRoom(name)

	return nil
}

// HandleSend posts text to a room on behalf of a session. The accepted
// message fans out to every current member inside Room.Post; errors go
// back to the requester alone.
func (rt *Router) HandleSend(sessionID, roomName, text string) *errs.CustomError {
	sess, ok := rt.Session(sessionID)
	if !ok {
		return errs.NewError(errs.ErrNotAuthenticated)
	}

	if !sess.AllowSend() {
		return errs.NewError(errs.ErrRateLimited)
	}

	name := randx.NormalizeRoomName(roomName)

	room, ok := rt.Room(name)
	if !ok {
		return errs.NewError(errs.ErrRoomNotFound)
	}

	// The session's subscription set and the room's member map must
	// agree. A mismatch is an internal invariant violation, contained to
	// this room.
	if sess.InRoom(name) != room.Contains(sessionID) {
		rt.resetRoom(room)
		return errs.NewError(errs.ErrUnknown)
	}

	_, customErr := room.Post(sessionID, text)
	return customErr
}

// HandleDisconnect tears down a session: it leaves every joined room
// (emitting one offline presence event per room) and is discarded. Safe
// to call more than once; only the first call does work.
func (rt *Router) HandleDisconnect(sessionID string) {
	rt.mu.Lock()
	sess, ok := rt.sessions[sessionID]
	if ok {
		delete(rt.sessions, sessionID)
	}
	rt.mu.Unlock()

	if !ok {
		return
	}

	for _, name := range sess.JoinedRooms() {
		if room, exists := rt.Room(name); exists {
			room.Leave(sessionID)
			rt.maybeDestroyRoom(name)
		}
		sess.LeftRoom(name)
	}

	sess.Close("disconnected")
}

// Shutdown drains and closes every session and stops every room's
// persist loop.
func (rt *Router) Shutdown() {
	rt.mu.Lock()
	sessions := make([]*Session, 0, len(rt.sessions))
	for _, sess := range rt.sessions {
		sessions = append(sessions, sess)
	}
	rt.sessions = make(map[string]*Session)

	rooms := make([]*Room, 0, len(rt.rooms))
	for _, room := range rt.rooms {
		rooms = append(rooms, room)
	}
	rt.mu.Unlock()

	for _, sess := range sessions {
		sess.BeginDrain()
		sess.Close("server shutdown")
	}

	for _, room := range rooms {
		room.stop()
	}

	rt.logger.Info().Msg("Router shutdown complete.")
}

// getOrCreateRoom returns an existing room or lazily creates a dynamic
// one. The registry lock is held only for the map operations; warming
// happens on the room's first use.
func (rt *Router) getOrCreateRoom(name string) (*Room, *errs.CustomError) {
	rt.mu.RLock()
	room, ok := rt.rooms[name]
	rt.mu.RUnlock()

	if ok {
		return room, nil
	}

	if !rt.cfg.AllowDynamicRooms {
		return nil, errs.NewError(errs.ErrInvalidRoom)
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	if room, ok = rt.rooms[name]; ok {
		return room, nil
	}

	room = rt.newRoomInstance(name, true)
	rt.rooms[name] = room

	rt.logger.Info().Str("room", name).Msg("Dynamic room created.")

	return room, nil
}

// maybeDestroyRoom removes an empty dynamic room from the registry.
// Catalog rooms are never destroyed. The member count is re-checked
// under the registry lock, and stop marks the room closed, so a join
// still holding the stale pointer is refused and retries its lookup.
func (rt *Router) maybeDestroyRoom(name string) {
	if _, inCatalog := rt.catalog[name]; inCatalog {
		return
	}

	rt.mu.Lock()
	defer rt.mu.Unlock()

	room, ok := rt.rooms[name]
	if !ok || !room.dynamic {
		return
	}

	if room.MemberCount() == 0 {
		delete(rt.rooms, name)
		room.stop()
		rt.logger.Info().Str("room", name).Msg("Empty dynamic room destroyed.")
	}
}

// resetRoom contains an invariant violation to the affected room: its
// membership is cleared, evicted sessions get a left notification, and
// their subscription sets are repaired. The process and other rooms keep
// running.
func (rt *Router) resetRoom(room *Room) {
	rt.logger.Error().
		Str("room", room.Name).
		Msg("Room state inconsistent with session state. Resetting room.")

	for _, sess := range room.Reset() {
		sess.LeftRoom(room.Name)
		sess.Send(NewEvent(EventLeft, room.Name, struct{}{}))
	}

	rt.maybeDestroyRoom(room.Name)
}

func (rt *Router) newRoomInstance(name string, dynamic bool) *Room {
	return newRoom(name, dynamic, rt.cfg.HistoryLimit, rt.cfg.HistoryTail, rt.cfg.MaxTextLen, rt.store)
}
