/*
Package chat contains the session and room synchronization engine.

This file defines the Room struct, which owns one room's membership,
message ordering, and bounded history. All state-mutating operations on
a room are serialized by its mutex; unrelated rooms never contend.
*/
package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"parley/internal/pkg/errs"
	"parley/internal/pkg/logx"
)

const (
	// persistQueueBuffer sizes the per-room queue between message
	// acceptance and the store append.
	persistQueueBuffer = 256

	// warmTimeout bounds the history load on first use of a room.
	warmTimeout = 5 * time.Second

	// persistTimeout bounds one store append.
	persistTimeout = 5 * time.Second
)

// roomMember pairs a member session with the identity it joined under.
type roomMember struct {
	sess     *Session
	userID   string
	username string
}

// MembershipResult is what a joining session gets back: the member list
// after the join and the history tail to replay locally.
type MembershipResult struct {
	Members     []MemberInfo
	HistoryTail []Message
}

// Room is a named broadcast domain. Messages fan out to every current
// member in the exact order their sequence numbers were assigned.
type Room struct {
	// Name identifies the room. Immutable.
	Name string

	// dynamic rooms are destroyed when their member set empties; catalog
	// rooms stay instantiated for the life of the process.
	dynamic bool

	mu      sync.Mutex
	members map[string]*roomMember
	history []Message
	seq     uint64

	// closed is set by stop. A closed room refuses joins so a caller
	// holding a pointer to a destroyed room retries against the registry
	// instead of joining an orphan.
	closed bool

	historyLimit int
	tailLimit    int
	maxTextLen   int

	store    MessageStore
	warmOnce sync.Once

	// persist carries accepted messages, in seq order, to the single
	// goroutine that appends them to the store.
	persist chan Message
	done    chan struct{}
	once    sync.Once

	logger zerolog.Logger
}

// newRoom creates a Room. History warming from the store is deferred to
// first use so the registry lock never waits on a store read.
func newRoom(name string, dynamic bool, historyLimit, tailLimit, maxTextLen int, store MessageStore) *Room {
	r := &Room{
		Name:         name,
		dynamic:      dynamic,
		members:      make(map[string]*roomMember),
		historyLimit: historyLimit,
		tailLimit:    tailLimit,
		maxTextLen:   maxTextLen,
		store:        store,
		persist:      make(chan Message, persistQueueBuffer),
		done:         make(chan struct{}),
		logger:       logx.Logger().With().Str("room", name).Logger(),
	}

	go r.runPersistLoop()

	return r
}

// ensureWarm loads the persisted history tail once, resuming the
// sequence counter from the last stored message.
func (r *Room) ensureWarm() {
	r.warmOnce.Do(func() {
		if r.store == nil {
			return
		}

		ctx, cancel := context.WithTimeout(context.Background(), warmTimeout)
		defer cancel()

		tail, err := r.store.LoadHistoryTail(ctx, r.Name, r.historyLimit)
		if err != nil {
			r.logger.Error().Err(err).Msg("Failed to warm room history from store.")
			return
		}

		r.mu.Lock()
		r.history = tail
		if len(tail) > 0 {
			r.seq = tail[len(tail)-1].Seq
		}
		r.mu.Unlock()
	})
}

// Join adds a session to the room and enqueues the joined reply, with
// the member list and history tail, while the lock is still held: a
// message posted right after the join fans out live and carries a seq
// past the replayed tail, so the session's wire never shows a message
// before its replay or a gap between the two. Rejoining is a no-op
// success that still gets a fresh reply. New joins emit a presence
// event to all other members. Join reports false on a closed room; the
// caller must look the room up again.
func (r *Room) Join(sess *Session) (MembershipResult, bool) {
	r.ensureWarm()

	identity := sess.User()

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return MembershipResult{}, false
	}

	if _, ok := r.members[sess.ID]; !ok {
		r.members[sess.ID] = &roomMember{
			sess:     sess,
			userID:   identity.ID,
			username: identity.Username,
		}

		presence := NewEvent(EventPresence, r.Name, PresencePayload{
			SessionID: sess.ID,
			Username:  identity.Username,
			Online:    true,
		})

		for id, member := range r.members {
			if id != sess.ID {
				member.sess.Send(presence)
			}
		}

		r.logger.Info().
			Str("session_id", sess.ID).
			Int("total_members", len(r.members)).
			Msg("Session joined room.")
	}

	result := MembershipResult{
		Members:     r.memberInfosLocked(),
		HistoryTail: r.historyTailLocked(),
	}

	sess.Send(NewEvent(EventJoined, r.Name, JoinedPayload{
		Members:     result.Members,
		HistoryTail: result.HistoryTail,
	}))

	return result, true
}

// Leave removes a session if present, emitting a presence event to the
// remaining members. It reports whether the session was a member and
// whether the room is now empty.
func (r *Room) Leave(sessionID string) (removed bool, empty bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[sessionID]
	if !ok {
		return false, len(r.members) == 0
	}

	delete(r.members, sessionID)

	presence := NewEvent(EventPresence, r.Name, PresencePayload{
		SessionID: sessionID,
		Username:  member.username,
		Online:    false,
	})

	for _, remaining := range r.members {
		remaining.sess.Send(presence)
	}

	r.logger.Info().
		Str("session_id", sessionID).
		Int("total_members", len(r.members)).
		Msg("Session left room.")

	return true, len(r.members) == 0
}

// Post validates text, assigns the next sequence number, appends to the
// bounded history, and fans the message out to every current member,
// sender included. Validation happens before seq assignment, so rejected
// posts never consume a sequence number. Fan-out happens under the room
// lock via non-blocking enqueues, so every member present at post
// completion observes the message exactly once, in seq order.
func (r *Room) Post(sessionID string, text string) (Message, *errs.CustomError) {
	r.ensureWarm()

	r.mu.Lock()
	defer r.mu.Unlock()

	member, ok := r.members[sessionID]
	if !ok {
		return Message{}, errs.NewError(errs.ErrNotMember)
	}

	trimmed, customErr := ValidateText(text, r.maxTextLen)
	if customErr != nil {
		return Message{}, customErr
	}

	r.seq++
	msg := Message{
		Room:           r.Name,
		Seq:            r.seq,
		SenderID:       member.userID,
		SenderUsername: member.username,
		Text:           trimmed,
		SentAt:         time.Now(),
	}

	r.history = append(r.history, msg)
	if len(r.history) > r.historyLimit {
		r.history = r.history[len(r.history)-r.historyLimit:]
	}

	ev := NewEvent(EventMessage, r.Name, msg)
	for _, m := range r.members {
		m.sess.Send(ev)
	}

	select {
	case r.persist <- msg:
	default:
		r.logger.Warn().
			Uint64("seq", msg.Seq).
			Msg("Persist queue full. Message kept in memory only.")
	}

	return msg, nil
}

// Contains reports whether sessionID is a current member.
func (r *Room) Contains(sessionID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, ok := r.members[sessionID]
	return ok
}

// MemberCount returns the current number of members.
func (r *Room) MemberCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.members)
}

// Members returns a snapshot of the current member list.
func (r *Room) Members() []MemberInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.memberInfosLocked()
}

// HistoryTail returns the tail of the room's history, newest last.
func (r *Room) HistoryTail() []Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.historyTailLocked()
}

// Reset clears the room's membership after an invariant violation,
// returning the evicted sessions so the router can repair their
// subscription sets. History and the sequence counter are preserved;
// seq must stay monotonic even across a reset.
func (r *Room) Reset() []*Session {
	r.mu.Lock()
	defer r.mu.Unlock()

	evicted := make([]*Session, 0, len(r.members))
	for _, member := range r.members {
		evicted = append(evicted, member.sess)
	}

	r.members = make(map[string]*roomMember)

	r.logger.Error().
		Int("evicted", len(evicted)).
		Msg("Room membership reset after invariant violation.")

	return evicted
}

// stop marks the room closed, refusing further joins, and terminates
// the persist loop after draining queued messages.
func (r *Room) stop() {
	r.once.Do(func() {
		r.mu.Lock()
		r.closed = true
		r.mu.Unlock()

		close(r.done)
	})
}

// runPersistLoop appends accepted messages to the store, one at a time
// and in seq order, never under the room lock.
func (r *Room) runPersistLoop() {
	for {
		select {
		case msg := <-r.persist:
			r.appendToStore(msg)

		case <-r.done:
			for {
				select {
				case msg := <-r.persist:
					r.appendToStore(msg)
				default:
					return
				}
			}
		}
	}
}

func (r *Room) appendToStore(msg Message) {
	if r.store == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := r.store.AppendMessage(ctx, msg); err != nil {
		r.logger.Error().
			Err(err).
			Uint64("seq", msg.Seq).
			Msg("Failed to append message to store.")
	}
}

// memberInfosLocked builds the member list sorted by session id so every
// observer sees the same ordering. Caller holds r.mu.
func (r *Room) memberInfosLocked() []MemberInfo {
	infos := make([]MemberInfo, 0, len(r.members))
	for id, member := range r.members {
		infos = append(infos, MemberInfo{
			SessionID: id,
			UserID:    member.userID,
			Username:  member.username,
		})
	}

	sort.Slice(infos, func(i, j int) bool {
		return infos[i].SessionID < infos[j].SessionID
	})

	return infos
}

// historyTailLocked copies the last tailLimit history entries. Caller
// holds r.mu.
func (r *Room) historyTailLocked() []Message {
	start := 0
	if len(r.history) > r.tailLimit {
		start = len(r.history) - r.tailLimit
	}

	tail := make([]Message, len(r.history)-start)
	copy(tail, r.history[start:])
	return tail
}
