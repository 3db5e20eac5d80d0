/*
Package store provides implementations of the engine's message
persistence interface: a postgres-backed store and an in-memory store
for deployments without a database.
*/
package store

import (
	"context"
	"sync"

	"parley/internal/app/chat"
)

// MemoryStore keeps per-room message logs in memory. It is the default
// store when no database is configured and the fixture store in tests.
type MemoryStore struct {
	mu     sync.RWMutex
	byRoom map[string][]chat.Message
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		byRoom: make(map[string][]chat.Message),
	}
}

// AppendMessage records msg at the end of its room's log.
func (s *MemoryStore) AppendMessage(ctx context.Context, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byRoom[msg.Room] = append(s.byRoom[msg.Room], msg)
	return nil
}

// LoadHistoryTail returns up to limit most recent messages for room in
// ascending seq order.
func (s *MemoryStore) LoadHistoryTail(ctx context.Context, room string, limit int) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	log := s.byRoom[room]

	start := 0
	if len(log) > limit {
		start = len(log) - limit
	}

	tail := make([]chat.Message, len(log)-start)
	copy(tail, log[start:])
	return tail, nil
}
