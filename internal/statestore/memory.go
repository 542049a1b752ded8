package statestore

import (
	"context"
	"sync"
	"time"

	"github.com/autoventas/sales-ai-platform/internal/conversation"
)

// MemoryStore keeps states in a map. For tests and single-process dev runs.
type MemoryStore struct {
	ttl time.Duration
	now func() time.Time

	mu     sync.RWMutex
	states map[string]*conversation.State
}

// NewMemoryStore creates an in-memory store with the given inactivity TTL.
func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		ttl:    ttl,
		now:    time.Now,
		states: make(map[string]*conversation.State),
	}
}

func (s *MemoryStore) Load(ctx context.Context, sessionID, channel string) (*conversation.State, error) {
	s.mu.RLock()
	stored, ok := s.states[sessionID]
	s.mu.RUnlock()

	if !ok {
		return conversation.NewState(sessionID, channel), nil
	}
	if stored.Expired(s.ttl, s.now()) {
		fresh := conversation.NewState(sessionID, channel)
		fresh.Version = stored.Version
		return fresh, nil
	}
	return stored.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, state *conversation.State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stored, ok := s.states[state.SessionID]; ok && stored.Version != state.Version {
		return ErrVersionConflict
	}
	state.Version++
	state.LastUpdatedAt = s.now()
	s.states[state.SessionID] = state.Clone()
	return nil
}
