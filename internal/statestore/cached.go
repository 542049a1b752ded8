package statestore

import (
	"context"
	"time"

	"github.com/autoventas/sales-ai-platform/internal/conversation"
)

// CachedStore layers a Cache over a durable Store with cache-aside reads.
// Saves hit the durable store first; only after that succeeds is the cache
// refreshed, so the cache never holds state the durable store rejected.
type CachedStore struct {
	durable Store
	cache   Cache
	ttl     time.Duration
	now     func() time.Time
}

// NewCachedStore wraps the durable store. ttl is the logical inactivity TTL,
// re-checked on cache hits so a stale-but-unevicted entry cannot revive an
// expired session.
func NewCachedStore(durable Store, cache Cache, ttl time.Duration) *CachedStore {
	if durable == nil {
		panic("statestore: durable store cannot be nil")
	}
	if cache == nil {
		panic("statestore: cache cannot be nil")
	}
	return &CachedStore{durable: durable, cache: cache, ttl: ttl, now: time.Now}
}

func (s *CachedStore) Load(ctx context.Context, sessionID, channel string) (*conversation.State, error) {
	if state, ok := s.cache.Get(ctx, sessionID); ok && !state.Expired(s.ttl, s.now()) {
		return state, nil
	}
	state, err := s.durable.Load(ctx, sessionID, channel)
	if err != nil {
		return nil, err
	}
	if state.Version > 0 {
		s.cache.Set(ctx, state)
	}
	return state, nil
}

func (s *CachedStore) Save(ctx context.Context, state *conversation.State) error {
	if err := s.durable.Save(ctx, state); err != nil {
		// The durable write failed; drop any cached copy so readers cannot
		// observe state ahead of the source of truth.
		s.cache.Delete(ctx, state.SessionID)
		return err
	}
	s.cache.Set(ctx, state)
	return nil
}
