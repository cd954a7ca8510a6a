package session

import (
	"context"
	"time"

	"comparativo/internal/cache"
)

// MemoryStore keeps states in a bounded in-process LRU with a TTL.
type MemoryStore struct {
	cache *cache.LRUCache[State]
}

// NewMemoryStore creates a store holding at most size sessions for ttl each.
// When manager is non-nil the store is registered for periodic cleanup.
func NewMemoryStore(size int, ttl time.Duration, manager *cache.Manager, opts ...cache.Option) *MemoryStore {
	s := &MemoryStore{cache: cache.NewLRUCache[State](size, ttl, opts...)}
	if manager != nil {
		manager.Register(s.cache)
	}
	return s
}

func (s *MemoryStore) Get(ctx context.Context, id string) (State, error) {
	if err := ctx.Err(); err != nil {
		return State{}, err
	}
	st, ok := s.cache.Get(id)
	if !ok {
		return State{}, ErrNotFound
	}
	return st, nil
}

func (s *MemoryStore) Save(ctx context.Context, st State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.cache.Set(st.ID, st)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.cache.Delete(id)
	return nil
}

// Len returns the number of live sessions.
func (s *MemoryStore) Len() int {
	return s.cache.Size()
}
