package presence

import (
	"context"
	"sync"
	"time"
)

// LastSeenStore records the moment a user's connection count dropped to
// zero, for collaborators that display "last seen X minutes ago". The
// interface exists so a durable backend can replace the in-memory
// default without touching the aggregator.
type LastSeenStore interface {
	Record(ctx context.Context, userId string, lastSeenAt time.Time) error
	Get(ctx context.Context, userId string) (time.Time, bool, error)
}

type MemoryStore struct {
	mu   sync.RWMutex
	seen map[string]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		seen: make(map[string]time.Time),
	}
}

func (s *MemoryStore) Record(ctx context.Context, userId string, lastSeenAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seen[userId] = lastSeenAt

	return nil
}

func (s *MemoryStore) Get(ctx context.Context, userId string) (time.Time, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lastSeenAt, ok := s.seen[userId]

	return lastSeenAt, ok, nil
}
