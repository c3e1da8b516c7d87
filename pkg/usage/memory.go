package usage

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store in process memory. It is used when Redis
// is disabled and by tests. Events vanish on restart, which also resets
// every quota; acceptable for single-instance deployments.
type MemoryStore struct {
	mu     sync.Mutex
	events []Event
	now    func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Record(ctx context.Context, userID, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, Event{
		UserID:    userID,
		Provider:  provider,
		Timestamp: s.now().UTC(),
	})
	return nil
}

func (s *MemoryStore) CountSince(ctx context.Context, userID, provider string, since time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, ev := range s.events {
		if userID != "" && ev.UserID != userID {
			continue
		}
		if provider != "" && ev.Provider != provider {
			continue
		}
		if ev.Timestamp.After(since) {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) PurgeOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.events[:0]
	var deleted int64
	for _, ev := range s.events {
		if ev.Timestamp.After(cutoff) {
			kept = append(kept, ev)
		} else {
			deleted++
		}
	}
	s.events = kept
	return deleted, nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return nil
}
