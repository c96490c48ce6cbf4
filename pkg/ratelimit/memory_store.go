package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore implements Store with in-process state. A single mutex stands
// in for the transactional backend; semantics match MongoStore. Intended for
// tests and single-instance deployments.
type MemoryStore struct {
	mu       sync.Mutex
	counters map[string][]time.Time
}

// NewMemoryStore creates an empty in-memory counter store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{counters: make(map[string][]time.Time)}
}

// Admit implements Store.
func (s *MemoryStore) Admit(ctx context.Context, qualifier string, now time.Time, cfg Config) (bool, int, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := counterID(cfg.Name, qualifier)
	cutoff := now.Add(-cfg.Period)

	calls := s.counters[id]
	kept := calls[:0]
	for _, ts := range calls {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	allowed := len(kept) < cfg.MaxCalls
	if allowed {
		kept = append(kept, now)
	}
	s.counters[id] = kept

	var oldest time.Time
	if len(kept) > 0 {
		oldest = kept[0]
	}
	return allowed, len(kept), oldest, nil
}

// Reset implements Store.
func (s *MemoryStore) Reset(ctx context.Context, qualifier string, cfg Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.counters, counterID(cfg.Name, qualifier))
	return nil
}
