package errlog

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore implements Store in memory. Intended for tests and local
// development.
type MemoryStore struct {
	mu      sync.Mutex
	entries []Entry
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

// SetNowFunc overrides the clock. Test helper.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Record applies dedupe semantics against the in-memory slice.
func (s *MemoryStore) Record(ctx context.Context, entry Entry, window time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()

	for i := range s.entries {
		e := &s.entries[i]
		if e.FunctionName == entry.FunctionName && e.Message == entry.Message && !e.LastSeen.Before(now.Add(-window)) {
			e.Occurrences++
			e.LastSeen = now
			return nil
		}
	}

	entry.ID = uuid.NewString()
	entry.Occurrences = 1
	entry.FirstSeen = now
	entry.LastSeen = now
	s.entries = append(s.entries, entry)

	return nil
}

// Entries returns a copy of all stored entries.
func (s *MemoryStore) Entries() []Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.entries)
}
