package dedupe

import (
	"context"
	"sync"
	"time"
)

// MemoryDeduper is an in-memory Deduper for tests and single-process
// setups. Expired marks are pruned lazily on access.
type MemoryDeduper struct {
	mu    sync.Mutex
	marks map[string]time.Time
	ttl   time.Duration
	now   func() time.Time
}

// NewMemoryDeduper creates an in-memory deduper with the given retention.
func NewMemoryDeduper(ttl time.Duration) *MemoryDeduper {
	if ttl <= 0 {
		ttl = 72 * time.Hour
	}
	return &MemoryDeduper{
		marks: make(map[string]time.Time),
		ttl:   ttl,
		now:   time.Now,
	}
}

// SetNowFunc overrides the clock. Intended for tests.
func (d *MemoryDeduper) SetNowFunc(now func() time.Time) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.now = now
}

func (d *MemoryDeduper) Processed(_ context.Context, key string) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	markedAt, ok := d.marks[key]
	if !ok {
		return false, nil
	}
	if d.now().Sub(markedAt) > d.ttl {
		delete(d.marks, key)
		return false, nil
	}
	return true, nil
}

func (d *MemoryDeduper) MarkProcessed(_ context.Context, key string) error {
	if key == "" {
		return ErrEmptyKey
	}
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.marks[key]; !ok {
		d.marks[key] = d.now()
	}
	return nil
}
