package membership

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]*Record
	now     func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[string]*Record),
		now:     time.Now,
	}
}

// SetNowFunc overrides the clock used for update timestamps.
func (s *MemoryStore) SetNowFunc(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Seed inserts a record directly, bypassing Apply. Intended for tests.
func (s *MemoryStore) Seed(record *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	clone := *record
	s.records[record.UserID] = &clone
}

func (s *MemoryStore) Get(_ context.Context, userID string) (*Record, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	record, ok := s.records[userID]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *record
	return &clone, nil
}

func (s *MemoryStore) GetByCustomerID(_ context.Context, customerID string) (*Record, error) {
	if customerID == "" {
		return nil, ErrNotFound
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, record := range s.records {
		if record.CustomerID == customerID {
			clone := *record
			return &clone, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) Apply(_ context.Context, userID string, update Update) (*Record, error) {
	if userID == "" {
		return nil, ErrUserIDRequired
	}
	if update.IsZero() {
		return nil, ErrEmptyUpdate
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.records[userID]
	if !ok {
		record = &Record{UserID: userID}
		s.records[userID] = record
	}

	if update.Member != nil {
		record.Member = *update.Member
	}
	if update.SubscriptionType != nil {
		record.SubscriptionType = *update.SubscriptionType
	}
	if update.SubscriptionID != nil {
		record.SubscriptionID = *update.SubscriptionID
	}
	if update.CustomerID != "" && record.CustomerID == "" {
		record.CustomerID = update.CustomerID
	}
	if update.ClearCancelAt {
		record.CancelAt = nil
	} else if update.CancelAt != nil {
		at := update.CancelAt.UTC()
		record.CancelAt = &at
	}
	if update.Status != nil {
		record.Status = *update.Status
	}
	if update.Admin != nil {
		record.Admin = *update.Admin
	}
	if update.ManualClaimSyncRequired != nil {
		record.ManualClaimSyncRequired = *update.ManualClaimSyncRequired
	}
	if update.EventWatermark != nil {
		record.EventWatermark = update.EventWatermark.UTC()
	}
	record.UpdatedAt = s.now().UTC()

	clone := *record
	return &clone, nil
}

func (s *MemoryStore) ListExpired(_ context.Context, now time.Time) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var expired []*Record
	for _, record := range s.records {
		if record.ExpiredAt(now) {
			clone := *record
			expired = append(expired, &clone)
		}
	}
	return expired, nil
}

func (s *MemoryStore) ListManualSyncRequired(_ context.Context) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var flagged []*Record
	for _, record := range s.records {
		if record.ManualClaimSyncRequired {
			clone := *record
			flagged = append(flagged, &clone)
		}
	}
	return flagged, nil
}

func (s *MemoryStore) CountMembers(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int64
	for _, record := range s.records {
		if record.Member && !record.Admin {
			count++
		}
	}
	return count, nil
}
