package ratelimit

import (
	"context"
	"time"
)

// Limiter enforces a sliding-window call budget. It tracks individual call
// timestamps within a moving window, which is exact (no bucket boundary
// artifacts) at the cost of storing one timestamp per admitted call.
//
// All state lives in the Store, so any number of stateless serving instances
// sharing a backend enforce one budget.
type Limiter struct {
	store Store
	cfg   Config
	now   func() time.Time
}

// New creates a sliding-window limiter with the given budget.
func New(store Store, cfg Config) (*Limiter, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &Limiter{
		store: store,
		cfg:   cfg,
		now:   time.Now,
	}, nil
}

// Name returns the limiter's configured name.
func (l *Limiter) Name() string { return l.cfg.Name }

// Allow checks whether one call is admitted for the given qualifier
// (typically an authenticated user id or a caller IP) and consumes a slot if
// so. Concurrent calls for the same qualifier cannot both observe the last
// free slot: the store applies the check and the append atomically.
func (l *Limiter) Allow(ctx context.Context, qualifier string) (*Result, error) {
	if qualifier == "" {
		return nil, ErrQualifierRequired
	}

	now := l.now()

	allowed, count, oldest, err := l.store.Admit(ctx, qualifier, now, l.cfg)
	if err != nil {
		return nil, err
	}

	resetAt := now.Add(l.cfg.Period)
	if !oldest.IsZero() {
		resetAt = oldest.Add(l.cfg.Period)
	}

	return &Result{
		Allowed:   allowed,
		Limit:     l.cfg.MaxCalls,
		Remaining: max(0, l.cfg.MaxCalls-count),
		ResetAt:   resetAt,
	}, nil
}

// AllowOrErr is a convenience wrapper that folds a rejection into
// ErrRateLimitExceeded for call sites that propagate errors instead of
// inspecting the Result.
func (l *Limiter) AllowOrErr(ctx context.Context, qualifier string) error {
	result, err := l.Allow(ctx, qualifier)
	if err != nil {
		return err
	}
	if !result.Allowed {
		return ErrRateLimitExceeded
	}
	return nil
}

// Reset clears the counter for the given qualifier.
func (l *Limiter) Reset(ctx context.Context, qualifier string) error {
	if qualifier == "" {
		return ErrQualifierRequired
	}
	return l.store.Reset(ctx, qualifier, l.cfg)
}

// SetNowFunc overrides the limiter's clock. Test helper.
func (l *Limiter) SetNowFunc(now func() time.Time) {
	if now != nil {
		l.now = now
	}
}
