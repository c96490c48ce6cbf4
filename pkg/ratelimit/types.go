package ratelimit

import (
	"context"
	"time"
)

// Config defines a named call budget: at most MaxCalls admissions per
// qualifier within the trailing Period. Config is limiter configuration,
// not per-counter state; every call site owns an independent budget.
type Config struct {
	Name     string        // Limiter name, part of the counter key.
	MaxCalls int           // Maximum admissions within the window.
	Period   time.Duration // Sliding window length.
}

func (c Config) validate() error {
	if c.Name == "" {
		return ErrNameRequired
	}
	if c.MaxCalls <= 0 {
		return ErrInvalidLimit
	}
	if c.Period <= 0 {
		return ErrInvalidInterval
	}
	return nil
}

// Result contains the outcome of an admission attempt.
type Result struct {
	// Allowed indicates whether the call was admitted.
	Allowed bool

	// Limit is the maximum number of calls allowed in the window.
	Limit int

	// Remaining is the number of calls left in the current window.
	Remaining int

	// ResetAt is when the oldest counted call leaves the window.
	ResetAt time.Time
}

// RetryAfter returns how long to wait before the next call may be admitted.
// Returns 0 if the current call was allowed.
func (r *Result) RetryAfter() time.Duration {
	if r.Allowed {
		return 0
	}
	return time.Until(r.ResetAt)
}

// Store is the counter backend. One counter document exists per
// (limiter name, qualifier) pair.
type Store interface {
	// Admit atomically applies the sliding-window rule to the counter for
	// (cfg.Name, qualifier): calls older than now-cfg.Period are pruned, and
	// now is appended only if the pruned count is below cfg.MaxCalls. The
	// pruned list must be persisted even when the call is rejected so the
	// counter self-cleans. Returns whether the call was admitted, the number
	// of calls now in the window, and the timestamp of the oldest retained
	// call (zero when the window is empty).
	Admit(ctx context.Context, qualifier string, now time.Time, cfg Config) (allowed bool, count int, oldest time.Time, err error)

	// Reset clears the counter for (cfg.Name, qualifier).
	Reset(ctx context.Context, qualifier string, cfg Config) error
}
