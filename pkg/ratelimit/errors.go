package ratelimit

import "errors"

var (
	// ErrRateLimitExceeded signals that the call budget for a qualifier is consumed.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")

	ErrNameRequired      = errors.New("limiter name is required")
	ErrInvalidLimit      = errors.New("invalid call limit")
	ErrInvalidInterval   = errors.New("invalid window interval")
	ErrQualifierRequired = errors.New("qualifier is required")
	ErrStoreRequired     = errors.New("store is required")
)
