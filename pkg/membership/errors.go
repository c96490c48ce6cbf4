package membership

import "errors"

var (
	// ErrNotFound is returned when no record exists for the lookup key.
	ErrNotFound = errors.New("membership: record not found")
	// ErrUserIDRequired is returned when a caller passes an empty user id.
	ErrUserIDRequired = errors.New("membership: user id cannot be empty")
	// ErrEmptyUpdate is returned when Apply is called with nothing to change.
	ErrEmptyUpdate = errors.New("membership: update contains no changes")
	// ErrFailedToApply wraps storage failures during a merge write.
	ErrFailedToApply = errors.New("membership: failed to apply update")
)
