package dedupe

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrEmptyKey is returned when a caller passes an empty identifier.
	ErrEmptyKey = errors.New("dedupe: key cannot be empty")
	// ErrStoreUnavailable wraps backend failures so callers can decide
	// whether to fail open.
	ErrStoreUnavailable = errors.New("dedupe: store unavailable")
)

// Deduper tracks identifiers that have already been handled so that
// at-least-once deliveries can be collapsed to effectively-once
// processing.
//
// MarkProcessed must only be called after the work for the identifier
// completed successfully; marking first would drop the event entirely
// if processing fails afterwards.
type Deduper interface {
	// Processed reports whether the identifier was already marked.
	Processed(ctx context.Context, key string) (bool, error)

	// MarkProcessed records the identifier. Marks expire after the
	// configured retention window.
	MarkProcessed(ctx context.Context, key string) error
}

// Config holds deduplication settings.
type Config struct {
	// TTL bounds how long a processed mark is retained. Events older
	// than the retention window are assumed to never be redelivered.
	TTL time.Duration `env:"DEDUPE_TTL" envDefault:"72h"`

	// KeyPrefix namespaces marks in a shared keyspace.
	KeyPrefix string `env:"DEDUPE_KEY_PREFIX" envDefault:"dedupe:"`
}
