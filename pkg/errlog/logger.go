package errlog

import (
	"context"
	"log/slog"
	"runtime/debug"
	"time"
)

// Store persists deduplicated entries.
type Store interface {
	// Record applies an occurrence of the entry. If a row with the same
	// (FunctionName, Message) was last seen within the dedupe window, the
	// implementation must increment its occurrence count and bump LastSeen;
	// otherwise it must create a new row.
	Record(ctx context.Context, entry Entry, window time.Duration) error
}

// Config holds the error logger configuration.
type Config struct {
	DedupeWindow time.Duration `env:"ERRLOG_DEDUPE_WINDOW" envDefault:"1h"` // DedupeWindow is the span during which identical errors are coalesced.
	WriteTimeout time.Duration `env:"ERRLOG_WRITE_TIMEOUT" envDefault:"3s"` // WriteTimeout bounds a single store write.
}

// Logger captures errors for later inspection. It is strictly best-effort:
// Report never returns an error and never panics, so callers can log from any
// failure path without introducing a new failure mode. Store write failures
// go to the process's own diagnostic stream only.
type Logger struct {
	store    Store
	window   time.Duration
	wTimeout time.Duration
	log      *slog.Logger
}

// New creates an error logger backed by the given store.
// Panics if store or log is nil to fail fast during initialization.
func New(store Store, cfg Config, log *slog.Logger) *Logger {
	if store == nil {
		panic("errlog: store is required")
	}
	if log == nil {
		panic("errlog: logger is required")
	}

	window := cfg.DedupeWindow
	if window <= 0 {
		window = time.Hour
	}
	wTimeout := cfg.WriteTimeout
	if wTimeout <= 0 {
		wTimeout = 3 * time.Second
	}

	return &Logger{
		store:    store,
		window:   window,
		wTimeout: wTimeout,
		log:      log,
	}
}

// Option customizes a single reported entry.
type Option func(*Entry)

// WithSeverity overrides the default medium severity.
func WithSeverity(s Severity) Option {
	return func(e *Entry) { e.Severity = s }
}

// WithBucket assigns the entry to a triage bucket.
func WithBucket(b Bucket) Option {
	return func(e *Entry) { e.Bucket = b }
}

// WithHumanMessage attaches the user-facing message that was shown alongside
// this error, so diagnostics can be correlated with support requests.
func WithHumanMessage(msg string) Option {
	return func(e *Entry) { e.HumanMessage = msg }
}

// WithStack replaces the automatically captured stack trace.
func WithStack(stack string) Option {
	return func(e *Entry) { e.Stack = stack }
}

// Report records one occurrence of err attributed to functionName.
// The write is bounded by the configured timeout and detached from the
// caller's context cancellation, so an aborted request still gets its
// diagnostics written.
func (l *Logger) Report(ctx context.Context, functionName string, err error, opts ...Option) {
	if err == nil {
		return
	}

	defer func() {
		if r := recover(); r != nil {
			l.log.Error("error logger panicked", slog.Any("panic", r))
		}
	}()

	entry := Entry{
		FunctionName: functionName,
		Message:      err.Error(),
		Stack:        string(debug.Stack()),
		Severity:     SeverityMedium,
		Bucket:       BucketGeneric,
	}

	for _, opt := range opts {
		opt(&entry)
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.wTimeout)
	defer cancel()

	if storeErr := l.store.Record(wctx, entry, l.window); storeErr != nil {
		l.log.Warn("failed to persist error log entry",
			slog.String("function", functionName),
			slog.String("original_error", entry.Message),
			slog.Any("store_error", storeErr),
		)
	}
}
