// Package dedupe collapses at-least-once webhook deliveries into
// effectively-once processing by remembering event identifiers for a
// bounded retention window.
//
// The Redis-backed implementation is the production default; marks are
// plain keys with a TTL, so a lost mark only risks a redundant (and
// idempotent) reprocessing, never a dropped event.
//
// Usage:
//
//	deduper := dedupe.NewRedisDeduper(client, dedupe.Config{TTL: 72 * time.Hour})
//	seen, err := deduper.Processed(ctx, event.ID)
//	if err == nil && seen {
//	    return nil // already handled
//	}
//	// ... process event ...
//	_ = deduper.MarkProcessed(ctx, event.ID)
package dedupe
