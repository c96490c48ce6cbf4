// Package membership is the service layer tying billing to access: it
// starts checkouts, applies provider webhook events to the membership
// store, mirrors each record onto identity claims, and runs the
// periodic sweeps that expire lapsed members and reconcile claims.
//
// The webhook path is the heart of the package. Deliveries are
// at-least-once and unordered, so every apply is guarded three ways:
// signature verification rejects forged payloads, the dedupe store
// collapses redeliveries, and the per-record event watermark discards
// out-of-order events. Each applied event lands as one merge write, and
// claim synchronization failures never bubble back to the provider;
// the record is flagged for reconciliation instead.
package membership
