// Package membership persists per-user subscription state as a single
// document per user. All writes go through Store.Apply, a merge that
// creates the record on first touch and only modifies the fields the
// caller set, so concurrent webhook handlers never clobber each other's
// unrelated fields.
//
// The customer id is set-once: once a record carries a billing customer
// id, later writes cannot replace it. The event watermark orders
// webhook deliveries; callers check Record.AcceptsEvent before applying
// an event and advance the watermark in the same write.
package membership
