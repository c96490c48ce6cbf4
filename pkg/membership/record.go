package membership

import (
	"time"

	"github.com/prepdeck/membership/pkg/billing"
)

// Membership lifecycle statuses.
const (
	StatusActive   = "active"
	StatusInactive = "inactive"
)

// Record is the persisted membership state for a single user. The user
// identifier doubles as the document key, so a user has at most one
// record and every write is a merge into the same document.
type Record struct {
	// UserID is the identity-provider user id this record belongs to.
	UserID string `bson:"_id" json:"userId"`

	// Member reports whether the user currently has paid access.
	Member bool `bson:"member" json:"member"`

	// SubscriptionType is the purchased tier, empty when the user has
	// never completed a checkout or has fully expired.
	SubscriptionType billing.Tier `bson:"subscription_type,omitempty" json:"subscriptionType,omitempty"`

	// SubscriptionID is the provider's recurring subscription id. Only
	// present while a recurring subscription exists; lifetime members
	// and expired users carry no subscription id.
	SubscriptionID string `bson:"subscription_id,omitempty" json:"subscriptionId,omitempty"`

	// CustomerID is the billing provider's customer id. Written once on
	// first checkout and never overwritten afterwards.
	CustomerID string `bson:"customer_id,omitempty" json:"customerId,omitempty"`

	// CancelAt marks when a cancelled subscription's access runs out.
	// Nil while the subscription renews normally.
	CancelAt *time.Time `bson:"cancel_at,omitempty" json:"cancelAt,omitempty"`

	// Status is a coarse lifecycle label derived from Member.
	Status string `bson:"status" json:"status"`

	// Admin marks internal accounts. Admins are excluded from member
	// counts and their access never derives from billing state.
	Admin bool `bson:"admin,omitempty" json:"admin,omitempty"`

	// ManualClaimSyncRequired flags records whose identity claims could
	// not be written after a record mutation and need reconciliation.
	ManualClaimSyncRequired bool `bson:"manual_claim_sync_required,omitempty" json:"manualClaimSyncRequired,omitempty"`

	// EventWatermark is the occurrence time of the newest billing event
	// applied to this record. Older events are discarded on arrival.
	EventWatermark time.Time `bson:"event_watermark,omitempty" json:"eventWatermark,omitempty"`

	UpdatedAt time.Time `bson:"updated_at" json:"updatedAt"`
}

// ExpiredAt reports whether the record's access has run out as of now:
// a member with a cancellation deadline in the past.
func (r *Record) ExpiredAt(now time.Time) bool {
	return r.Member && r.CancelAt != nil && !r.CancelAt.After(now)
}

// AcceptsEvent reports whether an event that occurred at the given time
// should be applied. Only events strictly older than the watermark are
// out-of-order deliveries; a distinct event sharing the watermark's
// one-second timestamp is legitimate, and exact replays are collapsed
// upstream by the event-id deduper.
func (r *Record) AcceptsEvent(occurredAt time.Time) bool {
	return !occurredAt.Before(r.EventWatermark)
}
