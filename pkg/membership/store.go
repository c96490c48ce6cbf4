package membership

import (
	"context"
	"time"

	"github.com/prepdeck/membership/pkg/billing"
)

// Update describes a partial merge into a Record. Nil pointer fields
// are left untouched; set pointers overwrite. A pointer to the zero
// value removes the field (empty SubscriptionID clears it, ClearCancelAt
// removes the deadline).
type Update struct {
	Member           *bool
	SubscriptionType *billing.Tier
	SubscriptionID   *string

	// CustomerID is set-once: it only takes effect when the record has
	// no customer id yet. Stores must never overwrite an existing one.
	CustomerID string

	CancelAt      *time.Time
	ClearCancelAt bool

	Status                  *string
	Admin                   *bool
	ManualClaimSyncRequired *bool
	EventWatermark          *time.Time
}

// IsZero reports whether the update would change nothing.
func (u Update) IsZero() bool {
	return u.Member == nil &&
		u.SubscriptionType == nil &&
		u.SubscriptionID == nil &&
		u.CustomerID == "" &&
		u.CancelAt == nil &&
		!u.ClearCancelAt &&
		u.Status == nil &&
		u.Admin == nil &&
		u.ManualClaimSyncRequired == nil &&
		u.EventWatermark == nil
}

// Store persists membership records keyed by user id.
type Store interface {
	// Get returns the record for the user, or ErrNotFound.
	Get(ctx context.Context, userID string) (*Record, error)

	// GetByCustomerID resolves a record by the billing provider's
	// customer id, or ErrNotFound.
	GetByCustomerID(ctx context.Context, customerID string) (*Record, error)

	// Apply merges the update into the user's record in a single write,
	// creating the record if it does not exist, and returns the
	// post-update state.
	Apply(ctx context.Context, userID string, update Update) (*Record, error)

	// ListExpired returns members whose cancellation deadline is at or
	// before now.
	ListExpired(ctx context.Context, now time.Time) ([]*Record, error)

	// ListManualSyncRequired returns records flagged for claim
	// reconciliation.
	ListManualSyncRequired(ctx context.Context) ([]*Record, error)

	// CountMembers counts active members, excluding admin accounts.
	CountMembers(ctx context.Context) (int64, error)
}
