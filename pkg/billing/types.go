package billing

import (
	"encoding/json"
	"time"
)

// Tier is the membership tier a user checks out for.
type Tier string

const (
	TierMonthly  Tier = "Monthly"
	TierLifetime Tier = "Lifetime"
)

// ParseTier validates a tier received from an untrusted caller.
func ParseTier(s string) (Tier, error) {
	switch Tier(s) {
	case TierMonthly, TierLifetime:
		return Tier(s), nil
	default:
		return "", ErrUnknownTier
	}
}

// EventType is the normalized billing event type. Provider implementations
// map their own event names onto these.
type EventType string

const (
	EventCheckoutCompleted    EventType = "checkout_completed"
	EventSubscriptionUpdated  EventType = "subscription_updated"
	EventSubscriptionDeleted  EventType = "subscription_deleted"
	EventInvoicePaymentFailed EventType = "invoice_payment_failed"

	// EventIgnored marks provider events this system does not react to.
	// They are reported as handled so the provider does not retry them.
	EventIgnored EventType = "ignored"
)

// WebhookEvent is a normalized, signature-verified provider event.
type WebhookEvent struct {
	ID            string    // Provider's event id, used for duplicate-delivery detection.
	Type          EventType // Normalized event type.
	ProviderEvent string    // Original provider event name.
	OccurredAt    time.Time // Provider-side creation time; drives the reordering watermark.

	UserID  string // From session metadata attached at checkout; empty if the session wasn't created by this system.
	SubType Tier   // From session metadata; zero for non-checkout events.

	SubscriptionID string // Provider's subscription id, when the event carries one.
	CustomerID     string // Provider's customer id, when the event carries one.

	// CancelAtPeriodEnd and CancelAt describe a scheduled-but-not-yet-effective
	// cancellation on subscription_updated events.
	CancelAtPeriodEnd bool
	CancelAt          time.Time

	Raw json.RawMessage // Full provider payload for diagnostics.
}

// CheckoutSessionRequest describes a new hosted checkout.
type CheckoutSessionRequest struct {
	UserID     string // Internal user id, echoed back in webhook metadata.
	Tier       Tier   // Selects billing mode and price.
	CustomerID string // Existing provider customer, if known.
	SuccessURL string
	CancelURL  string
}

// CheckoutSession is a provider-hosted checkout.
type CheckoutSession struct {
	ID  string
	URL string
}

// PortalSession is a provider-hosted self-service subscription portal.
type PortalSession struct {
	URL string
}
