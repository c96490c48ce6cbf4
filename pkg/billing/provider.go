package billing

import "context"

// Provider defines the minimal interface to the payment provider. The
// provider handles all payment complexity through hosted checkouts and
// customer portals; this system never touches card data.
//
// Implementations should use the official provider SDK with an explicitly
// constructed client injected at creation time, not a process-wide mutable
// singleton, so tests can substitute fakes.
type Provider interface {
	// CreateCheckoutSession creates a hosted checkout session. The request's
	// UserID and Tier must be attached as session metadata: that metadata is
	// the only channel by which webhook processing later learns whose
	// entitlement to update.
	CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error)

	// CreatePortalSession returns a link to the provider's self-service
	// portal where users manage payment methods and cancellation.
	CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error)

	// CancelSubscription cancels a provider-side subscription immediately.
	// Used when a Lifetime upgrade supersedes an existing recurring plan.
	CancelSubscription(ctx context.Context, subscriptionID string) error

	// ParseWebhook verifies the event's signature against the shared secret
	// and returns the normalized event. A verification failure returns an
	// error wrapping ErrSignatureInvalid; no payload fields are trusted
	// before verification succeeds.
	ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error)
}
