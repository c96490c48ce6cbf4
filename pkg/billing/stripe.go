package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v76"
	"github.com/stripe/stripe-go/v76/client"
	"github.com/stripe/stripe-go/v76/webhook"
)

// StripeConfig holds configuration for the Stripe billing provider.
type StripeConfig struct {
	APIKey          string `env:"STRIPE_API_KEY,required"`
	WebhookSecret   string `env:"STRIPE_WEBHOOK_SECRET,required"`
	MonthlyPriceID  string `env:"STRIPE_PRICE_MONTHLY,required"`  // Recurring price for the Monthly tier.
	LifetimePriceID string `env:"STRIPE_PRICE_LIFETIME,required"` // One-time price for the Lifetime tier.
}

// StripeProvider implements Provider for Stripe. The SDK client is built in
// the constructor and held by the provider rather than configured through
// the package-global key, so multiple providers with different keys can
// coexist and tests can construct one without touching process state.
type StripeProvider struct {
	api    *client.API
	config StripeConfig
}

// NewStripeProvider creates a Stripe billing provider.
func NewStripeProvider(config StripeConfig) (*StripeProvider, error) {
	if config.APIKey == "" {
		return nil, ErrMissingAPIKey
	}
	if config.WebhookSecret == "" {
		return nil, ErrMissingSecret
	}
	if config.MonthlyPriceID == "" || config.LifetimePriceID == "" {
		return nil, ErrMissingPriceID
	}

	api := &client.API{}
	api.Init(config.APIKey, nil)

	return &StripeProvider{
		api:    api,
		config: config,
	}, nil
}

// CreateCheckoutSession creates a hosted Stripe checkout session.
// Lifetime maps to a one-time payment, everything else to a recurring
// subscription. The {userId, subType} metadata is set on every session:
// without it the webhook processor cannot attribute the resulting events.
func (p *StripeProvider) CreateCheckoutSession(ctx context.Context, req CheckoutSessionRequest) (*CheckoutSession, error) {
	if req.UserID == "" {
		return nil, ErrMissingUserID
	}

	mode := stripe.CheckoutSessionModeSubscription
	priceID := p.config.MonthlyPriceID
	if req.Tier == TierLifetime {
		mode = stripe.CheckoutSessionModePayment
		priceID = p.config.LifetimePriceID
	}

	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(mode)),
		SuccessURL: stripe.String(req.SuccessURL),
		CancelURL:  stripe.String(req.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	params.AddMetadata(metadataUserID, req.UserID)
	params.AddMetadata(metadataSubType, string(req.Tier))

	// Mirror the metadata onto the subscription object itself so that
	// subscription.* events, which do not carry the session, can still be
	// attributed to the user.
	if mode == stripe.CheckoutSessionModeSubscription {
		params.SubscriptionData = &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{
				metadataUserID:  req.UserID,
				metadataSubType: string(req.Tier),
			},
		}
	}

	if req.CustomerID != "" {
		params.Customer = stripe.String(req.CustomerID)
	}

	sess, err := p.api.CheckoutSessions.New(params)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	if sess.URL == "" {
		return nil, ErrNoCheckoutURL
	}

	return &CheckoutSession{ID: sess.ID, URL: sess.URL}, nil
}

// CreatePortalSession returns a link to Stripe's hosted billing portal.
func (p *StripeProvider) CreatePortalSession(ctx context.Context, customerID, returnURL string) (*PortalSession, error) {
	params := &stripe.BillingPortalSessionParams{
		Customer:  stripe.String(customerID),
		ReturnURL: stripe.String(returnURL),
	}
	params.Context = ctx

	sess, err := p.api.BillingPortalSessions.New(params)
	if err != nil {
		return nil, errors.Join(ErrProviderError, err)
	}
	if sess.URL == "" {
		return nil, ErrNoPortalURL
	}

	return &PortalSession{URL: sess.URL}, nil
}

// CancelSubscription cancels a Stripe subscription immediately.
func (p *StripeProvider) CancelSubscription(ctx context.Context, subscriptionID string) error {
	params := &stripe.SubscriptionCancelParams{}
	params.Context = ctx

	if _, err := p.api.Subscriptions.Cancel(subscriptionID, params); err != nil {
		return errors.Join(ErrProviderError, err)
	}
	return nil
}

// Session metadata keys echoed back by the provider on webhook events.
const (
	metadataUserID  = "userId"
	metadataSubType = "subType"
)

// ParseWebhook verifies the Stripe-Signature header against the shared
// webhook secret and normalizes the event. Verification happens before any
// payload field is read.
func (p *StripeProvider) ParseWebhook(ctx context.Context, payload []byte, signature string) (*WebhookEvent, error) {
	// Accounts pin their own API version; a drift from the SDK's pinned
	// version is not a forgery and must not drop authentic events.
	stripeEvent, err := webhook.ConstructEventWithOptions(payload, signature, p.config.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, errors.Join(ErrSignatureInvalid, err)
	}

	event := &WebhookEvent{
		ID:            stripeEvent.ID,
		ProviderEvent: string(stripeEvent.Type),
		OccurredAt:    time.Unix(stripeEvent.Created, 0).UTC(),
		Raw:           stripeEvent.Data.Raw,
	}

	switch string(stripeEvent.Type) {
	case "checkout.session.completed":
		event.Type = EventCheckoutCompleted
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("failed to parse checkout session payload: %w", err)
		}
		event.UserID = sess.Metadata[metadataUserID]
		if sess.Metadata[metadataSubType] != "" {
			event.SubType = Tier(sess.Metadata[metadataSubType])
		}
		if sess.Customer != nil {
			event.CustomerID = sess.Customer.ID
		}
		if sess.Subscription != nil {
			event.SubscriptionID = sess.Subscription.ID
		}

	case "customer.subscription.updated", "customer.subscription.deleted":
		if string(stripeEvent.Type) == "customer.subscription.updated" {
			event.Type = EventSubscriptionUpdated
		} else {
			event.Type = EventSubscriptionDeleted
		}
		var sub stripe.Subscription
		if err := json.Unmarshal(stripeEvent.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("failed to parse subscription payload: %w", err)
		}
		event.UserID = sub.Metadata[metadataUserID]
		event.SubscriptionID = sub.ID
		if sub.Customer != nil {
			event.CustomerID = sub.Customer.ID
		}
		event.CancelAtPeriodEnd = sub.CancelAtPeriodEnd
		switch {
		case sub.CancelAt > 0:
			event.CancelAt = time.Unix(sub.CancelAt, 0).UTC()
		case sub.CancelAtPeriodEnd && sub.CurrentPeriodEnd > 0:
			event.CancelAt = time.Unix(sub.CurrentPeriodEnd, 0).UTC()
		}

	case "invoice.payment_failed":
		event.Type = EventInvoicePaymentFailed
		var inv stripe.Invoice
		if err := json.Unmarshal(stripeEvent.Data.Raw, &inv); err != nil {
			return nil, fmt.Errorf("failed to parse invoice payload: %w", err)
		}
		if inv.Customer != nil {
			event.CustomerID = inv.Customer.ID
		}
		if inv.Subscription != nil {
			event.SubscriptionID = inv.Subscription.ID
		}

	default:
		event.Type = EventIgnored
	}

	return event, nil
}
