package billing

import "errors"

var (
	ErrUnknownTier      = errors.New("unknown membership tier")
	ErrMissingAPIKey    = errors.New("billing provider API key is required")
	ErrMissingSecret    = errors.New("billing provider webhook secret is required")
	ErrMissingPriceID   = errors.New("billing provider price ID is required")
	ErrMissingUserID    = errors.New("user ID is required")
	ErrSignatureInvalid = errors.New("webhook signature verification failed")
	ErrNoCheckoutURL    = errors.New("no checkout URL returned from provider")
	ErrNoPortalURL      = errors.New("no portal URL returned from provider")
	ErrProviderError    = errors.New("billing provider error")
)
