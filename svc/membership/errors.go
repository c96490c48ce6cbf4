package membership

import "errors"

var (
	// ErrUnauthenticated is returned when an operation requires a signed-in user.
	ErrUnauthenticated = errors.New("membership service: user not authenticated")
	// ErrNoCustomer is returned when a user without billing history asks
	// for the subscription portal.
	ErrNoCustomer = errors.New("membership service: user has no billing customer")
	// ErrInvalidWebhook is returned for webhook payloads that fail
	// signature verification. Callers must respond with a client error
	// so the provider does not retry a forged delivery.
	ErrInvalidWebhook = errors.New("membership service: webhook rejected")
)
