// Package billing integrates the payment provider behind a small Provider
// interface: hosted checkout sessions, the self-service portal,
// subscription cancellation, and signature-verified webhook parsing.
//
// Events are normalized into WebhookEvent so the webhook processor in
// svc/membership is independent of provider wire formats.
package billing
