package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prepdeck/membership/pkg/billing"
	"github.com/prepdeck/membership/pkg/errlog"
	"github.com/prepdeck/membership/pkg/membership"
)

// HandleWebhook verifies, deduplicates, and applies a billing provider
// webhook delivery.
//
// A nil return means the delivery is settled and the provider must not
// retry: that covers applied events, replays, stale out-of-order
// events, and events we cannot attribute to a user. ErrInvalidWebhook
// means the signature failed and the payload is untrusted. Any other
// error is transient and the provider should redeliver.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	event, err := s.provider.ParseWebhook(ctx, payload, signature)
	if err != nil {
		if errors.Is(err, billing.ErrSignatureInvalid) {
			s.log.WarnContext(ctx, "webhook signature rejected", slog.String("error", err.Error()))
			return errors.Join(ErrInvalidWebhook, err)
		}
		return fmt.Errorf("failed to parse webhook: %w", err)
	}

	if event.Type == billing.EventIgnored {
		s.log.DebugContext(ctx, "ignoring webhook event",
			slog.String("event_id", event.ID),
			slog.String("provider_event", event.ProviderEvent))
		return nil
	}

	if s.alreadyProcessed(ctx, event.ID) {
		s.log.InfoContext(ctx, "skipping duplicate webhook event", slog.String("event_id", event.ID))
		return nil
	}

	if err := s.applyEvent(ctx, event); err != nil {
		return err
	}

	s.markProcessed(ctx, event.ID)
	return nil
}

// alreadyProcessed checks the dedupe store, failing open: an
// unavailable store means the event is treated as new, because the
// handlers are idempotent and a duplicate apply is cheaper than a
// dropped event.
func (s *Service) alreadyProcessed(ctx context.Context, eventID string) bool {
	if s.deduper == nil {
		return false
	}
	seen, err := s.deduper.Processed(ctx, eventID)
	if err != nil {
		s.log.WarnContext(ctx, "dedupe check failed, processing anyway",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
		return false
	}
	return seen
}

// markProcessed records the event id only after a successful apply, so
// a failed apply stays eligible for retry.
func (s *Service) markProcessed(ctx context.Context, eventID string) {
	if s.deduper == nil {
		return
	}
	if err := s.deduper.MarkProcessed(ctx, eventID); err != nil {
		s.log.WarnContext(ctx, "failed to mark webhook event processed",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()))
	}
}

func (s *Service) applyEvent(ctx context.Context, event *billing.WebhookEvent) error {
	userID, record, err := s.resolveUser(ctx, event)
	if err != nil {
		return err
	}
	if userID == "" {
		// Unattributable events settle as handled; retrying cannot
		// make a user id appear.
		s.report(ctx, "HandleWebhook",
			fmt.Errorf("cannot attribute %s event %s to a user (customer %q)", event.ProviderEvent, event.ID, event.CustomerID),
			errlog.WithSeverity(errlog.SeverityHigh),
			errlog.WithHumanMessage("Received a billing event for an unknown user"))
		return nil
	}

	if record != nil && !record.AcceptsEvent(event.OccurredAt) {
		s.log.InfoContext(ctx, "discarding stale webhook event",
			slog.String("event_id", event.ID),
			slog.String("user_id", userID),
			slog.Time("occurred_at", event.OccurredAt),
			slog.Time("watermark", record.EventWatermark))
		return nil
	}

	switch event.Type {
	case billing.EventCheckoutCompleted:
		return s.applyCheckoutCompleted(ctx, userID, record, event)
	case billing.EventSubscriptionUpdated:
		return s.applySubscriptionUpdated(ctx, userID, record, event)
	case billing.EventSubscriptionDeleted:
		return s.revokeMembership(ctx, userID, record, event)
	case billing.EventInvoicePaymentFailed:
		// Terminal payment failure: the provider exhausted its retries.
		// Downgrade like a deletion, and surface it for follow-up since
		// the user may not know their card stopped working.
		s.report(ctx, "HandleWebhook",
			fmt.Errorf("invoice payment failed for customer %s (user %s)", event.CustomerID, userID),
			errlog.WithBucket(errlog.BucketPayment),
			errlog.WithSeverity(errlog.SeverityHigh),
			errlog.WithHumanMessage("A member's payment failed and their access was revoked"))
		return s.revokeMembership(ctx, userID, record, event)
	default:
		return nil
	}
}

// resolveUser finds the user an event belongs to: checkout events carry
// the user id in metadata, subscription and invoice events are resolved
// through the stored customer id.
func (s *Service) resolveUser(ctx context.Context, event *billing.WebhookEvent) (string, *membership.Record, error) {
	if event.UserID != "" {
		record, err := s.store.Get(ctx, event.UserID)
		if errors.Is(err, membership.ErrNotFound) {
			return event.UserID, nil, nil
		}
		if err != nil {
			return "", nil, fmt.Errorf("failed to load membership record: %w", err)
		}
		return event.UserID, record, nil
	}

	if event.CustomerID == "" {
		return "", nil, nil
	}
	record, err := s.store.GetByCustomerID(ctx, event.CustomerID)
	if errors.Is(err, membership.ErrNotFound) {
		return "", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to resolve customer %s: %w", event.CustomerID, err)
	}
	return record.UserID, record, nil
}

func (s *Service) applyCheckoutCompleted(ctx context.Context, userID string, record *membership.Record, event *billing.WebhookEvent) error {
	tier, err := billing.ParseTier(string(event.SubType))
	if err != nil {
		s.report(ctx, "HandleWebhook",
			fmt.Errorf("checkout %s completed with unusable tier %q for user %s", event.ID, event.SubType, userID),
			errlog.WithBucket(errlog.BucketPayment),
			errlog.WithSeverity(errlog.SeverityHigh),
			errlog.WithHumanMessage("A checkout completed but the purchased tier is unknown"))
		return nil
	}

	// A lifetime purchase supersedes a running monthly subscription.
	// Cancel the old subscription best-effort: the membership upgrade
	// must land even if the provider call fails, so a failure is
	// reported for follow-up rather than returned.
	if tier == billing.TierLifetime && record != nil && record.SubscriptionID != "" {
		if err := s.provider.CancelSubscription(ctx, record.SubscriptionID); err != nil {
			s.report(ctx, "HandleWebhook", err,
				errlog.WithBucket(errlog.BucketPayment),
				errlog.WithSeverity(errlog.SeverityHigh),
				errlog.WithHumanMessage("Lifetime upgrade for user "+userID+" could not cancel subscription "+record.SubscriptionID))
		}
	}

	member := true
	status := membership.StatusActive
	update := membership.Update{
		Member:           &member,
		SubscriptionType: &tier,
		CustomerID:       event.CustomerID,
		ClearCancelAt:    true,
		Status:           &status,
		EventWatermark:   &event.OccurredAt,
	}
	if tier == billing.TierLifetime {
		// Lifetime access is not backed by a recurring subscription.
		empty := ""
		update.SubscriptionID = &empty
	} else if event.SubscriptionID != "" {
		update.SubscriptionID = &event.SubscriptionID
	}

	updated, err := s.store.Apply(ctx, userID, update)
	if err != nil {
		return fmt.Errorf("failed to apply checkout for user %s: %w", userID, err)
	}

	s.log.InfoContext(ctx, "checkout completed",
		slog.String("user_id", userID),
		slog.String("tier", string(tier)),
		slog.String("event_id", event.ID))
	s.syncClaims(ctx, updated)
	return nil
}

func (s *Service) applySubscriptionUpdated(ctx context.Context, userID string, record *membership.Record, event *billing.WebhookEvent) error {
	if skip, reason := s.subscriptionEventSkipped(record, event); skip {
		s.log.InfoContext(ctx, "ignoring subscription update",
			slog.String("event_id", event.ID),
			slog.String("user_id", userID),
			slog.String("reason", reason))
		return nil
	}

	var update membership.Update
	switch {
	case event.CancelAtPeriodEnd && !event.CancelAt.IsZero():
		// Cancellation scheduled: access continues until the deadline.
		update = membership.Update{
			CancelAt:       &event.CancelAt,
			EventWatermark: &event.OccurredAt,
		}
	case !event.CancelAtPeriodEnd && record.CancelAt != nil:
		// Cancellation undone before the deadline.
		update = membership.Update{
			ClearCancelAt:  true,
			EventWatermark: &event.OccurredAt,
		}
	default:
		// Plan or payment-method changes we do not track.
		return nil
	}

	updated, err := s.store.Apply(ctx, userID, update)
	if err != nil {
		return fmt.Errorf("failed to apply subscription update for user %s: %w", userID, err)
	}

	s.log.InfoContext(ctx, "subscription updated",
		slog.String("user_id", userID),
		slog.String("event_id", event.ID),
		slog.Bool("cancel_scheduled", updated.CancelAt != nil))
	s.syncClaims(ctx, updated)
	return nil
}

func (s *Service) revokeMembership(ctx context.Context, userID string, record *membership.Record, event *billing.WebhookEvent) error {
	if skip, reason := s.subscriptionEventSkipped(record, event); skip {
		s.log.InfoContext(ctx, "ignoring subscription deletion",
			slog.String("event_id", event.ID),
			slog.String("user_id", userID),
			slog.String("reason", reason))
		return nil
	}

	member := false
	status := membership.StatusInactive
	noTier := billing.Tier("")
	empty := ""
	updated, err := s.store.Apply(ctx, userID, membership.Update{
		Member:           &member,
		SubscriptionType: &noTier,
		SubscriptionID:   &empty,
		ClearCancelAt:    true,
		Status:           &status,
		EventWatermark:   &event.OccurredAt,
	})
	if err != nil {
		return fmt.Errorf("failed to apply subscription deletion for user %s: %w", userID, err)
	}

	s.log.InfoContext(ctx, "membership revoked",
		slog.String("user_id", userID),
		slog.String("event_id", event.ID),
		slog.String("provider_event", event.ProviderEvent))
	s.syncClaims(ctx, updated)
	return nil
}

// subscriptionEventSkipped guards the subscription branches: events for
// users without a record, for lifetime members (whose access no longer
// depends on any subscription), or for a subscription other than the
// one currently on file are all ignored. The last case covers the old
// monthly subscription emitting events after a lifetime upgrade
// replaced it.
func (s *Service) subscriptionEventSkipped(record *membership.Record, event *billing.WebhookEvent) (bool, string) {
	if record == nil {
		return true, "no membership record"
	}
	if record.SubscriptionType == billing.TierLifetime {
		return true, "lifetime member"
	}
	if event.SubscriptionID != "" && record.SubscriptionID != "" && event.SubscriptionID != record.SubscriptionID {
		return true, "subscription not current"
	}
	return false, ""
}
