package membership_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/membership/pkg/billing"
	"github.com/prepdeck/membership/pkg/claims"
	"github.com/prepdeck/membership/pkg/dedupe"
	"github.com/prepdeck/membership/pkg/errlog"
	"github.com/prepdeck/membership/pkg/membership"
	svc "github.com/prepdeck/membership/svc/membership"
)

func (f *fixture) deliver(t *testing.T, event *billing.WebhookEvent) {
	t.Helper()
	f.provider.mu.Lock()
	f.provider.event = event
	f.provider.mu.Unlock()
	require.NoError(t, f.svc.HandleWebhook(context.Background(), []byte("{}"), "sig"))
}

func checkoutEvent(id, userID string, tier billing.Tier, at time.Time) *billing.WebhookEvent {
	return &billing.WebhookEvent{
		ID:             id,
		Type:           billing.EventCheckoutCompleted,
		ProviderEvent:  "checkout.session.completed",
		OccurredAt:     at,
		UserID:         userID,
		SubType:        tier,
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	}
}

func TestHandleWebhook_SignatureFailureRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	f.provider.parseErr = errors.Join(billing.ErrSignatureInvalid, errors.New("bad sig"))

	err := f.svc.HandleWebhook(context.Background(), []byte("{}"), "bad")
	assert.ErrorIs(t, err, svc.ErrInvalidWebhook)
}

func TestHandleWebhook_CheckoutCompletedMonthly(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	f.deliver(t, checkoutEvent("evt_1", "u1", billing.TierMonthly, at))

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member)
	assert.Equal(t, billing.TierMonthly, record.SubscriptionType)
	assert.Equal(t, "sub_1", record.SubscriptionID)
	assert.Equal(t, "cus_1", record.CustomerID)
	assert.Equal(t, membership.StatusActive, record.Status)
	assert.Nil(t, record.CancelAt)
	assert.True(t, record.EventWatermark.Equal(at))

	got, err := f.identity.GetClaims(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, got.Member)
	assert.Equal(t, claims.ProStatusMonthly, got.ProStatus)
	assert.Nil(t, got.Expires)
	assert.Equal(t, 1, f.identity.Revokes("u1"), "claim write forces a token refresh")
}

func TestHandleWebhook_LifetimeUpgradeCancelsOldSubscription(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	// Monthly first.
	f.deliver(t, checkoutEvent("evt_1", "u1", billing.TierMonthly, base))

	// Lifetime purchase supersedes it.
	lifetime := checkoutEvent("evt_2", "u1", billing.TierLifetime, base.Add(time.Hour))
	lifetime.SubscriptionID = ""
	f.deliver(t, lifetime)

	assert.Equal(t, []string{"sub_1"}, f.provider.cancelled, "old recurring subscription must be cancelled")

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member)
	assert.Equal(t, billing.TierLifetime, record.SubscriptionType)
	assert.Empty(t, record.SubscriptionID, "lifetime access carries no subscription")
	assert.Equal(t, "cus_1", record.CustomerID)

	// The cancelled subscription's trailing deletion event must not
	// downgrade the lifetime member.
	f.deliver(t, &billing.WebhookEvent{
		ID:             "evt_3",
		Type:           billing.EventSubscriptionDeleted,
		ProviderEvent:  "customer.subscription.deleted",
		OccurredAt:     base.Add(2 * time.Hour),
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	})

	record, err = f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member)
	assert.Equal(t, billing.TierLifetime, record.SubscriptionType)
}

func TestHandleWebhook_LifetimeUpgradeSurvivesCancelFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	f.deliver(t, checkoutEvent("evt_1", "u1", billing.TierMonthly, base))
	f.provider.cancelErr = errors.New("provider down")

	f.deliver(t, checkoutEvent("evt_2", "u1", billing.TierLifetime, base.Add(time.Hour)))

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, billing.TierLifetime, record.SubscriptionType, "upgrade lands even when the provider cancel fails")
}

func TestHandleWebhook_SubscriptionCancelAndResume(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	cancelAt := base.AddDate(0, 1, 0)

	f.deliver(t, checkoutEvent("evt_1", "u1", billing.TierMonthly, base))

	// Cancellation scheduled; resolved via customer id, as subscription
	// events carry no user metadata by default.
	f.deliver(t, &billing.WebhookEvent{
		ID:                "evt_2",
		Type:              billing.EventSubscriptionUpdated,
		ProviderEvent:     "customer.subscription.updated",
		OccurredAt:        base.Add(time.Hour),
		SubscriptionID:    "sub_1",
		CustomerID:        "cus_1",
		CancelAtPeriodEnd: true,
		CancelAt:          cancelAt,
	})

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member, "access continues until the deadline")
	require.NotNil(t, record.CancelAt)
	assert.True(t, record.CancelAt.Equal(cancelAt))

	got, err := f.identity.GetClaims(ctx, "u1")
	require.NoError(t, err)
	require.NotNil(t, got.Expires)
	assert.Equal(t, cancelAt.Unix(), *got.Expires)

	// Resumed before the deadline.
	f.deliver(t, &billing.WebhookEvent{
		ID:             "evt_3",
		Type:           billing.EventSubscriptionUpdated,
		ProviderEvent:  "customer.subscription.updated",
		OccurredAt:     base.Add(2 * time.Hour),
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	})

	record, err = f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, record.CancelAt)

	got, err = f.identity.GetClaims(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, got.Expires)
}

func TestHandleWebhook_SubscriptionUpdateNoop(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	f.deliver(t, checkoutEvent("evt_1", "u1", billing.TierMonthly, base))
	writesAfterCheckout := f.identity.Writes("u1")

	// Payment method changed: nothing we track.
	f.deliver(t, &billing.WebhookEvent{
		ID:             "evt_2",
		Type:           billing.EventSubscriptionUpdated,
		ProviderEvent:  "customer.subscription.updated",
		OccurredAt:     base.Add(time.Hour),
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	})

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member)
	assert.Nil(t, record.CancelAt)
	assert.Equal(t, writesAfterCheckout, f.identity.Writes("u1"), "no-op events write nothing")
}

func TestHandleWebhook_SubscriptionDeleted(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	f.deliver(t, checkoutEvent("evt_1", "u1", billing.TierMonthly, base))

	f.deliver(t, &billing.WebhookEvent{
		ID:             "evt_2",
		Type:           billing.EventSubscriptionDeleted,
		ProviderEvent:  "customer.subscription.deleted",
		OccurredAt:     base.Add(time.Hour),
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	})

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, record.Member)
	assert.Empty(t, record.SubscriptionType)
	assert.Empty(t, record.SubscriptionID)
	assert.Equal(t, membership.StatusInactive, record.Status)
	assert.Equal(t, "cus_1", record.CustomerID, "billing history survives the downgrade")

	got, err := f.identity.GetClaims(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Member)
	assert.Empty(t, got.ProStatus)
}

func TestHandleWebhook_StaleEventDiscarded(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	f.deliver(t, checkoutEvent("evt_1", "u1", billing.TierMonthly, base))

	// A deletion that happened before the checkout arrives late.
	f.deliver(t, &billing.WebhookEvent{
		ID:             "evt_0",
		Type:           billing.EventSubscriptionDeleted,
		ProviderEvent:  "customer.subscription.deleted",
		OccurredAt:     base.Add(-time.Hour),
		SubscriptionID: "sub_1",
		CustomerID:     "cus_1",
	})

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member, "out-of-order events must not rewind state")
}

func TestHandleWebhook_DuplicateDeliverySkipped(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t, svc.WithDeduper(dedupe.NewMemoryDeduper(time.Hour)))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	event := checkoutEvent("evt_1", "u1", billing.TierMonthly, base)
	f.deliver(t, event)
	writes := f.identity.Writes("u1")

	f.deliver(t, event)
	assert.Equal(t, writes, f.identity.Writes("u1"), "redelivery must not reprocess")

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member)
}

func TestHandleWebhook_UnattributableEventSettles(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	// Unknown customer, no user metadata: settle without writing.
	f.deliver(t, &billing.WebhookEvent{
		ID:             "evt_1",
		Type:           billing.EventSubscriptionDeleted,
		ProviderEvent:  "customer.subscription.deleted",
		OccurredAt:     time.Now(),
		SubscriptionID: "sub_9",
		CustomerID:     "cus_unknown",
	})

	count, err := f.store.CountMembers(context.Background())
	require.NoError(t, err)
	assert.Zero(t, count)
}

func TestHandleWebhook_InvoicePaymentFailedRevokesAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	errStore := errlog.NewMemoryStore()
	f := newFixture(t, svc.WithErrorLog(errlog.New(errStore, errlog.Config{}, log)))
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	f.deliver(t, checkoutEvent("evt_1", "u1", billing.TierMonthly, base))

	f.deliver(t, &billing.WebhookEvent{
		ID:            "evt_2",
		Type:          billing.EventInvoicePaymentFailed,
		ProviderEvent: "invoice.payment_failed",
		OccurredAt:    base.Add(time.Hour),
		CustomerID:    "cus_1",
	})

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, record.Member, "terminal payment failure revokes access")
	assert.Empty(t, record.SubscriptionType)

	got, err := f.identity.GetClaims(ctx, "u1")
	require.NoError(t, err)
	assert.False(t, got.Member)

	entries := errStore.Entries()
	require.NotEmpty(t, entries)
	found := false
	for _, entry := range entries {
		if entry.Bucket == errlog.BucketPayment {
			found = true
		}
	}
	assert.True(t, found, "payment failure lands in the payment bucket")
}

func TestHandleWebhook_InvoicePaymentFailedSparesLifetime(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	f := newFixture(t)
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	lifetime := checkoutEvent("evt_1", "u1", billing.TierLifetime, base)
	lifetime.SubscriptionID = ""
	f.deliver(t, lifetime)

	// A trailing invoice failure from the superseded monthly plan.
	f.deliver(t, &billing.WebhookEvent{
		ID:            "evt_2",
		Type:          billing.EventInvoicePaymentFailed,
		ProviderEvent: "invoice.payment_failed",
		OccurredAt:    base.Add(time.Hour),
		CustomerID:    "cus_1",
	})

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member, "lifetime access does not depend on invoices")
	assert.Equal(t, billing.TierLifetime, record.SubscriptionType)
}

func TestHandleWebhook_ClaimSyncFailureFlagsRecord(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := membership.NewMemoryStore()
	provider := &fakeProvider{}
	f := &fixture{
		svc:      svc.NewService(store, provider, claims.NewSynchronizer(failingIdentity{}, log), svc.WithLogger(log)),
		store:    store,
		provider: provider,
	}

	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f.deliver(t, checkoutEvent("evt_1", "u1", billing.TierMonthly, base))

	record, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member, "the record write holds even when claims fail")
	assert.True(t, record.ManualClaimSyncRequired, "failed claim writes queue reconciliation")
}

func TestHandleWebhook_CheckoutBeforeSweepDeliveredAfter(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	sweepTime := time.Date(2024, 6, 1, 3, 0, 0, 0, time.UTC)
	f := newFixture(t, svc.WithNowFunc(func() time.Time { return sweepTime }))

	lapsed := sweepTime.Add(-time.Hour)
	f.store.Seed(&membership.Record{
		UserID: "u1", Member: true,
		SubscriptionType: billing.TierMonthly,
		SubscriptionID:   "sub_0",
		CustomerID:       "cus_1",
		CancelAt:         &lapsed,
		Status:           membership.StatusActive,
		EventWatermark:   lapsed,
	})

	expired, err := f.svc.ExpireDue(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	// The renewal checkout happened a second before the sweep tick but
	// its webhook lands after it. The sweep write carries no watermark,
	// so the checkout still applies.
	f.deliver(t, checkoutEvent("evt_renew", "u1", billing.TierMonthly, sweepTime.Add(-time.Second)))

	record, err := f.store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.True(t, record.Member, "a paid checkout must not be discarded as stale")
	assert.Equal(t, billing.TierMonthly, record.SubscriptionType)
	assert.Equal(t, membership.StatusActive, record.Status)
}
