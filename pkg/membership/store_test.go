package membership_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepdeck/membership/pkg/billing"
	"github.com/prepdeck/membership/pkg/membership"
)

func boolPtr(v bool) *bool { return &v }

func strPtr(v string) *string { return &v }

func tierPtr(v billing.Tier) *billing.Tier { return &v }

func timePtr(v time.Time) *time.Time { return &v }

func TestApply_CreatesRecordOnFirstTouch(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := membership.NewMemoryStore()

	record, err := store.Apply(ctx, "u1", membership.Update{
		Member:           boolPtr(true),
		SubscriptionType: tierPtr(billing.TierMonthly),
		SubscriptionID:   strPtr("sub_1"),
		CustomerID:       "cus_1",
		Status:           strPtr(membership.StatusActive),
	})
	require.NoError(t, err)

	assert.Equal(t, "u1", record.UserID)
	assert.True(t, record.Member)
	assert.Equal(t, billing.TierMonthly, record.SubscriptionType)
	assert.Equal(t, "sub_1", record.SubscriptionID)
	assert.Equal(t, "cus_1", record.CustomerID)
	assert.Equal(t, membership.StatusActive, record.Status)
	assert.False(t, record.UpdatedAt.IsZero())

	loaded, err := store.Get(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)
}

func TestApply_MergePreservesUntouchedFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := membership.NewMemoryStore()

	_, err := store.Apply(ctx, "u1", membership.Update{
		Member:           boolPtr(true),
		SubscriptionType: tierPtr(billing.TierMonthly),
		SubscriptionID:   strPtr("sub_1"),
		CustomerID:       "cus_1",
	})
	require.NoError(t, err)

	cancelAt := time.Now().AddDate(0, 1, 0)
	record, err := store.Apply(ctx, "u1", membership.Update{
		CancelAt: timePtr(cancelAt),
	})
	require.NoError(t, err)

	assert.True(t, record.Member, "member flag must survive unrelated updates")
	assert.Equal(t, "sub_1", record.SubscriptionID)
	require.NotNil(t, record.CancelAt)
	assert.True(t, record.CancelAt.Equal(cancelAt.UTC()))
}

func TestApply_CustomerIDIsSetOnce(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := membership.NewMemoryStore()

	_, err := store.Apply(ctx, "u1", membership.Update{CustomerID: "cus_first"})
	require.NoError(t, err)

	record, err := store.Apply(ctx, "u1", membership.Update{CustomerID: "cus_second"})
	require.NoError(t, err)
	assert.Equal(t, "cus_first", record.CustomerID, "existing customer id must never be overwritten")
}

func TestApply_ClearsFields(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := membership.NewMemoryStore()

	cancelAt := time.Now().AddDate(0, 1, 0)
	_, err := store.Apply(ctx, "u1", membership.Update{
		Member:         boolPtr(true),
		SubscriptionID: strPtr("sub_1"),
		CancelAt:       timePtr(cancelAt),
	})
	require.NoError(t, err)

	record, err := store.Apply(ctx, "u1", membership.Update{
		SubscriptionID: strPtr(""),
		ClearCancelAt:  true,
	})
	require.NoError(t, err)

	assert.Empty(t, record.SubscriptionID)
	assert.Nil(t, record.CancelAt)
	assert.True(t, record.Member, "clearing subscription fields must not touch membership")
}

func TestApply_Validation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := membership.NewMemoryStore()

	_, err := store.Apply(ctx, "", membership.Update{Member: boolPtr(true)})
	assert.ErrorIs(t, err, membership.ErrUserIDRequired)

	_, err = store.Apply(ctx, "u1", membership.Update{})
	assert.ErrorIs(t, err, membership.ErrEmptyUpdate)
}

func TestGetByCustomerID(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := membership.NewMemoryStore()

	_, err := store.Apply(ctx, "u1", membership.Update{CustomerID: "cus_1"})
	require.NoError(t, err)

	record, err := store.GetByCustomerID(ctx, "cus_1")
	require.NoError(t, err)
	assert.Equal(t, "u1", record.UserID)

	_, err = store.GetByCustomerID(ctx, "cus_missing")
	assert.ErrorIs(t, err, membership.ErrNotFound)

	_, err = store.GetByCustomerID(ctx, "")
	assert.ErrorIs(t, err, membership.ErrNotFound)
}

func TestListExpired(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := membership.NewMemoryStore()
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	store.Seed(&membership.Record{UserID: "expired", Member: true, CancelAt: &past})
	store.Seed(&membership.Record{UserID: "pending", Member: true, CancelAt: &future})
	store.Seed(&membership.Record{UserID: "renewing", Member: true})
	store.Seed(&membership.Record{UserID: "gone", Member: false, CancelAt: &past})

	expired, err := store.ListExpired(ctx, now)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "expired", expired[0].UserID)
}

func TestCountMembers_ExcludesAdmins(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := membership.NewMemoryStore()

	store.Seed(&membership.Record{UserID: "u1", Member: true})
	store.Seed(&membership.Record{UserID: "u2", Member: true})
	store.Seed(&membership.Record{UserID: "admin", Member: true, Admin: true})
	store.Seed(&membership.Record{UserID: "free", Member: false})

	count, err := store.CountMembers(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestRecord_AcceptsEvent(t *testing.T) {
	t.Parallel()

	watermark := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	record := &membership.Record{UserID: "u1", EventWatermark: watermark}

	assert.True(t, record.AcceptsEvent(watermark.Add(time.Second)))
	assert.True(t, record.AcceptsEvent(watermark), "distinct events can share the watermark's second")
	assert.False(t, record.AcceptsEvent(watermark.Add(-time.Second)))

	fresh := &membership.Record{UserID: "u2"}
	assert.True(t, fresh.AcceptsEvent(watermark), "fresh records accept any event")
}
