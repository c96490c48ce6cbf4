package membership

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/prepdeck/membership/pkg/billing"
	"github.com/prepdeck/membership/pkg/errlog"
	"github.com/prepdeck/membership/pkg/membership"
	"github.com/prepdeck/membership/pkg/schedule"
)

// ExpireDue downgrades every member whose cancellation deadline has
// passed. The sweep is idempotent: an already-downgraded record no
// longer matches the expiry query, so re-running after a partial
// failure only touches the leftovers. Returns the number of records
// expired; per-record failures are reported and skipped so one bad
// record cannot wedge the whole sweep.
func (s *Service) ExpireDue(ctx context.Context) (int, error) {
	now := s.now().UTC()
	due, err := s.store.ListExpired(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("failed to list expired members: %w", err)
	}

	member := false
	status := membership.StatusInactive
	noTier := billing.Tier("")
	empty := ""

	var expired int
	for _, record := range due {
		// The watermark tracks provider event times only; stamping the
		// sweep tick here would discard any checkout created before the
		// tick but delivered after it.
		updated, err := s.store.Apply(ctx, record.UserID, membership.Update{
			Member:           &member,
			SubscriptionType: &noTier,
			SubscriptionID:   &empty,
			ClearCancelAt:    true,
			Status:           &status,
		})
		if err != nil {
			s.report(ctx, "ExpireDue", err,
				errlog.WithSeverity(errlog.SeverityHigh),
				errlog.WithHumanMessage("Failed to expire membership for user "+record.UserID))
			continue
		}
		expired++

		s.log.InfoContext(ctx, "membership expired",
			slog.String("user_id", record.UserID),
			slog.Time("cancel_at", *record.CancelAt))
		s.syncClaims(ctx, updated)
	}

	if len(due) > 0 {
		s.log.InfoContext(ctx, "expiry sweep finished",
			slog.Int("due", len(due)),
			slog.Int("expired", expired))
	}
	return expired, nil
}

// RunManualClaimSync retries the claim write for every record flagged
// by a failed post-mutation sync, clearing the flag on success. Returns
// the number of records whose flag was cleared.
func (s *Service) RunManualClaimSync(ctx context.Context) (int, error) {
	flagged, err := s.store.ListManualSyncRequired(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list records needing claim sync: %w", err)
	}

	var synced int
	for _, record := range flagged {
		if _, err := s.claims.SyncAndRefresh(ctx, record.UserID, claimsFor(record)); err != nil {
			s.report(ctx, "RunManualClaimSync", err,
				errlog.WithSeverity(errlog.SeverityHigh),
				errlog.WithHumanMessage("Claims still out of sync for user "+record.UserID))
			continue
		}

		cleared := false
		if _, err := s.store.Apply(ctx, record.UserID, membership.Update{ManualClaimSyncRequired: &cleared}); err != nil {
			s.report(ctx, "RunManualClaimSync", err,
				errlog.WithHumanMessage("Failed to clear claim sync flag for user "+record.UserID))
			continue
		}
		synced++
	}

	if len(flagged) > 0 {
		s.log.InfoContext(ctx, "manual claim sync finished",
			slog.Int("flagged", len(flagged)),
			slog.Int("synced", synced))
	}
	return synced, nil
}

// RegisterJobs wires the service's periodic maintenance into a runner:
// the nightly expiry sweep and an hourly claim reconciliation pass.
func (s *Service) RegisterJobs(runner *schedule.Runner, sweepAt time.Duration) error {
	hour := int(sweepAt / time.Hour)
	minute := int(sweepAt/time.Minute) % 60

	if err := runner.AddJob("membership-expiry-sweep", schedule.DailyAt(hour, minute, time.UTC), func(ctx context.Context) error {
		_, err := s.ExpireDue(ctx)
		return err
	}); err != nil {
		return err
	}

	return runner.AddJob("membership-claim-reconcile", schedule.Every(time.Hour), func(ctx context.Context) error {
		_, err := s.RunManualClaimSync(ctx)
		return err
	})
}
