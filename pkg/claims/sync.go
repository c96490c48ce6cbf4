package claims

import (
	"context"
	"fmt"
	"log/slog"
)

// Synchronizer pushes desired claim sets into the identity provider. It
// compares before writing so routine no-op syncs (renewals, repeated webhook
// deliveries) cause no identity-provider churn.
type Synchronizer struct {
	provider IdentityProvider
	log      *slog.Logger
}

// NewSynchronizer creates a synchronizer.
// Panics if provider or log is nil to fail fast during initialization.
func NewSynchronizer(provider IdentityProvider, log *slog.Logger) *Synchronizer {
	if provider == nil {
		panic("claims: identity provider is required")
	}
	if log == nil {
		panic("claims: logger is required")
	}
	return &Synchronizer{provider: provider, log: log}
}

// Sync writes desired claims for the user if they differ from the current
// ones. Returns whether a write happened.
func (s *Synchronizer) Sync(ctx context.Context, userID string, desired Claims) (bool, error) {
	if userID == "" {
		return false, ErrUserIDRequired
	}

	current, err := s.provider.GetClaims(ctx, userID)
	if err != nil {
		return false, fmt.Errorf("failed to read current claims: %w", err)
	}

	if current.Equal(desired) {
		s.log.Debug("claims already up to date", slog.String("user_id", userID))
		return false, nil
	}

	if err := s.provider.SetClaims(ctx, userID, desired); err != nil {
		return false, fmt.Errorf("failed to write claims: %w", err)
	}

	s.log.Info("claims updated",
		slog.String("user_id", userID),
		slog.Bool("member", desired.Member),
		slog.String("pro_status", string(desired.ProStatus)),
	)

	return true, nil
}

// SyncAndRefresh syncs claims and, when a write happened, revokes the user's
// refresh tokens so the change takes effect on the next request instead of
// waiting out the current token's lifetime. Revocation failure is logged but
// not returned: the claims are correct and will land on natural refresh.
func (s *Synchronizer) SyncAndRefresh(ctx context.Context, userID string, desired Claims) (bool, error) {
	wrote, err := s.Sync(ctx, userID, desired)
	if err != nil || !wrote {
		return wrote, err
	}

	if err := s.provider.RevokeRefreshTokens(ctx, userID); err != nil {
		s.log.Warn("failed to force token refresh after claims update",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}

	return true, nil
}
