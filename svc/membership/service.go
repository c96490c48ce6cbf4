package membership

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prepdeck/membership/pkg/billing"
	"github.com/prepdeck/membership/pkg/claims"
	"github.com/prepdeck/membership/pkg/dedupe"
	"github.com/prepdeck/membership/pkg/errlog"
	"github.com/prepdeck/membership/pkg/membership"
)

// Service owns the membership lifecycle: it starts checkouts, applies
// billing webhook events to membership records, keeps identity claims
// in sync with those records, and expires lapsed members.
type Service struct {
	store    membership.Store
	provider billing.Provider
	claims   *claims.Synchronizer
	deduper  dedupe.Deduper
	errs     *errlog.Logger
	log      *slog.Logger
	now      func() time.Time
}

// Option configures optional Service collaborators.
type Option func(*Service)

// WithDeduper enables webhook event deduplication.
func WithDeduper(d dedupe.Deduper) Option {
	return func(s *Service) { s.deduper = d }
}

// WithErrorLog routes diagnostics to the deduplicating error log.
func WithErrorLog(l *errlog.Logger) Option {
	return func(s *Service) { s.errs = l }
}

// WithLogger sets the structured logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) {
		if log != nil {
			s.log = log
		}
	}
}

// WithNowFunc overrides the clock. Intended for tests.
func WithNowFunc(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// NewService creates the membership service. The store, billing
// provider, and claims synchronizer are required; passing nil panics.
func NewService(store membership.Store, provider billing.Provider, sync *claims.Synchronizer, opts ...Option) *Service {
	if store == nil {
		panic("membership service: store cannot be nil")
	}
	if provider == nil {
		panic("membership service: billing provider cannot be nil")
	}
	if sync == nil {
		panic("membership service: claims synchronizer cannot be nil")
	}

	s := &Service{
		store:    store,
		provider: provider,
		claims:   sync,
		log:      slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// StartCheckout creates a provider-hosted checkout session for the
// given tier. An existing billing customer is reused so the provider
// does not mint duplicate customers for repeat purchases.
func (s *Service) StartCheckout(ctx context.Context, userID string, tier billing.Tier, successURL, cancelURL string) (*billing.CheckoutSession, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}
	if _, err := billing.ParseTier(string(tier)); err != nil {
		return nil, err
	}

	var customerID string
	record, err := s.store.Get(ctx, userID)
	switch {
	case err == nil:
		customerID = record.CustomerID
	case errors.Is(err, membership.ErrNotFound):
		// First purchase; the provider creates the customer.
	default:
		return nil, fmt.Errorf("failed to load membership record: %w", err)
	}

	session, err := s.provider.CreateCheckoutSession(ctx, billing.CheckoutSessionRequest{
		UserID:     userID,
		Tier:       tier,
		CustomerID: customerID,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
	})
	if err != nil {
		s.report(ctx, "StartCheckout", err, errlog.WithBucket(errlog.BucketPayment),
			errlog.WithHumanMessage("Could not start checkout for user "+userID))
		return nil, err
	}

	s.log.InfoContext(ctx, "checkout session created",
		slog.String("user_id", userID),
		slog.String("tier", string(tier)),
		slog.String("session_id", session.ID))
	return session, nil
}

// ManageSubscription creates a billing portal session where the user
// can cancel, resume, or update payment details. Only users who have
// been through checkout have a billing customer to manage.
func (s *Service) ManageSubscription(ctx context.Context, userID, returnURL string) (*billing.PortalSession, error) {
	if userID == "" {
		return nil, ErrUnauthenticated
	}

	record, err := s.store.Get(ctx, userID)
	if errors.Is(err, membership.ErrNotFound) {
		return nil, ErrNoCustomer
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load membership record: %w", err)
	}
	if record.CustomerID == "" {
		return nil, ErrNoCustomer
	}

	session, err := s.provider.CreatePortalSession(ctx, record.CustomerID, returnURL)
	if err != nil {
		s.report(ctx, "ManageSubscription", err, errlog.WithBucket(errlog.BucketPayment),
			errlog.WithHumanMessage("Could not open billing portal for user "+userID))
		return nil, err
	}
	return session, nil
}

// CountMembers returns the number of paying members, excluding admins.
func (s *Service) CountMembers(ctx context.Context) (int64, error) {
	return s.store.CountMembers(ctx)
}

// claimsFor projects a membership record onto the identity claims that
// authorization checks read from the user's token.
func claimsFor(record *membership.Record) claims.Claims {
	c := claims.Claims{
		Member:  record.Member,
		IsAdmin: record.Admin,
	}
	switch record.SubscriptionType {
	case billing.TierMonthly:
		c.ProStatus = claims.ProStatusMonthly
	case billing.TierLifetime:
		c.ProStatus = claims.ProStatusLifetime
	}
	if record.CancelAt != nil {
		c.Expires = claims.ExpiresAt(record.CancelAt.Unix())
	}
	return c
}

// syncClaims pushes the record's claim projection to the identity
// provider. A failed write never fails the caller: the record is
// flagged for manual reconciliation instead, since the record itself
// is already durable and the claims are a recomputable projection.
func (s *Service) syncClaims(ctx context.Context, record *membership.Record) {
	_, err := s.claims.SyncAndRefresh(ctx, record.UserID, claimsFor(record))
	if err == nil {
		return
	}

	s.report(ctx, "syncClaims", err, errlog.WithSeverity(errlog.SeverityHigh),
		errlog.WithHumanMessage("Claims out of sync for user "+record.UserID))

	flag := true
	if _, flagErr := s.store.Apply(ctx, record.UserID, membership.Update{ManualClaimSyncRequired: &flag}); flagErr != nil {
		s.report(ctx, "syncClaims", flagErr, errlog.WithSeverity(errlog.SeverityHigh),
			errlog.WithHumanMessage("Failed to flag user "+record.UserID+" for manual claim sync"))
	}
}

// report routes an error to the deduplicating error log when one is
// configured, falling back to the structured logger.
func (s *Service) report(ctx context.Context, functionName string, err error, opts ...errlog.Option) {
	if s.errs != nil {
		s.errs.Report(ctx, functionName, err, opts...)
		return
	}
	s.log.ErrorContext(ctx, "membership service error",
		slog.String("function", functionName),
		slog.String("error", err.Error()))
}
