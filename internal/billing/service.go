// Package billing reconciles local subscription state against Stripe, the
// source of truth. The webhook (push) and manual sync (pull) paths may race
// for the same account; neither takes a lock. Both compute the same derived
// fields from the same provider-side object, so their upserts converge and
// last-write-wins is safe.
package billing

import (
	"errors"
	"log/slog"
	"time"

	"github.com/qrvivo/qrvivo/internal/payment"
	"github.com/qrvivo/qrvivo/internal/store"
)

var (
	// ErrNotConfigured signals a deployment gap (missing credential, secret
	// or placeholder price reference), not a request problem.
	ErrNotConfigured = errors.New("payment provider not configured")

	// ErrInvalidPlan is returned for a plan tag outside monthly/yearly.
	ErrInvalidPlan = errors.New("unknown plan")

	// ErrNoSubscription is returned by user-initiated operations that need
	// an existing subscription record with a provider reference.
	ErrNoSubscription = errors.New("no subscription on record")
)

// Provider is the slice of Stripe the billing core depends on. *payment.Client
// implements it; tests substitute fakes.
type Provider interface {
	CreateCheckoutSession(accountID int64, email, priceID string) (string, error)
	GetSubscription(id string) (*payment.Subscription, error)
	UpdateSubscription(id string, cancel payment.CancelParams) (*payment.Subscription, error)
	ListActiveSubscriptions(customerID string) ([]*payment.Subscription, error)
	GetCheckoutSession(id string) (*payment.CheckoutSession, error)
	ListRecentCheckoutSessions(limit int) ([]*payment.CheckoutSession, error)
}

type Service struct {
	subscriptions *store.SubscriptionStore
	provider      Provider
	cfg           payment.Config
	logger        *slog.Logger
	now           func() time.Time
}

func NewService(subscriptions *store.SubscriptionStore, provider Provider, cfg payment.Config, logger *slog.Logger) *Service {
	return &Service{
		subscriptions: subscriptions,
		provider:      provider,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
	}
}

// AccessUntil computes the latest instant a subscription keeps paid access.
// An explicitly scheduled cancellation instant wins; otherwise the furthest
// item period end is used, so a multi-item subscription keeps access for its
// longest-covered item. Zero when the subscription carries neither.
func AccessUntil(sub *payment.Subscription) time.Time {
	if !sub.CancelAt.IsZero() {
		return sub.CancelAt
	}
	var latest time.Time
	for _, end := range sub.ItemPeriodEnds {
		if end.After(latest) {
			latest = end
		}
	}
	return latest
}

// upsertRecord writes the reconciled state for an account from a provider
// subscription object. Shared by the push and pull paths so both derive the
// record the same way.
func (s *Service) upsertRecord(accountID int64, customerID string, sub *payment.Subscription) error {
	if customerID == "" {
		customerID = sub.CustomerID
	}
	until := AccessUntil(sub)
	var periodEnd *time.Time
	if !until.IsZero() {
		periodEnd = &until
	}
	_, err := s.subscriptions.Upsert(accountID, customerID, sub.ID, sub.Status, periodEnd)
	return err
}
