package billing

import (
	"fmt"
	"time"

	"github.com/qrvivo/qrvivo/internal/model"
	"github.com/qrvivo/qrvivo/internal/payment"
)

// yearlyWindDown is the fixed notice window granted to annual subscribers.
// Cancelling at period end would keep access (already paid) for up to twelve
// months; thirty days is the product's deliberate middle ground.
const yearlyWindDown = 30 * 24 * time.Hour

// CancelResult is what the caller displays after a cancellation.
type CancelResult struct {
	Status string
	// AccessUntil is the recomputed access expiry; zero when the provider
	// returned no usable timing.
	AccessUntil time.Time
	Interval    string
}

// Cancel schedules the end of the account's subscription with the provider
// and persists the resulting state. The provider is mutated first and the
// record written only from its returned object, so a provider failure leaves
// local state untouched.
func (s *Service) Cancel(account *model.Account) (*CancelResult, error) {
	if !s.cfg.Configured() || s.provider == nil {
		return nil, ErrNotConfigured
	}

	rec, err := s.subscriptions.GetByAccountID(account.ID)
	if err != nil {
		return nil, err
	}
	if rec == nil || rec.StripeSubscriptionID == nil || *rec.StripeSubscriptionID == "" {
		return nil, ErrNoSubscription
	}
	subscriptionID := *rec.StripeSubscriptionID

	live, err := s.provider.GetSubscription(subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription: %w", err)
	}

	var cancel payment.CancelParams
	switch live.Interval {
	case "year":
		cancel = payment.CancelParams{At: s.now().Add(yearlyWindDown)}
	default:
		// Monthly, and the safe fallback when the interval is unknown:
		// let the current period run out.
		cancel = payment.CancelParams{AtPeriodEnd: true}
	}

	updated, err := s.provider.UpdateSubscription(subscriptionID, cancel)
	if err != nil {
		return nil, fmt.Errorf("schedule cancellation: %w", err)
	}

	until := AccessUntil(updated)
	var periodEnd *time.Time
	if !until.IsZero() {
		periodEnd = &until
	}
	if err := s.subscriptions.UpdateStatus(rec.ID, updated.Status, periodEnd); err != nil {
		return nil, err
	}

	s.logger.Info("cancellation scheduled",
		"account_id", account.ID,
		"subscription", subscriptionID,
		"interval", live.Interval,
		"access_until", until,
	)
	return &CancelResult{Status: updated.Status, AccessUntil: until, Interval: live.Interval}, nil
}
