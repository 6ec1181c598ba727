package billing

import (
	"fmt"

	"github.com/qrvivo/qrvivo/internal/model"
)

// InitiateCheckout starts a provider-hosted checkout for the given plan and
// returns the redirect URL. Nothing is written locally: the subscription
// record is created later, by whichever sync path sees the completed session
// first.
func (s *Service) InitiateCheckout(account *model.Account, plan string) (string, error) {
	if !s.cfg.Configured() || s.provider == nil {
		return "", fmt.Errorf("%w: STRIPE_SECRET_KEY is not set", ErrNotConfigured)
	}

	priceID := s.cfg.PriceIDForPlan(plan)
	if priceID == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidPlan, plan)
	}
	if !s.cfg.PriceConfigured(priceID) {
		return "", fmt.Errorf("%w: price reference for plan %q is a placeholder", ErrNotConfigured, plan)
	}

	url, err := s.provider.CreateCheckoutSession(account.ID, account.Email, priceID)
	if err != nil {
		return "", fmt.Errorf("initiate checkout: %w", err)
	}

	s.logger.Info("checkout session created", "account_id", account.ID, "plan", plan)
	return url, nil
}
