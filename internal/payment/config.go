package payment

import "strings"

// PlanMonthly and PlanYearly are the only plan tags checkout accepts.
const (
	PlanMonthly = "monthly"
	PlanYearly  = "yearly"
)

type Config struct {
	SecretKey      string
	WebhookSecret  string
	MonthlyPriceID string
	YearlyPriceID  string
	// BaseURL is the origin checkout redirects back to.
	BaseURL string
}

// Configured reports whether the provider credential is present at all.
func (c Config) Configured() bool {
	return c.SecretKey != ""
}

// WebhookConfigured reports whether inbound events can be verified.
func (c Config) WebhookConfigured() bool {
	return c.WebhookSecret != ""
}

// PriceIDForPlan maps a plan tag to its price reference, or "" for an
// unrecognized tag.
func (c Config) PriceIDForPlan(plan string) string {
	switch plan {
	case PlanMonthly:
		return c.MonthlyPriceID
	case PlanYearly:
		return c.YearlyPriceID
	}
	return ""
}

// PriceConfigured reports whether a price reference has been replaced with a
// real Stripe price ID rather than left at its placeholder default.
func (c Config) PriceConfigured(priceID string) bool {
	return priceID != "" && !strings.Contains(priceID, "placeholder")
}
