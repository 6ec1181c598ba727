package payment

import "time"

// Subscription is the provider-neutral view of a Stripe subscription, carrying
// only the fields the billing core reconciles on.
type Subscription struct {
	ID                string
	CustomerID        string
	Status            string
	CancelAtPeriodEnd bool
	// CancelAt is an explicitly scheduled cancellation instant; zero when
	// none is scheduled.
	CancelAt time.Time
	// Interval is the recurring interval of the first priced item ("month",
	// "year"), or empty when the price carries no recurrence detail.
	Interval string
	// ItemPeriodEnds holds the current period end of every billable item.
	ItemPeriodEnds []time.Time
}

type CheckoutSession struct {
	ID                string
	URL               string
	Status            string
	ClientReferenceID string
	Metadata          map[string]string
	CustomerID        string
	SubscriptionID    string
	CustomerEmail     string
}

// Event is a verified, parsed webhook event. Exactly one of Checkout or
// Subscription is set depending on Type; both are nil for event types the
// system does not handle.
type Event struct {
	ID           string
	Type         string
	Checkout     *CheckoutSession
	Subscription *Subscription
}

// CancelParams selects how a subscription is wound down: at the natural end
// of the current period, or at an explicit instant.
type CancelParams struct {
	AtPeriodEnd bool
	At          time.Time
}
