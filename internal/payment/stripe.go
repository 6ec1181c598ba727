// Package payment wraps the Stripe SDK behind provider-neutral types so the
// billing core can be exercised against fakes.
package payment

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
	"github.com/stripe/stripe-go/v82/webhook"
)

// Client talks to Stripe through its own API instance; no package-level key
// is set, so multiple clients (and test fakes) can coexist.
type Client struct {
	cfg Config
	api *client.API
}

func NewClient(cfg Config) *Client {
	api := &client.API{}
	api.Init(cfg.SecretKey, nil)
	return &Client{cfg: cfg, api: api}
}

// CreateCheckoutSession starts a subscription-mode checkout for the account
// and returns the hosted payment page URL. The account ID is written to both
// client_reference_id and metadata so the webhook handler can recover it from
// either field.
func (c *Client) CreateCheckoutSession(accountID int64, email, priceID string) (string, error) {
	ref := strconv.FormatInt(accountID, 10)
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(priceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:        stripe.String(c.cfg.BaseURL + "/app?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(c.cfg.BaseURL + "/pricing?canceled=true"),
		ClientReferenceID: stripe.String(ref),
		CustomerEmail:     stripe.String(email),
	}
	params.AddMetadata("account_id", ref)

	sess, err := c.api.CheckoutSessions.New(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// GetSubscription retrieves a subscription with its item prices expanded, so
// the recurring interval is always available to the caller.
func (c *Client) GetSubscription(id string) (*Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.AddExpand("items.data.price")

	s, err := c.api.Subscriptions.Get(id, params)
	if err != nil {
		return nil, fmt.Errorf("retrieve subscription %s: %w", id, err)
	}
	return fromStripeSubscription(s), nil
}

// UpdateSubscription schedules a cancellation. Prorations are always
// disabled; the wind-down timing comes entirely from cancel.
func (c *Client) UpdateSubscription(id string, cancel CancelParams) (*Subscription, error) {
	params := &stripe.SubscriptionParams{
		ProrationBehavior: stripe.String("none"),
	}
	if cancel.At.IsZero() {
		params.CancelAtPeriodEnd = stripe.Bool(cancel.AtPeriodEnd)
	} else {
		params.CancelAtPeriodEnd = stripe.Bool(false)
		params.CancelAt = stripe.Int64(cancel.At.Unix())
	}
	params.AddExpand("items.data.price")

	s, err := c.api.Subscriptions.Update(id, params)
	if err != nil {
		return nil, fmt.Errorf("update subscription %s: %w", id, err)
	}
	return fromStripeSubscription(s), nil
}

// ListActiveSubscriptions returns the customer's active subscriptions,
// newest first, capped at one: the sync engine only needs to know whether an
// active subscription exists and which one it is.
func (c *Client) ListActiveSubscriptions(customerID string) ([]*Subscription, error) {
	params := &stripe.SubscriptionListParams{
		Customer: stripe.String(customerID),
		Status:   stripe.String(string(stripe.SubscriptionStatusActive)),
	}
	params.Limit = stripe.Int64(1)

	var subs []*Subscription
	iter := c.api.Subscriptions.List(params)
	for iter.Next() {
		subs = append(subs, fromStripeSubscription(iter.Subscription()))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list subscriptions for %s: %w", customerID, err)
	}
	return subs, nil
}

func (c *Client) GetCheckoutSession(id string) (*CheckoutSession, error) {
	sess, err := c.api.CheckoutSessions.Get(id, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieve checkout session %s: %w", id, err)
	}
	return fromStripeCheckoutSession(sess), nil
}

// ListRecentCheckoutSessions returns the most recent checkout sessions across
// all customers, up to limit.
func (c *Client) ListRecentCheckoutSessions(limit int) ([]*CheckoutSession, error) {
	params := &stripe.CheckoutSessionListParams{}
	params.Limit = stripe.Int64(int64(limit))

	var sessions []*CheckoutSession
	iter := c.api.CheckoutSessions.List(params)
	for iter.Next() {
		sessions = append(sessions, fromStripeCheckoutSession(iter.CheckoutSession()))
		if len(sessions) >= limit {
			break
		}
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("list checkout sessions: %w", err)
	}
	return sessions, nil
}

// VerifyEvent checks the webhook signature against the shared secret and only
// then parses the payload. The API version pin is ignored so that provider
// dashboard upgrades do not silently drop events.
func (c *Client) VerifyEvent(payload []byte, sigHeader string) (*Event, error) {
	ev, err := webhook.ConstructEventWithOptions(payload, sigHeader, c.cfg.WebhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("verify webhook signature: %w", err)
	}
	return fromStripeEvent(ev)
}

func fromStripeEvent(ev stripe.Event) (*Event, error) {
	out := &Event{ID: ev.ID, Type: string(ev.Type)}

	switch ev.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(ev.Data.Raw, &sess); err != nil {
			return nil, fmt.Errorf("unmarshal checkout session: %w", err)
		}
		out.Checkout = fromStripeCheckoutSession(&sess)
	case "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(ev.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("unmarshal subscription: %w", err)
		}
		out.Subscription = fromStripeSubscription(&sub)
	}
	return out, nil
}

func fromStripeSubscription(s *stripe.Subscription) *Subscription {
	sub := &Subscription{
		ID:                s.ID,
		Status:            string(s.Status),
		CancelAtPeriodEnd: s.CancelAtPeriodEnd,
	}
	if s.Customer != nil {
		sub.CustomerID = s.Customer.ID
	}
	if s.CancelAt > 0 {
		sub.CancelAt = time.Unix(s.CancelAt, 0).UTC()
	}
	if s.Items != nil {
		for _, item := range s.Items.Data {
			if item == nil {
				continue
			}
			if item.CurrentPeriodEnd > 0 {
				sub.ItemPeriodEnds = append(sub.ItemPeriodEnds, time.Unix(item.CurrentPeriodEnd, 0).UTC())
			}
			if sub.Interval == "" && item.Price != nil && item.Price.Recurring != nil {
				sub.Interval = string(item.Price.Recurring.Interval)
			}
		}
	}
	return sub
}

func fromStripeCheckoutSession(s *stripe.CheckoutSession) *CheckoutSession {
	sess := &CheckoutSession{
		ID:                s.ID,
		URL:               s.URL,
		Status:            string(s.Status),
		ClientReferenceID: s.ClientReferenceID,
		Metadata:          s.Metadata,
		CustomerEmail:     s.CustomerEmail,
	}
	if sess.CustomerEmail == "" && s.CustomerDetails != nil {
		sess.CustomerEmail = s.CustomerDetails.Email
	}
	if s.Customer != nil {
		sess.CustomerID = s.Customer.ID
	}
	if s.Subscription != nil {
		sess.SubscriptionID = s.Subscription.ID
	}
	return sess
}
