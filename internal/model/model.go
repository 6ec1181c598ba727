package model

import "time"

type Account struct {
	ID            int64     `json:"id"`
	Email         string    `json:"email"`
	PasswordHash  string    `json:"-"`
	Name          string    `json:"name"`
	Phone         *string   `json:"phone"`
	CPF           *string   `json:"cpf"`
	Role          string    `json:"role"`
	TermsAccepted bool      `json:"terms_accepted"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Subscription is the local mirror of a Stripe subscription, one per account.
// CurrentPeriodEnd, when set, is the latest instant paid access is guaranteed
// and is authoritative over the Status string.
type Subscription struct {
	ID                   int64      `json:"id"`
	AccountID            int64      `json:"account_id"`
	StripeCustomerID     *string    `json:"stripe_customer_id"`
	StripeSubscriptionID *string    `json:"stripe_subscription_id"`
	Status               string     `json:"status"`
	CurrentPeriodEnd     *time.Time `json:"current_period_end"`
	CreatedAt            time.Time  `json:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at"`
}

// QRCode is a dynamic QR code: the public ID printed into the physical code
// never changes, while Payload can be edited at any time.
type QRCode struct {
	ID        string    `json:"id"`
	AccountID int64     `json:"account_id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Payload   string    `json:"payload"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Session struct {
	ID        int64     `json:"id"`
	Token     string    `json:"token"`
	AccountID int64     `json:"account_id"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}
