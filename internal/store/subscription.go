package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/qrvivo/qrvivo/internal/model"
)

type SubscriptionStore struct {
	db *sql.DB
}

func NewSubscriptionStore(db *sql.DB) *SubscriptionStore {
	return &SubscriptionStore{db: db}
}

func scanSubscription(scanner interface{ Scan(...any) error }) (*model.Subscription, error) {
	var sub model.Subscription
	var customerID, subscriptionID sql.NullString
	var periodEnd sql.NullTime
	err := scanner.Scan(
		&sub.ID, &sub.AccountID, &customerID, &subscriptionID, &sub.Status,
		&periodEnd, &sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if customerID.Valid {
		sub.StripeCustomerID = &customerID.String
	}
	if subscriptionID.Valid {
		sub.StripeSubscriptionID = &subscriptionID.String
	}
	if periodEnd.Valid {
		t := periodEnd.Time.UTC()
		sub.CurrentPeriodEnd = &t
	}
	return &sub, nil
}

const subscriptionCols = `id, account_id, stripe_customer_id, stripe_subscription_id, status, current_period_end, created_at, updated_at`

// Upsert writes the reconciled subscription state for an account, creating
// the record on first sync. Both the webhook and the pull-sync path land
// here; they may race for the same account, which is safe because both
// derive the same fields from the same provider-side truth.
func (s *SubscriptionStore) Upsert(accountID int64, customerID, subscriptionID, status string, periodEnd *time.Time) (*model.Subscription, error) {
	_, err := s.db.Exec(
		`INSERT INTO subscriptions (account_id, stripe_customer_id, stripe_subscription_id, status, current_period_end)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(account_id) DO UPDATE SET
		     stripe_customer_id = excluded.stripe_customer_id,
		     stripe_subscription_id = excluded.stripe_subscription_id,
		     status = excluded.status,
		     current_period_end = excluded.current_period_end,
		     updated_at = CURRENT_TIMESTAMP`,
		accountID, customerID, subscriptionID, status, periodEnd,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert subscription: %w", err)
	}
	return s.GetByAccountID(accountID)
}

func (s *SubscriptionStore) GetByAccountID(accountID int64) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE account_id = ?`,
		accountID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by account: %w", err)
	}
	return sub, nil
}

func (s *SubscriptionStore) GetByStripeID(subscriptionID string) (*model.Subscription, error) {
	row := s.db.QueryRow(
		`SELECT `+subscriptionCols+` FROM subscriptions WHERE stripe_subscription_id = ?`,
		subscriptionID,
	)
	sub, err := scanSubscription(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription by stripe id: %w", err)
	}
	return sub, nil
}

// UpdateStatus writes the status and period end for an existing record.
// Applying the same values twice is a no-op by construction.
func (s *SubscriptionStore) UpdateStatus(id int64, status string, periodEnd *time.Time) error {
	_, err := s.db.Exec(
		`UPDATE subscriptions SET status = ?, current_period_end = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		status, periodEnd, id,
	)
	if err != nil {
		return fmt.Errorf("update subscription status: %w", err)
	}
	return nil
}
