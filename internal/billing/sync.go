package billing

import (
	"fmt"
	"strconv"

	"github.com/qrvivo/qrvivo/internal/model"
	"github.com/qrvivo/qrvivo/internal/payment"
)

// SyncOutcome describes what a pull sync found.
type SyncOutcome string

const (
	// SyncSynced: the account's stored customer reference still has an
	// active subscription and the record was refreshed from it.
	SyncSynced SyncOutcome = "synced"
	// SyncActivated: a completed checkout session was resolved to its
	// subscription and the record was created or replaced.
	SyncActivated SyncOutcome = "activated"
	// SyncNotFound: nothing matched; not an error.
	SyncNotFound SyncOutcome = "no_subscription_found"
)

// recentSessionWindow bounds the best-effort checkout session scan.
const recentSessionWindow = 10

// ApplyEvent applies a verified webhook event to the local store (push sync).
// Stripe retries delivery, so applying the same event twice must land on the
// same record state; every branch below is an idempotent write.
func (s *Service) ApplyEvent(ev *payment.Event) error {
	switch ev.Type {
	case "checkout.session.completed":
		return s.applyCheckoutCompleted(ev.Checkout)
	case "customer.subscription.updated", "customer.subscription.deleted":
		return s.applySubscriptionChange(ev.Subscription)
	}
	// Unhandled event types are acknowledged so Stripe stops retrying them.
	s.logger.Debug("ignoring event", "type", ev.Type)
	return nil
}

func (s *Service) applyCheckoutCompleted(sess *payment.CheckoutSession) error {
	if sess == nil {
		return nil
	}

	accountID := accountIDFromSession(sess)
	if accountID == 0 || sess.SubscriptionID == "" {
		s.logger.Warn("checkout event missing account or subscription linkage", "checkout_session", sess.ID)
		return nil
	}

	// The checkout payload alone carries no period end or authoritative
	// status; fetch the full subscription before writing anything.
	sub, err := s.provider.GetSubscription(sess.SubscriptionID)
	if err != nil {
		return fmt.Errorf("resolve checkout subscription: %w", err)
	}

	if err := s.upsertRecord(accountID, sess.CustomerID, sub); err != nil {
		return err
	}
	s.logger.Info("checkout completed", "account_id", accountID, "subscription", sub.ID, "status", sub.Status)
	return nil
}

func (s *Service) applySubscriptionChange(sub *payment.Subscription) error {
	if sub == nil || sub.ID == "" {
		return nil
	}

	// Update events do not reliably carry the account linkage; the lookup
	// goes through the stored subscription reference instead.
	rec, err := s.subscriptions.GetByStripeID(sub.ID)
	if err != nil {
		return err
	}
	if rec == nil {
		// A subscription this system never recorded. Acknowledge silently.
		s.logger.Debug("event for unknown subscription", "subscription", sub.ID)
		return nil
	}

	until := AccessUntil(sub)
	var periodEnd = rec.CurrentPeriodEnd
	if !until.IsZero() {
		periodEnd = &until
	}
	if err := s.subscriptions.UpdateStatus(rec.ID, sub.Status, periodEnd); err != nil {
		return err
	}
	s.logger.Info("subscription updated", "subscription", sub.ID, "status", sub.Status)
	return nil
}

// accountIDFromSession recovers the account ID from a checkout session,
// preferring the client reference and falling back to metadata. Both are set
// at checkout creation; either surviving provider payload variation is enough.
func accountIDFromSession(sess *payment.CheckoutSession) int64 {
	for _, raw := range []string{sess.ClientReferenceID, sess.Metadata["account_id"]} {
		if raw == "" {
			continue
		}
		if id, err := strconv.ParseInt(raw, 10, 64); err == nil && id > 0 {
			return id
		}
	}
	return 0
}

// PullSync reconciles the account's record on demand (pull sync). It exists
// to close the race right after checkout redirect, before the webhook lands.
//
// Resolution order: an explicit checkout session ID beats everything; then
// the stored customer reference; then a bounded scan of recent checkout
// sessions matched on email. The scan is best-effort and can pick the wrong
// session for an account with several past attempts.
func (s *Service) PullSync(account *model.Account, checkoutSessionID string) (SyncOutcome, error) {
	if !s.cfg.Configured() || s.provider == nil {
		return "", ErrNotConfigured
	}

	if checkoutSessionID != "" {
		return s.syncFromCheckoutSession(account, checkoutSessionID)
	}

	rec, err := s.subscriptions.GetByAccountID(account.ID)
	if err != nil {
		return "", err
	}
	if rec != nil && rec.StripeCustomerID != nil && *rec.StripeCustomerID != "" {
		subs, err := s.provider.ListActiveSubscriptions(*rec.StripeCustomerID)
		if err != nil {
			return "", fmt.Errorf("list active subscriptions: %w", err)
		}
		if len(subs) > 0 {
			if err := s.upsertRecord(account.ID, *rec.StripeCustomerID, subs[0]); err != nil {
				return "", err
			}
			return SyncSynced, nil
		}
	}

	sessions, err := s.provider.ListRecentCheckoutSessions(recentSessionWindow)
	if err != nil {
		return "", fmt.Errorf("list checkout sessions: %w", err)
	}
	for _, sess := range sessions {
		if sess.CustomerEmail != account.Email || sess.Status != "complete" || sess.SubscriptionID == "" {
			continue
		}
		sub, err := s.provider.GetSubscription(sess.SubscriptionID)
		if err != nil {
			return "", fmt.Errorf("resolve checkout subscription: %w", err)
		}
		if err := s.upsertRecord(account.ID, sess.CustomerID, sub); err != nil {
			return "", err
		}
		s.logger.Info("subscription recovered from checkout session scan", "account_id", account.ID, "checkout_session", sess.ID)
		return SyncActivated, nil
	}

	return SyncNotFound, nil
}

func (s *Service) syncFromCheckoutSession(account *model.Account, sessionID string) (SyncOutcome, error) {
	sess, err := s.provider.GetCheckoutSession(sessionID)
	if err != nil {
		return "", fmt.Errorf("retrieve checkout session: %w", err)
	}
	if sess.SubscriptionID == "" {
		return SyncNotFound, nil
	}
	sub, err := s.provider.GetSubscription(sess.SubscriptionID)
	if err != nil {
		return "", fmt.Errorf("resolve checkout subscription: %w", err)
	}
	if err := s.upsertRecord(account.ID, sess.CustomerID, sub); err != nil {
		return "", err
	}
	return SyncActivated, nil
}
