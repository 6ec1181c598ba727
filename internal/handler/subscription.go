package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/qrvivo/qrvivo/internal/access"
	"github.com/qrvivo/qrvivo/internal/auth"
	"github.com/qrvivo/qrvivo/internal/billing"
	"github.com/qrvivo/qrvivo/internal/store"
)

type SubscriptionHandler struct {
	svc               *billing.Service
	accountStore      *store.AccountStore
	subscriptionStore *store.SubscriptionStore
	logger            *slog.Logger
}

func NewSubscriptionHandler(svc *billing.Service, as *store.AccountStore, ss *store.SubscriptionStore, logger *slog.Logger) *SubscriptionHandler {
	return &SubscriptionHandler{
		svc:               svc,
		accountStore:      as,
		subscriptionStore: ss,
		logger:            logger,
	}
}

// Status reports whether the calling account currently has paid access.
func (h *SubscriptionHandler) Status(w http.ResponseWriter, r *http.Request) {
	sub, err := h.subscriptionStore.GetByAccountID(auth.AccountID(r.Context()))
	if err != nil {
		h.logger.Error("get subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to load subscription")
		return
	}

	resp := map[string]any{"active": access.HasAccess(sub)}
	if sub != nil {
		resp["status"] = sub.Status
		if sub.CurrentPeriodEnd != nil {
			resp["access_until"] = sub.CurrentPeriodEnd.Format(time.RFC3339)
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

// Sync reconciles the account's record against Stripe on demand, typically
// right after the checkout redirect while the webhook may still be in flight.
func (h *SubscriptionHandler) Sync(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountStore.GetByID(auth.AccountID(r.Context()))
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	var req struct {
		SessionID string `json:"session_id"`
	}
	// Body is optional; a missing or empty body means a plain sync.
	_ = decodeJSON(r, &req)

	outcome, err := h.svc.PullSync(account, req.SessionID)
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	case err != nil:
		h.logger.Error("pull sync", "account_id", account.ID, "error", err)
		writeError(w, http.StatusBadGateway, "unable to sync subscription")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": string(outcome)})
}

// Cancel schedules the end of the account's subscription.
func (h *SubscriptionHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountStore.GetByID(auth.AccountID(r.Context()))
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	result, err := h.svc.Cancel(account)
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	case errors.Is(err, billing.ErrNoSubscription):
		writeError(w, http.StatusNotFound, "no subscription found")
		return
	case err != nil:
		h.logger.Error("cancel subscription", "account_id", account.ID, "error", err)
		writeError(w, http.StatusBadGateway, "unable to cancel subscription")
		return
	}

	resp := map[string]any{
		"status":   result.Status,
		"interval": result.Interval,
	}
	if !result.AccessUntil.IsZero() {
		resp["access_until"] = result.AccessUntil.Format(time.RFC3339)
	} else {
		resp["access_until"] = nil
	}
	writeJSON(w, http.StatusOK, resp)
}
