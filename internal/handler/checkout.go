package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/qrvivo/qrvivo/internal/auth"
	"github.com/qrvivo/qrvivo/internal/billing"
	"github.com/qrvivo/qrvivo/internal/store"
)

type CheckoutHandler struct {
	svc          *billing.Service
	accountStore *store.AccountStore
	logger       *slog.Logger
}

func NewCheckoutHandler(svc *billing.Service, as *store.AccountStore, logger *slog.Logger) *CheckoutHandler {
	return &CheckoutHandler{svc: svc, accountStore: as, logger: logger}
}

// Create starts a checkout session for the requested plan and returns the
// provider redirect URL.
func (h *CheckoutHandler) Create(w http.ResponseWriter, r *http.Request) {
	accountID := auth.AccountID(r.Context())
	account, err := h.accountStore.GetByID(accountID)
	if err != nil || account == nil {
		writeError(w, http.StatusNotFound, "account not found")
		return
	}

	var req struct {
		Plan string `json:"plan"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	url, err := h.svc.InitiateCheckout(account, req.Plan)
	switch {
	case errors.Is(err, billing.ErrNotConfigured):
		h.logger.Error("checkout attempted without Stripe configuration", "error", err)
		writeError(w, http.StatusServiceUnavailable, "payments are not configured")
		return
	case errors.Is(err, billing.ErrInvalidPlan):
		writeError(w, http.StatusBadRequest, "invalid plan")
		return
	case err != nil:
		h.logger.Error("create checkout session", "error", err)
		writeError(w, http.StatusBadGateway, "unable to create checkout session")
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}
