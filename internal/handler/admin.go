package handler

import (
	"log/slog"
	"net/http"

	"github.com/qrvivo/qrvivo/internal/access"
	"github.com/qrvivo/qrvivo/internal/store"
)

type AdminHandler struct {
	accountStore      *store.AccountStore
	subscriptionStore *store.SubscriptionStore
	logger            *slog.Logger
}

func NewAdminHandler(as *store.AccountStore, ss *store.SubscriptionStore, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{accountStore: as, subscriptionStore: ss, logger: logger}
}

type adminAccountView struct {
	ID                 int64  `json:"id"`
	Email              string `json:"email"`
	Name               string `json:"name"`
	Role               string `json:"role"`
	SubscriptionStatus string `json:"subscription_status"`
	Active             bool   `json:"active"`
}

// ListAccounts returns every account with its subscription state.
func (h *AdminHandler) ListAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.accountStore.List()
	if err != nil {
		h.logger.Error("list accounts", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to list accounts")
		return
	}

	views := make([]adminAccountView, 0, len(accounts))
	for _, a := range accounts {
		view := adminAccountView{ID: a.ID, Email: a.Email, Name: a.Name, Role: a.Role}
		sub, err := h.subscriptionStore.GetByAccountID(a.ID)
		if err != nil {
			h.logger.Error("get subscription", "account_id", a.ID, "error", err)
		}
		if sub != nil {
			view.SubscriptionStatus = sub.Status
		}
		view.Active = access.HasAccess(sub)
		views = append(views, view)
	}
	writeJSON(w, http.StatusOK, views)
}
