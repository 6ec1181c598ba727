package handler

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/qrvivo/qrvivo/internal/billing"
	"github.com/qrvivo/qrvivo/internal/payment"
)

// maxWebhookBody bounds how much of an event payload is read.
const maxWebhookBody = 65536

// EventVerifier authenticates and parses a raw webhook payload.
// *payment.Client implements it.
type EventVerifier interface {
	VerifyEvent(payload []byte, sigHeader string) (*payment.Event, error)
}

type WebhookHandler struct {
	verifier   EventVerifier
	svc        *billing.Service
	configured bool
	logger     *slog.Logger
}

func NewWebhookHandler(verifier EventVerifier, svc *billing.Service, configured bool, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		verifier:   verifier,
		svc:        svc,
		configured: configured,
		logger:     logger,
	}
}

// HandleStripeWebhook verifies the event signature before any payload parse
// and applies the event to the local store.
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	if !h.configured || h.verifier == nil {
		h.logger.Error("webhook received but STRIPE_WEBHOOK_SECRET is not set")
		writeError(w, http.StatusServiceUnavailable, "webhook not configured")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "read body")
		return
	}

	event, err := h.verifier.VerifyEvent(body, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", "error", err)
		writeError(w, http.StatusBadRequest, "invalid signature")
		return
	}

	if err := h.svc.ApplyEvent(event); err != nil {
		h.logger.Error("apply webhook event", "type", event.Type, "error", err)
		writeError(w, http.StatusInternalServerError, "processing error")
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"received": true})
}
