package handler

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/qrvivo/qrvivo/internal/access"
	"github.com/qrvivo/qrvivo/internal/auth"
	"github.com/qrvivo/qrvivo/internal/model"
	"github.com/qrvivo/qrvivo/internal/store"
)

var qrTypes = map[string]bool{
	"link":     true,
	"whatsapp": true,
	"wifi":     true,
	"text":     true,
}

type QRCodeHandler struct {
	qrStore           *store.QRCodeStore
	subscriptionStore *store.SubscriptionStore
	logger            *slog.Logger
}

func NewQRCodeHandler(qs *store.QRCodeStore, ss *store.SubscriptionStore, logger *slog.Logger) *QRCodeHandler {
	return &QRCodeHandler{qrStore: qs, subscriptionStore: ss, logger: logger}
}

// requireAccess loads the caller's subscription and evaluates the access
// policy. Every mutating QR operation goes through here.
func (h *QRCodeHandler) requireAccess(w http.ResponseWriter, r *http.Request) bool {
	sub, err := h.subscriptionStore.GetByAccountID(auth.AccountID(r.Context()))
	if err != nil {
		h.logger.Error("get subscription", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to verify subscription")
		return false
	}
	if !access.HasAccess(sub) {
		writeError(w, http.StatusForbidden, "subscription required")
		return false
	}
	return true
}

type qrCodeRequest struct {
	Name    string `json:"name"`
	Type    string `json:"type"`
	Payload string `json:"payload"`
}

func (req *qrCodeRequest) validate() string {
	if !qrTypes[req.Type] {
		return "invalid type"
	}
	if strings.TrimSpace(req.Payload) == "" {
		return "payload is required"
	}
	return ""
}

func (h *QRCodeHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.requireAccess(w, r) {
		return
	}

	var req qrCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	qr, err := h.qrStore.Create(auth.AccountID(r.Context()), req.Name, req.Type, req.Payload)
	if err != nil {
		h.logger.Error("create qr code", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to create QR code")
		return
	}
	writeJSON(w, http.StatusCreated, qr)
}

func (h *QRCodeHandler) List(w http.ResponseWriter, r *http.Request) {
	codes, err := h.qrStore.ListByAccountID(auth.AccountID(r.Context()))
	if err != nil {
		h.logger.Error("list qr codes", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to list QR codes")
		return
	}
	if codes == nil {
		codes = []*model.QRCode{}
	}
	writeJSON(w, http.StatusOK, codes)
}

// Update rewrites a QR code's target. The public ID stays the same, which is
// the entire point: the printed code keeps working.
func (h *QRCodeHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.requireAccess(w, r) {
		return
	}

	var req qrCodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if msg := req.validate(); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	qr, err := h.qrStore.Update(r.PathValue("id"), auth.AccountID(r.Context()), req.Name, req.Type, req.Payload)
	if err != nil {
		h.logger.Error("update qr code", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to update QR code")
		return
	}
	if qr == nil {
		writeError(w, http.StatusNotFound, "QR code not found")
		return
	}
	writeJSON(w, http.StatusOK, qr)
}

func (h *QRCodeHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.requireAccess(w, r) {
		return
	}

	deleted, err := h.qrStore.Delete(r.PathValue("id"), auth.AccountID(r.Context()))
	if err != nil {
		h.logger.Error("delete qr code", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to delete QR code")
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, "QR code not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// Resolve is the public endpoint behind the printed code: link-like types
// redirect, everything else is served as plain text.
func (h *QRCodeHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	qr, err := h.qrStore.GetByID(r.PathValue("id"))
	if err != nil {
		h.logger.Error("resolve qr code", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if qr == nil {
		http.Error(w, "QR code not found", http.StatusNotFound)
		return
	}

	switch qr.Type {
	case "link", "whatsapp":
		http.Redirect(w, r, normalizeTarget(qr.Type, qr.Payload), http.StatusFound)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte(qr.Payload))
	}
}

// normalizeTarget prefixes bare link hosts with https so the redirect is
// absolute rather than resolved against this server.
func normalizeTarget(typ, payload string) string {
	if typ == "link" &&
		!strings.HasPrefix(payload, "http://") &&
		!strings.HasPrefix(payload, "https://") {
		return "https://" + payload
	}
	return payload
}
