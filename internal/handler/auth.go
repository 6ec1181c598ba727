package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"

	"github.com/qrvivo/qrvivo/internal/auth"
	"github.com/qrvivo/qrvivo/internal/middleware"
	"github.com/qrvivo/qrvivo/internal/store"
)

const sessionCookieMaxAge = 30 * 24 * 60 * 60

type AuthHandler struct {
	accountStore *store.AccountStore
	sessionStore *store.SessionStore
	logger       *slog.Logger
}

func NewAuthHandler(as *store.AccountStore, ss *store.SessionStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		accountStore: as,
		sessionStore: ss,
		logger:       logger,
	}
}

type registerRequest struct {
	Email         string  `json:"email"`
	Password      string  `json:"password"`
	Name          string  `json:"name"`
	Phone         *string `json:"phone"`
	CPF           *string `json:"cpf"`
	TermsAccepted bool    `json:"termsAccepted"`
}

// Register creates a new account.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Name = strings.TrimSpace(req.Name)

	switch {
	case req.Email == "" || req.Password == "":
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	case len(req.Name) < 2:
		writeError(w, http.StatusBadRequest, "name is required (2 characters minimum)")
		return
	case !isPasswordStrong(req.Password):
		writeError(w, http.StatusBadRequest, "password must have at least 8 characters, 1 uppercase letter and 1 digit")
		return
	case !req.TermsAccepted:
		writeError(w, http.StatusBadRequest, "terms of use must be accepted")
		return
	}

	existing, err := h.accountStore.GetByEmail(req.Email)
	if err != nil {
		h.logger.Error("lookup account", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to create account")
		return
	}
	if existing != nil {
		writeError(w, http.StatusBadRequest, "email is already registered")
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("hash password", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to create account")
		return
	}

	account, err := h.accountStore.Create(req.Email, string(hash), req.Name, req.Phone, req.CPF)
	if err != nil {
		h.logger.Error("create account", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to create account")
		return
	}

	h.logger.Info("account registered", "account_id", account.ID)
	writeJSON(w, http.StatusCreated, map[string]any{"id": account.ID})
}

// Login verifies credentials and issues a session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	account, err := h.accountStore.GetByEmail(strings.TrimSpace(strings.ToLower(req.Email)))
	if err != nil {
		h.logger.Error("lookup account", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to sign in")
		return
	}
	if account == nil || bcrypt.CompareHashAndPassword([]byte(account.PasswordHash), []byte(req.Password)) != nil {
		writeError(w, http.StatusUnauthorized, "invalid email or password")
		return
	}

	sess, err := h.sessionStore.Create(account.ID)
	if err != nil {
		h.logger.Error("create session", "error", err)
		writeError(w, http.StatusInternalServerError, "unable to sign in")
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    sess.Token,
		Path:     "/",
		MaxAge:   sessionCookieMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]any{"id": account.ID, "email": account.Email})
}

// Logout destroys the current session.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if ac, ok := auth.FromContext(r.Context()); ok {
		if err := h.sessionStore.Delete(ac.SessionID); err != nil {
			h.logger.Error("delete session", "error", err)
		}
	}

	http.SetCookie(w, &http.Cookie{
		Name:     middleware.SessionCookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "logged_out"})
}

// isPasswordStrong requires at least 8 characters, one uppercase letter and
// one digit.
func isPasswordStrong(password string) bool {
	if len(password) < 8 {
		return false
	}
	var upper, digit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsDigit(r):
			digit = true
		}
	}
	return upper && digit
}
