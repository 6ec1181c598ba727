package handler

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/qrvivo/qrvivo/internal/database"
	"github.com/qrvivo/qrvivo/internal/middleware"
	"github.com/qrvivo/qrvivo/internal/store"
)

func setupAuthHandler(t *testing.T) (*AuthHandler, *store.AccountStore) {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	accounts := store.NewAccountStore(db)
	sessions := store.NewSessionStore(db)
	logger := slog.New(slog.DiscardHandler)
	return NewAuthHandler(accounts, sessions, logger), accounts
}

func postJSON(t *testing.T, h http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	h(w, req)
	return w
}

func validRegistration() map[string]any {
	return map[string]any{
		"email":         "Alice@Example.com",
		"password":      "Sup3rSecret",
		"name":          "Alice",
		"termsAccepted": true,
	}
}

func TestRegisterSuccess(t *testing.T) {
	h, accounts := setupAuthHandler(t)

	w := postJSON(t, h.Register, "/api/register", validRegistration())
	if w.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}

	// Email is normalized to lowercase before storage.
	a, err := accounts.GetByEmail("alice@example.com")
	if err != nil || a == nil {
		t.Fatalf("account lookup after register: %v, %v", a, err)
	}
	if a.PasswordHash == "Sup3rSecret" {
		t.Error("password stored in the clear")
	}
	if a.Role != "user" {
		t.Errorf("role = %q, want user", a.Role)
	}
}

func TestRegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(m map[string]any)
	}{
		{"missing email", func(m map[string]any) { m["email"] = "" }},
		{"missing password", func(m map[string]any) { m["password"] = "" }},
		{"short name", func(m map[string]any) { m["name"] = "A" }},
		{"short password", func(m map[string]any) { m["password"] = "Ab1" }},
		{"no uppercase", func(m map[string]any) { m["password"] = "sup3rsecret" }},
		{"no digit", func(m map[string]any) { m["password"] = "SuperSecret" }},
		{"terms not accepted", func(m map[string]any) { m["termsAccepted"] = false }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h, _ := setupAuthHandler(t)
			body := validRegistration()
			tt.mutate(body)

			w := postJSON(t, h.Register, "/api/register", body)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body = %s)", w.Code, w.Body.String())
			}
		})
	}
}

func TestRegisterDuplicateEmail(t *testing.T) {
	h, _ := setupAuthHandler(t)

	if w := postJSON(t, h.Register, "/api/register", validRegistration()); w.Code != http.StatusCreated {
		t.Fatalf("first register: %d", w.Code)
	}
	w := postJSON(t, h.Register, "/api/register", validRegistration())
	if w.Code != http.StatusBadRequest {
		t.Errorf("duplicate register status = %d, want 400", w.Code)
	}
}

func TestLoginIssuesSessionCookie(t *testing.T) {
	h, _ := setupAuthHandler(t)

	if w := postJSON(t, h.Register, "/api/register", validRegistration()); w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}

	w := postJSON(t, h.Login, "/api/login", map[string]any{
		"email":    "alice@example.com",
		"password": "Sup3rSecret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d, body = %s", w.Code, w.Body.String())
	}

	var sessionCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == middleware.SessionCookieName {
			sessionCookie = c
		}
	}
	if sessionCookie == nil {
		t.Fatal("no session cookie set")
	}
	if !sessionCookie.HttpOnly {
		t.Error("session cookie must be http-only")
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	h, _ := setupAuthHandler(t)

	if w := postJSON(t, h.Register, "/api/register", validRegistration()); w.Code != http.StatusCreated {
		t.Fatalf("register: %d", w.Code)
	}

	w := postJSON(t, h.Login, "/api/login", map[string]any{
		"email":    "alice@example.com",
		"password": "WrongPass1",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("login status = %d, want 401", w.Code)
	}

	// Unknown accounts get the same answer as wrong passwords.
	w = postJSON(t, h.Login, "/api/login", map[string]any{
		"email":    "nobody@example.com",
		"password": "Sup3rSecret",
	})
	if w.Code != http.StatusUnauthorized {
		t.Errorf("unknown account login status = %d, want 401", w.Code)
	}
}
