package server

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/qrvivo/qrvivo/internal/database"
	"github.com/qrvivo/qrvivo/internal/middleware"
	"github.com/qrvivo/qrvivo/internal/store"
)

type testEnv struct {
	ts            *httptest.Server
	client        *http.Client
	subscriptions *store.SubscriptionStore
	session       *http.Cookie
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	// Every pooled connection to :memory: is a distinct database; pin the
	// pool so all requests share one.
	db.SetMaxOpenConns(1)

	srv := New(db, Config{}, slog.New(slog.DiscardHandler))
	ts := httptest.NewServer(srv.Router())
	t.Cleanup(ts.Close)

	client := &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
	return &testEnv{ts: ts, client: client, subscriptions: store.NewSubscriptionStore(db)}
}

func (e *testEnv) do(t *testing.T, method, path string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, reader)
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if e.session != nil {
		req.AddCookie(e.session)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()

	var parsed map[string]any
	raw, _ := io.ReadAll(resp.Body)
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &parsed)
	}
	return resp, parsed
}

// signUp registers and logs in a fresh account, stashing the session cookie
// on the env for subsequent requests. Returns the account ID.
func (e *testEnv) signUp(t *testing.T) int64 {
	t.Helper()
	resp, body := e.do(t, http.MethodPost, "/api/register", map[string]any{
		"email":         "alice@example.com",
		"password":      "Sup3rSecret",
		"name":          "Alice",
		"termsAccepted": true,
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("register status = %d, body = %v", resp.StatusCode, body)
	}
	accountID := int64(body["id"].(float64))

	resp, _ = e.do(t, http.MethodPost, "/api/login", map[string]any{
		"email":    "alice@example.com",
		"password": "Sup3rSecret",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login status = %d", resp.StatusCode)
	}
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			e.session = c
		}
	}
	if e.session == nil {
		t.Fatal("no session cookie from login")
	}
	return accountID
}

func TestGatedQRCodeLifecycle(t *testing.T) {
	env := setupEnv(t)
	accountID := env.signUp(t)

	// Without a subscription record the access policy denies QR mutations.
	resp, body := env.do(t, http.MethodPost, "/api/qrcodes", map[string]any{
		"type": "link", "payload": "example.com",
	})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("create without subscription = %d, want 403 (body = %v)", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodGet, "/api/subscription", nil)
	if resp.StatusCode != http.StatusOK || body["active"] != false {
		t.Fatalf("subscription status = %d %v, want active=false", resp.StatusCode, body)
	}

	// Listing is allowed even without access; only mutations are gated.
	resp, _ = env.do(t, http.MethodGet, "/api/qrcodes", nil)
	if resp.StatusCode != http.StatusOK {
		t.Errorf("list without subscription = %d, want 200", resp.StatusCode)
	}

	// Activate the account the way a processed webhook would.
	periodEnd := time.Now().Add(30 * 24 * time.Hour).UTC()
	if _, err := env.subscriptions.Upsert(accountID, "cus_1", "sub_1", "active", &periodEnd); err != nil {
		t.Fatalf("upsert subscription: %v", err)
	}

	resp, body = env.do(t, http.MethodGet, "/api/subscription", nil)
	if resp.StatusCode != http.StatusOK || body["active"] != true {
		t.Fatalf("subscription status after activation = %d %v, want active=true", resp.StatusCode, body)
	}

	resp, body = env.do(t, http.MethodPost, "/api/qrcodes", map[string]any{
		"name": "Homepage", "type": "link", "payload": "example.com",
	})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create with subscription = %d, body = %v", resp.StatusCode, body)
	}
	qrID, _ := body["id"].(string)
	if qrID == "" {
		t.Fatalf("created QR code carries no id: %v", body)
	}

	// The public resolver redirects without any authentication.
	env.session = nil
	resp, _ = env.do(t, http.MethodGet, "/q/"+qrID, nil)
	if resp.StatusCode != http.StatusFound {
		t.Fatalf("resolve status = %d, want 302", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "https://example.com" {
		t.Errorf("redirect target = %q, want https://example.com", loc)
	}
}

func TestAuthenticationRequired(t *testing.T) {
	env := setupEnv(t)

	for _, route := range []struct{ method, path string }{
		{http.MethodGet, "/api/qrcodes"},
		{http.MethodPost, "/api/qrcodes"},
		{http.MethodGet, "/api/subscription"},
		{http.MethodPost, "/api/subscription/sync"},
		{http.MethodPost, "/api/subscription/cancel"},
		{http.MethodPost, "/api/checkout"},
	} {
		resp, _ := env.do(t, route.method, route.path, nil)
		if resp.StatusCode != http.StatusUnauthorized {
			t.Errorf("%s %s = %d, want 401", route.method, route.path, resp.StatusCode)
		}
	}
}

func TestPaymentsUnconfigured(t *testing.T) {
	env := setupEnv(t)
	env.signUp(t)

	resp, _ := env.do(t, http.MethodPost, "/api/checkout", map[string]any{"plan": "monthly"})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("checkout = %d, want 503", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/api/subscription/sync", nil)
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("sync = %d, want 503", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, "/webhooks/stripe", map[string]any{})
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("webhook = %d, want 503", resp.StatusCode)
	}
}

func TestAdminRouteForbiddenForUsers(t *testing.T) {
	env := setupEnv(t)
	env.signUp(t)

	resp, _ := env.do(t, http.MethodGet, "/api/admin/accounts", nil)
	if resp.StatusCode != http.StatusForbidden {
		t.Errorf("admin accounts = %d, want 403", resp.StatusCode)
	}
}

func TestHealthCheck(t *testing.T) {
	env := setupEnv(t)
	resp, body := env.do(t, http.MethodGet, "/health", nil)
	if resp.StatusCode != http.StatusOK || body["status"] != "ok" {
		t.Errorf("health = %d %v", resp.StatusCode, body)
	}
}
