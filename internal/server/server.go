package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/qrvivo/qrvivo/internal/billing"
	"github.com/qrvivo/qrvivo/internal/handler"
	"github.com/qrvivo/qrvivo/internal/middleware"
	"github.com/qrvivo/qrvivo/internal/payment"
	"github.com/qrvivo/qrvivo/internal/store"
)

type Server struct {
	db            *sql.DB
	sessionStore  *store.SessionStore
	rateLimiter   *middleware.RateLimiter
	logger        *slog.Logger
	authH         *handler.AuthHandler
	checkoutH     *handler.CheckoutHandler
	webhookH      *handler.WebhookHandler
	subscriptionH *handler.SubscriptionHandler
	qrCodeH       *handler.QRCodeHandler
	adminH        *handler.AdminHandler
	authMw        func(http.Handler) http.Handler
}

type Config struct {
	Payment payment.Config
}

func New(db *sql.DB, cfg Config, logger *slog.Logger) *Server {
	accountStore := store.NewAccountStore(db)
	subscriptionStore := store.NewSubscriptionStore(db)
	qrCodeStore := store.NewQRCodeStore(db)
	sessionStore := store.NewSessionStore(db)

	var paymentClient *payment.Client
	if cfg.Payment.Configured() {
		paymentClient = payment.NewClient(cfg.Payment)
	}

	// The billing service is constructed even without a provider so the
	// checkout/sync/cancel paths can answer "not configured" distinctly.
	var provider billing.Provider
	if paymentClient != nil {
		provider = paymentClient
	}
	svc := billing.NewService(subscriptionStore, provider, cfg.Payment, logger.With("component", "billing"))

	var verifier handler.EventVerifier
	if paymentClient != nil {
		verifier = paymentClient
	}

	return &Server{
		db:            db,
		sessionStore:  sessionStore,
		rateLimiter:   middleware.NewRateLimiter(),
		logger:        logger,
		authH:         handler.NewAuthHandler(accountStore, sessionStore, logger.With("component", "auth")),
		checkoutH:     handler.NewCheckoutHandler(svc, accountStore, logger.With("component", "checkout")),
		webhookH:      handler.NewWebhookHandler(verifier, svc, cfg.Payment.WebhookConfigured(), logger.With("component", "webhook")),
		subscriptionH: handler.NewSubscriptionHandler(svc, accountStore, subscriptionStore, logger.With("component", "subscription")),
		qrCodeH:       handler.NewQRCodeHandler(qrCodeStore, subscriptionStore, logger.With("component", "qrcode")),
		adminH:        handler.NewAdminHandler(accountStore, subscriptionStore, logger.With("component", "admin")),
		authMw:        middleware.RequireAuth(sessionStore, accountStore),
	}
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.healthCheck)

	// Public
	mux.HandleFunc("POST /api/register", s.rateLimited(s.authH.Register))
	mux.HandleFunc("POST /api/login", s.rateLimited(s.authH.Login))
	mux.HandleFunc("POST /webhooks/stripe", s.webhookH.HandleStripeWebhook)
	mux.HandleFunc("GET /q/{id}", s.qrCodeH.Resolve)

	// Authenticated
	mux.Handle("POST /api/logout", s.authMw(http.HandlerFunc(s.authH.Logout)))
	mux.Handle("POST /api/checkout", s.authMw(http.HandlerFunc(s.checkoutH.Create)))
	mux.Handle("GET /api/subscription", s.authMw(http.HandlerFunc(s.subscriptionH.Status)))
	mux.Handle("POST /api/subscription/sync", s.authMw(http.HandlerFunc(s.subscriptionH.Sync)))
	mux.Handle("POST /api/subscription/cancel", s.authMw(http.HandlerFunc(s.subscriptionH.Cancel)))
	mux.Handle("GET /api/qrcodes", s.authMw(http.HandlerFunc(s.qrCodeH.List)))
	mux.Handle("POST /api/qrcodes", s.authMw(http.HandlerFunc(s.qrCodeH.Create)))
	mux.Handle("PUT /api/qrcodes/{id}", s.authMw(http.HandlerFunc(s.qrCodeH.Update)))
	mux.Handle("DELETE /api/qrcodes/{id}", s.authMw(http.HandlerFunc(s.qrCodeH.Delete)))

	// Admin
	mux.Handle("GET /api/admin/accounts", s.authMw(middleware.RequireAdmin(http.HandlerFunc(s.adminH.ListAccounts))))

	return middleware.RequestLogger(s.logger)(mux)
}

func (s *Server) rateLimited(h http.HandlerFunc) http.HandlerFunc {
	rl := middleware.RateLimit(s.rateLimiter, middleware.RealIP, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(h).ServeHTTP(w, r)
	}
}

func (s *Server) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
