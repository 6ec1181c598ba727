package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/qrvivo/qrvivo/internal/auth"
	"github.com/qrvivo/qrvivo/internal/store"
)

// SessionCookieName is the cookie carrying the session token.
const SessionCookieName = "qrvivo_session"

// RequireAuth validates the session cookie, resolves the account and
// populates the auth context. The surface is a JSON API, so failures get a
// 401 body rather than a login redirect.
func RequireAuth(sessionStore *store.SessionStore, accountStore *store.AccountStore) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				unauthorized(w)
				return
			}

			sess, err := sessionStore.GetByToken(cookie.Value)
			if err != nil || sess == nil {
				unauthorized(w)
				return
			}

			account, err := accountStore.GetByID(sess.AccountID)
			if err != nil || account == nil {
				unauthorized(w)
				return
			}

			ac := auth.AuthContext{
				AccountID: account.ID,
				Email:     account.Email,
				Role:      account.Role,
				SessionID: sess.ID,
			}
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

// RequireAdmin checks that the authenticated account has the admin role.
func RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !auth.IsAdmin(r.Context()) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusForbidden)
			json.NewEncoder(w).Encode(map[string]string{"error": "forbidden"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	json.NewEncoder(w).Encode(map[string]string{"error": "unauthorized"})
}
