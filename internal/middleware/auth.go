package middleware

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/dukerupert/atomickids/internal/auth"
)

// AccountHeader carries the account id set by the upstream auth proxy.
const AccountHeader = "X-Account-ID"

// RequireAccount reads the account id forwarded by the auth proxy and
// populates AuthContext. Requests without a valid id get 401.
func RequireAccount(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get(AccountHeader), 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusUnauthorized, "missing or invalid account")
			return
		}
		ctx := auth.WithAuth(r.Context(), auth.AuthContext{AccountID: id})
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireJobToken guards the job trigger with a bearer token checked against
// a bcrypt hash. With no hash configured the trigger does not exist and every
// request gets 404.
func RequireJobToken(tokenHash string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokenHash == "" {
				http.NotFound(w, r)
				return
			}
			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok || token == "" {
				writeError(w, http.StatusUnauthorized, "missing bearer token")
				return
			}
			if err := bcrypt.CompareHashAndPassword([]byte(tokenHash), []byte(token)); err != nil {
				writeError(w, http.StatusUnauthorized, "invalid token")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
