package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/llmequeue/llmequeue/internal/api/shared"
)

// AuthMiddleware enforces the shared bearer token on protected routes.
// Clients and workers present the same static token; there are no user
// accounts or sessions.
type AuthMiddleware struct {
	token string
}

// NewAuthMiddleware creates a new AuthMiddleware with the given token.
func NewAuthMiddleware(token string) *AuthMiddleware {
	return &AuthMiddleware{
		token: token,
	}
}

// Authenticate validates the bearer token from the Authorization header.
func (m *AuthMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		authHeader := r.Header.Get("Authorization")
		if authHeader == "" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Authorization header required")
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid authorization format")
			return
		}

		// Constant-time comparison so the token cannot be probed
		// byte-by-byte via response timing.
		if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(m.token)) != 1 {
			shared.RespondWithError(w, r, http.StatusUnauthorized, "Invalid token")
			return
		}

		next.ServeHTTP(w, r)
	})
}
