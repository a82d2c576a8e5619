package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/leadkit/gateway/internal/problem"
	"github.com/leadkit/gateway/internal/service"
)

type contextKeyAuth string

// AdminClaimsKey is the context key for the verified admin claims.
const AdminClaimsKey contextKeyAuth = "admin_claims"

// TokenValidator verifies admin bearer tokens.
type TokenValidator interface {
	Enabled() bool
	Validate(token string) (*service.AdminClaims, error)
}

// RequireAdmin guards the admin API with a signed bearer token. When no
// signing secret is configured the admin API answers 404 to everyone.
func RequireAdmin(tokens TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())
			if !tokens.Enabled() {
				problem.Write(w, http.StatusNotFound, "Endpoint not found", requestID)
				return
			}

			authHeader := r.Header.Get("Authorization")
			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || strings.TrimSpace(token) == "" {
				problem.Write(w, http.StatusUnauthorized, "Admin token required", requestID)
				return
			}
			claims, err := tokens.Validate(strings.TrimSpace(token))
			if errors.Is(err, service.ErrNoSecret) {
				problem.Write(w, http.StatusNotFound, "Endpoint not found", requestID)
				return
			}
			if err != nil {
				problem.Write(w, http.StatusUnauthorized, "Invalid admin token", requestID)
				return
			}

			ctx := context.WithValue(r.Context(), AdminClaimsKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetAdminClaims returns the admin identity, or nil outside the admin API.
func GetAdminClaims(ctx context.Context) *service.AdminClaims {
	if c, ok := ctx.Value(AdminClaimsKey).(*service.AdminClaims); ok {
		return c
	}
	return nil
}
