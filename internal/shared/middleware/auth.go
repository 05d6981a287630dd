package middleware

import (
	"context"
	"net/http"
	"strings"

	"billpay/internal/shared/auth"
)

type contextKey string

const (
	// UserIDKey carries the authenticated user's id through the request context.
	UserIDKey contextKey = "user_id"
	// UserEmailKey carries the authenticated user's email through the request context.
	UserEmailKey contextKey = "user_email"
)

// Auth validates the session token from the access_token cookie or the
// Authorization header and injects the user identity into the context.
func Auth(j *auth.JWT) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := tokenFromRequest(r)
			if token == "" {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := j.Validate(token)
			if err != nil {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, UserEmailKey, claims.Email)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func tokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie("access_token"); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	return ""
}
