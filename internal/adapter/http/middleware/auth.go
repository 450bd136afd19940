package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/iho/gofactor/internal/domain"
	"github.com/iho/gofactor/internal/infrastructure/auth"
)

// CallerAddressHeader carries the caller address when token authentication is disabled.
const CallerAddressHeader = "X-Caller-Address"

type callerContextKey struct{}

type claimsContextKey struct{}

// WithCaller returns a copy of ctx carrying the caller address.
func WithCaller(ctx context.Context, caller domain.Address) context.Context {
	return context.WithValue(ctx, callerContextKey{}, caller)
}

// CallerFromContext extracts the caller address from context.
func CallerFromContext(ctx context.Context) (domain.Address, bool) {
	caller, ok := ctx.Value(callerContextKey{}).(domain.Address)
	return caller, ok
}

// ClaimsFromContext extracts the verified token claims from context.
func ClaimsFromContext(ctx context.Context) (*auth.Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey{}).(*auth.Claims)
	return claims, ok
}

// AuthMiddleware creates an authentication middleware. Requests without a valid
// bearer token are rejected; the token address becomes the caller.
func AuthMiddleware(jwtManager *auth.JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "missing authorization header", http.StatusUnauthorized)
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				http.Error(w, "invalid authorization header format", http.StatusUnauthorized)
				return
			}

			claims, err := jwtManager.Verify(parts[1])
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			caller, err := claims.Caller()
			if err != nil {
				http.Error(w, "invalid or expired token", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
			next.ServeHTTP(w, r.WithContext(WithCaller(ctx, caller)))
		})
	}
}

// HeaderCaller trusts the X-Caller-Address header. Requests without it continue
// anonymously and may only read.
func HeaderCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(CallerAddressHeader)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		caller, err := domain.ParseAddress(raw)
		if err != nil {
			http.Error(w, "invalid caller address", http.StatusBadRequest)
			return
		}

		next.ServeHTTP(w, r.WithContext(WithCaller(r.Context(), caller)))
	})
}

// RequireRole rejects token holders without role. It is a no-op for requests
// authenticated by header.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims, ok := ClaimsFromContext(r.Context())
			if ok && claims.Role != role {
				http.Error(w, "insufficient permissions", http.StatusForbidden)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
