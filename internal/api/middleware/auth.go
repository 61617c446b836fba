package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/consentdesk/console/internal/api/models"
	"github.com/consentdesk/console/internal/audit"
	"github.com/consentdesk/console/internal/auth"
)

// claimsKey is the context key for the authenticated operator's claims.
type claimsKey struct{}

// Auth creates authentication middleware that validates operator JWT bearer
// tokens. The token subject becomes the audit actor for the request.
func Auth(jwtService *auth.JWTService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Extract bearer token from Authorization header
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				writeProblem(w, r, http.StatusUnauthorized, "missing authorization header")
				return
			}

			// Check for Bearer prefix (case-insensitive)
			const bearerPrefix = "Bearer "
			if len(authHeader) < len(bearerPrefix) ||
				!strings.EqualFold(authHeader[:len(bearerPrefix)], bearerPrefix) {
				writeProblem(w, r, http.StatusUnauthorized, "invalid authorization header format")
				return
			}

			tokenString := authHeader[len(bearerPrefix):]
			if tokenString == "" {
				writeProblem(w, r, http.StatusUnauthorized, "missing bearer token")
				return
			}

			claims, err := jwtService.Validate(tokenString)
			if err != nil {
				switch {
				case errors.Is(err, auth.ErrTokenExpired):
					writeProblem(w, r, http.StatusUnauthorized, "access token has expired")
				case errors.Is(err, auth.ErrInvalidToken):
					writeProblem(w, r, http.StatusUnauthorized, "invalid access token")
				default:
					writeProblem(w, r, http.StatusUnauthorized, "authentication failed")
				}
				return
			}

			ctx := context.WithValue(r.Context(), claimsKey{}, claims)
			ctx = audit.WithActor(ctx, claims.Subject)
			setLogOperator(ctx, claims.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireRole rejects operators without one of roles. It must run after Auth.
func RequireRole(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaims(r.Context())
			if claims == nil {
				writeProblem(w, r, http.StatusUnauthorized, "authentication required")
				return
			}
			if !claims.HasRole(roles...) {
				writeProblem(w, r, http.StatusForbidden, "role "+claims.Role+" may not perform this operation")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// writeProblem writes the standard problem for status. The response package
// imports middleware, so middleware writes problems itself.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	problem := models.ProblemFor(status, GetRequestID(r.Context()), detail)
	problem.Instance = r.URL.Path
	problem.Write(w)
}

// GetClaims retrieves the authenticated operator's claims from the context.
// Returns nil if not authenticated.
func GetClaims(ctx context.Context) *auth.Claims {
	if claims, ok := ctx.Value(claimsKey{}).(*auth.Claims); ok {
		return claims
	}
	return nil
}

// GetOperator returns the authenticated operator id, or an empty string.
func GetOperator(ctx context.Context) string {
	if claims := GetClaims(ctx); claims != nil {
		return claims.Subject
	}
	return ""
}
