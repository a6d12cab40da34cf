package middleware

import (
	"net/http"
	"strings"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/platform/httpx"
	"swadharma/backend/internal/security"
)

const bearerPrefix = "bearer "

// AccessVerifier validates access tokens.
type AccessVerifier interface {
	VerifyAccess(token string) (*security.Claims, error)
}

// Authenticate requires a valid Bearer access token and puts the caller's id and role in the
// request context.
func Authenticate(tokens AccessVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := extractBearer(r)
			if token == "" {
				httpx.WriteError(w, r, apperr.New(apperr.CodeUnauthorized, "Access token required"))
				return
			}
			claims, err := tokens.VerifyAccess(token)
			if err != nil {
				httpx.WriteError(w, r, apperr.New(apperr.CodeInvalidToken, "Invalid or expired access token"))
				return
			}
			ctx := WithIdentity(r.Context(), claims.UserID(), claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// extractBearer returns the Bearer token from the Authorization header, or "" if missing or malformed.
func extractBearer(r *http.Request) string {
	v := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(v) < len(bearerPrefix) {
		return ""
	}
	if !strings.EqualFold(v[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(v[len(bearerPrefix):])
}
