// Package rbac guards routes by the account role carried in the access token.
package rbac

import (
	"context"
	"net/http"

	"swadharma/backend/internal/apperr"
	"swadharma/backend/internal/platform/httpx"
	"swadharma/backend/internal/server/middleware"
	userdomain "swadharma/backend/internal/user/domain"
)

// Caller is the authenticated account of a request.
type Caller struct {
	ID   string
	Role userdomain.Role
}

// RequireUser returns the authenticated caller, or UNAUTHORIZED when the context has no identity.
func RequireUser(ctx context.Context) (Caller, error) {
	userID, ok := middleware.GetUserID(ctx)
	if !ok {
		return Caller{}, apperr.New(apperr.CodeUnauthorized, "Access token required")
	}
	role, _ := middleware.GetRole(ctx)
	return Caller{ID: userID, Role: userdomain.Role(role)}, nil
}

// RequireRole lets a request through only when the caller's account role is one of roles.
// Mount it behind middleware.Authenticate.
func RequireRole(roles ...userdomain.Role) func(http.Handler) http.Handler {
	allowed := make(map[userdomain.Role]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, err := RequireUser(r.Context())
			if err != nil {
				httpx.WriteError(w, r, err)
				return
			}
			if !allowed[caller.Role] {
				httpx.WriteError(w, r, apperr.New(apperr.CodeForbidden, "You do not have permission to perform this action"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
