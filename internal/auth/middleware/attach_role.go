package auth

import (
	"context"
	"log"
	"net/http"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// RoleSource resolves a user's current role from storage.
type RoleSource interface {
	PrimaryRole(ctx context.Context, userID string) (string, error)
}

// AttachRoleFromDB replaces the token's role claim with the stored role, so a
// role change applies without a new login. allowClaimFallback=true in
// dev/offline lets the claim stand when the user has no stored role.
func AttachRoleFromDB(roles RoleSource, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			sub := SubjectFromContext(ctx)
			claimRole := rbac.RoleFromContext(ctx) // set by JWTMiddleware

			role, err := roles.PrimaryRole(ctx, sub)
			switch {
			case err == nil && role != "":
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, role)))
			case err != nil:
				log.Printf("attach role %s: %v", sub, err)
				if allowClaimFallback && claimRole != "" {
					next.ServeHTTP(w, r)
					return
				}
				rbac.Deny(w)
			case allowClaimFallback && claimRole != "":
				next.ServeHTTP(w, r)
			default:
				// No role yet: only role selection is reachable.
				next.ServeHTTP(w, r.WithContext(rbac.WithRole(ctx, rbac.RoleNone)))
			}
		})
	}
}
