package middleware

import (
	"net/http"

	"github.com/courseloop/courseloop-backend/api/responses"
	"github.com/courseloop/courseloop-backend/pkg/enums"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
	"github.com/courseloop/courseloop-backend/pkg/logger"
)

// RequireTenantAdmin gates license management endpoints. Platform admins
// pass too since they operate across tenants.
func RequireTenantAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireRoles(logg, enums.RoleTenantAdmin, enums.RolePlatformAdmin)
}

// RequirePlatformAdmin gates the cross-tenant admin surface.
func RequirePlatformAdmin(logg *logger.Logger) func(http.Handler) http.Handler {
	return requireRoles(logg, enums.RolePlatformAdmin)
}

func requireRoles(logg *logger.Logger, allowed ...enums.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			role := enums.Role(RoleFromContext(r.Context()))
			for _, candidate := range allowed {
				if role == candidate {
					next.ServeHTTP(w, r)
					return
				}
			}
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeForbidden, "insufficient role"))
		})
	}
}
