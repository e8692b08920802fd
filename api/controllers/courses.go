package controllers

import (
	"net/http"

	"github.com/courseloop/courseloop-backend/api/middleware"
	"github.com/courseloop/courseloop-backend/api/responses"
	"github.com/courseloop/courseloop-backend/internal/licenses"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
	"github.com/courseloop/courseloop-backend/pkg/logger"
)

// CourseAccess reports whether the caller can take the course under the
// tenant's current license.
func CourseAccess(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		courseID, err := uuidParam(r, "courseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		hasAccess, err := svc.HasAccess(r.Context(),
			middleware.TenantIDFromContext(r.Context()),
			courseID,
			middleware.UserIDFromContext(r.Context()),
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]bool{"has_access": hasAccess})
	}
}
