package controllers

import (
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/courseloop/courseloop-backend/api/middleware"
	"github.com/courseloop/courseloop-backend/api/responses"
	"github.com/courseloop/courseloop-backend/api/validators"
	"github.com/courseloop/courseloop-backend/internal/checkout"
	"github.com/courseloop/courseloop-backend/internal/licenses"
	"github.com/courseloop/courseloop-backend/pkg/enums"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
	"github.com/courseloop/courseloop-backend/pkg/logger"
)

type licenseCheckoutRequest struct {
	CourseID    string `json:"course_id" validate:"required,uuid"`
	LicenseType string `json:"license_type" validate:"required"`
	Seats       *int   `json:"seats" validate:"omitempty,min=1"`
}

// LicenseCheckout opens a Stripe checkout session for a new course license.
func LicenseCheckout(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var req licenseCheckoutRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		courseID, err := uuid.Parse(req.CourseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid course_id"))
			return
		}
		licenseType, err := enums.ParseLicenseType(strings.TrimSpace(req.LicenseType))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid license type"))
			return
		}

		result, err := svc.CreateLicenseCheckout(r.Context(), checkout.CreateLicenseInput{
			TenantID:      middleware.TenantIDFromContext(r.Context()),
			CourseID:      courseID,
			PurchasedByID: middleware.UserIDFromContext(r.Context()),
			LicenseType:   licenseType,
			Seats:         req.Seats,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// LicenseRenew opens a Stripe checkout session extending an existing license.
func LicenseRenew(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		licenseID, err := uuidParam(r, "licenseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateRenewalCheckout(r.Context(), middleware.TenantIDFromContext(r.Context()), licenseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, result)
	}
}

// LicenseQuote prices a prospective license without opening a session.
func LicenseQuote(svc checkout.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		courseID, err := uuidQuery(r, "course_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if courseID == uuid.Nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "course_id is required"))
			return
		}
		licenseType, err := enums.ParseLicenseType(strings.TrimSpace(r.URL.Query().Get("license_type")))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid license type"))
			return
		}
		var seats *int
		if strings.TrimSpace(r.URL.Query().Get("seats")) != "" {
			value, err := intQuery(r, "seats")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			if value < 1 {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "seats must be a positive integer"))
				return
			}
			seats = &value
		}

		quote, err := svc.QuoteLicense(r.Context(), middleware.TenantIDFromContext(r.Context()), courseID, licenseType, seats)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, quote)
	}
}

// LicenseList returns the tenant's licenses, newest first, cursor paginated.
func LicenseList(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		courseID, err := uuidQuery(r, "course_id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		limit, err := intQuery(r, "limit")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status := strings.TrimSpace(r.URL.Query().Get("status"))
		if status != "" {
			if _, err := enums.ParseLicenseStatus(status); err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid status filter"))
				return
			}
		}

		result, err := svc.ListLicenses(r.Context(), licenses.ListParams{
			TenantID: middleware.TenantIDFromContext(r.Context()),
			CourseID: courseID,
			Status:   status,
			Cursor:   strings.TrimSpace(r.URL.Query().Get("cursor")),
			Limit:    limit,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, result)
	}
}

// LicenseDetail returns one license with its seat assignments.
func LicenseDetail(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		licenseID, err := uuidParam(r, "licenseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		detail, err := svc.GetLicense(r.Context(), middleware.TenantIDFromContext(r.Context()), licenseID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, detail)
	}
}

type seatAssignRequest struct {
	UserID string `json:"user_id" validate:"required,uuid"`
}

// LicenseAssign grants a seat on the license to a tenant user.
func LicenseAssign(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		licenseID, err := uuidParam(r, "licenseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req seatAssignRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := uuid.Parse(req.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user_id"))
			return
		}

		assignment, err := svc.Assign(r.Context(),
			middleware.TenantIDFromContext(r.Context()),
			licenseID,
			userID,
			middleware.UserIDFromContext(r.Context()),
		)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, assignment)
	}
}

// LicenseUnassign releases a user's seat back to the pool.
func LicenseUnassign(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		licenseID, err := uuidParam(r, "licenseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		userID, err := uuidParam(r, "userId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if err := svc.Unassign(r.Context(), middleware.TenantIDFromContext(r.Context()), licenseID, userID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, nil)
	}
}

type licenseRefundRequest struct {
	Reason string `json:"reason" validate:"omitempty,max=500"`
}

// LicenseRefund refunds the purchase and tears down every seat.
func LicenseRefund(svc licenses.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "license service unavailable"))
			return
		}

		licenseID, err := uuidParam(r, "licenseId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		// Reason is optional; an empty body is a refund with no note.
		var req licenseRefundRequest
		if r.ContentLength != 0 {
			if err := validators.DecodeJSONBody(r, &req); err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
		}

		license, err := svc.Refund(r.Context(), middleware.TenantIDFromContext(r.Context()), licenseID, strings.TrimSpace(req.Reason))
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, license)
	}
}
