package licenses

import (
	"time"

	"github.com/google/uuid"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/enums"
	pkgpagination "github.com/courseloop/courseloop-backend/pkg/pagination"
)

type listQuery struct {
	tenantID uuid.UUID
	courseID uuid.UUID
	status   enums.LicenseStatus
	cursor   *pkgpagination.Cursor
	limit    int
}

// ListParams filters a tenant's license list.
type ListParams struct {
	TenantID uuid.UUID
	CourseID uuid.UUID
	Status   string
	Cursor   string
	Limit    int
}

// ListItem is the license shape returned from list and detail endpoints.
type ListItem struct {
	ID             uuid.UUID           `json:"id"`
	CourseID       uuid.UUID           `json:"course_id"`
	LicenseType    enums.LicenseType   `json:"license_type"`
	Status         enums.LicenseStatus `json:"status"`
	SeatsTotal     *int                `json:"seats_total"`
	SeatsUsed      int                 `json:"seats_used"`
	SeatsRemaining int                 `json:"seats_remaining"`
	AmountCents    int64               `json:"amount_cents"`
	Currency       enums.Currency      `json:"currency"`
	PurchasedAt    *time.Time          `json:"purchased_at"`
	ExpiresAt      *time.Time          `json:"expires_at"`
	RenewedAt      *time.Time          `json:"renewed_at"`
	RenewalCount   int                 `json:"renewal_count"`
	RefundedAt     *time.Time          `json:"refunded_at"`
	CreatedAt      time.Time           `json:"created_at"`
}

// ListResult carries one page of licenses plus the next cursor.
type ListResult struct {
	Items  []ListItem `json:"items"`
	Cursor string     `json:"cursor,omitempty"`
}

// AssignmentItem is the seat assignment shape returned from detail endpoints.
type AssignmentItem struct {
	UserID       uuid.UUID `json:"user_id"`
	AssignedByID uuid.UUID `json:"assigned_by_id"`
	AssignedAt   time.Time `json:"assigned_at"`
}

// Detail is a license with its seat assignments.
type Detail struct {
	ListItem
	Assignments []AssignmentItem `json:"assignments"`
}

func toListItem(row models.CourseLicense) ListItem {
	return ListItem{
		ID:             row.ID,
		CourseID:       row.CourseID,
		LicenseType:    row.LicenseType,
		Status:         row.Status,
		SeatsTotal:     row.SeatsTotal,
		SeatsUsed:      row.SeatsUsed,
		SeatsRemaining: row.SeatsRemaining(),
		AmountCents:    row.AmountCents,
		Currency:       row.Currency,
		PurchasedAt:    row.PurchasedAt,
		ExpiresAt:      row.ExpiresAt,
		RenewedAt:      row.RenewedAt,
		RenewalCount:   row.RenewalCount,
		RefundedAt:     row.RefundedAt,
		CreatedAt:      row.CreatedAt,
	}
}

func toAssignmentItem(row models.LicenseAssignment) AssignmentItem {
	return AssignmentItem{
		UserID:       row.UserID,
		AssignedByID: row.AssignedByID,
		AssignedAt:   row.AssignedAt,
	}
}
