package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/enums"
	"github.com/courseloop/courseloop-backend/pkg/logger"
)

type notificationsRepository interface {
	Create(ctx context.Context, notification *models.Notification) error
}

// Service writes tenant notification rows for license lifecycle events.
// Every method is fire-and-forget: a failed write is logged and swallowed so
// the triggering transition never rolls back over a feed entry.
type Service struct {
	repo notificationsRepository
	log  *logger.Logger
}

// NewService builds the notification service.
func NewService(repo notificationsRepository, log *logger.Logger) (*Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("notification repository required")
	}
	return &Service{repo: repo, log: log}, nil
}

func (s *Service) LicenseActivated(ctx context.Context, license *models.CourseLicense) {
	s.emit(ctx, license.TenantID, nil, enums.NotificationLicenseActivated,
		"License activated",
		fmt.Sprintf("Your license for course %s is now active.", license.CourseID))
}

func (s *Service) LicenseRenewed(ctx context.Context, license *models.CourseLicense) {
	message := fmt.Sprintf("Your license for course %s was renewed.", license.CourseID)
	if license.ExpiresAt != nil {
		message = fmt.Sprintf("Your license for course %s was renewed through %s.",
			license.CourseID, license.ExpiresAt.Format("2006-01-02"))
	}
	s.emit(ctx, license.TenantID, nil, enums.NotificationLicenseRenewed, "License renewed", message)
}

func (s *Service) LicenseRefunded(ctx context.Context, license *models.CourseLicense) {
	s.emit(ctx, license.TenantID, nil, enums.NotificationLicenseRefunded,
		"License refunded",
		fmt.Sprintf("Your license for course %s was refunded and all seats were released.", license.CourseID))
}

func (s *Service) LicensePaymentFailed(ctx context.Context, license *models.CourseLicense) {
	s.emit(ctx, license.TenantID, nil, enums.NotificationLicensePaymentFailed,
		"License payment failed",
		fmt.Sprintf("Payment for your license purchase of course %s did not go through.", license.CourseID))
}

func (s *Service) SeatAssigned(ctx context.Context, license *models.CourseLicense, userID uuid.UUID) {
	s.emit(ctx, license.TenantID, &userID, enums.NotificationSeatAssigned,
		"Course seat assigned",
		fmt.Sprintf("You were given a seat for course %s.", license.CourseID))
}

func (s *Service) SeatUnassigned(ctx context.Context, license *models.CourseLicense, userID uuid.UUID) {
	s.emit(ctx, license.TenantID, &userID, enums.NotificationSeatUnassigned,
		"Course seat removed",
		fmt.Sprintf("Your seat for course %s was removed.", license.CourseID))
}

func (s *Service) LicenseExpiring(ctx context.Context, license *models.CourseLicense) {
	message := fmt.Sprintf("Your license for course %s is about to expire.", license.CourseID)
	if license.ExpiresAt != nil {
		message = fmt.Sprintf("Your license for course %s expires on %s. Renew to keep access.",
			license.CourseID, license.ExpiresAt.Format("2006-01-02"))
	}
	s.emit(ctx, license.TenantID, nil, enums.NotificationLicenseExpiring, "License expiring soon", message)
}

func (s *Service) LicenseExpired(ctx context.Context, license *models.CourseLicense) {
	s.emit(ctx, license.TenantID, nil, enums.NotificationLicenseExpired,
		"License expired",
		fmt.Sprintf("Your license for course %s has expired.", license.CourseID))
}

func (s *Service) emit(ctx context.Context, tenantID uuid.UUID, userID *uuid.UUID, kind enums.NotificationType, title, message string) {
	err := s.repo.Create(ctx, &models.Notification{
		TenantID: tenantID,
		UserID:   userID,
		Type:     kind,
		Title:    title,
		Message:  message,
	})
	if err != nil && s.log != nil {
		logCtx := s.log.WithFields(ctx, map[string]any{
			"tenant_id": tenantID.String(),
			"type":      kind.String(),
		})
		s.log.Error(logCtx, "failed to write notification", err)
	}
}
