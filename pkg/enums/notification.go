package enums

import "fmt"

// NotificationType maps to the notification_type enum in Postgres.
type NotificationType string

const (
	NotificationLicenseActivated     NotificationType = "license_activated"
	NotificationLicenseRenewed       NotificationType = "license_renewed"
	NotificationLicenseRefunded      NotificationType = "license_refunded"
	NotificationLicenseExpiring      NotificationType = "license_expiring"
	NotificationLicenseExpired       NotificationType = "license_expired"
	NotificationSeatAssigned         NotificationType = "seat_assigned"
	NotificationSeatUnassigned       NotificationType = "seat_unassigned"
	NotificationLicensePaymentFailed NotificationType = "license_payment_failed"
)

var validNotificationTypes = []NotificationType{
	NotificationLicenseActivated,
	NotificationLicenseRenewed,
	NotificationLicenseRefunded,
	NotificationLicenseExpiring,
	NotificationLicenseExpired,
	NotificationSeatAssigned,
	NotificationSeatUnassigned,
	NotificationLicensePaymentFailed,
}

// String implements fmt.Stringer.
func (n NotificationType) String() string {
	return string(n)
}

// IsValid reports whether the value matches the canonical notification_type enum.
func (n NotificationType) IsValid() bool {
	for _, candidate := range validNotificationTypes {
		if candidate == n {
			return true
		}
	}
	return false
}

// ParseNotificationType converts raw input into NotificationType.
func ParseNotificationType(value string) (NotificationType, error) {
	for _, candidate := range validNotificationTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid notification type %q", value)
}
