package checkout

// Metadata keys stamped onto checkout sessions and their payment intents.
// The webhook layer reads these back to route events to the right flow.
const (
	MetadataKeyFlow        = "flow"
	MetadataKeyTenantID    = "tenant_id"
	MetadataKeyCourseID    = "course_id"
	MetadataKeyLicenseID   = "license_id"
	MetadataKeyLicenseType = "license_type"
	MetadataKeySeats       = "seats"
)
