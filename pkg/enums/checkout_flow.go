package enums

import "fmt"

// CheckoutFlow discriminates which product flow a Stripe checkout session belongs to.
// Webhook dispatch routes on this value; events tagged for flows this service does not
// own are acknowledged and ignored.
type CheckoutFlow string

const (
	CheckoutFlowCoursePurchase     CheckoutFlow = "course_purchase"
	CheckoutFlowB2BLicense         CheckoutFlow = "b2b_license"
	CheckoutFlowB2BLicenseRenewal  CheckoutFlow = "b2b_license_renewal"
	CheckoutFlowTenantSubscription CheckoutFlow = "tenant_subscription"
)

var validCheckoutFlows = []CheckoutFlow{
	CheckoutFlowCoursePurchase,
	CheckoutFlowB2BLicense,
	CheckoutFlowB2BLicenseRenewal,
	CheckoutFlowTenantSubscription,
}

// String implements fmt.Stringer.
func (c CheckoutFlow) String() string {
	return string(c)
}

// IsValid reports whether the flow tag is recognized.
func (c CheckoutFlow) IsValid() bool {
	for _, candidate := range validCheckoutFlows {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCheckoutFlow converts a raw metadata value into a CheckoutFlow.
func ParseCheckoutFlow(value string) (CheckoutFlow, error) {
	for _, candidate := range validCheckoutFlows {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid checkout flow %q", value)
}
