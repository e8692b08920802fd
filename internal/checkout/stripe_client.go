package checkout

import (
	"context"

	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/checkout/session"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/refund"

	pkgstripe "github.com/courseloop/courseloop-backend/pkg/stripe"
)

// Session is the subset of a Stripe checkout session the orchestrator needs.
type Session struct {
	ID  string
	URL string
}

// CustomerInput describes the tenant-level Stripe customer to create.
type CustomerInput struct {
	Email    string
	Name     string
	TenantID string
}

// SessionInput describes one license checkout session.
type SessionInput struct {
	CustomerID        string
	AmountCents       int64
	Currency          string
	ProductName       string
	SuccessURL        string
	CancelURL         string
	Metadata          map[string]string
	PaymentIntentMeta map[string]string
}

// Gateway exposes the subset of Stripe operations required by checkout and
// refunds, kept narrow so services can be tested against a stub.
type Gateway interface {
	CreateCustomer(ctx context.Context, input CustomerInput) (string, error)
	CreateCheckoutSession(ctx context.Context, input SessionInput) (*Session, error)
	RefundPayment(ctx context.Context, paymentIntentID, reason string) (string, error)
}

type stripeGateway struct{}

// NewStripeGateway wraps the package-level Stripe bindings. The pkg/stripe
// client must already be constructed so the API key is set.
func NewStripeGateway(api *pkgstripe.Client) Gateway {
	if api == nil {
		return nil
	}
	return &stripeGateway{}
}

func (g *stripeGateway) CreateCustomer(ctx context.Context, input CustomerInput) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(input.Email),
		Name:  stripe.String(input.Name),
	}
	params.Context = ctx
	params.AddMetadata("tenant_id", input.TenantID)

	created, err := customer.New(params)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

func (g *stripeGateway) CreateCheckoutSession(ctx context.Context, input SessionInput) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:       stripe.String(string(stripe.CheckoutSessionModePayment)),
		Customer:   stripe.String(input.CustomerID),
		SuccessURL: stripe.String(input.SuccessURL),
		CancelURL:  stripe.String(input.CancelURL),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:   stripe.String(input.Currency),
					UnitAmount: stripe.Int64(input.AmountCents),
					ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
						Name: stripe.String(input.ProductName),
					},
				},
				Quantity: stripe.Int64(1),
			},
		},
	}
	params.Context = ctx
	for key, value := range input.Metadata {
		params.AddMetadata(key, value)
	}
	if len(input.PaymentIntentMeta) > 0 {
		params.PaymentIntentData = &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: input.PaymentIntentMeta,
		}
	}

	created, err := session.New(params)
	if err != nil {
		return nil, err
	}
	return &Session{ID: created.ID, URL: created.URL}, nil
}

func (g *stripeGateway) RefundPayment(ctx context.Context, paymentIntentID, reason string) (string, error) {
	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(paymentIntentID),
	}
	params.Context = ctx
	if reason != "" {
		params.AddMetadata("reason", reason)
	}

	created, err := refund.New(params)
	if err != nil {
		return "", err
	}
	return created.ID, nil
}
