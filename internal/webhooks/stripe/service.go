package stripewebhook

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"github.com/courseloop/courseloop-backend/internal/checkout"
	"github.com/courseloop/courseloop-backend/pkg/db/models"
	"github.com/courseloop/courseloop-backend/pkg/enums"
	pkgerrors "github.com/courseloop/courseloop-backend/pkg/errors"
	"github.com/courseloop/courseloop-backend/pkg/logger"
	"github.com/courseloop/courseloop-backend/pkg/metrics"
)

// licenseLedger is the subset of license transitions driven by Stripe events.
type licenseLedger interface {
	ConfirmPayment(ctx context.Context, sessionID, paymentIntentID, invoiceID string) (*models.CourseLicense, error)
	ConfirmRenewal(ctx context.Context, sessionID, paymentIntentID string) (*models.CourseLicense, error)
	FailPayment(ctx context.Context, licenseID uuid.UUID) error
	ApplyExternalRefund(ctx context.Context, paymentIntentID, refundID string) (*models.CourseLicense, error)
}

type ServiceParams struct {
	Ledger  licenseLedger
	Metrics *metrics.WebhookMetrics
	Logger  *logger.Logger
}

// Service routes verified Stripe events to license ledger transitions. Events
// belonging to other product flows are recognized and skipped.
type Service struct {
	ledger  licenseLedger
	metrics *metrics.WebhookMetrics
	log     *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Ledger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "license ledger required")
	}
	return &Service{
		ledger:  params.Ledger,
		metrics: params.Metrics,
		log:     params.Logger,
	}, nil
}

func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	eventType := string(event.Type)
	var err error
	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		err = s.handleSessionCompleted(ctx, event)
	case stripe.EventTypePaymentIntentPaymentFailed:
		err = s.handlePaymentFailed(ctx, event)
	case stripe.EventTypeChargeRefunded:
		err = s.handleChargeRefunded(ctx, event)
	default:
		s.metrics.IncSkipped(eventType)
		return nil
	}

	if err != nil {
		s.metrics.IncFailed(eventType)
		return err
	}
	s.metrics.IncProcessed(eventType)
	return nil
}

func (s *Service) handleSessionCompleted(ctx context.Context, event *stripe.Event) error {
	var session stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &session); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session event")
	}

	paymentIntentID := ""
	if session.PaymentIntent != nil {
		paymentIntentID = session.PaymentIntent.ID
	}
	invoiceID := ""
	if session.Invoice != nil {
		invoiceID = session.Invoice.ID
	}

	flow, _ := enums.ParseCheckoutFlow(session.Metadata[checkout.MetadataKeyFlow])
	switch flow {
	case enums.CheckoutFlowB2BLicense:
		_, err := s.ledger.ConfirmPayment(ctx, session.ID, paymentIntentID, invoiceID)
		return err
	case enums.CheckoutFlowB2BLicenseRenewal:
		_, err := s.ledger.ConfirmRenewal(ctx, session.ID, paymentIntentID)
		return err
	default:
		// Course purchases and tenant subscriptions are handled elsewhere.
		s.debug(ctx, "checkout session for unrelated flow skipped", session.ID, string(flow))
		return nil
	}
}

func (s *Service) handlePaymentFailed(ctx context.Context, event *stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode payment intent event")
	}

	flow, _ := enums.ParseCheckoutFlow(intent.Metadata[checkout.MetadataKeyFlow])
	if flow != enums.CheckoutFlowB2BLicense {
		s.debug(ctx, "payment failure for unrelated flow skipped", intent.ID, string(flow))
		return nil
	}

	licenseID, err := uuid.Parse(intent.Metadata[checkout.MetadataKeyLicenseID])
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse license id from payment intent metadata")
	}
	return s.ledger.FailPayment(ctx, licenseID)
}

func (s *Service) handleChargeRefunded(ctx context.Context, event *stripe.Event) error {
	var charge stripe.Charge
	if err := json.Unmarshal(event.Data.Raw, &charge); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode charge event")
	}
	if charge.PaymentIntent == nil || charge.PaymentIntent.ID == "" {
		return nil
	}

	refundID := ""
	if charge.Refunds != nil && len(charge.Refunds.Data) > 0 {
		refundID = charge.Refunds.Data[0].ID
	}

	_, err := s.ledger.ApplyExternalRefund(ctx, charge.PaymentIntent.ID, refundID)
	return err
}

func (s *Service) debug(ctx context.Context, msg, objectID, flow string) {
	if s.log == nil {
		return
	}
	s.log.Debug(s.log.WithFields(ctx, map[string]any{"object_id": objectID, "flow": flow}), msg)
}
