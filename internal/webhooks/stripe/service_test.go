package stripewebhook

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v82"

	"github.com/courseloop/courseloop-backend/pkg/db/models"
)

type ledgerCall struct {
	op        string
	sessionID string
	paymentID string
	licenseID uuid.UUID
}

type recordingLedger struct {
	calls []ledgerCall
	err   error
}

func (l *recordingLedger) ConfirmPayment(_ context.Context, sessionID, paymentIntentID, _ string) (*models.CourseLicense, error) {
	l.calls = append(l.calls, ledgerCall{op: "confirm", sessionID: sessionID, paymentID: paymentIntentID})
	return nil, l.err
}

func (l *recordingLedger) ConfirmRenewal(_ context.Context, sessionID, paymentIntentID string) (*models.CourseLicense, error) {
	l.calls = append(l.calls, ledgerCall{op: "renew", sessionID: sessionID, paymentID: paymentIntentID})
	return nil, l.err
}

func (l *recordingLedger) FailPayment(_ context.Context, licenseID uuid.UUID) error {
	l.calls = append(l.calls, ledgerCall{op: "fail", licenseID: licenseID})
	return l.err
}

func (l *recordingLedger) ApplyExternalRefund(_ context.Context, paymentIntentID, _ string) (*models.CourseLicense, error) {
	l.calls = append(l.calls, ledgerCall{op: "refund", paymentID: paymentIntentID})
	return nil, l.err
}

func newWebhookService(t *testing.T) (*Service, *recordingLedger) {
	t.Helper()
	ledger := &recordingLedger{}
	svc, err := NewService(ServiceParams{Ledger: ledger})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc, ledger
}

func sessionCompletedEvent(t *testing.T, flow, sessionID, paymentIntentID string) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(map[string]any{
		"id":             sessionID,
		"payment_intent": map[string]any{"id": paymentIntentID},
		"metadata":       map[string]string{"flow": flow},
	})
	if err != nil {
		t.Fatalf("marshal session: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString()[:8],
		Type: stripe.EventTypeCheckoutSessionCompleted,
		Data: &stripe.EventData{Raw: raw},
	}
}

func TestHandleEventConfirmsLicensePurchase(t *testing.T) {
	svc, ledger := newWebhookService(t)

	event := sessionCompletedEvent(t, "b2b_license", "cs_123", "pi_123")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(ledger.calls) != 1 || ledger.calls[0].op != "confirm" {
		t.Fatalf("unexpected calls: %+v", ledger.calls)
	}
	if ledger.calls[0].sessionID != "cs_123" || ledger.calls[0].paymentID != "pi_123" {
		t.Fatalf("wrong arguments: %+v", ledger.calls[0])
	}
}

func TestHandleEventRoutesRenewalFlow(t *testing.T) {
	svc, ledger := newWebhookService(t)

	event := sessionCompletedEvent(t, "b2b_license_renewal", "cs_renew", "pi_renew")
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(ledger.calls) != 1 || ledger.calls[0].op != "renew" {
		t.Fatalf("unexpected calls: %+v", ledger.calls)
	}
}

func TestHandleEventIgnoresUnrelatedFlows(t *testing.T) {
	svc, ledger := newWebhookService(t)

	for _, flow := range []string{"course_purchase", "tenant_subscription", "", "mystery"} {
		event := sessionCompletedEvent(t, flow, "cs_other", "pi_other")
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("flow %q: %v", flow, err)
		}
	}
	if len(ledger.calls) != 0 {
		t.Fatalf("unrelated flows must not touch the ledger: %+v", ledger.calls)
	}
}

func TestHandleEventIgnoresUnknownEventTypes(t *testing.T) {
	svc, ledger := newWebhookService(t)

	event := &stripe.Event{
		ID:   "evt_noop",
		Type: stripe.EventTypeCustomerCreated,
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(ledger.calls) != 0 {
		t.Fatalf("unknown event types must be skipped: %+v", ledger.calls)
	}
}

func TestHandleEventPaymentFailed(t *testing.T) {
	svc, ledger := newWebhookService(t)
	licenseID := uuid.New()

	raw := fmt.Sprintf(`{"id":"pi_fail","metadata":{"flow":"b2b_license","license_id":"%s"}}`, licenseID)
	event := &stripe.Event{
		ID:   "evt_fail",
		Type: stripe.EventTypePaymentIntentPaymentFailed,
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(ledger.calls) != 1 || ledger.calls[0].op != "fail" || ledger.calls[0].licenseID != licenseID {
		t.Fatalf("unexpected calls: %+v", ledger.calls)
	}
}

func TestHandleEventPaymentFailedOtherFlow(t *testing.T) {
	svc, ledger := newWebhookService(t)

	raw := `{"id":"pi_sub","metadata":{"flow":"tenant_subscription"}}`
	event := &stripe.Event{
		ID:   "evt_sub_fail",
		Type: stripe.EventTypePaymentIntentPaymentFailed,
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}
	if len(ledger.calls) != 0 {
		t.Fatalf("other flows must be skipped: %+v", ledger.calls)
	}
}

func TestHandleEventChargeRefunded(t *testing.T) {
	svc, ledger := newWebhookService(t)

	raw := `{"id":"ch_1","payment_intent":{"id":"pi_refunded"},"refunds":{"data":[{"id":"re_ext"}]}}`
	event := &stripe.Event{
		ID:   "evt_refund",
		Type: stripe.EventTypeChargeRefunded,
		Data: &stripe.EventData{Raw: json.RawMessage(raw)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent: %v", err)
	}

	if len(ledger.calls) != 1 || ledger.calls[0].op != "refund" || ledger.calls[0].paymentID != "pi_refunded" {
		t.Fatalf("unexpected calls: %+v", ledger.calls)
	}
}
