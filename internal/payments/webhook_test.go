package payments

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/enamelgeorgia/storefront/pkg/enums"
)

func intentEvent(t *testing.T, eventType stripe.EventType, intent *stripe.PaymentIntent) *stripe.Event {
	t.Helper()
	raw, err := json.Marshal(intent)
	if err != nil {
		t.Fatalf("marshal intent: %v", err)
	}
	return &stripe.Event{
		ID:   "evt_" + uuid.NewString(),
		Type: eventType,
		Data: &stripe.EventData{Raw: raw},
	}
}

func newWebhookHarness(t *testing.T) (*WebhookService, *stubOrders) {
	t.Helper()
	store := newStubOrders()
	svc, err := NewWebhookService(store, testLogger())
	if err != nil {
		t.Fatalf("setup webhook service: %v", err)
	}
	return svc, store
}

func TestHandleEvent_SucceededDrivesPendingToPaid(t *testing.T) {
	svc, store := newWebhookHarness(t)
	order := pendingOrder(uuid.New(), "25.00")
	store.byID[order.ID] = order

	intent := &stripe.PaymentIntent{
		ID:       "pi_1",
		Metadata: map[string]string{metaOrderID: order.ID.String()},
	}
	event := intentEvent(t, stripe.EventTypePaymentIntentSucceeded, intent)

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("expected paid, got %s", order.Status)
	}

	// Redelivery of the same settlement is a no-op.
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivered event: %v", err)
	}
	if order.Status != enums.OrderStatusPaid {
		t.Fatalf("redelivery changed status to %s", order.Status)
	}
}

func TestHandleEvent_MissingOrderMetadataIsAcked(t *testing.T) {
	svc, _ := newWebhookHarness(t)
	intent := &stripe.PaymentIntent{ID: "pi_orphan"}

	for _, eventType := range []stripe.EventType{
		stripe.EventTypePaymentIntentSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed,
		stripe.EventTypePaymentIntentCanceled,
		stripe.EventTypePaymentIntentRequiresAction,
	} {
		event := intentEvent(t, eventType, intent)
		if err := svc.HandleEvent(context.Background(), event); err != nil {
			t.Fatalf("%s: expected orphan intent to be acked, got %v", eventType, err)
		}
	}
}

func TestHandleEvent_FailureAppendsNote(t *testing.T) {
	svc, store := newWebhookHarness(t)
	order := pendingOrder(uuid.New(), "25.00")
	store.byID[order.ID] = order

	intent := &stripe.PaymentIntent{
		ID:       "pi_fail",
		Metadata: map[string]string{metaOrderID: order.ID.String()},
		LastPaymentError: &stripe.Error{
			Msg: "card declined",
		},
	}
	event := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, intent)

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("failed payment must leave the order pending, got %s", order.Status)
	}
	if order.Notes == nil || !strings.Contains(*order.Notes, "card declined") {
		t.Fatalf("expected failure note, got %v", order.Notes)
	}

	// Redelivering the same event must not stack a second note.
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivered event: %v", err)
	}
	if got := strings.Count(*order.Notes, "card declined"); got != 1 {
		t.Fatalf("expected a single failure note after redelivery, got %d in %q", got, *order.Notes)
	}

	// A distinct failure event is new information and appends.
	second := intentEvent(t, stripe.EventTypePaymentIntentPaymentFailed, intent)
	if err := svc.HandleEvent(context.Background(), second); err != nil {
		t.Fatalf("second failure event: %v", err)
	}
	if got := strings.Count(*order.Notes, "card declined"); got != 2 {
		t.Fatalf("expected two failure notes, got %d in %q", got, *order.Notes)
	}
}

func TestHandleEvent_CanceledKeepsOrderPending(t *testing.T) {
	svc, store := newWebhookHarness(t)
	order := pendingOrder(uuid.New(), "25.00")
	store.byID[order.ID] = order

	intent := &stripe.PaymentIntent{
		ID:       "pi_cancel",
		Metadata: map[string]string{metaOrderID: order.ID.String()},
	}
	event := intentEvent(t, stripe.EventTypePaymentIntentCanceled, intent)

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("handle event: %v", err)
	}
	if order.Status != enums.OrderStatusPending {
		t.Fatalf("expected pending, got %s", order.Status)
	}
	if order.Notes == nil || !strings.Contains(*order.Notes, "canceled") {
		t.Fatalf("expected cancellation note")
	}

	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("redelivered event: %v", err)
	}
	if got := strings.Count(*order.Notes, "canceled by gateway"); got != 1 {
		t.Fatalf("expected a single cancellation note after redelivery, got %d", got)
	}
}

func TestHandleEvent_UnknownTypeIgnored(t *testing.T) {
	svc, _ := newWebhookHarness(t)
	event := &stripe.Event{
		ID:   "evt_unknown",
		Type: stripe.EventType("charge.updated"),
		Data: &stripe.EventData{Raw: json.RawMessage(`{}`)},
	}
	if err := svc.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("unknown event types must be ignored, got %v", err)
	}
}
