package payments

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/stripe/stripe-go/v84"

	"github.com/enamelgeorgia/storefront/pkg/enums"
	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
	"github.com/enamelgeorgia/storefront/pkg/logger"
)

// WebhookService applies gateway settlement events to orders. It is
// the asynchronous half of the reconciler: the synchronous Confirm path
// and the webhook race to the same idempotent transition.
type WebhookService struct {
	orders   orderLifecycle
	logg     *logger.Logger
	handlers map[stripe.EventType]func(ctx context.Context, eventID string, intent *stripe.PaymentIntent) error
}

// NewWebhookService builds the event dispatcher.
func NewWebhookService(orderSvc orderLifecycle, logg *logger.Logger) (*WebhookService, error) {
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	s := &WebhookService{orders: orderSvc, logg: logg}
	s.handlers = map[stripe.EventType]func(ctx context.Context, eventID string, intent *stripe.PaymentIntent) error{
		stripe.EventTypePaymentIntentSucceeded:      s.handleSucceeded,
		stripe.EventTypePaymentIntentPaymentFailed:  s.handleFailed,
		stripe.EventTypePaymentIntentCanceled:       s.handleCanceled,
		stripe.EventTypePaymentIntentRequiresAction: s.handleRequiresAction,
	}
	return s, nil
}

// HandleEvent dispatches a verified gateway event. Unknown event types
// are logged and ignored so new gateway features never break delivery.
func (s *WebhookService) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	handler, ok := s.handlers[event.Type]
	if !ok {
		s.logg.Info(ctx, fmt.Sprintf("ignoring unhandled stripe event type %s", event.Type))
		return nil
	}

	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "decode payment intent event")
	}
	return handler(ctx, event.ID, &intent)
}

func (s *WebhookService) handleSucceeded(ctx context.Context, _ string, intent *stripe.PaymentIntent) error {
	orderID, err := orderIDFromMetadata(intent.Metadata)
	if err != nil {
		s.logOrphan(ctx, intent)
		return nil
	}

	order, err := s.orders.Transition(ctx, orderID, enums.OrderStatusPaid)
	if err != nil {
		return err
	}
	// Transition treats an already-paid order as a no-op, which covers
	// redelivery and the race with the synchronous confirm path.
	s.logg.Info(s.logg.WithField(ctx, "order_id", orderID.String()),
		fmt.Sprintf("payment settled for order %s", order.OrderNumber))
	return nil
}

func (s *WebhookService) handleFailed(ctx context.Context, eventID string, intent *stripe.PaymentIntent) error {
	orderID, err := orderIDFromMetadata(intent.Metadata)
	if err != nil {
		s.logOrphan(ctx, intent)
		return nil
	}

	reason := "unknown"
	if intent.LastPaymentError != nil && intent.LastPaymentError.Msg != "" {
		reason = intent.LastPaymentError.Msg
	}
	s.logg.Warn(s.logg.WithField(ctx, "order_id", orderID.String()),
		fmt.Sprintf("payment failed for intent %s: %s", intent.ID, reason))
	// Keyed on the gateway event id: a redelivered event finds its note
	// already recorded, while a genuine second failure appends a new one.
	return s.orders.RecordNoteOnce(ctx, orderID, eventID,
		fmt.Sprintf("Payment attempt failed: %s (event %s)", reason, eventID))
}

func (s *WebhookService) handleCanceled(ctx context.Context, eventID string, intent *stripe.PaymentIntent) error {
	orderID, err := orderIDFromMetadata(intent.Metadata)
	if err != nil {
		s.logOrphan(ctx, intent)
		return nil
	}

	// The order stays PENDING so the customer can start a fresh
	// payment; order cancellation is its own flow and releases stock.
	s.logg.Info(s.logg.WithField(ctx, "order_id", orderID.String()),
		fmt.Sprintf("payment intent %s canceled", intent.ID))
	return s.orders.RecordNoteOnce(ctx, orderID, eventID,
		fmt.Sprintf("Payment intent canceled by gateway (event %s)", eventID))
}

func (s *WebhookService) handleRequiresAction(ctx context.Context, _ string, intent *stripe.PaymentIntent) error {
	orderID, err := orderIDFromMetadata(intent.Metadata)
	if err != nil {
		s.logOrphan(ctx, intent)
		return nil
	}

	s.logg.Info(s.logg.WithField(ctx, "order_id", orderID.String()),
		fmt.Sprintf("payment intent %s awaiting customer action", intent.ID))
	return nil
}

func (s *WebhookService) logOrphan(ctx context.Context, intent *stripe.PaymentIntent) {
	s.logg.Error(ctx, fmt.Sprintf("stripe intent %s carries no order reference", intent.ID),
		pkgerrors.New(pkgerrors.CodeValidation, "payment intent has no order reference"))
}
