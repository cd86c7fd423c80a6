package payments

import (
	"context"
	"fmt"
	"strconv"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/enamelgeorgia/storefront/internal/orders"
	"github.com/enamelgeorgia/storefront/pkg/config"
	"github.com/enamelgeorgia/storefront/pkg/currency"
	"github.com/enamelgeorgia/storefront/pkg/db/models"
	"github.com/enamelgeorgia/storefront/pkg/enums"
	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
	"github.com/enamelgeorgia/storefront/pkg/logger"
	"github.com/enamelgeorgia/storefront/pkg/pagination"
	"github.com/enamelgeorgia/storefront/pkg/types"
)

// Metadata keys attached to every intent. Webhooks and confirmation
// resolve the order from these, never from client input.
const (
	metaOrderID       = "orderId"
	metaOrderNumber   = "orderNumber"
	metaUserID        = "userId"
	metaCustomerEmail = "customerEmail"
	metaItemCount     = "itemCount"
)

type orderLifecycle interface {
	Get(ctx context.Context, caller types.CallerContext, orderID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, caller types.CallerContext, filters orders.ListFilters) ([]models.Order, pagination.Result, error)
	Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)
	BindPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	RecordNote(ctx context.Context, orderID uuid.UUID, note string) error
	RecordNoteOnce(ctx context.Context, orderID uuid.UUID, marker, note string) error
}

// Service defines the payment reconciliation operations.
type Service interface {
	CreateIntent(ctx context.Context, caller types.CallerContext, input CreateIntentInput) (*IntentView, error)
	Confirm(ctx context.Context, caller types.CallerContext, input ConfirmInput) (*IntentView, error)
	Status(ctx context.Context, caller types.CallerContext, intentID string) (*IntentView, error)
	Refund(ctx context.Context, caller types.CallerContext, input RefundInput) (*models.Order, error)
	ListUserPayments(ctx context.Context, caller types.CallerContext, page pagination.Params) ([]PaymentSummary, pagination.Result, error)
}

type service struct {
	gateway Gateway
	orders  orderLifecycle
	cfg     config.StripeConfig
	logg    *logger.Logger
}

// NewService builds a payment service with the required dependencies.
func NewService(gateway Gateway, orderSvc orderLifecycle, cfg config.StripeConfig, logg *logger.Logger) (Service, error) {
	if gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if orderSvc == nil {
		return nil, fmt.Errorf("order service required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{gateway: gateway, orders: orderSvc, cfg: cfg, logg: logg}, nil
}

func (s *service) CreateIntent(ctx context.Context, caller types.CallerContext, input CreateIntentInput) (*IntentView, error) {
	order, err := s.orders.Get(ctx, caller, input.OrderID)
	if err != nil {
		return nil, err
	}
	if order.Status != enums.OrderStatusPending {
		return nil, pkgerrors.New(
			pkgerrors.CodeBusinessRule,
			fmt.Sprintf("payment can only be started for a pending order, current status is %s", order.Status),
		)
	}

	// The charge bounds gate runs before any gateway traffic.
	amountTetri, err := currency.ValidateChargeAmount(order.Total, s.cfg.MinChargeTetri, s.cfg.MaxChargeTetri)
	if err != nil {
		return nil, err
	}

	if order.PaymentIntentID != nil {
		existing, err := s.gateway.RetrieveIntent(ctx, *order.PaymentIntentID, nil)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
		}
		if reusableIntentStatuses[existing.Status] {
			return intentView(existing, order), nil
		}
	}

	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(amountTetri),
		Currency: stripe.String(currency.Code),
		AutomaticPaymentMethods: &stripe.PaymentIntentAutomaticPaymentMethodsParams{
			Enabled: stripe.Bool(true),
		},
	}
	params.AddMetadata(metaOrderID, order.ID.String())
	params.AddMetadata(metaOrderNumber, order.OrderNumber)
	params.AddMetadata(metaUserID, order.UserID.String())
	params.AddMetadata(metaItemCount, strconv.Itoa(len(order.Items)))
	if order.User != nil {
		params.AddMetadata(metaCustomerEmail, order.User.Email)
	}

	intent, err := s.gateway.CreateIntent(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payment intent")
	}

	if err := s.orders.BindPaymentIntent(ctx, order.ID, intent.ID); err != nil {
		return nil, err
	}

	return intentView(intent, order), nil
}

func (s *service) Confirm(ctx context.Context, caller types.CallerContext, input ConfirmInput) (*IntentView, error) {
	if input.IntentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id required")
	}

	intent, err := s.gateway.RetrieveIntent(ctx, input.IntentID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}

	orderID, err := orderIDFromMetadata(intent.Metadata)
	if err != nil {
		return nil, err
	}
	order, err := s.orders.Get(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}

	params := &stripe.PaymentIntentConfirmParams{}
	if input.PaymentMethodID != "" {
		params.PaymentMethod = stripe.String(input.PaymentMethodID)
	}
	if s.cfg.ReturnURL != "" {
		params.ReturnURL = stripe.String(s.cfg.ReturnURL)
	}

	confirmed, err := s.gateway.ConfirmIntent(ctx, intent.ID, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "confirm payment intent")
	}

	// The webhook is the settlement source of truth; a synchronous
	// success just gets there first. Transition is idempotent either way.
	if confirmed.Status == stripe.PaymentIntentStatusSucceeded {
		order, err = s.orders.Transition(ctx, order.ID, enums.OrderStatusPaid)
		if err != nil {
			return nil, err
		}
	}

	return intentView(confirmed, order), nil
}

func (s *service) Status(ctx context.Context, caller types.CallerContext, intentID string) (*IntentView, error) {
	if intentID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "intent id required")
	}

	order, err := s.orders.FindByPaymentIntent(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if !caller.IsAdmin() {
		if caller.UserID == nil || *caller.UserID != order.UserID {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment intent")
		}
	}

	intent, err := s.gateway.RetrieveIntent(ctx, intentID, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "retrieve payment intent")
	}
	return intentView(intent, order), nil
}

// settledStatuses are the states in which money has been collected and
// a refund is meaningful.
var settledStatuses = map[enums.OrderStatus]bool{
	enums.OrderStatusPaid:       true,
	enums.OrderStatusProcessing: true,
	enums.OrderStatusShipped:    true,
	enums.OrderStatusDelivered:  true,
}

func (s *service) Refund(ctx context.Context, caller types.CallerContext, input RefundInput) (*models.Order, error) {
	if !caller.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	order, err := s.orders.Get(ctx, caller, input.OrderID)
	if err != nil {
		return nil, err
	}
	if !settledStatuses[order.Status] {
		return nil, pkgerrors.New(
			pkgerrors.CodeBusinessRule,
			fmt.Sprintf("cannot refund an order in status %s", order.Status),
		)
	}
	if order.PaymentIntentID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "order has no payment to refund")
	}

	full := input.Amount == nil || input.Amount.Equal(order.Total)
	if !full && (input.Amount.Sign() <= 0 || input.Amount.GreaterThan(order.Total)) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "refund amount must be positive and at most the order total")
	}
	if full && order.Status != enums.OrderStatusPaid && order.Status != enums.OrderStatusDelivered {
		return nil, pkgerrors.New(
			pkgerrors.CodeBusinessRule,
			fmt.Sprintf("full refund is not available in status %s", order.Status),
		)
	}

	params := &stripe.RefundParams{
		PaymentIntent: stripe.String(*order.PaymentIntentID),
	}
	if !full {
		tetri, err := currency.GelToTetri(*input.Amount)
		if err != nil {
			return nil, err
		}
		params.Amount = stripe.Int64(tetri)
	}
	if input.Reason != "" {
		params.AddMetadata("reason", input.Reason)
	}

	if _, err := s.gateway.Refund(ctx, params); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create refund")
	}

	var note string
	if full {
		note = fmt.Sprintf("Refunded %s in full", currency.FormatGel(order.Total))
		if _, err := s.orders.Transition(ctx, order.ID, enums.OrderStatusRefunded); err != nil {
			return nil, err
		}
	} else {
		note = fmt.Sprintf("Partial refund of %s", currency.FormatGel(*input.Amount))
	}
	if err := s.orders.RecordNote(ctx, order.ID, note); err != nil {
		return nil, err
	}
	return s.orders.Get(ctx, caller, order.ID)
}

func (s *service) ListUserPayments(ctx context.Context, caller types.CallerContext, page pagination.Params) ([]PaymentSummary, pagination.Result, error) {
	withIntent := true
	rows, result, err := s.orders.List(ctx, caller, orders.ListFilters{
		HasPaymentIntent: &withIntent,
		Page:             page,
	})
	if err != nil {
		return nil, pagination.Result{}, err
	}

	summaries := make([]PaymentSummary, 0, len(rows))
	for _, order := range rows {
		summaries = append(summaries, PaymentSummary{
			OrderID:     order.ID,
			OrderNumber: order.OrderNumber,
			IntentID:    *order.PaymentIntentID,
			Amount:      order.Total,
			OrderStatus: order.Status,
			PaidAt:      order.PaidAt,
			CreatedAt:   order.CreatedAt,
		})
	}
	return summaries, result, nil
}

func intentView(intent *stripe.PaymentIntent, order *models.Order) *IntentView {
	return &IntentView{
		IntentID:     intent.ID,
		ClientSecret: intent.ClientSecret,
		Status:       string(intent.Status),
		Amount:       order.Total,
		Currency:     currency.Code,
		OrderID:      order.ID,
		OrderNumber:  order.OrderNumber,
	}
}

func orderIDFromMetadata(metadata map[string]string) (uuid.UUID, error) {
	raw, ok := metadata[metaOrderID]
	if !ok || raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, "payment intent has no order reference")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "parse order reference")
	}
	return id, nil
}
