// Package orders converts validated carts into immutable orders and
// owns the order status state machine.
package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/enamelgeorgia/storefront/internal/addresses"
	"github.com/enamelgeorgia/storefront/internal/cart"
	"github.com/enamelgeorgia/storefront/internal/catalog"
	"github.com/enamelgeorgia/storefront/pkg/db/models"
	"github.com/enamelgeorgia/storefront/pkg/enums"
	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
	"github.com/enamelgeorgia/storefront/pkg/logger"
	"github.com/enamelgeorgia/storefront/pkg/pagination"
	"github.com/enamelgeorgia/storefront/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type cartManager interface {
	ActiveCart(ctx context.Context, caller types.CallerContext) (*models.Cart, error)
	ValidateForCheckout(ctx context.Context, caller types.CallerContext) (*cart.CheckoutValidation, error)
	ClearCartByID(ctx context.Context, cartID uuid.UUID) error
}

type stockLedger interface {
	Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
	Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error
}

// Service defines the order lifecycle operations.
type Service interface {
	Create(ctx context.Context, caller types.CallerContext, input CreateInput) (*models.Order, error)
	Get(ctx context.Context, caller types.CallerContext, orderID uuid.UUID) (*models.Order, error)
	GetByNumber(ctx context.Context, caller types.CallerContext, orderNumber string) (*models.Order, error)
	List(ctx context.Context, caller types.CallerContext, filters ListFilters) ([]models.Order, pagination.Result, error)
	UpdateStatus(ctx context.Context, caller types.CallerContext, orderID uuid.UUID, input UpdateStatusInput) (*models.Order, error)
	Cancel(ctx context.Context, caller types.CallerContext, orderID uuid.UUID) (*models.Order, error)
	GetStats(ctx context.Context, caller types.CallerContext) (*Stats, error)

	// Transition and BindPaymentIntent are the payment reconciler's
	// surface; they act as the system, not a caller.
	Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error)
	BindPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	RecordNote(ctx context.Context, orderID uuid.UUID, note string) error
	RecordNoteOnce(ctx context.Context, orderID uuid.UUID, marker, note string) error
}

type service struct {
	repo      Repository
	carts     cartManager
	addresses addresses.Repository
	catalog   catalog.Repository
	ledger    stockLedger
	tx        txRunner
	logg      *logger.Logger
}

// NewService builds an order service with the required dependencies.
func NewService(
	repo Repository,
	carts cartManager,
	addressRepo addresses.Repository,
	catalogRepo catalog.Repository,
	ledger stockLedger,
	tx txRunner,
	logg *logger.Logger,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart manager required")
	}
	if addressRepo == nil {
		return nil, fmt.Errorf("address repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if ledger == nil {
		return nil, fmt.Errorf("stock ledger required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      repo,
		carts:     carts,
		addresses: addressRepo,
		catalog:   catalogRepo,
		ledger:    ledger,
		tx:        tx,
		logg:      logg,
	}, nil
}

func (s *service) Create(ctx context.Context, caller types.CallerContext, input CreateInput) (*models.Order, error) {
	if caller.UserID == nil {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in to place an order")
	}
	if input.ShippingAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if input.PaymentMethod == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payment method required")
	}

	validation, err := s.carts.ValidateForCheckout(ctx, caller)
	if err != nil {
		return nil, err
	}
	if !validation.Valid {
		return nil, pkgerrors.New(pkgerrors.CodeBusinessRule, "cart is not ready for checkout").
			WithDetails(validation.Errors)
	}

	record, err := s.carts.ActiveCart(ctx, caller)
	if err != nil {
		return nil, err
	}

	shipping, err := s.addresses.FindByIDForUser(ctx, input.ShippingAddressID, *caller.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shipping address not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load shipping address")
	}

	var billingID *uuid.UUID
	if input.BillingAddressID != nil {
		billing, err := s.addresses.FindByIDForUser(ctx, *input.BillingAddressID, *caller.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, pkgerrors.New(pkgerrors.CodeNotFound, "billing address not found")
			}
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load billing address")
		}
		billingID = &billing.ID
	}

	order, err := buildOrder(*caller.UserID, shipping.ID, billingID, input, record)
	if err != nil {
		return nil, err
	}

	// The atomic unit: lock every line's product row, freeze prices
	// from the locked rows, reserve stock and insert the order plus
	// items. Any failure rolls the whole thing back.
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		cat := s.catalog.WithTx(tx)
		for i := range order.Items {
			item := &order.Items[i]
			product, err := cat.FindProductForUpdate(ctx, item.ProductID)
			if err != nil {
				if errors.Is(err, gorm.ErrRecordNotFound) {
					return pkgerrors.New(pkgerrors.CodeBusinessRule,
						fmt.Sprintf("product %s is no longer available", item.ProductID))
				}
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
			}
			if !product.IsActive {
				return pkgerrors.New(pkgerrors.CodeBusinessRule,
					fmt.Sprintf("product %s is no longer sold", product.Name))
			}
			item.UnitPrice = product.Price
			item.LineTotal = product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
			if err := s.ledger.Reserve(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		refreshTotals(order)
		if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The order exists; a cart cleanup failure must not undo it.
	if err := s.carts.ClearCartByID(ctx, record.ID); err != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"cart_id":  record.ID.String(),
		})
		s.logg.Warn(lctx, fmt.Sprintf("cart cleanup after checkout failed: %v", err))
	}

	full, err := s.repo.FindByID(ctx, order.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
	}
	return full, nil
}

func buildOrder(userID, shippingID uuid.UUID, billingID *uuid.UUID, input CreateInput, record *models.Cart) (*models.Order, error) {
	items := make([]models.OrderItem, 0, len(record.Items))
	subtotal := decimal.Zero
	for _, line := range record.Items {
		if line.Product == nil {
			return nil, pkgerrors.New(pkgerrors.CodeInternal, "cart line missing product")
		}
		lineTotal := line.Product.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		items = append(items, models.OrderItem{
			ID:        uuid.New(),
			ProductID: line.ProductID,
			Quantity:  line.Quantity,
			UnitPrice: line.Product.Price,
			LineTotal: lineTotal,
		})
		subtotal = subtotal.Add(lineTotal)
	}

	// Shipping, tax and discounts are pluggable rules; the storefront
	// currently charges none of them.
	shippingCost := decimal.Zero
	taxAmount := decimal.Zero
	discount := decimal.Zero
	total := subtotal.Add(shippingCost).Add(taxAmount).Sub(discount)

	return &models.Order{
		ID:             uuid.New(),
		OrderNumber:    newOrderNumber(time.Now()),
		UserID:         userID,
		Status:         enums.OrderStatusPending,
		Subtotal:       subtotal,
		ShippingCost:   shippingCost,
		TaxAmount:      taxAmount,
		DiscountAmount: discount,
		Total:          total,
		PaymentMethod:  input.PaymentMethod,
		ShippingAddrID: shippingID,
		BillingAddrID:  billingID,
		Notes:          input.Notes,
		Items:          items,
	}, nil
}

// refreshTotals recomputes the money columns after line prices were
// re-frozen from the locked product rows.
func refreshTotals(order *models.Order) {
	subtotal := decimal.Zero
	for _, item := range order.Items {
		subtotal = subtotal.Add(item.LineTotal)
	}
	order.Subtotal = subtotal
	order.Total = subtotal.Add(order.ShippingCost).Add(order.TaxAmount).Sub(order.DiscountAmount)
}

func (s *service) Get(ctx context.Context, caller types.CallerContext, orderID uuid.UUID) (*models.Order, error) {
	return s.findScoped(ctx, caller, orderID)
}

func (s *service) GetByNumber(ctx context.Context, caller types.CallerContext, orderNumber string) (*models.Order, error) {
	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	if orderNumber == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order number required")
	}

	order, err := s.repo.FindByNumber(ctx, orderNumber)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if !caller.IsAdmin() && order.UserID != *caller.UserID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) List(ctx context.Context, caller types.CallerContext, filters ListFilters) ([]models.Order, pagination.Result, error) {
	if !caller.Authenticated() {
		return nil, pagination.Result{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	if !caller.IsAdmin() {
		filters.UserID = caller.UserID
	}

	rows, total, err := s.repo.List(ctx, filters)
	if err != nil {
		return nil, pagination.Result{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	return rows, pagination.NewResult(filters.Page, total), nil
}

func (s *service) UpdateStatus(ctx context.Context, caller types.CallerContext, orderID uuid.UUID, input UpdateStatusInput) (*models.Order, error) {
	if !caller.IsAdmin() {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "admin role required")
	}

	if input.Status == enums.OrderStatusCancelled {
		return s.cancel(ctx, caller, orderID, "Order cancelled by admin")
	}

	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status == input.Status {
		return order, nil
	}
	if err := assertTransition(order.Status, input.Status); err != nil {
		return nil, err
	}

	extra := statusStamps(order, input.Status)
	if input.TrackingNumber != nil {
		extra["tracking_number"] = *input.TrackingNumber
	}

	ok, err := s.repo.UpdateStatusFrom(ctx, orderID, order.Status, input.Status, extra)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
	}

	return s.repo.FindByID(ctx, orderID)
}

func (s *service) Cancel(ctx context.Context, caller types.CallerContext, orderID uuid.UUID) (*models.Order, error) {
	note := "Order cancelled by customer"
	if caller.IsAdmin() {
		note = "Order cancelled by admin"
	}
	return s.cancel(ctx, caller, orderID, note)
}

func (s *service) cancel(ctx context.Context, caller types.CallerContext, orderID uuid.UUID, note string) (*models.Order, error) {
	order, err := s.findScoped(ctx, caller, orderID)
	if err != nil {
		return nil, err
	}

	if order.Status != enums.OrderStatusPending && order.Status != enums.OrderStatusPaid {
		return nil, pkgerrors.New(
			pkgerrors.CodeBusinessRule,
			fmt.Sprintf("cannot cancel an order in status %s", order.Status),
		)
	}

	// Restore stock and flip status in one unit. The conditional
	// update guards against a concurrent transition on the same order.
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		for _, item := range order.Items {
			if err := s.ledger.Release(ctx, tx, item.ProductID, item.Quantity); err != nil {
				return err
			}
		}
		ok, err := repo.UpdateStatusFrom(ctx, order.ID, order.Status, enums.OrderStatusCancelled, nil)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}
		if !ok {
			return pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
		}
		return repo.AppendNote(ctx, order.ID, note)
	})
	if err != nil {
		return nil, err
	}

	return s.repo.FindByID(ctx, orderID)
}

func (s *service) GetStats(ctx context.Context, caller types.CallerContext) (*Stats, error) {
	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	var scope *uuid.UUID
	if !caller.IsAdmin() {
		scope = caller.UserID
	}

	stats, err := s.repo.Stats(ctx, scope)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "compute order stats")
	}
	return stats, nil
}

// Transition moves an order along the graph on behalf of the payment
// reconciler. Re-entering the current status is an idempotent no-op.
func (s *service) Transition(ctx context.Context, orderID uuid.UUID, to enums.OrderStatus) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}

	if order.Status == to {
		return order, nil
	}
	if err := assertTransition(order.Status, to); err != nil {
		return nil, err
	}

	ok, err := s.repo.UpdateStatusFrom(ctx, orderID, order.Status, to, statusStamps(order, to))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
	}
	if !ok {
		// Lost the race. A concurrent writer reaching the same target
		// keeps this idempotent; anything else is a real conflict.
		current, err := s.repo.FindByID(ctx, orderID)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload order")
		}
		if current.Status == to {
			return current, nil
		}
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "order was modified concurrently")
	}

	return s.repo.FindByID(ctx, orderID)
}

func (s *service) BindPaymentIntent(ctx context.Context, orderID uuid.UUID, intentID string) error {
	if intentID == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "payment intent id required")
	}
	if err := s.repo.BindPaymentIntent(ctx, orderID, intentID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "bind payment intent")
	}
	return nil
}

// RecordNote appends a system annotation to the order's notes.
func (s *service) RecordNote(ctx context.Context, orderID uuid.UUID, note string) error {
	if note == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "note required")
	}
	if err := s.repo.AppendNote(ctx, orderID, note); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order note")
	}
	return nil
}

// RecordNoteOnce appends a system annotation keyed by marker; when a
// note carrying the marker already exists the write is skipped. The
// webhook handlers pass the gateway event id so a redelivered event
// never stacks duplicate notes.
func (s *service) RecordNoteOnce(ctx context.Context, orderID uuid.UUID, marker, note string) error {
	if marker == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "note marker required")
	}
	if note == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "note required")
	}
	if err := s.repo.AppendNoteOnce(ctx, orderID, marker, note); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append order note")
	}
	return nil
}

func (s *service) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	order, err := s.repo.FindByPaymentIntent(ctx, intentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found for payment intent")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order by payment intent")
	}
	return order, nil
}

// statusStamps returns the timestamp columns to set the first time a
// lifecycle status is reached.
func statusStamps(order *models.Order, to enums.OrderStatus) map[string]any {
	now := time.Now()
	extra := map[string]any{}
	switch to {
	case enums.OrderStatusPaid:
		if order.PaidAt == nil {
			extra["paid_at"] = now
		}
	case enums.OrderStatusShipped:
		if order.ShippedAt == nil {
			extra["shipped_at"] = now
		}
	case enums.OrderStatusDelivered:
		if order.DeliveredAt == nil {
			extra["delivered_at"] = now
		}
	}
	return extra
}

// findScoped loads an order with ownership enforced. Non-admin callers
// see someone else's order as not found, never as forbidden.
func (s *service) findScoped(ctx context.Context, caller types.CallerContext, orderID uuid.UUID) (*models.Order, error) {
	if !caller.Authenticated() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "sign in required")
	}
	if orderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}

	var (
		order *models.Order
		err   error
	)
	if caller.IsAdmin() {
		order, err = s.repo.FindByID(ctx, orderID)
	} else {
		order, err = s.repo.FindByIDForUser(ctx, orderID, *caller.UserID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
