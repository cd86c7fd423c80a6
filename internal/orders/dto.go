package orders

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enamelgeorgia/storefront/pkg/enums"
	"github.com/enamelgeorgia/storefront/pkg/pagination"
)

// CreateInput carries a checkout request.
type CreateInput struct {
	ShippingAddressID uuid.UUID  `json:"shipping_address_id" validate:"required"`
	BillingAddressID  *uuid.UUID `json:"billing_address_id,omitempty"`
	PaymentMethod     string     `json:"payment_method" validate:"required"`
	Notes             *string    `json:"notes,omitempty"`
}

// UpdateStatusInput carries an admin status change.
type UpdateStatusInput struct {
	Status         enums.OrderStatus `json:"status" validate:"required"`
	TrackingNumber *string           `json:"tracking_number,omitempty"`
}

// ListFilters narrows and pages an order listing. UserID is forced to
// the caller's own id for non-admin callers.
type ListFilters struct {
	Status           *enums.OrderStatus
	UserID           *uuid.UUID
	From             *time.Time
	To               *time.Time
	MinTotal         *decimal.Decimal
	MaxTotal         *decimal.Decimal
	HasPaymentIntent *bool
	SortBy           string
	SortDesc         bool
	Page             pagination.Params
}

// Stats aggregates order counts and revenue for reporting.
type Stats struct {
	TotalOrders  int64                       `json:"total_orders"`
	TotalRevenue decimal.Decimal             `json:"total_revenue"`
	ByStatus     map[enums.OrderStatus]int64 `json:"by_status"`
}
