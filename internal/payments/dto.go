package payments

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v84"

	"github.com/enamelgeorgia/storefront/pkg/enums"
)

// CreateIntentInput starts a payment for a pending order.
type CreateIntentInput struct {
	OrderID uuid.UUID `json:"order_id" validate:"required"`
}

// ConfirmInput confirms a previously created intent. The order is
// resolved from the intent's metadata, never from the request.
type ConfirmInput struct {
	IntentID        string `json:"intent_id" validate:"required"`
	PaymentMethodID string `json:"payment_method_id,omitempty"`
}

// RefundInput reverses a settled payment. A nil Amount means a full
// refund.
type RefundInput struct {
	OrderID uuid.UUID        `json:"order_id" validate:"required"`
	Amount  *decimal.Decimal `json:"amount,omitempty"`
	Reason  string           `json:"reason,omitempty"`
}

// IntentView is the client-facing shape of a payment intent.
type IntentView struct {
	IntentID     string          `json:"intent_id"`
	ClientSecret string          `json:"client_secret,omitempty"`
	Status       string          `json:"status"`
	Amount       decimal.Decimal `json:"amount"`
	Currency     string          `json:"currency"`
	OrderID      uuid.UUID       `json:"order_id"`
	OrderNumber  string          `json:"order_number"`
}

// PaymentSummary is one row of a user's payment history.
type PaymentSummary struct {
	OrderID     uuid.UUID         `json:"order_id"`
	OrderNumber string            `json:"order_number"`
	IntentID    string            `json:"intent_id"`
	Amount      decimal.Decimal   `json:"amount"`
	OrderStatus enums.OrderStatus `json:"order_status"`
	PaidAt      *time.Time        `json:"paid_at,omitempty"`
	CreatedAt   time.Time         `json:"created_at"`
}

// reusableIntentStatuses are the pre-settlement states in which a
// bound intent can be handed back to the client instead of creating a
// duplicate charge.
var reusableIntentStatuses = map[stripe.PaymentIntentStatus]bool{
	stripe.PaymentIntentStatusRequiresPaymentMethod: true,
	stripe.PaymentIntentStatusRequiresConfirmation:  true,
	stripe.PaymentIntentStatusRequiresAction:        true,
}
