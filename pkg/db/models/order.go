package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enamelgeorgia/storefront/pkg/enums"
)

// Order is an immutable checkout record. Only status, tracking number,
// notes, lifecycle timestamps and the bound payment intent id change
// after creation.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;not null;default:'PENDING'"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(10,2);not null"`
	ShippingCost    decimal.Decimal   `gorm:"column:shipping_cost;type:numeric(10,2);not null;default:0"`
	TaxAmount       decimal.Decimal   `gorm:"column:tax_amount;type:numeric(10,2);not null;default:0"`
	DiscountAmount  decimal.Decimal   `gorm:"column:discount_amount;type:numeric(10,2);not null;default:0"`
	Total           decimal.Decimal   `gorm:"column:total;type:numeric(10,2);not null"`
	PaymentMethod   string            `gorm:"column:payment_method;not null"`
	PaymentIntentID *string           `gorm:"column:payment_intent_id;index"`
	ShippingAddrID  uuid.UUID         `gorm:"column:shipping_address_id;type:uuid;not null"`
	BillingAddrID   *uuid.UUID        `gorm:"column:billing_address_id;type:uuid"`
	TrackingNumber  *string           `gorm:"column:tracking_number"`
	Notes           *string           `gorm:"column:notes"`
	PaidAt          *time.Time        `gorm:"column:paid_at"`
	ShippedAt       *time.Time        `gorm:"column:shipped_at"`
	DeliveredAt     *time.Time        `gorm:"column:delivered_at"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	User            *User             `gorm:"foreignKey:UserID"`
	ShippingAddress *Address          `gorm:"foreignKey:ShippingAddrID"`
	BillingAddress  *Address          `gorm:"foreignKey:BillingAddrID"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
