package cart

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/enamelgeorgia/storefront/pkg/db/models"
)

// AddItemInput carries an add-to-cart request.
type AddItemInput struct {
	ProductID uuid.UUID `json:"product_id" validate:"required"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

// UpdateItemInput carries a quantity change for an existing line.
// Quantity zero removes the line.
type UpdateItemInput struct {
	ItemID   uuid.UUID `json:"item_id" validate:"required"`
	Quantity int       `json:"quantity" validate:"gte=0"`
}

// ItemView is a cart line with its live product price.
type ItemView struct {
	ID        uuid.UUID       `json:"id"`
	ProductID uuid.UUID       `json:"product_id"`
	Name      string          `json:"name"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	LineTotal decimal.Decimal `json:"line_total"`
	InStock   bool            `json:"in_stock"`
}

// Summary aggregates the cart's lines. EstimatedTotal tracks the
// subtotal until shipping and tax are priced at checkout.
type Summary struct {
	ItemCount      int             `json:"item_count"`
	Subtotal       decimal.Decimal `json:"subtotal"`
	EstimatedTotal decimal.Decimal `json:"estimated_total"`
}

// View is the full cart presentation returned to clients.
type View struct {
	ID        uuid.UUID  `json:"id"`
	UserID    *uuid.UUID `json:"user_id,omitempty"`
	SessionID *string    `json:"session_id,omitempty"`
	Items     []ItemView `json:"items"`
	Summary   Summary    `json:"summary"`
	UpdatedAt time.Time  `json:"updated_at"`
}

// CheckoutValidation reports whether a cart can be converted into
// an order, with one message per violated rule.
type CheckoutValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// SkippedLine records a guest line dropped during transfer because it
// no longer fits the target cart.
type SkippedLine struct {
	ProductID uuid.UUID `json:"product_id"`
	Quantity  int       `json:"quantity"`
	Reason    string    `json:"reason"`
}

// TransferResult is the outcome of a guest-to-user cart merge.
type TransferResult struct {
	Cart    *View         `json:"cart,omitempty"`
	Skipped []SkippedLine `json:"skipped,omitempty"`
	Merged  bool          `json:"merged"`
}

func buildView(record *models.Cart) *View {
	view := &View{
		ID:        record.ID,
		UserID:    record.UserID,
		SessionID: record.SessionID,
		Items:     make([]ItemView, 0, len(record.Items)),
		UpdatedAt: record.UpdatedAt,
	}

	subtotal := decimal.Zero
	count := 0
	for _, item := range record.Items {
		if item.Product == nil {
			continue
		}
		lineTotal := item.Product.Price.Mul(decimal.NewFromInt(int64(item.Quantity)))
		view.Items = append(view.Items, ItemView{
			ID:        item.ID,
			ProductID: item.ProductID,
			Name:      item.Product.Name,
			UnitPrice: item.Product.Price,
			Quantity:  item.Quantity,
			LineTotal: lineTotal,
			InStock:   item.Product.InStock,
		})
		subtotal = subtotal.Add(lineTotal)
		count += item.Quantity
	}

	view.Summary = Summary{ItemCount: count, Subtotal: subtotal, EstimatedTotal: subtotal}
	return view
}
