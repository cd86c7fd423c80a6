// Package inventory owns atomic stock adjustments on product rows.
// Every write runs a conditional UPDATE so concurrent checkouts can
// never drive on-hand quantity negative.
package inventory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enamelgeorgia/storefront/pkg/db/models"
	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
)

// Ledger performs stock reservations and releases. Callers supply the
// transaction; the ledger never opens its own so stock writes stay
// inside the unit that creates or cancels the order.
type Ledger struct{}

func NewLedger() *Ledger {
	return &Ledger{}
}

// Reserve decrements a product's on-hand quantity by qty. The UPDATE
// is guarded by `quantity >= qty`; zero rows affected means another
// request took the stock first.
func (l *Ledger) Reserve(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock reservation")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reservation quantity must be positive")
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ? AND quantity >= ?", productID, qty).
		Updates(map[string]any{
			"quantity": gorm.Expr("quantity - ?", qty),
			"in_stock": gorm.Expr("quantity - ? > 0", qty),
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "reserve stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(
			pkgerrors.CodeBusinessRule,
			fmt.Sprintf("insufficient stock for product %s", productID),
		)
	}
	return nil
}

// Release returns qty units to a product's on-hand quantity and marks
// it back in stock.
func (l *Ledger) Release(ctx context.Context, tx *gorm.DB, productID uuid.UUID, qty int) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "transaction required for stock release")
	}
	if productID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "release quantity must be positive")
	}

	res := tx.WithContext(ctx).
		Model(&models.Product{}).
		Where("id = ?", productID).
		Updates(map[string]any{
			"quantity": gorm.Expr("quantity + ?", qty),
			"in_stock": true,
		})
	if res.Error != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, res.Error, "release stock")
	}
	if res.RowsAffected == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
	}
	return nil
}
