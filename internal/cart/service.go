// Package cart owns guest and user carts: line mutations, guest-to-user
// transfer, and the checkout-readiness gate the order service relies on.
package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/enamelgeorgia/storefront/internal/catalog"
	"github.com/enamelgeorgia/storefront/pkg/db/models"
	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
	"github.com/enamelgeorgia/storefront/pkg/logger"
	"github.com/enamelgeorgia/storefront/pkg/types"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the cart operations exposed to controllers and to
// the order service.
type Service interface {
	GetCart(ctx context.Context, caller types.CallerContext) (*View, error)
	AddItem(ctx context.Context, caller types.CallerContext, input AddItemInput) (*View, error)
	UpdateItem(ctx context.Context, caller types.CallerContext, input UpdateItemInput) (*View, error)
	RemoveItem(ctx context.Context, caller types.CallerContext, itemID uuid.UUID) (*View, error)
	Clear(ctx context.Context, caller types.CallerContext) error
	TransferGuestCartToUser(ctx context.Context, sessionID string, userID uuid.UUID) (*TransferResult, error)
	ValidateForCheckout(ctx context.Context, caller types.CallerContext) (*CheckoutValidation, error)

	// ActiveCart and ClearCartByID exist for the order service, which
	// snapshots the cart inside its own transaction.
	ActiveCart(ctx context.Context, caller types.CallerContext) (*models.Cart, error)
	ClearCartByID(ctx context.Context, cartID uuid.UUID) error
}

type service struct {
	repo    Repository
	catalog catalog.Repository
	tx      txRunner
	logg    *logger.Logger
}

// NewService builds a cart service with the required dependencies.
func NewService(repo Repository, catalogRepo catalog.Repository, tx txRunner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalogRepo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: repo, catalog: catalogRepo, tx: tx, logg: logg}, nil
}

func (s *service) GetCart(ctx context.Context, caller types.CallerContext) (*View, error) {
	record, err := s.findCart(ctx, s.repo, caller)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			// Carts are created lazily on first mutation.
			return &View{Items: []ItemView{}}, nil
		}
		return nil, err
	}

	full, err := s.repo.FindWithItems(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return buildView(full), nil
}

func (s *service) AddItem(ctx context.Context, caller types.CallerContext, input AddItemInput) (*View, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := s.findOrCreateCart(ctx, repo, caller)
		if err != nil {
			return err
		}
		if _, err := repo.LockCart(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		cartID = record.ID

		return s.addLine(ctx, repo, s.catalog.WithTx(tx), record.ID, input.ProductID, input.Quantity)
	})
	if err != nil {
		return nil, err
	}

	return s.viewOf(ctx, cartID)
}

func (s *service) UpdateItem(ctx context.Context, caller types.CallerContext, input UpdateItemInput) (*View, error) {
	if input.ItemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}
	if input.Quantity < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must not be negative")
	}

	var cartID uuid.UUID
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		record, err := s.findCart(ctx, repo, caller)
		if err != nil {
			return err
		}
		if _, err := repo.LockCart(ctx, record.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock cart")
		}
		cartID = record.ID

		item, err := repo.FindItem(ctx, record.ID, input.ItemID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
		}

		if input.Quantity == 0 {
			return repo.DeleteItem(ctx, item.ID)
		}

		product, err := s.catalog.WithTx(tx).FindProduct(ctx, item.ProductID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
		}
		if err := checkPurchasable(product, input.Quantity); err != nil {
			return err
		}

		return repo.UpdateItemQuantity(ctx, item.ID, input.Quantity)
	})
	if err != nil {
		return nil, err
	}

	return s.viewOf(ctx, cartID)
}

func (s *service) RemoveItem(ctx context.Context, caller types.CallerContext, itemID uuid.UUID) (*View, error) {
	if itemID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "item id required")
	}

	record, err := s.findCart(ctx, s.repo, caller)
	if err != nil {
		return nil, err
	}

	item, err := s.repo.FindItem(ctx, record.ID, itemID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	if err := s.repo.DeleteItem(ctx, item.ID); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete cart item")
	}

	return s.viewOf(ctx, record.ID)
}

func (s *service) Clear(ctx context.Context, caller types.CallerContext) error {
	record, err := s.findCart(ctx, s.repo, caller)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return nil
		}
		return err
	}
	if err := s.repo.DeleteCart(ctx, record.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) TransferGuestCartToUser(ctx context.Context, sessionID string, userID uuid.UUID) (*TransferResult, error) {
	if sessionID == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "session id required")
	}
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	guest, err := s.repo.FindBySession(ctx, sessionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &TransferResult{Merged: false}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart")
	}

	guestFull, err := s.repo.FindWithItems(ctx, guest.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load guest cart items")
	}
	if len(guestFull.Items) == 0 {
		if err := s.repo.DeleteCart(ctx, guest.ID); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "drop empty guest cart")
		}
		return &TransferResult{Merged: false}, nil
	}

	var (
		targetID uuid.UUID
		skipped  []SkippedLine
		skipErrs error
	)
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		caller := types.CallerContext{UserID: &userID, Role: types.RoleCustomer}

		target, err := s.findOrCreateCart(ctx, repo, caller)
		if err != nil {
			return err
		}
		if _, err := repo.LockCart(ctx, target.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lock target cart")
		}
		targetID = target.ID

		for _, line := range guestFull.Items {
			addErr := s.addLine(ctx, repo, s.catalog.WithTx(tx), target.ID, line.ProductID, line.Quantity)
			if addErr == nil {
				continue
			}
			// A line that no longer fits is skipped, not fatal.
			typed := pkgerrors.As(addErr)
			if typed == nil || typed.Code() == pkgerrors.CodeDependency || typed.Code() == pkgerrors.CodeInternal {
				return addErr
			}
			skipped = append(skipped, SkippedLine{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Reason:    typed.Message(),
			})
			skipErrs = multierr.Append(skipErrs, addErr)
		}

		return repo.DeleteCart(ctx, guest.ID)
	})
	if err != nil {
		return nil, err
	}

	if skipErrs != nil {
		lctx := s.logg.WithFields(ctx, map[string]any{
			"user_id":       userID.String(),
			"skipped_lines": len(skipped),
		})
		s.logg.Warn(lctx, fmt.Sprintf("guest cart transfer skipped lines: %v", skipErrs))
	}

	view, err := s.viewOf(ctx, targetID)
	if err != nil {
		return nil, err
	}
	return &TransferResult{Cart: view, Skipped: skipped, Merged: true}, nil
}

func (s *service) ValidateForCheckout(ctx context.Context, caller types.CallerContext) (*CheckoutValidation, error) {
	record, err := s.ActiveCart(ctx, caller)
	if err != nil {
		if typed := pkgerrors.As(err); typed != nil && typed.Code() == pkgerrors.CodeNotFound {
			return &CheckoutValidation{Valid: false, Errors: []string{"cart is empty"}}, nil
		}
		return nil, err
	}
	ids := make([]uuid.UUID, 0, len(record.Items))
	for _, item := range record.Items {
		ids = append(ids, item.ProductID)
	}
	products, err := s.catalog.FindProducts(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load products")
	}
	byID := make(map[uuid.UUID]*models.Product, len(products))
	for i := range products {
		byID[products[i].ID] = &products[i]
	}
	return validateItems(record.Items, byID), nil
}

func (s *service) ActiveCart(ctx context.Context, caller types.CallerContext) (*models.Cart, error) {
	record, err := s.findCart(ctx, s.repo, caller)
	if err != nil {
		return nil, err
	}
	full, err := s.repo.FindWithItems(ctx, record.ID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return full, nil
}

func (s *service) ClearCartByID(ctx context.Context, cartID uuid.UUID) error {
	if cartID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "cart id required")
	}
	if err := s.repo.DeleteCart(ctx, cartID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

// validateItems applies the checkout-readiness rules against the
// freshly loaded catalog rows, not the cart's preloads. All violations
// are reported, not just the first.
func validateItems(items []models.CartItem, products map[uuid.UUID]*models.Product) *CheckoutValidation {
	result := &CheckoutValidation{Valid: true, Errors: []string{}}
	if len(items) == 0 {
		result.Valid = false
		result.Errors = append(result.Errors, "cart is empty")
		return result
	}

	for _, item := range items {
		product := products[item.ProductID]
		if product == nil || !product.IsActive {
			result.Errors = append(result.Errors, fmt.Sprintf("product %s is no longer available", item.ProductID))
			continue
		}
		if !product.InStock {
			result.Errors = append(result.Errors, fmt.Sprintf("%s is out of stock", product.Name))
			continue
		}
		if item.Quantity > product.Quantity {
			result.Errors = append(result.Errors, fmt.Sprintf(
				"only %d of %s available (requested %d)",
				product.Quantity, product.Name, item.Quantity,
			))
		}
	}

	result.Valid = len(result.Errors) == 0
	return result
}

// addLine applies the add-item rule: increment an existing line or
// create a new one, holding total quantity within on-hand stock.
func (s *service) addLine(ctx context.Context, repo Repository, cat catalog.Repository, cartID, productID uuid.UUID, qty int) error {
	product, err := cat.FindProduct(ctx, productID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	existing, err := repo.FindItemByProduct(ctx, cartID, productID)
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart line")
	}

	total := qty
	if existing != nil {
		total += existing.Quantity
	}
	if err := checkPurchasable(product, total); err != nil {
		return err
	}

	if existing != nil {
		return repo.UpdateItemQuantity(ctx, existing.ID, total)
	}
	return repo.CreateItem(ctx, &models.CartItem{
		ID:        uuid.New(),
		CartID:    cartID,
		ProductID: productID,
		Quantity:  qty,
	})
}

func checkPurchasable(product *models.Product, qty int) error {
	if !product.IsActive {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, fmt.Sprintf("%s is no longer available", product.Name))
	}
	if !product.InStock {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, fmt.Sprintf("%s is out of stock", product.Name))
	}
	if qty > product.Quantity {
		return pkgerrors.New(pkgerrors.CodeBusinessRule, fmt.Sprintf(
			"only %d of %s available (requested %d)", product.Quantity, product.Name, qty,
		))
	}
	return nil
}

// findCart resolves the caller's existing cart.
func (s *service) findCart(ctx context.Context, repo Repository, caller types.CallerContext) (*models.Cart, error) {
	if !caller.HasCartIdentity() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user or session identity required")
	}

	var (
		record *models.Cart
		err    error
	)
	if caller.UserID != nil {
		record, err = repo.FindByUser(ctx, *caller.UserID)
	} else {
		record, err = repo.FindBySession(ctx, *caller.SessionID)
	}
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return record, nil
}

func (s *service) findOrCreateCart(ctx context.Context, repo Repository, caller types.CallerContext) (*models.Cart, error) {
	record, err := s.findCart(ctx, repo, caller)
	if err == nil {
		return record, nil
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		return nil, err
	}

	fresh := &models.Cart{ID: uuid.New()}
	if caller.UserID != nil {
		fresh.UserID = caller.UserID
	} else {
		fresh.SessionID = caller.SessionID
	}
	created, err := repo.Create(ctx, fresh)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create cart")
	}
	return created, nil
}

func (s *service) viewOf(ctx context.Context, cartID uuid.UUID) (*View, error) {
	full, err := s.repo.FindWithItems(ctx, cartID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart items")
	}
	return buildView(full), nil
}
