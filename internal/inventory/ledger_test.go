package inventory

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/enamelgeorgia/storefront/pkg/db/models"
	pkgerrors "github.com/enamelgeorgia/storefront/pkg/errors"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:inventory_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.Product{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func seedProduct(t *testing.T, db *gorm.DB, qty int) uuid.UUID {
	t.Helper()
	p := models.Product{
		ID:       uuid.New(),
		Name:     "Enamel Mug",
		Slug:     "enamel-mug-" + uuid.NewString(),
		Price:    decimal.RequireFromString("10.00"),
		Quantity: qty,
		InStock:  qty > 0,
		IsActive: true,
	}
	if err := db.Create(&p).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return p.ID
}

func TestReserve(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	productID := seedProduct(t, db, 5)

	if err := ledger.Reserve(ctx, db, productID, 3); err != nil {
		t.Fatalf("reserve: %v", err)
	}

	var p models.Product
	if err := db.First(&p, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if p.Quantity != 2 || !p.InStock {
		t.Fatalf("unexpected product state: qty=%d in_stock=%v", p.Quantity, p.InStock)
	}

	// Taking the rest flips in_stock off.
	if err := ledger.Reserve(ctx, db, productID, 2); err != nil {
		t.Fatalf("reserve remainder: %v", err)
	}
	if err := db.First(&p, "id = ?", productID).Error; err != nil {
		t.Fatalf("reload product: %v", err)
	}
	if p.Quantity != 0 || p.InStock {
		t.Fatalf("expected empty stock, got qty=%d in_stock=%v", p.Quantity, p.InStock)
	}
}

func TestReserve_InsufficientStock(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	productID := seedProduct(t, db, 2)

	err := ledger.Reserve(ctx, db, productID, 3)
	if err == nil {
		t.Fatal("expected insufficient stock error")
	}
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeBusinessRule {
		t.Fatalf("unexpected error: %v", err)
	}

	var p models.Product
	if err := db.First(&p, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if p.Quantity != 2 {
		t.Fatalf("failed reservation must not touch stock, got %d", p.Quantity)
	}
}

func TestReserve_InvalidQty(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := NewLedger()
	productID := seedProduct(t, db, 5)

	err := ledger.Reserve(context.Background(), db, productID, 0)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestRelease_RoundTrip(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ctx := context.Background()
	ledger := NewLedger()
	productID := seedProduct(t, db, 5)

	if err := ledger.Reserve(ctx, db, productID, 5); err != nil {
		t.Fatalf("reserve: %v", err)
	}
	if err := ledger.Release(ctx, db, productID, 5); err != nil {
		t.Fatalf("release: %v", err)
	}

	var p models.Product
	if err := db.First(&p, "id = ?", productID).Error; err != nil {
		t.Fatalf("load product: %v", err)
	}
	if p.Quantity != 5 || !p.InStock {
		t.Fatalf("expected stock restored, got qty=%d in_stock=%v", p.Quantity, p.InStock)
	}
}

func TestRelease_UnknownProduct(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	ledger := NewLedger()

	err := ledger.Release(context.Background(), db, uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("unexpected error: %v", err)
	}
}
