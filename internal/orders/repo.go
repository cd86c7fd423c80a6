package orders

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/enamelgeorgia/storefront/pkg/db/models"
	"github.com/enamelgeorgia/storefront/pkg/enums"
)

// Repository persists orders and their frozen line items.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error)
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error)
	FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error)
	FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error)
	List(ctx context.Context, filters ListFilters) ([]models.Order, int64, error)
	UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error)
	BindPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error
	AppendNote(ctx context.Context, id uuid.UUID, note string) error
	AppendNoteOnce(ctx context.Context, id uuid.UUID, marker, note string) error
	Stats(ctx context.Context, userID *uuid.UUID) (*Stats, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an orders repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Create(order).Error
}

func (r *repository) loaded(ctx context.Context) *gorm.DB {
	return r.db.WithContext(ctx).
		Preload("Items").
		Preload("Items.Product").
		Preload("User").
		Preload("ShippingAddress").
		Preload("BillingAddress")
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.loaded(ctx).Where("id = ?", id).First(&order).Error; err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Order, error) {
	var order models.Order
	err := r.loaded(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByNumber(ctx context.Context, orderNumber string) (*models.Order, error) {
	var order models.Order
	err := r.loaded(ctx).
		Where("order_number = ?", orderNumber).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	var order models.Order
	err := r.loaded(ctx).
		Where("payment_intent_id = ?", intentID).
		First(&order).Error
	if err != nil {
		return nil, err
	}
	return &order, nil
}

// listSortColumns whitelists sortable columns so filters never reach
// the SQL string directly.
var listSortColumns = map[string]string{
	"created_at": "created_at",
	"total":      "total",
	"status":     "status",
}

func (r *repository) List(ctx context.Context, filters ListFilters) ([]models.Order, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})

	if filters.Status != nil {
		q = q.Where("status = ?", *filters.Status)
	}
	if filters.UserID != nil {
		q = q.Where("user_id = ?", *filters.UserID)
	}
	if filters.From != nil {
		q = q.Where("created_at >= ?", *filters.From)
	}
	if filters.To != nil {
		q = q.Where("created_at <= ?", *filters.To)
	}
	if filters.MinTotal != nil {
		q = q.Where("total >= ?", *filters.MinTotal)
	}
	if filters.MaxTotal != nil {
		q = q.Where("total <= ?", *filters.MaxTotal)
	}
	if filters.HasPaymentIntent != nil {
		if *filters.HasPaymentIntent {
			q = q.Where("payment_intent_id IS NOT NULL")
		} else {
			q = q.Where("payment_intent_id IS NULL")
		}
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := listSortColumns[filters.SortBy]
	if !ok {
		column = "created_at"
		filters.SortDesc = true
	}
	direction := "ASC"
	if filters.SortDesc {
		direction = "DESC"
	}

	page := filters.Page.Normalize()
	var rows []models.Order
	err := q.
		Preload("Items").
		Preload("Items.Product").
		Order(column + " " + direction).
		Limit(page.Limit).
		Offset(page.Offset()).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

// UpdateStatusFrom applies a conditional status update. The WHERE on
// the expected source status is the concurrency contract: a false
// return means another writer moved the order first.
func (r *repository) UpdateStatusFrom(ctx context.Context, id uuid.UUID, from, to enums.OrderStatus, extra map[string]any) (bool, error) {
	updates := map[string]any{"status": to}
	for k, v := range extra {
		updates[k] = v
	}

	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) BindPaymentIntent(ctx context.Context, id uuid.UUID, intentID string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("payment_intent_id", intentID).Error
}

func (r *repository) AppendNote(ctx context.Context, id uuid.UUID, note string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Update("notes", gorm.Expr(
			"CASE WHEN notes IS NULL OR notes = '' THEN ? ELSE notes || ? END",
			note, "\n"+note,
		)).Error
}

// AppendNoteOnce appends the note only while no earlier note contains
// marker, making the write safe to repeat.
func (r *repository) AppendNoteOnce(ctx context.Context, id uuid.UUID, marker, note string) error {
	return r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ?", id).
		Where("notes IS NULL OR notes NOT LIKE ?", "%"+marker+"%").
		Update("notes", gorm.Expr(
			"CASE WHEN notes IS NULL OR notes = '' THEN ? ELSE notes || ? END",
			note, "\n"+note,
		)).Error
}

func (r *repository) Stats(ctx context.Context, userID *uuid.UUID) (*Stats, error) {
	base := r.db.WithContext(ctx).Model(&models.Order{})
	if userID != nil {
		base = base.Where("user_id = ?", *userID)
	}

	stats := &Stats{ByStatus: map[enums.OrderStatus]int64{}}
	if err := base.Session(&gorm.Session{}).Count(&stats.TotalOrders).Error; err != nil {
		return nil, err
	}

	type statusCount struct {
		Status enums.OrderStatus
		Count  int64
	}
	var counts []statusCount
	err := base.Session(&gorm.Session{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&counts).Error
	if err != nil {
		return nil, err
	}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
	}

	var rev struct {
		Revenue decimal.NullDecimal
	}
	err = base.Session(&gorm.Session{}).
		Select("COALESCE(SUM(total), 0) AS revenue").
		Where("status IN ?", revenueStatuses).
		Scan(&rev).Error
	if err != nil {
		return nil, err
	}
	if rev.Revenue.Valid {
		stats.TotalRevenue = rev.Revenue.Decimal
	}

	return stats, nil
}

// revenueStatuses are the states whose totals count as realized
// revenue. PENDING money is not collected and CANCELLED/REFUNDED money
// went back.
var revenueStatuses = []enums.OrderStatus{
	enums.OrderStatusPaid,
	enums.OrderStatusProcessing,
	enums.OrderStatusShipped,
	enums.OrderStatusDelivered,
}
