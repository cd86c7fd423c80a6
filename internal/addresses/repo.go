// Package addresses reads address book entries. Address CRUD belongs
// to the account service; checkout only resolves and ownership-checks.
package addresses

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/enamelgeorgia/storefront/pkg/db/models"
)

// Repository resolves addresses scoped to their owner.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Address, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository builds an address repository bound to the provided DB.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// FindByIDForUser returns the address only when it belongs to userID.
// A wrong owner surfaces as record-not-found so existence never leaks.
func (r *repository) FindByIDForUser(ctx context.Context, id, userID uuid.UUID) (*models.Address, error) {
	var address models.Address
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&address).Error
	if err != nil {
		return nil, err
	}
	return &address, nil
}
