package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/enamelgeorgia/storefront/pkg/types"
)

// User is the customer account record. Authentication lives in a
// separate service; this core only reads identity fields.
type User struct {
	ID        uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	Email     string     `gorm:"column:email;not null;uniqueIndex"`
	FirstName string     `gorm:"column:first_name;not null"`
	LastName  string     `gorm:"column:last_name;not null"`
	Role      types.Role `gorm:"column:role;not null;default:'CUSTOMER'"`
	CreatedAt time.Time  `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}
