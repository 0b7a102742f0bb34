package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Review is a customer's rating of a product. One review per product per
// customer; verified means a delivered order of theirs contained the product.
type Review struct {
	ID         uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	ProductID  uuid.UUID `gorm:"column:product_id;type:uuid;not null;index;uniqueIndex:idx_product_user"`
	UserID     uuid.UUID `gorm:"column:user_id;type:uuid;not null;uniqueIndex:idx_product_user"`
	Rating     int       `gorm:"column:rating;not null"`
	Title      *string   `gorm:"column:title"`
	Comment    *string   `gorm:"column:comment"`
	IsVerified bool      `gorm:"column:is_verified;not null"`
	IsApproved bool      `gorm:"column:is_approved;not null"`
	CreatedAt  time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt  time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (r *Review) BeforeCreate(*gorm.DB) error {
	if r.ID == uuid.Nil {
		r.ID = uuid.New()
	}
	return nil
}
