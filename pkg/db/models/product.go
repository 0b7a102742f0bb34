package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Product represents the canonical catalog listing. Money lives on the
// variants; a product with no variants has nothing to sell.
type Product struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	CategoryID  uuid.UUID `gorm:"column:category_id;type:uuid;not null;index"`
	Name        string    `gorm:"column:name;not null"`
	Slug        string    `gorm:"column:slug;not null;uniqueIndex"`
	Description *string   `gorm:"column:description"`
	Brand       *string   `gorm:"column:brand"`
	ImageURL    *string   `gorm:"column:image_url"`
	IsActive    bool      `gorm:"column:is_active;not null"`
	IsFeatured  bool      `gorm:"column:is_featured;not null"`
	Variants    []Variant `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	Reviews     []Review  `gorm:"foreignKey:ProductID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Product) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
