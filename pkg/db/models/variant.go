package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Variant is a sellable configuration of a product (size, color). Each
// variant carries its own list price and optional discount price.
type Variant struct {
	ID            uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	ProductID     uuid.UUID        `gorm:"column:product_id;type:uuid;not null;index"`
	SKU           string           `gorm:"column:sku;not null;uniqueIndex"`
	Size          *string          `gorm:"column:size"`
	Color         *string          `gorm:"column:color"`
	Price         decimal.Decimal  `gorm:"column:price;type:numeric(12,2);not null"`
	DiscountPrice *decimal.Decimal `gorm:"column:discount_price;type:numeric(12,2)"`
	IsActive      bool             `gorm:"column:is_active;not null"`
	Product       *Product         `gorm:"foreignKey:ProductID"`
	Inventory     *Inventory       `gorm:"foreignKey:VariantID;constraint:OnDelete:CASCADE"`
	CreatedAt     time.Time        `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time        `gorm:"column:updated_at;autoUpdateTime"`
}

func (v *Variant) BeforeCreate(*gorm.DB) error {
	if v.ID == uuid.Nil {
		v.ID = uuid.New()
	}
	return nil
}

// EffectivePrice returns the discount price when one is set, else the list
// price. Order lines always capture this value at placement time.
func (v Variant) EffectivePrice() decimal.Decimal {
	if v.DiscountPrice != nil {
		return *v.DiscountPrice
	}
	return v.Price
}
