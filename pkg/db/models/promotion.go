package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/pkg/enums"
)

// Promotion is a discount code with a validity window and usage budget.
// Codes are stored uppercase; lookups match case-insensitively.
type Promotion struct {
	ID                uuid.UUID          `gorm:"column:id;type:uuid;primaryKey"`
	Code              string             `gorm:"column:code;not null;uniqueIndex"`
	Description       *string            `gorm:"column:description"`
	DiscountType      enums.DiscountType `gorm:"column:discount_type;type:text;not null"`
	DiscountValue     decimal.Decimal    `gorm:"column:discount_value;type:numeric(12,2);not null"`
	MinOrderAmount    *decimal.Decimal   `gorm:"column:min_order_amount;type:numeric(12,2)"`
	MaxDiscountAmount *decimal.Decimal   `gorm:"column:max_discount_amount;type:numeric(12,2)"`
	StartDate         time.Time          `gorm:"column:start_date;not null"`
	EndDate           time.Time          `gorm:"column:end_date;not null"`
	UsageLimit        *int               `gorm:"column:usage_limit"`
	UsageCount        int                `gorm:"column:usage_count;not null;default:0"`
	IsActive          bool               `gorm:"column:is_active;not null"`
	CreatedAt         time.Time          `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time          `gorm:"column:updated_at;autoUpdateTime"`
}

func (p *Promotion) BeforeCreate(*gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	return nil
}
