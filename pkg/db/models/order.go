package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/example/storefront/pkg/enums"
)

// Order is a placed customer order with its captured money breakdown.
type Order struct {
	ID              uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrderNumber     string            `gorm:"column:order_number;not null;uniqueIndex"`
	UserID          uuid.UUID         `gorm:"column:user_id;type:uuid;not null;index"`
	Status          enums.OrderStatus `gorm:"column:status;type:text;not null;default:'pending'"`
	Subtotal        decimal.Decimal   `gorm:"column:subtotal;type:numeric(12,2);not null"`
	DiscountAmount  decimal.Decimal   `gorm:"column:discount_amount;type:numeric(12,2);not null;default:0"`
	ShippingFee     decimal.Decimal   `gorm:"column:shipping_fee;type:numeric(12,2);not null;default:0"`
	TotalAmount     decimal.Decimal   `gorm:"column:total_amount;type:numeric(12,2);not null"`
	PromotionID     *uuid.UUID        `gorm:"column:promotion_id;type:uuid"`
	ShippingAddress string            `gorm:"column:shipping_address;not null"`
	RecipientName   string            `gorm:"column:recipient_name;not null"`
	RecipientPhone  string            `gorm:"column:recipient_phone;not null"`
	Notes           *string           `gorm:"column:notes"`
	Items           []OrderItem       `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Payment         *Payment          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	Shipment        *Shipment         `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE"`
	CancelledAt     *time.Time        `gorm:"column:cancelled_at"`
	CreatedAt       time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (o *Order) BeforeCreate(*gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	return nil
}
