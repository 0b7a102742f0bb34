package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/example/storefront/pkg/enums"
)

// Shipment tracks the physical delivery of one order.
type Shipment struct {
	ID             uuid.UUID            `gorm:"column:id;type:uuid;primaryKey"`
	OrderID        uuid.UUID            `gorm:"column:order_id;type:uuid;not null;uniqueIndex"`
	TrackingNumber string               `gorm:"column:tracking_number;not null"`
	Carrier        string               `gorm:"column:carrier;not null"`
	Status         enums.ShipmentStatus `gorm:"column:status;type:text;not null;default:'preparing'"`
	ShippedAt      *time.Time           `gorm:"column:shipped_at"`
	DeliveredAt    *time.Time           `gorm:"column:delivered_at"`
	CreatedAt      time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

func (s *Shipment) BeforeCreate(*gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}
