package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Inventory tracks on-hand quantity per variant. LastRestockedAt is stamped by
// restocks only, never by reservations or level corrections.
type Inventory struct {
	ID              uuid.UUID  `gorm:"column:id;type:uuid;primaryKey"`
	VariantID       uuid.UUID  `gorm:"column:variant_id;type:uuid;not null;uniqueIndex"`
	Quantity        int        `gorm:"column:quantity;not null;default:0"`
	ReorderLevel    int        `gorm:"column:reorder_level;not null;default:0"`
	LastRestockedAt *time.Time `gorm:"column:last_restocked_at"`
	UpdatedAt       time.Time  `gorm:"column:updated_at;autoUpdateTime"`
}

func (i *Inventory) BeforeCreate(*gorm.DB) error {
	if i.ID == uuid.Nil {
		i.ID = uuid.New()
	}
	return nil
}
