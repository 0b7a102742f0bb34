package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/pkg/db/models"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StockLevel pairs an inventory record with its derived status.
type StockLevel struct {
	Inventory models.Inventory
	Status    enums.StockStatus
}

// Service exposes stock operations for checkout and back-office flows.
type Service interface {
	Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, sku string, qty int) error
	Restore(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error
	GetLevel(ctx context.Context, variantID uuid.UUID) (*StockLevel, error)
	Restock(ctx context.Context, variantID uuid.UUID, qty int) (*StockLevel, error)
	SetLevels(ctx context.Context, variantID uuid.UUID, quantity, reorderLevel int) error
	LowStock(ctx context.Context) ([]StockLevel, error)
}

type service struct {
	repo  Repository
	tx    txRunner
	nowFn func() time.Time
}

// NewService builds an inventory service with the required dependencies.
func NewService(repo Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx, nowFn: time.Now}, nil
}

// Reserve atomically claims qty units for the variant inside the caller's
// transaction. A failed claim is classified by re-reading the record: no
// record at all means the variant is unknown, otherwise stock ran out.
func (s *service) Reserve(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, sku string, qty int) error {
	if variantID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if qty <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	repo := s.repo.WithTx(tx)
	claimed, err := repo.Reserve(ctx, variantID, qty)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve inventory")
	}
	if claimed {
		return nil
	}

	if _, err := repo.FindByVariantID(ctx, variantID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found").
				WithDetail("sku", sku)
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return pkgerrors.NewWithReason(pkgerrors.CodeConflict, pkgerrors.ReasonInsufficientStock, "insufficient stock").
		WithDetail("sku", sku)
}

func (s *service) Restore(ctx context.Context, tx *gorm.DB, variantID uuid.UUID, qty int) error {
	if qty <= 0 {
		return nil
	}
	if err := s.repo.WithTx(tx).Restore(ctx, variantID, qty); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restore inventory")
	}
	return nil
}

func (s *service) GetLevel(ctx context.Context, variantID uuid.UUID) (*StockLevel, error) {
	record, err := s.repo.FindByVariantID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load inventory")
	}
	return &StockLevel{
		Inventory: *record,
		Status:    enums.StockStatusFor(record.Quantity, record.ReorderLevel),
	}, nil
}

// Restock receives qty units into stock and stamps the restock time. Quantity
// corrections go through SetLevels; this only ever adds.
func (s *service) Restock(ctx context.Context, variantID uuid.UUID, qty int) (*StockLevel, error) {
	if qty < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "restock quantity cannot be negative")
	}
	if err := s.repo.Restock(ctx, variantID, qty, s.nowFn().UTC()); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "restock inventory")
	}
	return s.GetLevel(ctx, variantID)
}

func (s *service) SetLevels(ctx context.Context, variantID uuid.UUID, quantity, reorderLevel int) error {
	if quantity < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "quantity cannot be negative")
	}
	if reorderLevel < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "reorder level cannot be negative")
	}
	if err := s.repo.SetLevels(ctx, variantID, quantity, reorderLevel); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "inventory record not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update inventory levels")
	}
	return nil
}

func (s *service) LowStock(ctx context.Context) ([]StockLevel, error) {
	records, err := s.repo.ListLowStock(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list low stock")
	}
	levels := make([]StockLevel, 0, len(records))
	for _, record := range records {
		levels = append(levels, StockLevel{
			Inventory: record,
			Status:    enums.StockStatusFor(record.Quantity, record.ReorderLevel),
		})
	}
	return levels, nil
}
