package inventory

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for per-variant stock records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindByVariantID(ctx context.Context, variantID uuid.UUID) (*models.Inventory, error)
	Upsert(ctx context.Context, record *models.Inventory) error
	Reserve(ctx context.Context, variantID uuid.UUID, qty int) (bool, error)
	Restore(ctx context.Context, variantID uuid.UUID, qty int) error
	Restock(ctx context.Context, variantID uuid.UUID, qty int, at time.Time) error
	SetLevels(ctx context.Context, variantID uuid.UUID, quantity, reorderLevel int) error
	ListLowStock(ctx context.Context) ([]models.Inventory, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindByVariantID(ctx context.Context, variantID uuid.UUID) (*models.Inventory, error) {
	var record models.Inventory
	if err := r.db.WithContext(ctx).
		Where("variant_id = ?", variantID).
		First(&record).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) Upsert(ctx context.Context, record *models.Inventory) error {
	return r.db.WithContext(ctx).Save(record).Error
}

// Reserve decrements stock only when enough is on hand. The conditional
// UPDATE makes the read-check-write a single atomic statement, so two
// concurrent reservations can never both succeed on the last unit. Returns
// false when no row matched (missing record or insufficient quantity).
func (r *repository) Reserve(ctx context.Context, variantID uuid.UUID, qty int) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE inventories
		SET quantity = quantity - ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ? AND quantity >= ?
	`, qty, variantID, qty)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

// Restore returns previously reserved quantity, used on cancellation.
func (r *repository) Restore(ctx context.Context, variantID uuid.UUID, qty int) error {
	return r.db.WithContext(ctx).Exec(`
		UPDATE inventories
		SET quantity = quantity + ?,
			updated_at = CURRENT_TIMESTAMP
		WHERE variant_id = ?
	`, qty, variantID).Error
}

// Restock adds received units on top of whatever is on hand and stamps the
// restock time. Unlike Restore this is an audited replenishment event.
func (r *repository) Restock(ctx context.Context, variantID uuid.UUID, qty int, at time.Time) error {
	res := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("variant_id = ?", variantID).
		Updates(map[string]any{
			"quantity":          gorm.Expr("quantity + ?", qty),
			"last_restocked_at": at,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) SetLevels(ctx context.Context, variantID uuid.UUID, quantity, reorderLevel int) error {
	res := r.db.WithContext(ctx).
		Model(&models.Inventory{}).
		Where("variant_id = ?", variantID).
		Updates(map[string]any{
			"quantity":      quantity,
			"reorder_level": reorderLevel,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) ListLowStock(ctx context.Context) ([]models.Inventory, error) {
	var records []models.Inventory
	if err := r.db.WithContext(ctx).
		Where("quantity <= reorder_level").
		Order("quantity ASC").
		Find(&records).Error; err != nil {
		return nil, err
	}
	return records, nil
}
