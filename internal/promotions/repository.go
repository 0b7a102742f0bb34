package promotions

import (
	"context"
	"strings"

	"github.com/example/storefront/pkg/db/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Repository manages persistence for promotion codes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, promo *models.Promotion) error
	Update(ctx context.Context, promo *models.Promotion) error
	Delete(ctx context.Context, id uuid.UUID) error
	FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	FindByCode(ctx context.Context, code string) (*models.Promotion, error)
	List(ctx context.Context) ([]models.Promotion, error)
	ConsumeUsage(ctx context.Context, id uuid.UUID) (bool, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a promotions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) Create(ctx context.Context, promo *models.Promotion) error {
	return r.db.WithContext(ctx).Create(promo).Error
}

func (r *repository) Update(ctx context.Context, promo *models.Promotion) error {
	return r.db.WithContext(ctx).Save(promo).Error
}

func (r *repository) Delete(ctx context.Context, id uuid.UUID) error {
	res := r.db.WithContext(ctx).Delete(&models.Promotion{}, "id = ?", id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	var promo models.Promotion
	if err := r.db.WithContext(ctx).First(&promo, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

// FindByCode matches codes case-insensitively. Codes are stored uppercase, but
// the upper() on the column keeps legacy mixed-case rows reachable too.
func (r *repository) FindByCode(ctx context.Context, code string) (*models.Promotion, error) {
	var promo models.Promotion
	if err := r.db.WithContext(ctx).First(&promo, "upper(code) = ?", strings.ToUpper(code)).Error; err != nil {
		return nil, err
	}
	return &promo, nil
}

func (r *repository) List(ctx context.Context) ([]models.Promotion, error) {
	var promos []models.Promotion
	if err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Find(&promos).Error; err != nil {
		return nil, err
	}
	return promos, nil
}

// ConsumeUsage bumps the usage counter only while the limit still has room.
// The conditional UPDATE keeps the budget check atomic under concurrency.
// Returns false when the promotion is missing or exhausted.
func (r *repository) ConsumeUsage(ctx context.Context, id uuid.UUID) (bool, error) {
	res := r.db.WithContext(ctx).Exec(`
		UPDATE promotions
		SET usage_count = usage_count + 1,
			updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND (usage_limit IS NULL OR usage_count < usage_limit)
	`, id)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
