package products

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/storefront/pkg/db/models"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// VariantInput describes one sellable configuration on create. Pricing is
// per variant; the product itself carries no price.
type VariantInput struct {
	SKU             string
	Size            *string
	Color           *string
	Price           decimal.Decimal
	DiscountPrice   *decimal.Decimal
	InitialQuantity int
	ReorderLevel    int
}

// CreateProductInput carries the fields an admin supplies for a new listing.
type CreateProductInput struct {
	CategoryID  uuid.UUID
	Name        string
	Slug        string
	Description *string
	Brand       *string
	ImageURL    *string
	IsFeatured  bool
	Variants    []VariantInput
}

// UpdateProductInput carries editable listing fields.
type UpdateProductInput struct {
	CategoryID  uuid.UUID
	Name        string
	Description *string
	Brand       *string
	ImageURL    *string
	IsActive    bool
	IsFeatured  bool
}

// Page is a cursor-paginated slice of products.
type Page struct {
	Products   []models.Product
	NextCursor string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service exposes catalog reads for the storefront and writes for admins.
type Service interface {
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Product, error)
	GetBySlug(ctx context.Context, slug string) (*models.Product, error)
	Create(ctx context.Context, input CreateProductInput) (*models.Product, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error)
	Delete(ctx context.Context, id uuid.UUID) error
	ListCategories(ctx context.Context) ([]models.Category, error)
	CreateCategory(ctx context.Context, name, slug string, description *string, parentID *uuid.UUID) (*models.Category, error)
}

type service struct {
	repo *Repository
	tx   txRunner
}

// NewService builds the catalog service.
func NewService(repo *Repository, tx txRunner) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("products repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	return &service{repo: repo, tx: tx}, nil
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, filter, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	page := &Page{Products: rows}
	if len(rows) > limit {
		page.Products = rows[:limit]
		last := page.Products[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) GetBySlug(ctx context.Context, slug string) (*models.Product, error) {
	product, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return product, nil
}

func (s *service) Create(ctx context.Context, input CreateProductInput) (*models.Product, error) {
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	product := &models.Product{
		ID:          uuid.New(),
		CategoryID:  input.CategoryID,
		Name:        strings.TrimSpace(input.Name),
		Slug:        strings.TrimSpace(input.Slug),
		Description: input.Description,
		Brand:       input.Brand,
		ImageURL:    input.ImageURL,
		IsActive:    true,
		IsFeatured:  input.IsFeatured,
	}
	for _, v := range input.Variants {
		variantID := uuid.New()
		product.Variants = append(product.Variants, models.Variant{
			ID:            variantID,
			ProductID:     product.ID,
			SKU:           strings.TrimSpace(v.SKU),
			Size:          v.Size,
			Color:         v.Color,
			Price:         v.Price,
			DiscountPrice: v.DiscountPrice,
			IsActive:      true,
			Inventory: &models.Inventory{
				ID:           uuid.New(),
				VariantID:    variantID,
				Quantity:     v.InitialQuantity,
				ReorderLevel: v.ReorderLevel,
			},
		})
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := s.repo.WithTx(tx).FindCategoryByID(ctx, input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeValidation, "category does not exist")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load category")
		}
		if err := s.repo.WithTx(tx).Create(ctx, product); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create product")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return product, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateProductInput) (*models.Product, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}

	product, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	product.CategoryID = input.CategoryID
	product.Name = strings.TrimSpace(input.Name)
	product.Description = input.Description
	product.Brand = input.Brand
	product.ImageURL = input.ImageURL
	product.IsActive = input.IsActive
	product.IsFeatured = input.IsFeatured

	if err := s.repo.Update(ctx, product); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update product")
	}
	return product, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
	}
	return nil
}

func (s *service) ListCategories(ctx context.Context) ([]models.Category, error) {
	categories, err := s.repo.ListCategories(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list categories")
	}
	return categories, nil
}

func (s *service) CreateCategory(ctx context.Context, name, slug string, description *string, parentID *uuid.UUID) (*models.Category, error) {
	if strings.TrimSpace(name) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category name required")
	}
	if strings.TrimSpace(slug) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "category slug required")
	}

	category := &models.Category{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(name),
		Slug:        strings.TrimSpace(slug),
		Description: description,
		ParentID:    parentID,
		IsActive:    true,
	}
	if err := s.repo.CreateCategory(ctx, category); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create category")
	}
	return category, nil
}

func validateCreate(input CreateProductInput) error {
	if input.CategoryID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "category id required")
	}
	if strings.TrimSpace(input.Name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name required")
	}
	if strings.TrimSpace(input.Slug) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product slug required")
	}
	if len(input.Variants) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one variant required")
	}
	seen := map[string]bool{}
	for _, v := range input.Variants {
		sku := strings.TrimSpace(v.SKU)
		if sku == "" {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant sku required")
		}
		if seen[sku] {
			return pkgerrors.New(pkgerrors.CodeValidation, "duplicate variant sku "+sku)
		}
		seen[sku] = true
		if !v.Price.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation, "variant price must be positive")
		}
		if v.DiscountPrice != nil && v.DiscountPrice.GreaterThanOrEqual(v.Price) {
			return pkgerrors.New(pkgerrors.CodeValidation, "discount price must be below list price")
		}
		if v.InitialQuantity < 0 {
			return pkgerrors.New(pkgerrors.CodeValidation, "initial quantity cannot be negative")
		}
	}
	return nil
}
