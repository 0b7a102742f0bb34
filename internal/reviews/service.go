package reviews

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/storefront/internal/orders"
	"github.com/example/storefront/internal/products"
	"github.com/example/storefront/pkg/db/models"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/pagination"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// CreateInput is a customer's review submission.
type CreateInput struct {
	ProductID uuid.UUID
	Rating    int
	Title     *string
	Comment   *string
}

// Page is a cursor-paginated slice of reviews.
type Page struct {
	Reviews    []models.Review
	NextCursor string
}

// Service manages customer reviews and their moderation.
type Service interface {
	Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Review, error)
	ListForProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*Page, error)
	ListAll(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error)
	SetApproval(ctx context.Context, reviewID uuid.UUID, approved bool) (*models.Review, error)
	Delete(ctx context.Context, reviewID uuid.UUID) error
	Summary(ctx context.Context, productID uuid.UUID) (*RatingSummary, error)
}

type service struct {
	repo      Repository
	catalog   *products.Repository
	purchases orders.Repository
}

// NewService builds the review service. The orders repository backs the
// verified-purchase check.
func NewService(repo Repository, catalog *products.Repository, purchases orders.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reviews repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if purchases == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	return &service{repo: repo, catalog: catalog, purchases: purchases}, nil
}

// Create records one review per user per product. Verified is derived from the
// user's delivered orders, never from client input.
func (s *service) Create(ctx context.Context, userID uuid.UUID, input CreateInput) (*models.Review, error) {
	if input.ProductID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product id required")
	}
	if input.Rating < 1 || input.Rating > 5 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "rating must be between 1 and 5")
	}
	if input.Title != nil && strings.TrimSpace(*input.Title) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title must not be blank")
	}

	if _, err := s.catalog.FindByID(ctx, input.ProductID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}

	if _, err := s.repo.FindByProductAndUser(ctx, input.ProductID, userID); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "product already reviewed")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check existing review")
	}

	delivered, err := s.purchases.CountDeliveredContaining(ctx, userID, input.ProductID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "check purchase history")
	}

	review := &models.Review{
		ID:         uuid.New(),
		ProductID:  input.ProductID,
		UserID:     userID,
		Rating:     input.Rating,
		Title:      input.Title,
		Comment:    input.Comment,
		IsVerified: delivered > 0,
		IsApproved: true,
	}
	if err := s.repo.Create(ctx, review); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create review")
	}
	return review, nil
}

// ListForProduct returns only approved reviews, the customer-facing view.
func (s *service) ListForProduct(ctx context.Context, productID uuid.UUID, params pagination.Params) (*Page, error) {
	return s.ListAll(ctx, ListFilter{ProductID: &productID, ApprovedOnly: true}, params)
}

func (s *service) ListAll(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, filter, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list reviews")
	}

	page := &Page{Reviews: rows}
	if len(rows) > limit {
		page.Reviews = rows[:limit]
		last := page.Reviews[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

func (s *service) SetApproval(ctx context.Context, reviewID uuid.UUID, approved bool) (*models.Review, error) {
	if err := s.repo.Update(ctx, reviewID, map[string]any{"is_approved": approved}); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update review")
	}
	return s.get(ctx, reviewID)
}

func (s *service) Delete(ctx context.Context, reviewID uuid.UUID) error {
	if err := s.repo.Delete(ctx, reviewID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete review")
	}
	return nil
}

func (s *service) Summary(ctx context.Context, productID uuid.UUID) (*RatingSummary, error) {
	summary, err := s.repo.Summarize(ctx, productID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "summarize reviews")
	}
	return summary, nil
}

func (s *service) get(ctx context.Context, reviewID uuid.UUID) (*models.Review, error) {
	review, err := s.repo.FindByID(ctx, reviewID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "review not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load review")
	}
	return review, nil
}
