package promotions

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/storefront/pkg/db/models"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Evaluation is the outcome of applying a promotion against a subtotal.
type Evaluation struct {
	Promotion      models.Promotion
	DiscountAmount decimal.Decimal
}

// CreateInput carries the fields an admin supplies for a new promotion.
type CreateInput struct {
	Code              string
	Description       *string
	DiscountType      enums.DiscountType
	DiscountValue     decimal.Decimal
	MinOrderAmount    *decimal.Decimal
	MaxDiscountAmount *decimal.Decimal
	StartDate         time.Time
	EndDate           time.Time
	UsageLimit        *int
	IsActive          bool
}

// UpdateInput mirrors CreateInput for edits.
type UpdateInput = CreateInput

// Service evaluates promotion codes and manages their lifecycle.
type Service interface {
	Evaluate(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal, at time.Time) (*Evaluation, error)
	ConsumeUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID) error
	Create(ctx context.Context, input CreateInput) (*models.Promotion, error)
	Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Promotion, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Get(ctx context.Context, id uuid.UUID) (*models.Promotion, error)
	List(ctx context.Context) ([]models.Promotion, error)
}

type service struct {
	repo Repository
}

// NewService builds a promotions service.
func NewService(repo Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("promotions repository required")
	}
	return &service{repo: repo}, nil
}

// Evaluate checks the code against the given subtotal at the given instant.
// Checks run in a fixed order so the caller always gets the most specific
// rejection: existence, window start, window end, usage budget, minimum order.
func (s *service) Evaluate(ctx context.Context, tx *gorm.DB, code string, subtotal decimal.Decimal, at time.Time) (*Evaluation, error) {
	code = normalizeCode(code)
	if code == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "promotion code required")
	}

	promo, err := s.repo.WithTx(tx).FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, notFoundErr()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}
	if !promo.IsActive {
		return nil, notFoundErr()
	}
	if at.Before(promo.StartDate) {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonPromotionNotYet, "promotion is not yet valid")
	}
	if at.After(promo.EndDate) {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonPromotionExpired, "promotion has expired")
	}
	if promo.UsageLimit != nil && promo.UsageCount >= *promo.UsageLimit {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonPromotionExhausted, "promotion usage limit reached")
	}
	if promo.MinOrderAmount != nil && subtotal.LessThan(*promo.MinOrderAmount) {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonMinimumOrderNotMet, "order subtotal below promotion minimum").
			WithDetail("min_order_amount", promo.MinOrderAmount.String())
	}

	return &Evaluation{
		Promotion:      *promo,
		DiscountAmount: discountFor(*promo, subtotal),
	}, nil
}

// ConsumeUsage burns one use of the promotion inside the order transaction.
// Losing the conditional update means another order exhausted the budget
// between evaluation and commit.
func (s *service) ConsumeUsage(ctx context.Context, tx *gorm.DB, id uuid.UUID) error {
	consumed, err := s.repo.WithTx(tx).ConsumeUsage(ctx, id)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "consume promotion usage")
	}
	if !consumed {
		return pkgerrors.NewWithReason(pkgerrors.CodeConflict, pkgerrors.ReasonPromotionExhausted, "promotion usage limit reached")
	}
	return nil
}

func (s *service) Create(ctx context.Context, input CreateInput) (*models.Promotion, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	promo := &models.Promotion{
		ID:                uuid.New(),
		Code:              normalizeCode(input.Code),
		Description:       input.Description,
		DiscountType:      input.DiscountType,
		DiscountValue:     input.DiscountValue,
		MinOrderAmount:    input.MinOrderAmount,
		MaxDiscountAmount: input.MaxDiscountAmount,
		StartDate:         input.StartDate,
		EndDate:           input.EndDate,
		UsageLimit:        input.UsageLimit,
		IsActive:          input.IsActive,
	}
	if err := s.repo.Create(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create promotion")
	}
	return promo, nil
}

func (s *service) Update(ctx context.Context, id uuid.UUID, input UpdateInput) (*models.Promotion, error) {
	if err := validateInput(input); err != nil {
		return nil, err
	}

	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}

	promo.Code = normalizeCode(input.Code)
	promo.Description = input.Description
	promo.DiscountType = input.DiscountType
	promo.DiscountValue = input.DiscountValue
	promo.MinOrderAmount = input.MinOrderAmount
	promo.MaxDiscountAmount = input.MaxDiscountAmount
	promo.StartDate = input.StartDate
	promo.EndDate = input.EndDate
	promo.UsageLimit = input.UsageLimit
	promo.IsActive = input.IsActive

	if err := s.repo.Update(ctx, promo); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update promotion")
	}
	return promo, nil
}

func (s *service) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete promotion")
	}
	return nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Promotion, error) {
	promo, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "promotion not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load promotion")
	}
	return promo, nil
}

func (s *service) List(ctx context.Context) ([]models.Promotion, error) {
	promos, err := s.repo.List(ctx)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list promotions")
	}
	return promos, nil
}

// discountFor computes the money off for a valid promotion. Percentage
// discounts honor the optional cap; fixed discounts never exceed the
// subtotal so totals cannot go negative.
func discountFor(promo models.Promotion, subtotal decimal.Decimal) decimal.Decimal {
	var discount decimal.Decimal
	switch promo.DiscountType {
	case enums.DiscountTypePercentage:
		discount = subtotal.Mul(promo.DiscountValue).Div(decimal.NewFromInt(100))
		if promo.MaxDiscountAmount != nil && discount.GreaterThan(*promo.MaxDiscountAmount) {
			discount = *promo.MaxDiscountAmount
		}
	case enums.DiscountTypeFixedAmount:
		discount = promo.DiscountValue
	default:
		return decimal.Zero
	}
	if discount.GreaterThan(subtotal) {
		discount = subtotal
	}
	if discount.IsNegative() {
		return decimal.Zero
	}
	return discount.Round(2)
}

func notFoundErr() error {
	return pkgerrors.NewWithReason(pkgerrors.CodeNotFound, pkgerrors.ReasonPromotionNotFound, "promotion not found or inactive")
}

// normalizeCode canonicalizes a promotion code to uppercase so lookups are
// case-insensitive regardless of how the customer typed it.
func normalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func validateInput(input CreateInput) error {
	if strings.TrimSpace(input.Code) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "promotion code required")
	}
	if !input.DiscountType.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid discount type")
	}
	if !input.DiscountValue.IsPositive() {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount value must be positive")
	}
	if input.DiscountType == enums.DiscountTypePercentage && input.DiscountValue.GreaterThan(decimal.NewFromInt(100)) {
		return pkgerrors.New(pkgerrors.CodeValidation, "percentage discount cannot exceed 100")
	}
	if !input.EndDate.After(input.StartDate) {
		return pkgerrors.New(pkgerrors.CodeValidation, "end date must be after start date")
	}
	if input.UsageLimit != nil && *input.UsageLimit <= 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "usage limit must be positive")
	}
	return nil
}
