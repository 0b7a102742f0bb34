package cart

import (
	"context"
	"errors"
	"fmt"

	"github.com/example/storefront/internal/products"
	"github.com/example/storefront/pkg/db/models"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

const maxLineQuantity = 99

// Summary is the cart with computed line and subtotal amounts.
type Summary struct {
	Cart     models.Cart
	Lines    []Line
	Subtotal decimal.Decimal
}

// Line pairs a cart item with its current unit price.
type Line struct {
	Item      models.CartItem
	UnitPrice decimal.Decimal
	LineTotal decimal.Decimal
}

type catalogReader interface {
	FindVariantByID(ctx context.Context, id uuid.UUID) (*models.Variant, error)
}

// Service manages a customer's cart contents.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*Summary, error)
	AddItem(ctx context.Context, userID, variantID uuid.UUID, qty int) (*Summary, error)
	UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*Summary, error)
	RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*Summary, error)
	Clear(ctx context.Context, userID uuid.UUID) error
}

type service struct {
	repo    Repository
	catalog catalogReader
}

// NewService builds a cart service backed by the catalog for pricing.
func NewService(repo Repository, catalog *products.Repository) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{repo: repo, catalog: catalog}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	cart, err := s.repo.FindOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	return s.summarize(cart), nil
}

// AddItem merges quantity into an existing line for the same variant rather
// than creating duplicates.
func (s *service) AddItem(ctx context.Context, userID, variantID uuid.UUID, qty int) (*Summary, error) {
	if variantID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required")
	}
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	variant, err := s.catalog.FindVariantByID(ctx, variantID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if !variant.IsActive || variant.Product == nil || !variant.Product.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant is not available for sale")
	}

	cart, err := s.repo.FindOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	existing, err := s.repo.FindItem(ctx, cart.ID, variantID)
	switch {
	case err == nil:
		merged := existing.Quantity + qty
		if merged > maxLineQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds per-line maximum")
		}
		if err := checkStock(variant, merged); err != nil {
			return nil, err
		}
		if err := s.repo.UpdateItemQuantity(ctx, existing.ID, merged); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "merge cart item")
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		if qty > maxLineQuantity {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds per-line maximum")
		}
		if err := checkStock(variant, qty); err != nil {
			return nil, err
		}
		item := &models.CartItem{
			ID:        uuid.New(),
			CartID:    cart.ID,
			VariantID: variantID,
			Quantity:  qty,
		}
		if err := s.repo.CreateItem(ctx, item); err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "add cart item")
		}
	default:
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart item")
	}

	return s.reload(ctx, userID)
}

func (s *service) UpdateItem(ctx context.Context, userID, itemID uuid.UUID, qty int) (*Summary, error) {
	if qty <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}
	if qty > maxLineQuantity {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity exceeds per-line maximum")
	}

	cart, err := s.repo.FindOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	item := findItem(cart, itemID)
	if item == nil {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
	}

	variant, err := s.catalog.FindVariantByID(ctx, item.VariantID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variant")
	}
	if err := checkStock(variant, qty); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateItemQuantity(ctx, itemID, qty); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update cart item")
	}

	return s.reload(ctx, userID)
}

func (s *service) RemoveItem(ctx context.Context, userID, itemID uuid.UUID) (*Summary, error) {
	cart, err := s.repo.FindOrCreateByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}

	if err := s.repo.DeleteItem(ctx, cart.ID, itemID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "cart item not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "remove cart item")
	}

	return s.reload(ctx, userID)
}

func (s *service) Clear(ctx context.Context, userID uuid.UUID) error {
	cart, err := s.repo.FindOrCreateByUserID(ctx, userID)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
	}
	if err := s.repo.Clear(ctx, cart.ID); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
	}
	return nil
}

func (s *service) reload(ctx context.Context, userID uuid.UUID) (*Summary, error) {
	cart, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload cart")
	}
	return s.summarize(cart), nil
}

func (s *service) summarize(cart *models.Cart) *Summary {
	summary := &Summary{Cart: *cart, Subtotal: decimal.Zero}
	for _, item := range cart.Items {
		line := Line{Item: item}
		if item.Variant != nil {
			line.UnitPrice = item.Variant.EffectivePrice()
			line.LineTotal = line.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity)))
		}
		summary.Subtotal = summary.Subtotal.Add(line.LineTotal)
		summary.Lines = append(summary.Lines, line)
	}
	return summary
}

// checkStock rejects a requested line quantity that exceeds what is on hand.
// Placement re-checks under a transaction; this keeps carts honest up front.
func checkStock(variant *models.Variant, qty int) error {
	onHand := 0
	if variant.Inventory != nil {
		onHand = variant.Inventory.Quantity
	}
	if qty > onHand {
		return pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonInsufficientStock, "quantity exceeds available stock").
			WithDetail("available", onHand)
	}
	return nil
}

func findItem(cart *models.Cart, itemID uuid.UUID) *models.CartItem {
	for i := range cart.Items {
		if cart.Items[i].ID == itemID {
			return &cart.Items[i]
		}
	}
	return nil
}
