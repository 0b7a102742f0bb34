package orders

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/inventory"
	"github.com/example/storefront/internal/products"
	"github.com/example/storefront/internal/promotions"
	"github.com/example/storefront/pkg/db/models"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Config carries checkout policy values.
type Config struct {
	ShippingFee    decimal.Decimal
	DefaultCarrier string
}

// ShippingInfo is the delivery destination captured on every order.
type ShippingInfo struct {
	Address        string
	RecipientName  string
	RecipientPhone string
	Notes          *string
}

// PlaceFromCartInput places an order from the user's saved cart.
type PlaceFromCartInput struct {
	UserID        uuid.UUID
	PaymentMethod enums.PaymentMethod
	Shipping      ShippingInfo
	PromotionCode string
}

// DirectLine is one requested variant/quantity pair on a direct order.
type DirectLine struct {
	VariantID uuid.UUID
	Quantity  int
}

// PlaceDirectInput places an order from an explicit line list, bypassing the
// cart. Prices are always re-derived from the catalog, never client-supplied.
type PlaceDirectInput struct {
	UserID        uuid.UUID
	Lines         []DirectLine
	PaymentMethod enums.PaymentMethod
	Shipping      ShippingInfo
	PromotionCode string
}

// Page is a cursor-paginated slice of orders.
type Page struct {
	Orders     []models.Order
	NextCursor string
}

// Service assembles and reads customer orders.
type Service interface {
	PlaceFromCart(ctx context.Context, input PlaceFromCartInput) (*models.Order, error)
	PlaceDirect(ctx context.Context, input PlaceDirectInput) (*models.Order, error)
	Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
	ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error)
	List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error)
	Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error)
}

type service struct {
	repo    Repository
	tx      txRunner
	stock   inventory.Service
	promos  promotions.Service
	carts   cart.Repository
	catalog *products.Repository
	cfg     Config
	nowFn   func() time.Time
}

// NewService builds the order assembly service.
func NewService(
	repo Repository,
	tx txRunner,
	stock inventory.Service,
	promos promotions.Service,
	carts cart.Repository,
	catalog *products.Repository,
	cfg Config,
) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	if promos == nil {
		return nil, fmt.Errorf("promotions service required")
	}
	if carts == nil {
		return nil, fmt.Errorf("cart repository required")
	}
	if catalog == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	return &service{
		repo:    repo,
		tx:      tx,
		stock:   stock,
		promos:  promos,
		carts:   carts,
		catalog: catalog,
		cfg:     cfg,
		nowFn:   time.Now,
	}, nil
}

// PlaceFromCart converts the user's cart into an order. Stock reservation,
// promotion consumption, order insert and cart clearing all commit or roll
// back together.
func (s *service) PlaceFromCart(ctx context.Context, input PlaceFromCartInput) (*models.Order, error) {
	if err := validateShipping(input.Shipping); err != nil {
		return nil, err
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}

	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		userCart, err := s.carts.WithTx(tx).FindByUserID(ctx, input.UserID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return emptyCartErr()
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load cart")
		}
		if len(userCart.Items) == 0 {
			return emptyCartErr()
		}

		lines := make([]DirectLine, 0, len(userCart.Items))
		for _, item := range userCart.Items {
			lines = append(lines, DirectLine{VariantID: item.VariantID, Quantity: item.Quantity})
		}

		placed, err = s.assemble(ctx, tx, input.UserID, lines, input.PaymentMethod, input.Shipping, input.PromotionCode)
		if err != nil {
			return err
		}

		if err := s.carts.WithTx(tx).Clear(ctx, userCart.ID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "clear cart")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// PlaceDirect places an order from an explicit line list.
func (s *service) PlaceDirect(ctx context.Context, input PlaceDirectInput) (*models.Order, error) {
	if err := validateShipping(input.Shipping); err != nil {
		return nil, err
	}
	if !input.PaymentMethod.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid payment method")
	}
	if len(input.Lines) == 0 {
		return nil, pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonEmptyOrder, "order has no items")
	}
	for _, line := range input.Lines {
		if line.VariantID == uuid.Nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant id required on every line")
		}
		if line.Quantity <= 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive on every line")
		}
	}

	var placed *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		placed, err = s.assemble(ctx, tx, input.UserID, input.Lines, input.PaymentMethod, input.Shipping, input.PromotionCode)
		return err
	})
	if err != nil {
		return nil, err
	}
	return placed, nil
}

// assemble runs the shared order construction inside the caller's transaction:
// reserve stock line by line, price from the catalog, apply the promotion
// strictly, then insert the order aggregate.
func (s *service) assemble(
	ctx context.Context,
	tx *gorm.DB,
	userID uuid.UUID,
	lines []DirectLine,
	method enums.PaymentMethod,
	shipping ShippingInfo,
	promotionCode string,
) (*models.Order, error) {
	now := s.nowFn().UTC()

	ids := make([]uuid.UUID, 0, len(lines))
	for _, line := range lines {
		ids = append(ids, line.VariantID)
	}
	variants, err := s.catalog.WithTx(tx).FindVariantsByIDs(ctx, ids)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load variants")
	}
	byID := make(map[uuid.UUID]models.Variant, len(variants))
	for _, variant := range variants {
		byID[variant.ID] = variant
	}

	subtotal := decimal.Zero
	items := make([]models.OrderItem, 0, len(lines))
	for _, line := range lines {
		variant, ok := byID[line.VariantID]
		if !ok {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "variant not found")
		}
		if variant.Product == nil || !variant.IsActive || !variant.Product.IsActive {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "variant is not available for sale").
				WithDetail("sku", variant.SKU)
		}

		if err := s.stock.Reserve(ctx, tx, variant.ID, variant.SKU, line.Quantity); err != nil {
			return nil, err
		}

		unitPrice := variant.EffectivePrice()
		lineTotal := unitPrice.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineTotal)

		items = append(items, models.OrderItem{
			ID:          uuid.New(),
			VariantID:   variant.ID,
			ProductName: variant.Product.Name,
			SKU:         variant.SKU,
			UnitPrice:   unitPrice,
			Quantity:    line.Quantity,
			LineTotal:   lineTotal,
		})
	}

	discount := decimal.Zero
	var promotionID *uuid.UUID
	if strings.TrimSpace(promotionCode) != "" {
		eval, err := s.promos.Evaluate(ctx, tx, promotionCode, subtotal, now)
		if err != nil {
			return nil, err
		}
		if err := s.promos.ConsumeUsage(ctx, tx, eval.Promotion.ID); err != nil {
			return nil, err
		}
		discount = eval.DiscountAmount
		id := eval.Promotion.ID
		promotionID = &id
	}

	total := subtotal.Sub(discount).Add(s.cfg.ShippingFee)

	orderID := uuid.New()
	for i := range items {
		items[i].OrderID = orderID
	}

	paymentStatus := method.InitialPaymentStatus()
	var paidAt *time.Time
	if paymentStatus == enums.PaymentStatusCompleted {
		paidAt = &now
	}

	order := &models.Order{
		ID:              orderID,
		OrderNumber:     NewOrderNumber(now),
		UserID:          userID,
		Status:          enums.OrderStatusPending,
		Subtotal:        subtotal,
		DiscountAmount:  discount,
		ShippingFee:     s.cfg.ShippingFee,
		TotalAmount:     total,
		PromotionID:     promotionID,
		ShippingAddress: shipping.Address,
		RecipientName:   shipping.RecipientName,
		RecipientPhone:  shipping.RecipientPhone,
		Notes:           shipping.Notes,
		Items:           items,
		Payment: &models.Payment{
			ID:            uuid.New(),
			OrderID:       orderID,
			Method:        method,
			Status:        paymentStatus,
			Amount:        total,
			TransactionID: NewTransactionID(now),
			PaidAt:        paidAt,
		},
		Shipment: &models.Shipment{
			ID:             uuid.New(),
			OrderID:        orderID,
			TrackingNumber: NewTrackingNumber(now),
			Carrier:        s.cfg.DefaultCarrier,
			Status:         enums.ShipmentStatusPreparing,
		},
	}

	if err := s.repo.WithTx(tx).Create(ctx, order); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create order")
	}
	return order, nil
}

func (s *service) Get(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}

// GetForUser hides other customers' orders behind a 404.
func (s *service) GetForUser(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if order.UserID != userID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
	}
	return order, nil
}

func (s *service) ListForUser(ctx context.Context, userID uuid.UUID, params pagination.Params) (*Page, error) {
	return s.List(ctx, ListFilter{UserID: &userID}, params)
}

func (s *service) List(ctx context.Context, filter ListFilter, params pagination.Params) (*Page, error) {
	cursor, err := pagination.ParseCursor(params.Cursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}

	limit := pagination.NormalizeLimit(params.Limit)
	rows, err := s.repo.List(ctx, filter, cursor, pagination.LimitWithBuffer(params.Limit))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}

	page := &Page{Orders: rows}
	if len(rows) > limit {
		page.Orders = rows[:limit]
		last := page.Orders[limit-1]
		page.NextCursor = pagination.EncodeCursor(pagination.Cursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}
	return page, nil
}

// Cancel stops a pending or confirmed order and puts the reserved stock back.
func (s *service) Cancel(ctx context.Context, userID, orderID uuid.UUID) (*models.Order, error) {
	var cancelled *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if userID != uuid.Nil && order.UserID != userID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		if !order.Status.IsCancellable() {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "order can no longer be cancelled").
				WithDetail("status", order.Status.String())
		}

		for _, item := range order.Items {
			if err := s.stock.Restore(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}

		now := s.nowFn().UTC()
		updates := map[string]any{
			"status":       enums.OrderStatusCancelled,
			"cancelled_at": now,
		}
		if err := repo.UpdateOrder(ctx, order.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel order")
		}

		order.Status = enums.OrderStatusCancelled
		order.CancelledAt = &now
		cancelled = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return cancelled, nil
}

func emptyCartErr() error {
	return pkgerrors.NewWithReason(pkgerrors.CodeValidation, pkgerrors.ReasonEmptyCart, "cart is empty")
}

func validateShipping(shipping ShippingInfo) error {
	if strings.TrimSpace(shipping.Address) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "shipping address required")
	}
	if strings.TrimSpace(shipping.RecipientName) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient name required")
	}
	if strings.TrimSpace(shipping.RecipientPhone) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient phone required")
	}
	return nil
}
