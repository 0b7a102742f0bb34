package orders

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/example/storefront/internal/cart"
	"github.com/example/storefront/internal/inventory"
	"github.com/example/storefront/internal/products"
	"github.com/example/storefront/internal/promotions"
	"github.com/example/storefront/pkg/db"
	"github.com/example/storefront/pkg/db/models"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type fixture struct {
	conn      *gorm.DB
	svc       Service
	lifecycle LifecycleService
	stock     inventory.Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dsn := "file:orders_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.Variant{},
		&models.Inventory{},
		&models.Cart{},
		&models.CartItem{},
		&models.Promotion{},
		&models.Order{},
		&models.OrderItem{},
		&models.Payment{},
		&models.Shipment{},
	); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}

	runner := db.NewWithConn(conn)
	stockSvc, err := inventory.NewService(inventory.NewRepository(conn), runner)
	if err != nil {
		t.Fatalf("build inventory service: %v", err)
	}
	promoSvc, err := promotions.NewService(promotions.NewRepository(conn))
	if err != nil {
		t.Fatalf("build promotions service: %v", err)
	}

	svc, err := NewService(
		NewRepository(conn),
		runner,
		stockSvc,
		promoSvc,
		cart.NewRepository(conn),
		products.NewRepository(conn),
		Config{ShippingFee: dec("30000"), DefaultCarrier: "GHN"},
	)
	if err != nil {
		t.Fatalf("build orders service: %v", err)
	}

	lifecycle, err := NewLifecycleService(NewRepository(conn), runner, stockSvc)
	if err != nil {
		t.Fatalf("build lifecycle service: %v", err)
	}

	return &fixture{conn: conn, svc: svc, lifecycle: lifecycle, stock: stockSvc}
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

func shippingInfo() ShippingInfo {
	return ShippingInfo{
		Address:        "12 Nguyen Hue, District 1",
		RecipientName:  "Tran Minh",
		RecipientPhone: "0901234567",
	}
}

// seedVariant creates the full catalog chain and returns the variant id.
func (f *fixture) seedVariant(t *testing.T, price string, discountPrice *string, qty int) uuid.UUID {
	t.Helper()

	category := models.Category{ID: uuid.New(), Name: "Shirts", Slug: "shirts-" + uuid.NewString()[:8], IsActive: true}
	if err := f.conn.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}

	product := models.Product{
		ID:         uuid.New(),
		CategoryID: category.ID,
		Name:       "Basic Tee",
		Slug:       "tee-" + uuid.NewString()[:8],
		IsActive:   true,
	}
	if err := f.conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	variant := models.Variant{
		ID:        uuid.New(),
		ProductID: product.ID,
		SKU:       "SKU-" + uuid.NewString()[:8],
		Price:     dec(price),
		IsActive:  true,
	}
	if discountPrice != nil {
		d := dec(*discountPrice)
		variant.DiscountPrice = &d
	}
	if err := f.conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}

	stock := models.Inventory{ID: uuid.New(), VariantID: variant.ID, Quantity: qty}
	if err := f.conn.Create(&stock).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return variant.ID
}

func (f *fixture) seedCart(t *testing.T, userID uuid.UUID, lines map[uuid.UUID]int) {
	t.Helper()

	userCart := models.Cart{ID: uuid.New(), UserID: userID}
	if err := f.conn.Create(&userCart).Error; err != nil {
		t.Fatalf("seed cart: %v", err)
	}
	for variantID, qty := range lines {
		item := models.CartItem{ID: uuid.New(), CartID: userCart.ID, VariantID: variantID, Quantity: qty}
		if err := f.conn.Create(&item).Error; err != nil {
			t.Fatalf("seed cart item: %v", err)
		}
	}
}

func (f *fixture) stockQty(t *testing.T, variantID uuid.UUID) int {
	t.Helper()
	var record models.Inventory
	if err := f.conn.First(&record, "variant_id = ?", variantID).Error; err != nil {
		t.Fatalf("load inventory: %v", err)
	}
	return record.Quantity
}

func TestPlaceFromCartHappyPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := f.seedVariant(t, "150000", nil, 10)
	f.seedCart(t, userID, map[uuid.UUID]int{variantID: 2})

	order, err := f.svc.PlaceFromCart(ctx, PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
	})
	if err != nil {
		t.Fatalf("place from cart: %v", err)
	}

	if !strings.HasPrefix(order.OrderNumber, "ORD") {
		t.Errorf("order number %q missing ORD prefix", order.OrderNumber)
	}
	if order.Status != enums.OrderStatusPending {
		t.Errorf("status = %s, want pending", order.Status)
	}
	if !order.Subtotal.Equal(dec("300000")) {
		t.Errorf("subtotal = %s, want 300000", order.Subtotal)
	}
	if !order.ShippingFee.Equal(dec("30000")) {
		t.Errorf("shipping fee = %s, want 30000", order.ShippingFee)
	}
	if !order.TotalAmount.Equal(dec("330000")) {
		t.Errorf("total = %s, want 330000", order.TotalAmount)
	}
	if len(order.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(order.Items))
	}
	if order.Items[0].ProductName != "Basic Tee" {
		t.Errorf("item should snapshot product name, got %q", order.Items[0].ProductName)
	}

	if order.Payment == nil || order.Payment.Status != enums.PaymentStatusPending {
		t.Error("cod payment should start pending")
	}
	if order.Payment != nil && !strings.HasPrefix(order.Payment.TransactionID, "TXN") {
		t.Errorf("transaction id %q missing TXN prefix", order.Payment.TransactionID)
	}
	if order.Shipment == nil || order.Shipment.Status != enums.ShipmentStatusPreparing {
		t.Error("shipment should start preparing")
	}
	if order.Shipment != nil && order.Shipment.Carrier != "GHN" {
		t.Errorf("carrier = %q, want GHN", order.Shipment.Carrier)
	}

	if got := f.stockQty(t, variantID); got != 8 {
		t.Errorf("stock after order = %d, want 8", got)
	}

	var remaining int64
	if err := f.conn.Model(&models.CartItem{}).Count(&remaining).Error; err != nil {
		t.Fatalf("count cart items: %v", err)
	}
	if remaining != 0 {
		t.Errorf("cart should be cleared, %d items remain", remaining)
	}
}

func TestPlaceFromCartElectronicPaymentCompletes(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	variantID := f.seedVariant(t, "100000", nil, 5)
	f.seedCart(t, userID, map[uuid.UUID]int{variantID: 1})

	order, err := f.svc.PlaceFromCart(context.Background(), PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCreditCard,
		Shipping:      shippingInfo(),
	})
	if err != nil {
		t.Fatalf("place from cart: %v", err)
	}
	if order.Payment.Status != enums.PaymentStatusCompleted {
		t.Errorf("card payment status = %s, want completed", order.Payment.Status)
	}
	if order.Payment.PaidAt == nil {
		t.Error("completed payment should have paid_at")
	}
}

func TestPlaceFromCartEmptyCart(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	f.seedCart(t, userID, nil)

	_, err := f.svc.PlaceFromCart(context.Background(), PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
	})
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonEmptyCart {
		t.Fatalf("reason = %q, want %q", got, pkgerrors.ReasonEmptyCart)
	}
}

func TestPlaceFromCartInsufficientStockRollsBack(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	plenty := f.seedVariant(t, "100000", nil, 10)
	scarce := f.seedVariant(t, "100000", nil, 1)
	f.seedCart(t, userID, map[uuid.UUID]int{plenty: 2, scarce: 5})

	_, err := f.svc.PlaceFromCart(context.Background(), PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
	})
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonInsufficientStock {
		t.Fatalf("reason = %q, want %q", got, pkgerrors.ReasonInsufficientStock)
	}

	// Nothing committed: both stock records untouched, no order rows.
	if got := f.stockQty(t, plenty); got != 10 {
		t.Errorf("plenty stock = %d, want 10 after rollback", got)
	}
	if got := f.stockQty(t, scarce); got != 1 {
		t.Errorf("scarce stock = %d, want 1 after rollback", got)
	}
	var orderCount int64
	if err := f.conn.Model(&models.Order{}).Count(&orderCount).Error; err != nil {
		t.Fatalf("count orders: %v", err)
	}
	if orderCount != 0 {
		t.Errorf("no order should exist after rollback, found %d", orderCount)
	}
}

func TestPlaceFromCartWithPromotion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	variantID := f.seedVariant(t, "200000", nil, 10)
	f.seedCart(t, userID, map[uuid.UUID]int{variantID: 2})

	now := time.Now().UTC()
	limit := 5
	promo := models.Promotion{
		ID:            uuid.New(),
		Code:          "SAVE10",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("10"),
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		UsageLimit:    &limit,
		IsActive:      true,
	}
	if err := f.conn.Create(&promo).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}

	order, err := f.svc.PlaceFromCart(context.Background(), PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
		PromotionCode: "SAVE10",
	})
	if err != nil {
		t.Fatalf("place from cart: %v", err)
	}

	// 10% of 400000 = 40000 off; total 400000 - 40000 + 30000 shipping.
	if !order.DiscountAmount.Equal(dec("40000")) {
		t.Errorf("discount = %s, want 40000", order.DiscountAmount)
	}
	if !order.TotalAmount.Equal(dec("390000")) {
		t.Errorf("total = %s, want 390000", order.TotalAmount)
	}
	if order.PromotionID == nil || *order.PromotionID != promo.ID {
		t.Error("order should reference the promotion")
	}

	var reloaded models.Promotion
	if err := f.conn.First(&reloaded, "id = ?", promo.ID).Error; err != nil {
		t.Fatalf("reload promotion: %v", err)
	}
	if reloaded.UsageCount != 1 {
		t.Errorf("usage count = %d, want 1", reloaded.UsageCount)
	}
}

func TestPlaceFromCartRejectsInvalidPromotion(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	variantID := f.seedVariant(t, "200000", nil, 10)
	f.seedCart(t, userID, map[uuid.UUID]int{variantID: 1})

	_, err := f.svc.PlaceFromCart(context.Background(), PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
		PromotionCode: "GHOST",
	})
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonPromotionNotFound {
		t.Fatalf("reason = %q, want %q", got, pkgerrors.ReasonPromotionNotFound)
	}

	// Strict rejection also rolls back the reservation.
	if got := f.stockQty(t, variantID); got != 10 {
		t.Errorf("stock = %d, want 10 after rollback", got)
	}
}

func TestPlaceDirectDerivesPriceFromCatalog(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	userID := uuid.New()
	variantID := f.seedVariant(t, "150000", strPtr("120000"), 10)

	order, err := f.svc.PlaceDirect(context.Background(), PlaceDirectInput{
		UserID:        userID,
		Lines:         []DirectLine{{VariantID: variantID, Quantity: 3}},
		PaymentMethod: enums.PaymentMethodEWallet,
		Shipping:      shippingInfo(),
	})
	if err != nil {
		t.Fatalf("place direct: %v", err)
	}

	// Discount price 120000 wins over list price 150000.
	if !order.Items[0].UnitPrice.Equal(dec("120000")) {
		t.Errorf("unit price = %s, want 120000", order.Items[0].UnitPrice)
	}
	if !order.Subtotal.Equal(dec("360000")) {
		t.Errorf("subtotal = %s, want 360000", order.Subtotal)
	}
}

func TestPlaceDirectEmptyLines(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.svc.PlaceDirect(context.Background(), PlaceDirectInput{
		UserID:        uuid.New(),
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
	})
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonEmptyOrder {
		t.Fatalf("reason = %q, want %q", got, pkgerrors.ReasonEmptyOrder)
	}
}

func TestCancelRestoresStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := f.seedVariant(t, "100000", nil, 10)
	f.seedCart(t, userID, map[uuid.UUID]int{variantID: 4})

	order, err := f.svc.PlaceFromCart(ctx, PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if got := f.stockQty(t, variantID); got != 6 {
		t.Fatalf("stock after order = %d, want 6", got)
	}

	cancelled, err := f.svc.Cancel(ctx, userID, order.ID)
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if cancelled.Status != enums.OrderStatusCancelled {
		t.Errorf("status = %s, want cancelled", cancelled.Status)
	}
	if cancelled.CancelledAt == nil {
		t.Error("cancelled_at should be set")
	}
	if got := f.stockQty(t, variantID); got != 10 {
		t.Errorf("stock after cancel = %d, want 10", got)
	}
}

func TestOrderItemPriceSurvivesCatalogEdit(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := f.seedVariant(t, "150000", nil, 10)
	f.seedCart(t, userID, map[uuid.UUID]int{variantID: 1})

	order, err := f.svc.PlaceFromCart(ctx, PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if err := f.conn.Model(&models.Variant{}).
		Where("id = ?", variantID).
		Update("price", dec("999000")).Error; err != nil {
		t.Fatalf("reprice variant: %v", err)
	}

	reloaded, err := f.svc.Get(ctx, order.ID)
	if err != nil {
		t.Fatalf("reload order: %v", err)
	}
	if !reloaded.Items[0].UnitPrice.Equal(dec("150000")) {
		t.Errorf("unit price = %s, want the 150000 captured at placement", reloaded.Items[0].UnitPrice)
	}
	if !reloaded.Subtotal.Equal(dec("150000")) {
		t.Errorf("subtotal = %s, want 150000", reloaded.Subtotal)
	}
}

func TestCancelTwiceRejected(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := f.seedVariant(t, "100000", nil, 10)
	f.seedCart(t, userID, map[uuid.UUID]int{variantID: 2})

	order, err := f.svc.PlaceFromCart(ctx, PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}
	if _, err := f.svc.Cancel(ctx, userID, order.ID); err != nil {
		t.Fatalf("first cancel: %v", err)
	}

	_, err = f.svc.Cancel(ctx, userID, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("second cancel should conflict, got %v", err)
	}
	// Stock must not be restored twice.
	if got := f.stockQty(t, variantID); got != 10 {
		t.Errorf("stock = %d, want 10", got)
	}
}

func TestCancelDisallowedAfterShipping(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	userID := uuid.New()
	variantID := f.seedVariant(t, "100000", nil, 10)
	f.seedCart(t, userID, map[uuid.UUID]int{variantID: 1})

	order, err := f.svc.PlaceFromCart(ctx, PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	if _, err := f.lifecycle.Confirm(ctx, order.ID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.lifecycle.Ship(ctx, order.ID); err != nil {
		t.Fatalf("ship: %v", err)
	}

	_, err = f.svc.Cancel(ctx, userID, order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestCancelOtherUsersOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	owner := uuid.New()
	variantID := f.seedVariant(t, "100000", nil, 10)
	f.seedCart(t, owner, map[uuid.UUID]int{variantID: 1})

	order, err := f.svc.PlaceFromCart(ctx, PlaceFromCartInput{
		UserID:        owner,
		PaymentMethod: enums.PaymentMethodCOD,
		Shipping:      shippingInfo(),
	})
	if err != nil {
		t.Fatalf("place: %v", err)
	}

	_, err = f.svc.Cancel(ctx, uuid.New(), order.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("cross-user cancel should 404, got %v", err)
	}
}

func TestListForUserScopesResults(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	alice := uuid.New()
	bob := uuid.New()
	variantID := f.seedVariant(t, "100000", nil, 20)
	f.seedCart(t, alice, map[uuid.UUID]int{variantID: 1})
	f.seedCart(t, bob, map[uuid.UUID]int{variantID: 1})

	for _, userID := range []uuid.UUID{alice, bob} {
		if _, err := f.svc.PlaceFromCart(ctx, PlaceFromCartInput{
			UserID:        userID,
			PaymentMethod: enums.PaymentMethodCOD,
			Shipping:      shippingInfo(),
		}); err != nil {
			t.Fatalf("place for %s: %v", userID, err)
		}
	}

	page, err := f.svc.ListForUser(ctx, alice, pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Orders) != 1 {
		t.Fatalf("expected 1 order for alice, got %d", len(page.Orders))
	}
	if page.Orders[0].UserID != alice {
		t.Error("listed order belongs to another user")
	}
}

func strPtr(s string) *string { return &s }
