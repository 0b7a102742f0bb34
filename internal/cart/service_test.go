package cart

import (
	"context"
	"testing"

	"github.com/example/storefront/internal/products"
	"github.com/example/storefront/pkg/db/models"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:cart_" + uuid.NewString() + "?mode=memory&cache=shared"
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
	); err != nil {
		t.Fatalf("migrate cart schema: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), products.NewRepository(conn))
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

// seedVariant creates a category, product, variant and stock record; returns
// the variant id.
func seedVariant(t *testing.T, conn *gorm.DB, price string, discount *string, onHand int) uuid.UUID {
	t.Helper()

	category := models.Category{ID: uuid.New(), Name: "Shirts", Slug: "shirts-" + uuid.NewString()[:8], IsActive: true}
	if err := conn.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}

	product := models.Product{
		ID:         uuid.New(),
		CategoryID: category.ID,
		Name:       "Basic Tee",
		Slug:       "tee-" + uuid.NewString()[:8],
		IsActive:   true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	variant := models.Variant{
		ID:        uuid.New(),
		ProductID: product.ID,
		SKU:       "SKU-" + uuid.NewString()[:8],
		Price:     dec(price),
		IsActive:  true,
	}
	if discount != nil {
		d := dec(*discount)
		variant.DiscountPrice = &d
	}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}

	stock := models.Inventory{ID: uuid.New(), VariantID: variant.ID, Quantity: onHand}
	if err := conn.Create(&stock).Error; err != nil {
		t.Fatalf("seed inventory: %v", err)
	}
	return variant.ID
}

func strPtr(s string) *string { return &s }

func TestAddItemMergesQuantity(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	userID := uuid.New()
	variantID := seedVariant(t, conn, "100000", nil, 50)

	if _, err := svc.AddItem(ctx, userID, variantID, 2); err != nil {
		t.Fatalf("first add: %v", err)
	}
	summary, err := svc.AddItem(ctx, userID, variantID, 3)
	if err != nil {
		t.Fatalf("second add: %v", err)
	}

	if len(summary.Lines) != 1 {
		t.Fatalf("expected 1 merged line, got %d", len(summary.Lines))
	}
	if summary.Lines[0].Item.Quantity != 5 {
		t.Errorf("merged quantity = %d, want 5", summary.Lines[0].Item.Quantity)
	}
	if !summary.Subtotal.Equal(dec("500000")) {
		t.Errorf("subtotal = %s, want 500000", summary.Subtotal)
	}
}

func TestAddItemUsesVariantDiscountPrice(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	userID := uuid.New()
	variantID := seedVariant(t, conn, "150000", strPtr("120000"), 50)

	summary, err := svc.AddItem(ctx, userID, variantID, 2)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	if !summary.Subtotal.Equal(dec("240000")) {
		t.Errorf("subtotal = %s, want 240000", summary.Subtotal)
	}
}

func TestAddItemRejectsMoreThanOnHand(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	userID := uuid.New()
	variantID := seedVariant(t, conn, "100000", nil, 2)

	_, err := svc.AddItem(ctx, userID, variantID, 10)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonInsufficientStock {
		t.Fatalf("reason = %q, want %q", got, pkgerrors.ReasonInsufficientStock)
	}

	// Merging on top of an existing line is capped the same way.
	if _, err := svc.AddItem(ctx, userID, variantID, 2); err != nil {
		t.Fatalf("add within stock: %v", err)
	}
	_, err = svc.AddItem(ctx, userID, variantID, 1)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonInsufficientStock {
		t.Fatalf("merge reason = %q, want %q", got, pkgerrors.ReasonInsufficientStock)
	}
}

func TestUpdateItemRejectsMoreThanOnHand(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	userID := uuid.New()
	variantID := seedVariant(t, conn, "100000", nil, 3)

	summary, err := svc.AddItem(ctx, userID, variantID, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err = svc.UpdateItem(ctx, userID, summary.Lines[0].Item.ID, 4)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonInsufficientStock {
		t.Fatalf("reason = %q, want %q", got, pkgerrors.ReasonInsufficientStock)
	}
}

func TestAddItemUnknownVariant(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)

	_, err := svc.AddItem(context.Background(), uuid.New(), uuid.New(), 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAddItemInactiveProduct(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	variantID := seedVariant(t, conn, "100000", nil, 50)

	if err := conn.Model(&models.Product{}).
		Where("1 = 1").
		Update("is_active", false).Error; err != nil {
		t.Fatalf("deactivate product: %v", err)
	}

	_, err := svc.AddItem(ctx, uuid.New(), variantID, 1)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateAndRemoveItem(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	userID := uuid.New()
	variantID := seedVariant(t, conn, "100000", nil, 50)

	summary, err := svc.AddItem(ctx, userID, variantID, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}
	itemID := summary.Lines[0].Item.ID

	summary, err = svc.UpdateItem(ctx, userID, itemID, 4)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if summary.Lines[0].Item.Quantity != 4 {
		t.Errorf("quantity = %d, want 4", summary.Lines[0].Item.Quantity)
	}

	summary, err = svc.RemoveItem(ctx, userID, itemID)
	if err != nil {
		t.Fatalf("remove: %v", err)
	}
	if len(summary.Lines) != 0 {
		t.Errorf("expected empty cart, got %d lines", len(summary.Lines))
	}

	if _, err := svc.RemoveItem(ctx, userID, itemID); err == nil {
		t.Error("removing twice should fail")
	}
}

func TestUpdateItemOtherUsersCart(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	owner := uuid.New()
	intruder := uuid.New()
	variantID := seedVariant(t, conn, "100000", nil, 50)

	summary, err := svc.AddItem(ctx, owner, variantID, 1)
	if err != nil {
		t.Fatalf("add: %v", err)
	}

	_, err = svc.UpdateItem(ctx, intruder, summary.Lines[0].Item.ID, 9)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("cross-cart update should 404, got %v", err)
	}
}

func TestClear(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	ctx := context.Background()
	userID := uuid.New()
	variantID := seedVariant(t, conn, "100000", nil, 50)

	if _, err := svc.AddItem(ctx, userID, variantID, 2); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := svc.Clear(ctx, userID); err != nil {
		t.Fatalf("clear: %v", err)
	}

	summary, err := svc.Get(ctx, userID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(summary.Lines) != 0 {
		t.Errorf("cart should be empty after clear")
	}
	if !summary.Subtotal.IsZero() {
		t.Errorf("subtotal = %s, want 0", summary.Subtotal)
	}
}
