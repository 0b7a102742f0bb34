package reviews

import (
	"context"
	"testing"

	"github.com/example/storefront/internal/orders"
	"github.com/example/storefront/internal/products"
	"github.com/example/storefront/pkg/db/models"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/pagination"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := "file:reviews_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(
		&models.Category{},
		&models.Product{},
		&models.Variant{},
		&models.Inventory{},
		&models.Order{},
		&models.OrderItem{},
		&models.Review{},
	); err != nil {
		t.Fatalf("migrate schema: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn), products.NewRepository(conn), orders.NewRepository(conn))
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func seedProduct(t *testing.T, conn *gorm.DB) uuid.UUID {
	t.Helper()

	category := models.Category{ID: uuid.New(), Name: "Shoes", Slug: "shoes-" + uuid.NewString()[:8], IsActive: true}
	if err := conn.Create(&category).Error; err != nil {
		t.Fatalf("seed category: %v", err)
	}
	product := models.Product{
		ID:         uuid.New(),
		CategoryID: category.ID,
		Name:       "Runner",
		Slug:       "runner-" + uuid.NewString()[:8],
		IsActive:   true,
	}
	if err := conn.Create(&product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}
	return product.ID
}

// seedDeliveredOrder creates a delivered order for the user containing the
// product, which makes their review a verified purchase.
func seedDeliveredOrder(t *testing.T, conn *gorm.DB, userID, productID uuid.UUID) {
	t.Helper()

	variant := models.Variant{
		ID:        uuid.New(),
		ProductID: productID,
		SKU:       "SKU-" + uuid.NewString()[:8],
		Price:     decimal.RequireFromString("500000"),
		IsActive:  true,
	}
	if err := conn.Create(&variant).Error; err != nil {
		t.Fatalf("seed variant: %v", err)
	}

	order := models.Order{
		ID:              uuid.New(),
		OrderNumber:     "ORD-" + uuid.NewString()[:12],
		UserID:          userID,
		Status:          enums.OrderStatusDelivered,
		Subtotal:        decimal.RequireFromString("500000"),
		TotalAmount:     decimal.RequireFromString("530000"),
		ShippingAddress: "addr",
		RecipientName:   "name",
		RecipientPhone:  "phone",
		Items: []models.OrderItem{{
			ID:          uuid.New(),
			VariantID:   variant.ID,
			ProductName: "Runner",
			SKU:         variant.SKU,
			UnitPrice:   decimal.RequireFromString("500000"),
			Quantity:    1,
			LineTotal:   decimal.RequireFromString("500000"),
		}},
	}
	if err := conn.Create(&order).Error; err != nil {
		t.Fatalf("seed order: %v", err)
	}
}

func TestCreateVerifiedWhenDelivered(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	userID := uuid.New()
	productID := seedProduct(t, conn)
	seedDeliveredOrder(t, conn, userID, productID)

	review, err := svc.Create(context.Background(), userID, CreateInput{ProductID: productID, Rating: 5})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !review.IsVerified {
		t.Error("review should be verified after delivery")
	}
	if !review.IsApproved {
		t.Error("new reviews should default to approved")
	}
}

func TestCreateUnverifiedWithoutPurchase(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	productID := seedProduct(t, conn)

	review, err := svc.Create(context.Background(), uuid.New(), CreateInput{ProductID: productID, Rating: 4})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if review.IsVerified {
		t.Error("review should not be verified without a delivered order")
	}
}

func TestCreateRejectsDuplicate(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	userID := uuid.New()
	productID := seedProduct(t, conn)

	if _, err := svc.Create(context.Background(), userID, CreateInput{ProductID: productID, Rating: 3}); err != nil {
		t.Fatalf("first create: %v", err)
	}
	_, err := svc.Create(context.Background(), userID, CreateInput{ProductID: productID, Rating: 5})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeConflict {
		t.Fatalf("second review should conflict, got %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	productID := seedProduct(t, conn)

	cases := map[string]CreateInput{
		"zero rating":     {ProductID: productID, Rating: 0},
		"rating too high": {ProductID: productID, Rating: 6},
		"missing product": {Rating: 4},
	}
	for name, input := range cases {
		if _, err := svc.Create(context.Background(), uuid.New(), input); err == nil {
			t.Errorf("%s: expected validation error", name)
		}
	}

	_, err := svc.Create(context.Background(), uuid.New(), CreateInput{ProductID: uuid.New(), Rating: 4})
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Errorf("unknown product: want not found, got %v", err)
	}
}

func TestListForProductHidesUnapproved(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	productID := seedProduct(t, conn)
	ctx := context.Background()

	visible, err := svc.Create(ctx, uuid.New(), CreateInput{ProductID: productID, Rating: 5})
	if err != nil {
		t.Fatalf("create visible: %v", err)
	}
	hidden, err := svc.Create(ctx, uuid.New(), CreateInput{ProductID: productID, Rating: 1})
	if err != nil {
		t.Fatalf("create hidden: %v", err)
	}
	if _, err := svc.SetApproval(ctx, hidden.ID, false); err != nil {
		t.Fatalf("unapprove: %v", err)
	}

	page, err := svc.ListForProduct(ctx, productID, pagination.Params{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(page.Reviews) != 1 {
		t.Fatalf("expected 1 approved review, got %d", len(page.Reviews))
	}
	if page.Reviews[0].ID != visible.ID {
		t.Error("approved review should be the visible one")
	}

	all, err := svc.ListAll(ctx, ListFilter{ProductID: &productID}, pagination.Params{})
	if err != nil {
		t.Fatalf("list all: %v", err)
	}
	if len(all.Reviews) != 2 {
		t.Fatalf("admin listing should include both, got %d", len(all.Reviews))
	}
}

func TestSummaryCountsApprovedOnly(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	productID := seedProduct(t, conn)
	ctx := context.Background()

	if _, err := svc.Create(ctx, uuid.New(), CreateInput{ProductID: productID, Rating: 5}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Create(ctx, uuid.New(), CreateInput{ProductID: productID, Rating: 3}); err != nil {
		t.Fatalf("create: %v", err)
	}
	low, err := svc.Create(ctx, uuid.New(), CreateInput{ProductID: productID, Rating: 1})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.SetApproval(ctx, low.ID, false); err != nil {
		t.Fatalf("unapprove: %v", err)
	}

	summary, err := svc.Summary(ctx, productID)
	if err != nil {
		t.Fatalf("summary: %v", err)
	}
	if summary.Count != 2 {
		t.Errorf("count = %d, want 2", summary.Count)
	}
	if summary.Average != 4 {
		t.Errorf("average = %v, want 4", summary.Average)
	}
}

func TestDeleteReview(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	productID := seedProduct(t, conn)
	ctx := context.Background()

	review, err := svc.Create(ctx, uuid.New(), CreateInput{ProductID: productID, Rating: 2})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, review.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err = svc.Delete(ctx, review.ID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("second delete should 404, got %v", err)
	}
}
