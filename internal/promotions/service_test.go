package promotions

import (
	"context"
	"testing"
	"time"

	"github.com/example/storefront/pkg/db/models"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:promotions_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Promotion{}); err != nil {
		t.Fatalf("migrate promotions: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(conn))
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func seedPromotion(t *testing.T, conn *gorm.DB, promo models.Promotion) models.Promotion {
	t.Helper()
	if promo.ID == uuid.Nil {
		promo.ID = uuid.New()
	}
	if err := conn.Create(&promo).Error; err != nil {
		t.Fatalf("seed promotion: %v", err)
	}
	return promo
}

func dec(value string) decimal.Decimal {
	return decimal.RequireFromString(value)
}

func decPtr(value string) *decimal.Decimal {
	d := dec(value)
	return &d
}

func intPtr(v int) *int {
	return &v
}

func activeWindow(now time.Time) (time.Time, time.Time) {
	return now.Add(-time.Hour), now.Add(time.Hour)
}

func TestEvaluatePercentageWithCap(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	now := time.Now().UTC()
	start, end := activeWindow(now)

	seedPromotion(t, conn, models.Promotion{
		Code:              "SAVE10",
		DiscountType:      enums.DiscountTypePercentage,
		DiscountValue:     dec("10"),
		MaxDiscountAmount: decPtr("50000"),
		StartDate:         start,
		EndDate:           end,
		IsActive:          true,
	})

	// 10% of 200000 = 20000, under the cap.
	eval, err := svc.Evaluate(context.Background(), nil, "SAVE10", dec("200000"), now)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.DiscountAmount.Equal(dec("20000")) {
		t.Errorf("discount = %s, want 20000", eval.DiscountAmount)
	}

	// 10% of 900000 = 90000, capped at 50000.
	eval, err = svc.Evaluate(context.Background(), nil, "SAVE10", dec("900000"), now)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.DiscountAmount.Equal(dec("50000")) {
		t.Errorf("capped discount = %s, want 50000", eval.DiscountAmount)
	}
}

func TestEvaluateFixedAmountClampedToSubtotal(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	now := time.Now().UTC()
	start, end := activeWindow(now)

	seedPromotion(t, conn, models.Promotion{
		Code:          "FLAT50K",
		DiscountType:  enums.DiscountTypeFixedAmount,
		DiscountValue: dec("50000"),
		StartDate:     start,
		EndDate:       end,
		IsActive:      true,
	})

	eval, err := svc.Evaluate(context.Background(), nil, "FLAT50K", dec("30000"), now)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if !eval.DiscountAmount.Equal(dec("30000")) {
		t.Errorf("discount should clamp to subtotal, got %s", eval.DiscountAmount)
	}
}

func TestEvaluateRejectionOrder(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	now := time.Now().UTC()
	ctx := context.Background()

	// Not yet started AND already over budget: window check wins.
	seedPromotion(t, conn, models.Promotion{
		Code:          "FUTURE",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("5"),
		StartDate:     now.Add(time.Hour),
		EndDate:       now.Add(2 * time.Hour),
		UsageLimit:    intPtr(1),
		UsageCount:    1,
		IsActive:      true,
	})
	_, err := svc.Evaluate(ctx, nil, "FUTURE", dec("100000"), now)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonPromotionNotYet {
		t.Errorf("reason = %q, want %q", got, pkgerrors.ReasonPromotionNotYet)
	}

	start, end := activeWindow(now)

	seedPromotion(t, conn, models.Promotion{
		Code:          "EXPIRED",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("5"),
		StartDate:     now.Add(-2 * time.Hour),
		EndDate:       now.Add(-time.Hour),
		IsActive:      true,
	})
	_, err = svc.Evaluate(ctx, nil, "EXPIRED", dec("100000"), now)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonPromotionExpired {
		t.Errorf("reason = %q, want %q", got, pkgerrors.ReasonPromotionExpired)
	}

	seedPromotion(t, conn, models.Promotion{
		Code:          "USEDUP",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("5"),
		StartDate:     start,
		EndDate:       end,
		UsageLimit:    intPtr(3),
		UsageCount:    3,
		IsActive:      true,
	})
	_, err = svc.Evaluate(ctx, nil, "USEDUP", dec("100000"), now)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonPromotionExhausted {
		t.Errorf("reason = %q, want %q", got, pkgerrors.ReasonPromotionExhausted)
	}

	seedPromotion(t, conn, models.Promotion{
		Code:           "BIGONLY",
		DiscountType:   enums.DiscountTypePercentage,
		DiscountValue:  dec("5"),
		MinOrderAmount: decPtr("500000"),
		StartDate:      start,
		EndDate:        end,
		IsActive:       true,
	})
	_, err = svc.Evaluate(ctx, nil, "BIGONLY", dec("100000"), now)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonMinimumOrderNotMet {
		t.Errorf("reason = %q, want %q", got, pkgerrors.ReasonMinimumOrderNotMet)
	}
}

func TestEvaluateMissingOrInactive(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	now := time.Now().UTC()
	start, end := activeWindow(now)
	ctx := context.Background()

	_, err := svc.Evaluate(ctx, nil, "NOPE", dec("100000"), now)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonPromotionNotFound {
		t.Errorf("missing code reason = %q, want %q", got, pkgerrors.ReasonPromotionNotFound)
	}

	seedPromotion(t, conn, models.Promotion{
		Code:          "DISABLED",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("5"),
		StartDate:     start,
		EndDate:       end,
		IsActive:      false,
	})
	_, err = svc.Evaluate(ctx, nil, "DISABLED", dec("100000"), now)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonPromotionNotFound {
		t.Errorf("inactive code reason = %q, want %q", got, pkgerrors.ReasonPromotionNotFound)
	}
}

func TestEvaluateMatchesCodeCaseInsensitively(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	now := time.Now().UTC()
	start, end := activeWindow(now)
	ctx := context.Background()

	seedPromotion(t, conn, models.Promotion{
		Code:          "WELCOME10",
		DiscountType:  enums.DiscountTypeFixedAmount,
		DiscountValue: dec("100000"),
		StartDate:     start,
		EndDate:       end,
		IsActive:      true,
	})

	for _, code := range []string{"welcome10", "Welcome10", " WELCOME10 "} {
		eval, err := svc.Evaluate(ctx, nil, code, dec("500000"), now)
		if err != nil {
			t.Fatalf("evaluate %q: %v", code, err)
		}
		if !eval.DiscountAmount.Equal(dec("100000")) {
			t.Errorf("discount for %q = %s, want 100000", code, eval.DiscountAmount)
		}
	}
}

func TestCreateStoresCodeUppercase(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	now := time.Now().UTC()
	ctx := context.Background()

	promo, err := svc.Create(ctx, CreateInput{
		Code:          "spring25",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("25"),
		StartDate:     now,
		EndDate:       now.Add(time.Hour),
		IsActive:      true,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if promo.Code != "SPRING25" {
		t.Errorf("stored code = %q, want SPRING25", promo.Code)
	}
}

func TestCreateDisabledPromotionStaysDisabled(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	now := time.Now().UTC()
	ctx := context.Background()

	promo, err := svc.Create(ctx, CreateInput{
		Code:          "DORMANT",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("5"),
		StartDate:     now.Add(-time.Hour),
		EndDate:       now.Add(time.Hour),
		IsActive:      false,
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	var reloaded models.Promotion
	if err := conn.First(&reloaded, "id = ?", promo.ID).Error; err != nil {
		t.Fatalf("reload promotion: %v", err)
	}
	if reloaded.IsActive {
		t.Fatal("promotion created disabled should persist as disabled")
	}

	_, err = svc.Evaluate(ctx, nil, "DORMANT", dec("100000"), now)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonPromotionNotFound {
		t.Errorf("reason = %q, want %q", got, pkgerrors.ReasonPromotionNotFound)
	}
}

func TestConsumeUsageEnforcesBudget(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	now := time.Now().UTC()
	start, end := activeWindow(now)
	ctx := context.Background()

	promo := seedPromotion(t, conn, models.Promotion{
		Code:          "ONESHOT",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("5"),
		StartDate:     start,
		EndDate:       end,
		UsageLimit:    intPtr(1),
		IsActive:      true,
	})

	if err := svc.ConsumeUsage(ctx, nil, promo.ID); err != nil {
		t.Fatalf("first consume: %v", err)
	}

	err := svc.ConsumeUsage(ctx, nil, promo.ID)
	if got := pkgerrors.ReasonOf(err); got != pkgerrors.ReasonPromotionExhausted {
		t.Errorf("second consume reason = %q, want %q", got, pkgerrors.ReasonPromotionExhausted)
	}

	var reloaded models.Promotion
	if err := conn.First(&reloaded, "id = ?", promo.ID).Error; err != nil {
		t.Fatalf("reload promotion: %v", err)
	}
	if reloaded.UsageCount != 1 {
		t.Errorf("usage count = %d, want 1", reloaded.UsageCount)
	}
}

func TestCreateValidation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	svc := newTestService(t, conn)
	now := time.Now().UTC()
	ctx := context.Background()

	base := CreateInput{
		Code:          "NEW",
		DiscountType:  enums.DiscountTypePercentage,
		DiscountValue: dec("15"),
		StartDate:     now,
		EndDate:       now.Add(time.Hour),
		IsActive:      true,
	}

	if _, err := svc.Create(ctx, base); err != nil {
		t.Fatalf("valid input should succeed: %v", err)
	}

	bad := base
	bad.Code = " "
	if _, err := svc.Create(ctx, bad); err == nil {
		t.Error("blank code should fail")
	}

	bad = base
	bad.DiscountValue = dec("120")
	if _, err := svc.Create(ctx, bad); err == nil {
		t.Error("percentage over 100 should fail")
	}

	bad = base
	bad.EndDate = base.StartDate
	if _, err := svc.Create(ctx, bad); err == nil {
		t.Error("end date not after start should fail")
	}

	bad = base
	bad.UsageLimit = intPtr(0)
	if _, err := svc.Create(ctx, bad); err == nil {
		t.Error("zero usage limit should fail")
	}
}
