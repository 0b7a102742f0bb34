package reports

import (
	"context"
	"time"

	"github.com/example/storefront/pkg/db/models"
	"github.com/example/storefront/pkg/enums"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SalesTotals aggregates revenue over a date range. Cancelled orders are
// excluded so refused deliveries never inflate revenue.
type SalesTotals struct {
	Revenue    decimal.Decimal `gorm:"column:revenue"`
	Discounts  decimal.Decimal `gorm:"column:discounts"`
	OrderCount int64           `gorm:"column:order_count"`
	ItemCount  int64           `gorm:"column:item_count"`
}

// StatusCount is the number of orders in one status.
type StatusCount struct {
	Status enums.OrderStatus `gorm:"column:status"`
	Count  int64             `gorm:"column:count"`
}

// ProductSales ranks a product's sold quantity and revenue.
type ProductSales struct {
	ProductID   uuid.UUID       `gorm:"column:product_id"`
	ProductName string          `gorm:"column:product_name"`
	Quantity    int64           `gorm:"column:quantity"`
	Revenue     decimal.Decimal `gorm:"column:revenue"`
}

// DailyRevenue is one day's revenue bucket.
type DailyRevenue struct {
	Day        string          `gorm:"column:day"`
	Revenue    decimal.Decimal `gorm:"column:revenue"`
	OrderCount int64           `gorm:"column:order_count"`
}

// Repository runs reporting aggregates against the orders tables.
type Repository interface {
	SalesTotals(ctx context.Context, from, to time.Time) (*SalesTotals, error)
	CountByStatus(ctx context.Context, from, to time.Time) ([]StatusCount, error)
	TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error)
	RevenueByDay(ctx context.Context, from, to time.Time) ([]DailyRevenue, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a reporting repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) SalesTotals(ctx context.Context, from, to time.Time) (*SalesTotals, error) {
	var totals SalesTotals
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select(
			"COALESCE(SUM(total_amount), 0) AS revenue, " +
				"COALESCE(SUM(discount_amount), 0) AS discounts, " +
				"COUNT(*) AS order_count",
		).
		Where("created_at >= ? AND created_at < ?", from, to).
		Where("status <> ?", enums.OrderStatusCancelled).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select("COALESCE(SUM(order_items.quantity), 0)").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.created_at >= ? AND orders.created_at < ?", from, to).
		Where("orders.status <> ?", enums.OrderStatusCancelled).
		Scan(&totals.ItemCount).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *repository) CountByStatus(ctx context.Context, from, to time.Time) ([]StatusCount, error) {
	var rows []StatusCount
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("status, COUNT(*) AS count").
		Where("created_at >= ? AND created_at < ?", from, to).
		Group("status").
		Order("status").
		Scan(&rows).Error
	return rows, err
}

func (r *repository) TopProducts(ctx context.Context, from, to time.Time, limit int) ([]ProductSales, error) {
	var rows []ProductSales
	err := r.db.WithContext(ctx).
		Model(&models.OrderItem{}).
		Select(
			"variants.product_id AS product_id, " +
				"MAX(order_items.product_name) AS product_name, " +
				"SUM(order_items.quantity) AS quantity, " +
				"SUM(order_items.line_total) AS revenue",
		).
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Joins("JOIN variants ON variants.id = order_items.variant_id").
		Where("orders.created_at >= ? AND orders.created_at < ?", from, to).
		Where("orders.status <> ?", enums.OrderStatusCancelled).
		Group("variants.product_id").
		Order("quantity DESC").
		Limit(limit).
		Scan(&rows).Error
	return rows, err
}

// RevenueByDay buckets on the DATE() of created_at, which both postgres and
// sqlite evaluate the same way.
func (r *repository) RevenueByDay(ctx context.Context, from, to time.Time) ([]DailyRevenue, error) {
	var rows []DailyRevenue
	err := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Select("DATE(created_at) AS day, COALESCE(SUM(total_amount), 0) AS revenue, COUNT(*) AS order_count").
		Where("created_at >= ? AND created_at < ?", from, to).
		Where("status <> ?", enums.OrderStatusCancelled).
		Group("DATE(created_at)").
		Order("day").
		Scan(&rows).Error
	return rows, err
}
