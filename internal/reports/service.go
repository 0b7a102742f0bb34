package reports

import (
	"context"
	"fmt"
	"time"

	"github.com/example/storefront/internal/inventory"
	pkgerrors "github.com/example/storefront/pkg/errors"
)

const (
	defaultTopProducts = 10
	maxTopProducts     = 50
	maxRangeDays       = 366
)

// DateRange is a half-open [From, To) reporting window.
type DateRange struct {
	From time.Time
	To   time.Time
}

// SalesReport is the admin sales dashboard payload.
type SalesReport struct {
	Range       DateRange
	Totals      SalesTotals
	ByStatus    []StatusCount
	TopProducts []ProductSales
	ByDay       []DailyRevenue
}

// Service produces admin reports.
type Service interface {
	Sales(ctx context.Context, r DateRange, topN int) (*SalesReport, error)
	LowStock(ctx context.Context) ([]inventory.StockLevel, error)
}

type service struct {
	repo  Repository
	stock inventory.Service
}

// NewService builds the reporting service.
func NewService(repo Repository, stock inventory.Service) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("reports repository required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &service{repo: repo, stock: stock}, nil
}

func (s *service) Sales(ctx context.Context, r DateRange, topN int) (*SalesReport, error) {
	if err := validateRange(r); err != nil {
		return nil, err
	}
	if topN <= 0 {
		topN = defaultTopProducts
	}
	if topN > maxTopProducts {
		topN = maxTopProducts
	}

	totals, err := s.repo.SalesTotals(ctx, r.From, r.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "sales totals")
	}
	byStatus, err := s.repo.CountByStatus(ctx, r.From, r.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "status counts")
	}
	top, err := s.repo.TopProducts(ctx, r.From, r.To, topN)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "top products")
	}
	byDay, err := s.repo.RevenueByDay(ctx, r.From, r.To)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "daily revenue")
	}

	return &SalesReport{
		Range:       r,
		Totals:      *totals,
		ByStatus:    byStatus,
		TopProducts: top,
		ByDay:       byDay,
	}, nil
}

func (s *service) LowStock(ctx context.Context) ([]inventory.StockLevel, error) {
	return s.stock.LowStock(ctx)
}

func validateRange(r DateRange) error {
	if r.From.IsZero() || r.To.IsZero() {
		return pkgerrors.New(pkgerrors.CodeValidation, "report range required")
	}
	if !r.To.After(r.From) {
		return pkgerrors.New(pkgerrors.CodeValidation, "report range end must be after start")
	}
	if r.To.Sub(r.From) > maxRangeDays*24*time.Hour {
		return pkgerrors.New(pkgerrors.CodeValidation, "report range too wide").
			WithDetail("max_days", maxRangeDays)
	}
	return nil
}
