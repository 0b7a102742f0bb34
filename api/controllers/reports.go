package controllers

import (
	"net/http"
	"time"

	"github.com/example/storefront/api/responses"
	"github.com/example/storefront/api/validators"
	reportsvc "github.com/example/storefront/internal/reports"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/logger"
)

// AdminSalesReport serves the sales dashboard for a date range. Defaults to
// the last 30 days when no range is supplied.
func AdminSalesReport(svc reportsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		from, err := validators.ParseQueryDate(r, "from")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		to, err := validators.ParseQueryDate(r, "to")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		topN, err := validators.ParseQueryInt(r, "top", 0, 0, 50)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		now := time.Now().UTC()
		if to.IsZero() {
			to = now.Truncate(24 * time.Hour).Add(24 * time.Hour)
		}
		if from.IsZero() {
			from = to.AddDate(0, 0, -30)
		}
		if !to.After(from) {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "to must be after from"))
			return
		}

		report, err := svc.Sales(r.Context(), reportsvc.DateRange{From: from, To: to}, topN)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, report)
	}
}

func AdminLowStockReport(svc reportsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		levels, err := svc.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, levels)
	}
}
