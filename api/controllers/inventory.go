package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/storefront/api/responses"
	"github.com/example/storefront/api/validators"
	stocksvc "github.com/example/storefront/internal/inventory"
	"github.com/example/storefront/pkg/logger"
)

func AdminGetStock(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := pathUUID(chi.URLParam(r, "variantId"), "variant id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := svc.GetLevel(r.Context(), variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

type setStockRequest struct {
	Quantity     int `json:"quantity" validate:"min=0"`
	ReorderLevel int `json:"reorder_level" validate:"min=0"`
}

func AdminSetStock(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := pathUUID(chi.URLParam(r, "variantId"), "variant id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req setStockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.SetLevels(r.Context(), variantID, req.Quantity, req.ReorderLevel); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := svc.GetLevel(r.Context(), variantID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

type restockRequest struct {
	Quantity int `json:"quantity" validate:"min=0"`
}

// AdminRestock receives units into stock on top of the current level and
// stamps the last-restocked time.
func AdminRestock(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		variantID, err := pathUUID(chi.URLParam(r, "variantId"), "variant id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req restockRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		level, err := svc.Restock(r.Context(), variantID, req.Quantity)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, level)
	}
}

func AdminLowStock(svc stocksvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		levels, err := svc.LowStock(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, levels)
	}
}
