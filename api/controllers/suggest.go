package controllers

import (
	"net/http"

	"github.com/example/storefront/api/responses"
	"github.com/example/storefront/api/validators"
	suggestsvc "github.com/example/storefront/internal/suggest"
	"github.com/example/storefront/pkg/logger"
)

type suggestRequest struct {
	Query string `json:"query" validate:"required"`
	Limit int    `json:"limit,omitempty" validate:"omitempty,min=1,max=10"`
}

// SuggestProducts asks the configured model for product recommendations.
func SuggestProducts(svc suggestsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req suggestRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		suggestions, err := svc.Suggest(r.Context(), validators.SanitizeString(req.Query, 500), req.Limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, suggestions)
	}
}
