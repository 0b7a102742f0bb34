package controllers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/storefront/api/responses"
	"github.com/example/storefront/api/validators"
	promosvc "github.com/example/storefront/internal/promotions"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/logger"
)

type validatePromotionRequest struct {
	Code     string `json:"code" validate:"required"`
	Subtotal string `json:"subtotal" validate:"required"`
}

// ValidatePromotion previews the discount a code would give on a subtotal.
func ValidatePromotion(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req validatePromotionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subtotal, err := parseAmount(req.Subtotal, "subtotal")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		eval, err := svc.Evaluate(r.Context(), nil, validators.SanitizeString(req.Code, 50), subtotal, time.Now().UTC())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"code":            eval.Promotion.Code,
			"discount_type":   eval.Promotion.DiscountType,
			"discount_amount": eval.DiscountAmount,
		})
	}
}

type promotionRequest struct {
	Code              string  `json:"code" validate:"required"`
	Description       *string `json:"description,omitempty"`
	DiscountType      string  `json:"discount_type" validate:"required"`
	DiscountValue     string  `json:"discount_value" validate:"required"`
	MinOrderAmount    *string `json:"min_order_amount,omitempty"`
	MaxDiscountAmount *string `json:"max_discount_amount,omitempty"`
	StartDate         string  `json:"start_date" validate:"required"`
	EndDate           string  `json:"end_date" validate:"required"`
	UsageLimit        *int    `json:"usage_limit,omitempty" validate:"omitempty,min=1"`
	IsActive          bool    `json:"is_active"`
}

func (req promotionRequest) toInput() (promosvc.CreateInput, error) {
	discountType, err := enums.ParseDiscountType(req.DiscountType)
	if err != nil {
		return promosvc.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid discount type")
	}
	value, err := parseAmount(req.DiscountValue, "discount_value")
	if err != nil {
		return promosvc.CreateInput{}, err
	}
	minOrder, err := parseOptionalAmount(req.MinOrderAmount, "min_order_amount")
	if err != nil {
		return promosvc.CreateInput{}, err
	}
	maxDiscount, err := parseOptionalAmount(req.MaxDiscountAmount, "max_discount_amount")
	if err != nil {
		return promosvc.CreateInput{}, err
	}
	startDate, err := time.Parse(time.RFC3339, req.StartDate)
	if err != nil {
		return promosvc.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid start date")
	}
	endDate, err := time.Parse(time.RFC3339, req.EndDate)
	if err != nil {
		return promosvc.CreateInput{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid end date")
	}

	return promosvc.CreateInput{
		Code:              validators.SanitizeString(req.Code, 50),
		Description:       req.Description,
		DiscountType:      discountType,
		DiscountValue:     value,
		MinOrderAmount:    minOrder,
		MaxDiscountAmount: maxDiscount,
		StartDate:         startDate,
		EndDate:           endDate,
		UsageLimit:        req.UsageLimit,
		IsActive:          req.IsActive,
	}, nil
}

func AdminListPromotions(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		promotions, err := svc.List(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promotions)
	}
}

func AdminGetPromotion(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(chi.URLParam(r, "promotionId"), "promotion id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		promotion, err := svc.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promotion)
	}
}

func AdminCreatePromotion(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req promotionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		promotion, err := svc.Create(r.Context(), input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, promotion)
	}
}

func AdminUpdatePromotion(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(chi.URLParam(r, "promotionId"), "promotion id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req promotionRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		input, err := req.toInput()
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		promotion, err := svc.Update(r.Context(), id, input)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, promotion)
	}
}

func AdminDeletePromotion(svc promosvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathUUID(chi.URLParam(r, "promotionId"), "promotion id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.Delete(r.Context(), id); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"status": "deleted"})
	}
}
