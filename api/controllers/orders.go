package controllers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/storefront/api/responses"
	"github.com/example/storefront/api/validators"
	ordersvc "github.com/example/storefront/internal/orders"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/logger"
)

type shippingRequest struct {
	Address        string  `json:"address" validate:"required"`
	RecipientName  string  `json:"recipient_name" validate:"required"`
	RecipientPhone string  `json:"recipient_phone" validate:"required"`
	Notes          *string `json:"notes,omitempty"`
}

func (s shippingRequest) toInfo() ordersvc.ShippingInfo {
	return ordersvc.ShippingInfo{
		Address:        validators.SanitizeString(s.Address, 500),
		RecipientName:  validators.SanitizeString(s.RecipientName, 100),
		RecipientPhone: validators.SanitizeString(s.RecipientPhone, 20),
		Notes:          s.Notes,
	}
}

type placeOrderRequest struct {
	PaymentMethod string          `json:"payment_method" validate:"required"`
	Shipping      shippingRequest `json:"shipping" validate:"required"`
	PromotionCode string          `json:"promotion_code,omitempty"`
}

// PlaceOrder converts the caller's cart into an order.
func PlaceOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req placeOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		order, err := svc.PlaceFromCart(r.Context(), ordersvc.PlaceFromCartInput{
			UserID:        userID,
			PaymentMethod: method,
			Shipping:      req.Shipping.toInfo(),
			PromotionCode: validators.SanitizeString(req.PromotionCode, 50),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		if logg != nil {
			ctx := logg.WithOrderNumber(r.Context(), order.OrderNumber)
			logg.Info(ctx, "order.placed")
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

type directLineRequest struct {
	VariantID string `json:"variant_id" validate:"required,uuid"`
	Quantity  int    `json:"quantity" validate:"required,min=1"`
}

type placeDirectOrderRequest struct {
	Lines         []directLineRequest `json:"lines" validate:"required,min=1,dive"`
	PaymentMethod string              `json:"payment_method" validate:"required"`
	Shipping      shippingRequest     `json:"shipping" validate:"required"`
	PromotionCode string              `json:"promotion_code,omitempty"`
}

// PlaceDirectOrder places an order straight from an item list, skipping the cart.
func PlaceDirectOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req placeDirectOrderRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		method, err := enums.ParsePaymentMethod(req.PaymentMethod)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment method"))
			return
		}

		lines := make([]ordersvc.DirectLine, 0, len(req.Lines))
		for _, line := range req.Lines {
			variantID, err := pathUUID(line.VariantID, "variant id")
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			lines = append(lines, ordersvc.DirectLine{VariantID: variantID, Quantity: line.Quantity})
		}

		order, err := svc.PlaceDirect(r.Context(), ordersvc.PlaceDirectInput{
			UserID:        userID,
			Lines:         lines,
			PaymentMethod: method,
			Shipping:      req.Shipping.toInfo(),
			PromotionCode: validators.SanitizeString(req.PromotionCode, 50),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, order)
	}
}

func ListMyOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := svc.ListForUser(r.Context(), userID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{
			"orders":      page.Orders,
			"next_cursor": page.NextCursor,
		})
	}
}

func GetMyOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForUser(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

// GetMyShipment returns the shipment attached to one of the caller's orders.
func GetMyShipment(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForUser(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if order.Shipment == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeNotFound, "shipment not found"))
			return
		}
		responses.WriteSuccess(w, order.Shipment)
	}
}

// CancelMyOrder cancels a pending or confirmed order and restores its stock.
func CancelMyOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := actorID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := pathUUID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Cancel(r.Context(), userID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}
