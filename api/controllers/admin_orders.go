package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/example/storefront/api/responses"
	"github.com/example/storefront/api/validators"
	ordersvc "github.com/example/storefront/internal/orders"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/example/storefront/pkg/logger"
)

// AdminListOrders lists all orders with optional status and user filters.
func AdminListOrders(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var filter ordersvc.ListFilter
		if raw := strings.TrimSpace(r.URL.Query().Get("status")); raw != "" {
			status, err := enums.ParseOrderStatus(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid status"))
				return
			}
			filter.Status = &status
		}
		if raw := strings.TrimSpace(r.URL.Query().Get("user_id")); raw != "" {
			userID, err := uuid.Parse(raw)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid user id"))
				return
			}
			filter.UserID = &userID
		}

		page, err := svc.List(r.Context(), filter, params)
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

func AdminGetOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.Get(r.Context(), orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, order)
	}
}

type transitionFunc func(r *http.Request, orderID uuid.UUID) (any, error)

func adminTransition(logg *logger.Logger, event string, fn transitionFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		orderID, err := pathUUID(chi.URLParam(r, "orderId"), "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := fn(r, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			logg.Info(logg.WithField(r.Context(), "event", event), "order.transition")
		}
		responses.WriteSuccess(w, order)
	}
}

func AdminConfirmOrder(svc ordersvc.LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(logg, "confirm", func(r *http.Request, orderID uuid.UUID) (any, error) {
		return svc.Confirm(r.Context(), orderID)
	})
}

func AdminShipOrder(svc ordersvc.LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(logg, "ship", func(r *http.Request, orderID uuid.UUID) (any, error) {
		return svc.Ship(r.Context(), orderID)
	})
}

func AdminDeliverOrder(svc ordersvc.LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(logg, "deliver", func(r *http.Request, orderID uuid.UUID) (any, error) {
		return svc.Deliver(r.Context(), orderID)
	})
}

func AdminReturnOrder(svc ordersvc.LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(logg, "return", func(r *http.Request, orderID uuid.UUID) (any, error) {
		return svc.Return(r.Context(), orderID)
	})
}

func AdminShipmentInTransit(svc ordersvc.LifecycleService, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(logg, "in_transit", func(r *http.Request, orderID uuid.UUID) (any, error) {
		return svc.MarkShipmentInTransit(r.Context(), orderID)
	})
}

// AdminCancelOrder cancels on behalf of any customer.
func AdminCancelOrder(svc ordersvc.Service, logg *logger.Logger) http.HandlerFunc {
	return adminTransition(logg, "cancel", func(r *http.Request, orderID uuid.UUID) (any, error) {
		return svc.Cancel(r.Context(), uuid.Nil, orderID)
	})
}
