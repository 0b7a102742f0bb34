package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/storefront/internal/inventory"
	"github.com/example/storefront/pkg/db/models"
	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// LifecycleService drives back-office status transitions on placed orders.
type LifecycleService interface {
	Confirm(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Ship(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Deliver(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	Return(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	MarkShipmentInTransit(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
}

type lifecycleService struct {
	repo  Repository
	tx    txRunner
	stock inventory.Service
	nowFn func() time.Time
}

// NewLifecycleService builds the admin lifecycle service.
func NewLifecycleService(repo Repository, tx txRunner, stock inventory.Service) (LifecycleService, error) {
	if repo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if stock == nil {
		return nil, fmt.Errorf("inventory service required")
	}
	return &lifecycleService{repo: repo, tx: tx, stock: stock, nowFn: time.Now}, nil
}

func (s *lifecycleService) Confirm(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusConfirmed, nil)
}

// Ship moves a confirmed order out the door: shipment becomes shipped with a
// timestamp and the order starts shipping.
func (s *lifecycleService) Ship(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusShipping, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order, now time.Time) error {
		if order.Shipment == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "order has no shipment")
		}
		updates := map[string]any{
			"status":     enums.ShipmentStatusShipped,
			"shipped_at": now,
		}
		if err := repo.UpdateShipment(ctx, order.Shipment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment")
		}
		order.Shipment.Status = enums.ShipmentStatusShipped
		order.Shipment.ShippedAt = &now
		return nil
	})
}

// Deliver closes out the shipment and settles cash-on-delivery payments.
func (s *lifecycleService) Deliver(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusDelivered, func(ctx context.Context, _ *gorm.DB, repo Repository, order *models.Order, now time.Time) error {
		if order.Shipment == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "order has no shipment")
		}
		updates := map[string]any{
			"status":       enums.ShipmentStatusDelivered,
			"delivered_at": now,
		}
		if err := repo.UpdateShipment(ctx, order.Shipment.ID, updates); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment")
		}
		order.Shipment.Status = enums.ShipmentStatusDelivered
		order.Shipment.DeliveredAt = &now

		if order.Payment != nil && order.Payment.Status == enums.PaymentStatusPending {
			paymentUpdates := map[string]any{
				"status":  enums.PaymentStatusCompleted,
				"paid_at": now,
			}
			if err := repo.UpdatePayment(ctx, order.Payment.ID, paymentUpdates); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle payment")
			}
			order.Payment.Status = enums.PaymentStatusCompleted
			order.Payment.PaidAt = &now
		}
		return nil
	})
}

// Return marks a delivered order as returned, refunds the settled payment and
// puts the returned units back in stock.
func (s *lifecycleService) Return(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	return s.transition(ctx, orderID, enums.OrderStatusReturned, func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) error {
		for _, item := range order.Items {
			if err := s.stock.Restore(ctx, tx, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}
		if order.Shipment != nil {
			if err := repo.UpdateShipment(ctx, order.Shipment.ID, map[string]any{
				"status": enums.ShipmentStatusReturned,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment")
			}
			order.Shipment.Status = enums.ShipmentStatusReturned
		}
		if order.Payment != nil && order.Payment.Status == enums.PaymentStatusCompleted {
			if err := repo.UpdatePayment(ctx, order.Payment.ID, map[string]any{
				"status": enums.PaymentStatusRefunded,
			}); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refund payment")
			}
			order.Payment.Status = enums.PaymentStatusRefunded
		}
		return nil
	})
}

// MarkShipmentInTransit advances only the shipment, not the order status.
func (s *lifecycleService) MarkShipmentInTransit(ctx context.Context, orderID uuid.UUID) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if order.Shipment == nil {
			return pkgerrors.New(pkgerrors.CodeInternal, "order has no shipment")
		}
		if order.Shipment.Status != enums.ShipmentStatusShipped {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "shipment must be shipped before transit").
				WithDetail("status", order.Shipment.Status.String())
		}
		if err := repo.UpdateShipment(ctx, order.Shipment.ID, map[string]any{
			"status": enums.ShipmentStatusInTransit,
		}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update shipment")
		}
		order.Shipment.Status = enums.ShipmentStatusInTransit
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type transitionHook func(ctx context.Context, tx *gorm.DB, repo Repository, order *models.Order, now time.Time) error

func (s *lifecycleService) transition(ctx context.Context, orderID uuid.UUID, target enums.OrderStatus, hook transitionHook) (*models.Order, error) {
	var result *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		order, err := loadOrder(ctx, repo, orderID)
		if err != nil {
			return err
		}
		if !order.Status.CanTransitionTo(target) {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "status transition not allowed").
				WithDetail("from", order.Status.String()).
				WithDetail("to", target.String())
		}

		now := s.nowFn().UTC()
		if hook != nil {
			if err := hook(ctx, tx, repo, order, now); err != nil {
				return err
			}
		}

		if err := repo.UpdateOrder(ctx, order.ID, map[string]any{"status": target}); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update order status")
		}
		order.Status = target
		result = order
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func loadOrder(ctx context.Context, repo Repository, orderID uuid.UUID) (*models.Order, error) {
	order, err := repo.FindByID(ctx, orderID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "order not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	return order, nil
}
