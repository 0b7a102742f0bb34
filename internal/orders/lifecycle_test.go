package orders

import (
	"context"
	"testing"

	"github.com/example/storefront/pkg/enums"
	pkgerrors "github.com/example/storefront/pkg/errors"
	"github.com/google/uuid"
)

func (f *fixture) placeOrder(t *testing.T, method enums.PaymentMethod) uuid.UUID {
	t.Helper()

	userID := uuid.New()
	variantID := f.seedVariant(t, "100000", nil, 10)
	f.seedCart(t, userID, map[uuid.UUID]int{variantID: 1})

	order, err := f.svc.PlaceFromCart(context.Background(), PlaceFromCartInput{
		UserID:        userID,
		PaymentMethod: method,
		Shipping:      shippingInfo(),
	})
	if err != nil {
		t.Fatalf("place order: %v", err)
	}
	return order.ID
}

func TestLifecycleFullDeliveryPath(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	orderID := f.placeOrder(t, enums.PaymentMethodCOD)

	order, err := f.lifecycle.Confirm(ctx, orderID)
	if err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if order.Status != enums.OrderStatusConfirmed {
		t.Errorf("status = %s, want confirmed", order.Status)
	}

	order, err = f.lifecycle.Ship(ctx, orderID)
	if err != nil {
		t.Fatalf("ship: %v", err)
	}
	if order.Status != enums.OrderStatusShipping {
		t.Errorf("status = %s, want shipping", order.Status)
	}
	if order.Shipment.Status != enums.ShipmentStatusShipped || order.Shipment.ShippedAt == nil {
		t.Error("shipment should be shipped with a timestamp")
	}

	order, err = f.lifecycle.MarkShipmentInTransit(ctx, orderID)
	if err != nil {
		t.Fatalf("in transit: %v", err)
	}
	if order.Shipment.Status != enums.ShipmentStatusInTransit {
		t.Errorf("shipment status = %s, want in_transit", order.Shipment.Status)
	}
	if order.Status != enums.OrderStatusShipping {
		t.Errorf("order status should stay shipping, got %s", order.Status)
	}

	order, err = f.lifecycle.Deliver(ctx, orderID)
	if err != nil {
		t.Fatalf("deliver: %v", err)
	}
	if order.Status != enums.OrderStatusDelivered {
		t.Errorf("status = %s, want delivered", order.Status)
	}
	if order.Shipment.Status != enums.ShipmentStatusDelivered || order.Shipment.DeliveredAt == nil {
		t.Error("shipment should be delivered with a timestamp")
	}

	// Cash on delivery settles when the package lands.
	if order.Payment.Status != enums.PaymentStatusCompleted {
		t.Errorf("payment status = %s, want completed", order.Payment.Status)
	}
	if order.Payment.PaidAt == nil {
		t.Error("settled payment should carry paid_at")
	}
}

func TestLifecycleReturnRefundsPaymentAndRestoresStock(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	orderID := f.placeOrder(t, enums.PaymentMethodCreditCard)

	if _, err := f.lifecycle.Confirm(ctx, orderID); err != nil {
		t.Fatalf("confirm: %v", err)
	}
	if _, err := f.lifecycle.Ship(ctx, orderID); err != nil {
		t.Fatalf("ship: %v", err)
	}
	if _, err := f.lifecycle.Deliver(ctx, orderID); err != nil {
		t.Fatalf("deliver: %v", err)
	}

	order, err := f.lifecycle.Return(ctx, orderID)
	if err != nil {
		t.Fatalf("return: %v", err)
	}
	if order.Status != enums.OrderStatusReturned {
		t.Errorf("status = %s, want returned", order.Status)
	}
	if order.Shipment.Status != enums.ShipmentStatusReturned {
		t.Errorf("shipment status = %s, want returned", order.Shipment.Status)
	}
	if order.Payment.Status != enums.PaymentStatusRefunded {
		t.Errorf("payment status = %s, want refunded", order.Payment.Status)
	}
	// Returned units go back on the shelf: 10 seeded, 1 reserved, 1 returned.
	if got := f.stockQty(t, order.Items[0].VariantID); got != 10 {
		t.Errorf("stock after return = %d, want 10", got)
	}
}

func TestLifecycleRejectsSkippedSteps(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	orderID := f.placeOrder(t, enums.PaymentMethodCOD)

	// pending cannot jump straight to shipping or delivered.
	for name, fn := range map[string]func(context.Context, uuid.UUID) error{
		"ship":    func(ctx context.Context, id uuid.UUID) error { _, err := f.lifecycle.Ship(ctx, id); return err },
		"deliver": func(ctx context.Context, id uuid.UUID) error { _, err := f.lifecycle.Deliver(ctx, id); return err },
		"return":  func(ctx context.Context, id uuid.UUID) error { _, err := f.lifecycle.Return(ctx, id); return err },
	} {
		err := fn(ctx, orderID)
		typed := pkgerrors.As(err)
		if typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
			t.Errorf("%s from pending: want state conflict, got %v", name, err)
		}
	}
}

func TestLifecycleUnknownOrder(t *testing.T) {
	t.Parallel()

	f := newFixture(t)

	_, err := f.lifecycle.Confirm(context.Background(), uuid.New())
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeNotFound {
		t.Fatalf("want not found, got %v", err)
	}
}

func TestLifecycleInTransitRequiresShipped(t *testing.T) {
	t.Parallel()

	f := newFixture(t)
	ctx := context.Background()
	orderID := f.placeOrder(t, enums.PaymentMethodCOD)

	_, err := f.lifecycle.MarkShipmentInTransit(ctx, orderID)
	if typed := pkgerrors.As(err); typed == nil || typed.Code() != pkgerrors.CodeStateConflict {
		t.Fatalf("in transit while preparing: want state conflict, got %v", err)
	}
}
