package models

import (
	"testing"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestOrderStatusTransitionsFromPending(t *testing.T) {
	for _, to := range []OrderStatus{StatusPaid, StatusFailed, StatusCanceled} {
		if !StatusPending.CanTransition(to) {
			t.Fatalf("expected PENDING -> %s to be allowed", to)
		}
	}
}

func TestOrderStatusTerminalStatesAbsorb(t *testing.T) {
	terminals := []OrderStatus{StatusPaid, StatusFailed, StatusCanceled}
	targets := []OrderStatus{StatusPending, StatusPaid, StatusFailed, StatusCanceled}
	for _, from := range terminals {
		for _, to := range targets {
			if from.CanTransition(to) {
				t.Fatalf("expected %s -> %s to be rejected", from, to)
			}
		}
	}
}

func TestOrderStatusSelfTransitionRejected(t *testing.T) {
	if StatusPending.CanTransition(StatusPending) {
		t.Fatal("expected PENDING -> PENDING to be rejected")
	}
}

func TestDeliveryStatusForwardOnly(t *testing.T) {
	if !DeliveryPending.CanAdvance(DeliveryProcessing) {
		t.Fatal("expected PENDING -> PROCESSING to be allowed")
	}
	if !DeliveryProcessing.CanAdvance(DeliveryDelivered) {
		t.Fatal("expected forward skip PROCESSING -> DELIVERED to be allowed")
	}
	if DeliveryShipping.CanAdvance(DeliveryProcessing) {
		t.Fatal("expected backwards SHIPPING -> PROCESSING to be rejected")
	}
	if DeliveryShipping.CanAdvance(DeliveryShipping) {
		t.Fatal("expected SHIPPING -> SHIPPING to be rejected")
	}
}

func TestParseOrderStatusNormalizesCase(t *testing.T) {
	status, ok := ParseOrderStatus(" paid ")
	if !ok || status != StatusPaid {
		t.Fatalf("expected PAID, got %q ok=%v", status, ok)
	}
	if _, ok := ParseOrderStatus("refunded"); ok {
		t.Fatal("expected unknown status to be rejected")
	}
}

func TestSubtotalUsesPriceSnapshots(t *testing.T) {
	order := Order{Items: []OrderItem{
		{Quantity: 2, UnitPrice: 150},
		{Quantity: 1, UnitPrice: 99.5},
	}}
	if got := order.Subtotal(); got != 399.5 {
		t.Fatalf("expected subtotal 399.5, got %v", got)
	}
}

func TestOrderOwnerValidate(t *testing.T) {
	userID := primitive.NewObjectID()

	if err := (OrderOwner{UserID: &userID}).Validate(); err != nil {
		t.Fatalf("registered owner should be valid: %v", err)
	}
	if err := (OrderOwner{Guest: &GuestOwner{Name: "An", Phone: "0900000001"}}).Validate(); err != nil {
		t.Fatalf("guest owner should be valid: %v", err)
	}
	if err := (OrderOwner{}).Validate(); err == nil {
		t.Fatal("empty owner should be rejected")
	}
	if err := (OrderOwner{UserID: &userID, Guest: &GuestOwner{Name: "An", Phone: "0900000001"}}).Validate(); err == nil {
		t.Fatal("owner with both identities should be rejected")
	}
	if err := (OrderOwner{Guest: &GuestOwner{Name: "An"}}).Validate(); err == nil {
		t.Fatal("guest without phone should be rejected")
	}
}

func TestCanBeCanceledBy(t *testing.T) {
	owner := primitive.NewObjectID()
	stranger := primitive.NewObjectID()

	order := Order{Owner: OrderOwner{UserID: &owner}, Status: StatusPending}
	if !order.CanBeCanceledBy(owner) {
		t.Fatal("owner should be able to cancel a pending order")
	}
	if order.CanBeCanceledBy(stranger) {
		t.Fatal("another user must not cancel the order")
	}

	order.Status = StatusPaid
	if order.CanBeCanceledBy(owner) {
		t.Fatal("paid orders must not be cancelable")
	}

	guestOrder := Order{Owner: OrderOwner{Guest: &GuestOwner{Name: "An", Phone: "0900000001"}}, Status: StatusPending}
	if guestOrder.CanBeCanceledBy(owner) {
		t.Fatal("guest orders must not be cancelable through this path")
	}
}

func TestCanConfirmReceived(t *testing.T) {
	order := Order{Status: StatusPaid, DeliveryStatus: DeliveryShipping}
	if !order.CanConfirmReceived() {
		t.Fatal("shipping+paid order should be confirmable")
	}

	order.DeliveryStatus = DeliveryProcessing
	if order.CanConfirmReceived() {
		t.Fatal("order not yet shipping must not be confirmable")
	}

	order.DeliveryStatus = DeliveryShipping
	order.Status = StatusPending
	if order.CanConfirmReceived() {
		t.Fatal("unpaid order must not be confirmable")
	}
}

func TestOrderItemDisplayNameFallback(t *testing.T) {
	if got := (OrderItem{Name: "Laptop"}).DisplayName(); got != "Laptop" {
		t.Fatalf("expected snapshot name, got %q", got)
	}
	if got := (OrderItem{}).DisplayName(); got != "[deleted product]" {
		t.Fatalf("expected placeholder for orphaned item, got %q", got)
	}
}
