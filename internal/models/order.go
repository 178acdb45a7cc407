package models

import (
	"errors"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// OrderStatus is the payment dimension of an order. PENDING is the only
// non-terminal state.
type OrderStatus string

const (
	StatusPending  OrderStatus = "PENDING"
	StatusPaid     OrderStatus = "PAID"
	StatusFailed   OrderStatus = "FAILED"
	StatusCanceled OrderStatus = "CANCELED"
)

// DeliveryStatus progresses independently of payment, forward-only.
type DeliveryStatus string

const (
	DeliveryPending    DeliveryStatus = "PENDING"
	DeliveryProcessing DeliveryStatus = "PROCESSING"
	DeliveryShipping   DeliveryStatus = "SHIPPING"
	DeliveryDelivered  DeliveryStatus = "DELIVERED"
)

const (
	PaymentMethodCOD  = "cod"
	PaymentMethodMomo = "momo"

	DeliveryMethodStore = "store"
	DeliveryMethodHome  = "home"
)

var ErrInvalidTransition = errors.New("invalid status transition")

// CanTransition reports whether the payment state machine allows s -> to.
// PAID, FAILED and CANCELED are terminal.
func (s OrderStatus) CanTransition(to OrderStatus) bool {
	if s != StatusPending {
		return false
	}
	switch to {
	case StatusPaid, StatusFailed, StatusCanceled:
		return true
	}
	return false
}

func ParseOrderStatus(raw string) (OrderStatus, bool) {
	switch OrderStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case StatusPending:
		return StatusPending, true
	case StatusPaid:
		return StatusPaid, true
	case StatusFailed:
		return StatusFailed, true
	case StatusCanceled:
		return StatusCanceled, true
	}
	return "", false
}

func (d DeliveryStatus) rank() int {
	switch d {
	case DeliveryPending:
		return 0
	case DeliveryProcessing:
		return 1
	case DeliveryShipping:
		return 2
	case DeliveryDelivered:
		return 3
	}
	return -1
}

// CanAdvance reports whether the delivery state machine allows d -> to.
// Moves are forward-only; DELIVERED is reachable only through the
// customer-confirms-received action, which callers enforce separately.
func (d DeliveryStatus) CanAdvance(to DeliveryStatus) bool {
	from, next := d.rank(), to.rank()
	return from >= 0 && next >= 0 && next > from
}

func ParseDeliveryStatus(raw string) (DeliveryStatus, bool) {
	switch DeliveryStatus(strings.ToUpper(strings.TrimSpace(raw))) {
	case DeliveryPending:
		return DeliveryPending, true
	case DeliveryProcessing:
		return DeliveryProcessing, true
	case DeliveryShipping:
		return DeliveryShipping, true
	case DeliveryDelivered:
		return DeliveryDelivered, true
	}
	return "", false
}

// GuestOwner identifies an order placed without an account.
type GuestOwner struct {
	Name  string `bson:"name" json:"name"`
	Phone string `bson:"phone" json:"phone"`
	Email string `bson:"email,omitempty" json:"email,omitempty"`
}

// OrderOwner is a tagged variant: exactly one of UserID or Guest is set.
type OrderOwner struct {
	UserID *primitive.ObjectID `bson:"userId,omitempty" json:"userId,omitempty"`
	Guest  *GuestOwner         `bson:"guest,omitempty" json:"guest,omitempty"`
}

func (o OrderOwner) IsRegistered() bool {
	return o.UserID != nil
}

func (o OrderOwner) Validate() error {
	if o.UserID != nil && o.Guest != nil {
		return errors.New("order owner cannot be both a user and a guest")
	}
	if o.UserID == nil && o.Guest == nil {
		return errors.New("order owner is required")
	}
	if o.Guest != nil {
		if strings.TrimSpace(o.Guest.Name) == "" || strings.TrimSpace(o.Guest.Phone) == "" {
			return errors.New("guest name and phone are required")
		}
	}
	return nil
}

// OrderItem snapshots the product name and unit price at order time so
// historical orders stay computable after catalog changes.
type OrderItem struct {
	ProductID primitive.ObjectID `bson:"productId" json:"productId"`
	Name      string             `bson:"name" json:"name"`
	Quantity  int                `bson:"quantity" json:"quantity"`
	UnitPrice float64            `bson:"unitPrice" json:"unitPrice"`
}

// DisplayName falls back to a placeholder when the snapshot has no name
// (a deleted product orphans its items).
func (i OrderItem) DisplayName() string {
	if strings.TrimSpace(i.Name) == "" {
		return "[deleted product]"
	}
	return i.Name
}

// Order is the persisted order document.
type Order struct {
	ID             primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	OrderCode      string             `bson:"orderCode" json:"orderCode"`
	Owner          OrderOwner         `bson:"owner" json:"owner"`
	Items          []OrderItem        `bson:"items" json:"items"`
	TotalPrice     float64            `bson:"totalPrice" json:"totalPrice"`
	DeliveryMethod string             `bson:"deliveryMethod" json:"deliveryMethod"`
	Address        string             `bson:"address,omitempty" json:"address,omitempty"`
	PaymentMethod  string             `bson:"paymentMethod,omitempty" json:"paymentMethod,omitempty"`
	Status         OrderStatus        `bson:"status" json:"status"`
	DeliveryStatus DeliveryStatus     `bson:"deliveryStatus" json:"deliveryStatus"`
	MomoOrderID    string             `bson:"momoOrderId,omitempty" json:"momoOrderId,omitempty"`
	CreatedAt      time.Time          `bson:"createdAt" json:"createdAt"`
}

// Subtotal recomputes the item total from snapshots.
func (o Order) Subtotal() float64 {
	var total float64
	for _, item := range o.Items {
		total += item.UnitPrice * float64(item.Quantity)
	}
	return total
}

// CanBeCanceledBy allows cancellation only by the order's own registered
// user, and only while payment is still PENDING.
func (o Order) CanBeCanceledBy(userID primitive.ObjectID) bool {
	if !o.Owner.IsRegistered() || *o.Owner.UserID != userID {
		return false
	}
	return o.Status.CanTransition(StatusCanceled)
}

// CanConfirmReceived gates the customer-confirms-received action.
func (o Order) CanConfirmReceived() bool {
	return o.DeliveryStatus == DeliveryShipping && o.Status == StatusPaid
}
