package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending        OrderStatus = "PENDING"
	OrderStatusConfirmed      OrderStatus = "CONFIRMED"
	OrderStatusAssigned       OrderStatus = "ASSIGNED"
	OrderStatusOutForDelivery OrderStatus = "OUT_FOR_DELIVERY"
	OrderStatusDelivered      OrderStatus = "DELIVERED"
	OrderStatusCancelled      OrderStatus = "CANCELLED"
)

// ValidStatus reports whether s is one of the known order statuses.
func ValidStatus(s OrderStatus) bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusAssigned,
		OrderStatusOutForDelivery, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// LineItem is one product/quantity entry within an order. PriceAtPurchase is
// copied from the product at creation time and never recomputed afterwards.
type LineItem struct {
	ProductID       string
	ProductName     string
	Quantity        int
	PriceAtPurchase decimal.Decimal
}

// Subtotal returns quantity × price-at-purchase.
func (li LineItem) Subtotal() decimal.Decimal {
	return li.PriceAtPurchase.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

type Order struct {
	ID         string
	CustomerID string
	SellerID   string // empty until assigned
	Status     OrderStatus
	Items      []LineItem
	Total      decimal.Decimal
	Version    int // optimistic locking
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// ComputeTotal sums the subtotals of all line items.
func (o *Order) ComputeTotal() decimal.Decimal {
	total := decimal.Zero
	for _, li := range o.Items {
		total = total.Add(li.Subtotal())
	}
	return total
}

// ItemRequest is a requested (product, quantity) pair submitted at creation.
type ItemRequest struct {
	ProductID string
	Quantity  int
}

// sellerTransitions is the authoritative table of status changes a seller may
// perform from a given current status. Sellers only push an order forward
// through the fulfillment steps they own; everything else is denied.
var sellerTransitions = map[OrderStatus][]OrderStatus{
	OrderStatusAssigned:       {OrderStatusOutForDelivery},
	OrderStatusOutForDelivery: {OrderStatusDelivered},
}

// CanTransition reports whether role may move an order from current to
// target. Admins bypass the table entirely (operational override).
func CanTransition(role Role, current, target OrderStatus) bool {
	if role == RoleAdmin {
		return true
	}
	if role != RoleSeller {
		return false
	}
	for _, next := range sellerTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}
