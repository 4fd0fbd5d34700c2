package domain

// OrderStatus represents the lifecycle status of a branch order
type OrderStatus string

const (
	// PLACED - New order from customer checkout, pending branch action
	OrderStatusPlaced OrderStatus = "placed"
	// ACCEPTED - Branch accepted the order
	OrderStatusAccepted OrderStatus = "accepted"
	// PACKED - Items packed; pickup orders settle from here
	OrderStatusPacked OrderStatus = "packed"
	// ASSIGNED - Handed to a delivery partner (delivery orders only)
	OrderStatusAssigned OrderStatus = "assigned"
	// DELIVERED - Order completed and cash collected
	OrderStatusDelivered OrderStatus = "delivered"
	// CANCELLED - Rejected or cancelled before completion
	OrderStatusCancelled OrderStatus = "cancelled"
)

// IsValid checks if the order status is a known value
func (s OrderStatus) IsValid() bool {
	switch s {
	case OrderStatusPlaced,
		OrderStatusAccepted,
		OrderStatusPacked,
		OrderStatusAssigned,
		OrderStatusDelivered,
		OrderStatusCancelled:
		return true
	default:
		return false
	}
}

// IsTerminal reports whether no further transitions are possible
func (s OrderStatus) IsTerminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// Rank orders statuses along the lifecycle lattice. Racing updates may only
// move an order to an equal or higher rank; lower-ranked claims are stale.
func (s OrderStatus) Rank() int {
	switch s {
	case OrderStatusPlaced:
		return 0
	case OrderStatusAccepted:
		return 1
	case OrderStatusPacked:
		return 2
	case OrderStatusAssigned:
		return 3
	case OrderStatusDelivered:
		return 4
	case OrderStatusCancelled:
		return 5
	default:
		return -1
	}
}

// CanTransitionTo checks if a status transition is valid. Guards that depend
// on order data (fulfillment type, item resolution) live in the lifecycle
// package; this covers the pure status edges.
func (s OrderStatus) CanTransitionTo(newStatus OrderStatus) bool {
	switch s {
	case OrderStatusPlaced:
		return newStatus == OrderStatusAccepted ||
			newStatus == OrderStatusCancelled
	case OrderStatusAccepted:
		return newStatus == OrderStatusPacked ||
			newStatus == OrderStatusCancelled
	case OrderStatusPacked:
		return newStatus == OrderStatusAssigned ||
			newStatus == OrderStatusDelivered ||
			newStatus == OrderStatusCancelled
	case OrderStatusAssigned:
		return newStatus == OrderStatusDelivered
	case OrderStatusDelivered, OrderStatusCancelled:
		return false // Terminal states
	default:
		return false
	}
}

// FulfillmentType distinguishes delivery orders from self-pickup orders
type FulfillmentType string

const (
	FulfillmentDelivery FulfillmentType = "delivery"
	FulfillmentPickup   FulfillmentType = "pickup"
)

// IsValid checks if the fulfillment type is a known value
func (f FulfillmentType) IsValid() bool {
	return f == FulfillmentDelivery || f == FulfillmentPickup
}
