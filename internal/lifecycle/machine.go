// Package lifecycle applies order status transitions with their guards.
// Every function validates first and mutates the order only when the full
// transition is legal; on error the order is untouched.
package lifecycle

import (
	"time"

	"github.com/syncmart/branchd/internal/domain"
	"github.com/syncmart/branchd/pkg/errors"
)

func violation(o *domain.Order, event, reason string) error {
	return &errors.ErrStateViolation{
		OrderID: o.ID,
		From:    string(o.Status),
		Event:   event,
		Reason:  reason,
	}
}

// Accept moves a placed order to accepted
func Accept(o *domain.Order) error {
	if !o.Status.CanTransitionTo(domain.OrderStatusAccepted) {
		return violation(o, "accept", "")
	}
	o.Status = domain.OrderStatusAccepted
	o.UpdatedAt = time.Now()
	return nil
}

// Cancel moves an order to cancelled. Legal from placed, accepted and packed.
func Cancel(o *domain.Order, reason string) error {
	if !o.Status.CanTransitionTo(domain.OrderStatusCancelled) {
		return violation(o, "cancel", "")
	}
	o.Status = domain.OrderStatusCancelled
	if reason != "" {
		o.CancelReason = &reason
	}
	o.UpdatedAt = time.Now()
	return nil
}

// Pack moves an accepted order to packed. All surviving items must carry
// resolved catalog detail so the settlement total is computable. Pickup
// orders get their settlement fields populated here.
func Pack(o *domain.Order) error {
	if !o.Status.CanTransitionTo(domain.OrderStatusPacked) {
		return violation(o, "pack", "")
	}
	if !o.SurvivingItemsResolved() {
		return violation(o, "pack", "items not yet resolved")
	}
	o.Status = domain.OrderStatusPacked
	o.RecomputeTotal()
	domain.ApplySettlement(o)
	o.UpdatedAt = time.Now()
	return nil
}

// PackFromPlaced is the explicit compound transition for packing an order
// the operator never separately accepted. Validation covers both legs before
// either applies, so a failed leg leaves the order untouched.
func PackFromPlaced(o *domain.Order) error {
	if o.Status != domain.OrderStatusPlaced {
		return violation(o, "packFromPlaced", "order not in placed")
	}
	if !o.SurvivingItemsResolved() {
		return violation(o, "packFromPlaced", "items not yet resolved")
	}
	o.Status = domain.OrderStatusAccepted
	return Pack(o)
}

// Assign hands a packed delivery order to a delivery partner
func Assign(o *domain.Order, partnerID string) error {
	if !o.Status.CanTransitionTo(domain.OrderStatusAssigned) {
		return violation(o, "assign", "")
	}
	if o.Fulfillment != domain.FulfillmentDelivery {
		return violation(o, "assign", "pickup orders cannot be assigned")
	}
	if partnerID == "" {
		return violation(o, "assign", "missing partner id")
	}
	o.Status = domain.OrderStatusAssigned
	o.PartnerID = &partnerID
	o.UpdatedAt = time.Now()
	return nil
}

// CollectCash settles an order and moves it to delivered. Pickup orders
// settle from packed; delivery orders settle from assigned.
func CollectCash(o *domain.Order) error {
	switch o.Status {
	case domain.OrderStatusPacked:
		if o.Fulfillment != domain.FulfillmentPickup {
			return violation(o, "collectCash", "delivery orders settle after assignment")
		}
	case domain.OrderStatusAssigned:
		// assigned implies delivery; nothing extra to check
	default:
		return violation(o, "collectCash", "")
	}
	o.Status = domain.OrderStatusDelivered
	o.UpdatedAt = time.Now()
	return nil
}

// CancelItem zeroes an item's count without changing order status. Legal on
// any non-terminal order; the order stays open even when the last item is
// zeroed — fully-emptied orders are cancelled by an explicit operator action.
func CancelItem(o *domain.Order, itemID string) error {
	if o.Status.IsTerminal() {
		return violation(o, "cancelItem", "order is closed")
	}
	item := o.Item(itemID)
	if item == nil {
		return &errors.ErrNotFound{Resource: "order item", ID: itemID}
	}
	item.Count = 0
	o.RecomputeTotal()
	o.UpdatedAt = time.Now()
	return nil
}
