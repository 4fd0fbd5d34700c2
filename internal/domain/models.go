package domain

import (
	"time"
)

// Order represents a branch order as reconciled from REST snapshots, push
// events and pending operator edits. Pointer fields are optional: nil means
// the value has not been observed from any source yet.
type Order struct {
	ID            string
	OrderNum      int64
	Status        OrderStatus
	Fulfillment   FulfillmentType
	Items         []OrderItem
	Total         *int64 // currency units; nil until reported or computable
	PartnerID     *string
	CustomerID    string // used only to join the customer realtime room
	Modifications []ModificationRecord
	Settlement    *Settlement
	CancelReason  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// OrderItem represents one ordered line. Detail is nil while the catalog
// lookup is still pending; an item with nil Detail is "partial" and blocks
// packing until a detail fetch resolves it.
type OrderItem struct {
	ID     string
	Count  int
	Detail *ItemDetail
}

// ItemDetail is the resolved catalog view of an ordered item
type ItemDetail struct {
	Name      string
	UnitPrice int64
}

// Resolved reports whether the item's catalog detail is known
func (i OrderItem) Resolved() bool {
	return i.Detail != nil
}

// ModificationRecord is one batch of human-readable change descriptions
// applied to an order (e.g. by a pack-with-updates event)
type ModificationRecord struct {
	Changes    []string
	RecordedAt time.Time
}

// ItemsResolved reports whether every item carries catalog detail
func (o *Order) ItemsResolved() bool {
	for _, it := range o.Items {
		if !it.Resolved() {
			return false
		}
	}
	return true
}

// SurvivingItemsResolved reports whether every item still being fulfilled
// carries catalog detail. Zeroed items never block packing.
func (o *Order) SurvivingItemsResolved() bool {
	for _, it := range o.Items {
		if it.Count > 0 && !it.Resolved() {
			return false
		}
	}
	return true
}

// NeedsDetail reports whether the order is missing data that only a
// detail fetch can provide
func (o *Order) NeedsDetail() bool {
	return !o.ItemsResolved() || o.Total == nil
}

// ComputedTotal sums unit price times count across non-cancelled items.
// Returns false when any surviving item is unresolved.
func (o *Order) ComputedTotal() (int64, bool) {
	var total int64
	for _, it := range o.Items {
		if it.Count == 0 {
			continue
		}
		if !it.Resolved() {
			return 0, false
		}
		total += it.Detail.UnitPrice * int64(it.Count)
	}
	return total, true
}

// RecomputeTotal refreshes Total from item detail when possible. Totals
// sourced before a detail fetch completes are left untouched.
func (o *Order) RecomputeTotal() {
	if total, ok := o.ComputedTotal(); ok {
		o.Total = &total
	}
}

// AllItemsCancelled reports whether every item count has been zeroed
func (o *Order) AllItemsCancelled() bool {
	for _, it := range o.Items {
		if it.Count > 0 {
			return false
		}
	}
	return len(o.Items) > 0
}

// Item returns a pointer to the item with the given id, if present
func (o *Order) Item(itemID string) *OrderItem {
	for i := range o.Items {
		if o.Items[i].ID == itemID {
			return &o.Items[i]
		}
	}
	return nil
}

// Clone returns a deep copy so callers can hand orders out of the store
// without aliasing its internal state
func (o *Order) Clone() *Order {
	cp := *o
	cp.Items = make([]OrderItem, len(o.Items))
	for i, it := range o.Items {
		cp.Items[i] = it
		if it.Detail != nil {
			d := *it.Detail
			cp.Items[i].Detail = &d
		}
	}
	if o.Total != nil {
		t := *o.Total
		cp.Total = &t
	}
	if o.PartnerID != nil {
		p := *o.PartnerID
		cp.PartnerID = &p
	}
	if o.CancelReason != nil {
		r := *o.CancelReason
		cp.CancelReason = &r
	}
	if o.Settlement != nil {
		s := *o.Settlement
		cp.Settlement = &s
	}
	cp.Modifications = make([]ModificationRecord, len(o.Modifications))
	for i, m := range o.Modifications {
		cp.Modifications[i] = ModificationRecord{
			Changes:    append([]string(nil), m.Changes...),
			RecordedAt: m.RecordedAt,
		}
	}
	return &cp
}
