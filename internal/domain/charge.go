package domain

// PlatformCharge computes the settlement fee for an order total:
// ceil(total / 1000), in the same currency unit as the total.
// Pure and deterministic; negative totals are clamped to zero.
func PlatformCharge(total int64) int64 {
	if total <= 0 {
		return 0
	}
	return (total + 999) / 1000
}

// Settlement holds the ledger fields derived from an order total at the
// moment a pickup order reaches packed. The customer-facing and
// branch-facing charges use the same formula, subtracted and added on
// opposite sides of the ledger.
type Settlement struct {
	CustomerCharge int64
	BranchCharge   int64
	CustomerTotal  int64
	BranchReceives int64
}

// SettlementFor derives the settlement fields for a pickup order total
func SettlementFor(total int64) Settlement {
	charge := PlatformCharge(total)
	return Settlement{
		CustomerCharge: charge,
		BranchCharge:   charge,
		CustomerTotal:  total + charge,
		BranchReceives: total - charge,
	}
}

// ChargeFor returns the platform charge for an order given its fulfillment
// type. Delivery orders carry zero platform charge under the current rule
// set; only self-pickup orders are charged.
func ChargeFor(total int64, fulfillment FulfillmentType) int64 {
	if fulfillment != FulfillmentPickup {
		return 0
	}
	return PlatformCharge(total)
}

// ApplySettlement populates the order's settlement fields if it is a pickup
// order with a known total. Called when the order reaches packed; a no-op
// for delivery orders and for orders whose total is still unresolved.
func ApplySettlement(o *Order) {
	if o.Fulfillment != FulfillmentPickup || o.Total == nil {
		return
	}
	s := SettlementFor(*o.Total)
	o.Settlement = &s
}
