package domain

import (
	"testing"
)

func TestPlatformCharge(t *testing.T) {
	tests := []struct {
		total int64
		want  int64
	}{
		{0, 0},
		{1, 1},
		{999, 1},
		{1000, 1},
		{1001, 2},
		{2500, 3},
		{999999, 1000},
		{-50, 0},
	}
	for _, tt := range tests {
		if got := PlatformCharge(tt.total); got != tt.want {
			t.Errorf("PlatformCharge(%d) = %d, want %d", tt.total, got, tt.want)
		}
	}
}

func TestPlatformCharge_Deterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		if got := PlatformCharge(12345); got != 13 {
			t.Fatalf("PlatformCharge(12345) = %d, want 13", got)
		}
	}
}

func TestSettlementFor(t *testing.T) {
	// Pickup order with total 2500: both charges are 3, the customer pays
	// 2503 and the branch receives 2497.
	s := SettlementFor(2500)
	if s.CustomerCharge != 3 {
		t.Errorf("CustomerCharge = %d, want 3", s.CustomerCharge)
	}
	if s.BranchCharge != 3 {
		t.Errorf("BranchCharge = %d, want 3", s.BranchCharge)
	}
	if s.CustomerTotal != 2503 {
		t.Errorf("CustomerTotal = %d, want 2503", s.CustomerTotal)
	}
	if s.BranchReceives != 2497 {
		t.Errorf("BranchReceives = %d, want 2497", s.BranchReceives)
	}
}

func TestChargeFor_DeliveryIsFree(t *testing.T) {
	if got := ChargeFor(2500, FulfillmentDelivery); got != 0 {
		t.Errorf("ChargeFor(2500, delivery) = %d, want 0", got)
	}
	if got := ChargeFor(2500, FulfillmentPickup); got != 3 {
		t.Errorf("ChargeFor(2500, pickup) = %d, want 3", got)
	}
}

func TestApplySettlement(t *testing.T) {
	total := int64(2500)

	t.Run("pickup with known total", func(t *testing.T) {
		o := &Order{Fulfillment: FulfillmentPickup, Total: &total}
		ApplySettlement(o)
		if o.Settlement == nil {
			t.Fatal("settlement not applied")
		}
		if o.Settlement.CustomerTotal != 2503 {
			t.Errorf("CustomerTotal = %d, want 2503", o.Settlement.CustomerTotal)
		}
	})

	t.Run("delivery order", func(t *testing.T) {
		o := &Order{Fulfillment: FulfillmentDelivery, Total: &total}
		ApplySettlement(o)
		if o.Settlement != nil {
			t.Error("delivery orders must not carry a settlement")
		}
	})

	t.Run("unknown total", func(t *testing.T) {
		o := &Order{Fulfillment: FulfillmentPickup}
		ApplySettlement(o)
		if o.Settlement != nil {
			t.Error("settlement requires a known total")
		}
	})
}
