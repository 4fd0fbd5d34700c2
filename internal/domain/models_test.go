package domain

import (
	"testing"
)

func resolvedItem(id string, count int, price int64) OrderItem {
	return OrderItem{ID: id, Count: count, Detail: &ItemDetail{Name: id, UnitPrice: price}}
}

func TestComputedTotal(t *testing.T) {
	o := &Order{Items: []OrderItem{
		resolvedItem("a", 2, 500),
		resolvedItem("b", 1, 300),
		{ID: "c", Count: 0}, // cancelled items are skipped even if unresolved
	}}
	total, ok := o.ComputedTotal()
	if !ok {
		t.Fatal("expected computable total")
	}
	if total != 1300 {
		t.Errorf("total = %d, want 1300", total)
	}
}

func TestComputedTotal_UnresolvedItemBlocks(t *testing.T) {
	o := &Order{Items: []OrderItem{
		resolvedItem("a", 2, 500),
		{ID: "b", Count: 1},
	}}
	if _, ok := o.ComputedTotal(); ok {
		t.Error("unresolved surviving item must block total computation")
	}
}

func TestRecomputeTotal_KeepsEarlierValueWhenUnresolved(t *testing.T) {
	early := int64(700)
	o := &Order{
		Total: &early,
		Items: []OrderItem{{ID: "a", Count: 1}},
	}
	o.RecomputeTotal()
	if o.Total == nil || *o.Total != 700 {
		t.Error("total sourced before detail resolution must survive recompute")
	}
}

func TestClone_Independent(t *testing.T) {
	total := int64(100)
	o := &Order{
		ID:     "o1",
		Status: OrderStatusPlaced,
		Total:  &total,
		Items:  []OrderItem{resolvedItem("a", 2, 50)},
	}
	cp := o.Clone()
	cp.Items[0].Count = 0
	cp.Items[0].Detail.UnitPrice = 999
	*cp.Total = 1

	if o.Items[0].Count != 2 {
		t.Error("clone shares item slice with original")
	}
	if o.Items[0].Detail.UnitPrice != 50 {
		t.Error("clone shares item detail with original")
	}
	if *o.Total != 100 {
		t.Error("clone shares total with original")
	}
}

func TestAllItemsCancelled(t *testing.T) {
	o := &Order{Items: []OrderItem{{ID: "a", Count: 0}, {ID: "b", Count: 0}}}
	if !o.AllItemsCancelled() {
		t.Error("expected all items cancelled")
	}
	o.Items[1].Count = 1
	if o.AllItemsCancelled() {
		t.Error("surviving item should count")
	}
	empty := &Order{}
	if empty.AllItemsCancelled() {
		t.Error("order with no items is not all-cancelled")
	}
}
