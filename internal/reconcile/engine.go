// Package reconcile maintains the single authoritative in-memory order
// collection, fed by REST snapshots, realtime push events and local
// optimistic edits. Every mutation funnels through the engine so no caller
// can bypass the merge and monotonicity rules.
package reconcile

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/syncmart/branchd/internal/domain"
	"github.com/syncmart/branchd/pkg/errors"
)

// DetailFetcher resolves the full order payload for a partially-known order
type DetailFetcher interface {
	OrderDetail(ctx context.Context, orderID string) (*Snapshot, error)
}

// Engine owns the reconciled order collection. Orders are never deleted on
// merge; cancelled and delivered orders stay until the next full refresh and
// views filter by status.
type Engine struct {
	mu       sync.Mutex
	orders   map[string]*domain.Order
	overlays map[string]map[string]int // orderID -> itemID -> provisional count

	ctx     context.Context
	fetcher DetailFetcher
	detail  singleflight.Group
	logger  *zap.Logger
	metrics *Metrics
}

// New creates a reconciliation engine. The context bounds the lifetime of
// detail fetches; cancelling it drops in-flight resolution on shutdown.
func New(ctx context.Context, fetcher DetailFetcher, logger *zap.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	return &Engine{
		orders:   make(map[string]*domain.Order),
		overlays: make(map[string]map[string]int),
		ctx:      ctx,
		fetcher:  fetcher,
		logger:   logger,
		metrics:  metrics,
	}
}

// ApplyRestSnapshot merges a server response for one order. Authoritative
// for the fields it carries; clears any pending optimistic overlay.
func (e *Engine) ApplyRestSnapshot(snap *Snapshot) (*domain.Order, error) {
	return e.apply(snap, false)
}

// ApplyPushEvent merges a realtime event payload. Unknown orders are
// inserted; known orders merge field-level like a REST snapshot.
func (e *Engine) ApplyPushEvent(snap *Snapshot) (*domain.Order, error) {
	return e.apply(snap, false)
}

func (e *Engine) apply(snap *Snapshot, fromDetail bool) (*domain.Order, error) {
	if snap == nil {
		e.metrics.ValidationDrops.Inc()
		return nil, &errors.ErrValidation{Message: "nil order payload"}
	}
	if err := snap.Validate(); err != nil {
		e.metrics.ValidationDrops.Inc()
		e.logger.Warn("dropping invalid order payload", zap.String("order_id", snap.ID), zap.Error(err))
		return nil, err
	}

	e.mu.Lock()
	order, known := e.orders[snap.ID]
	if !known {
		fresh, err := snap.newOrder()
		if err != nil {
			e.mu.Unlock()
			e.metrics.ValidationDrops.Inc()
			e.logger.Warn("dropping insert with incomplete payload", zap.String("order_id", snap.ID), zap.Error(err))
			return nil, err
		}
		e.orders[snap.ID] = fresh
		order = fresh
	} else {
		if snap.Status != nil {
			if stale := staleStatus(snap.ID, order.Status, *snap.Status); stale != nil {
				e.mu.Unlock()
				e.metrics.StaleDiscards.Inc()
				e.logger.Warn("discarding stale order update",
					zap.String("order_id", snap.ID),
					zap.String("local_status", string(order.Status)),
					zap.String("claimed_status", string(*snap.Status)),
				)
				return nil, stale
			}
		}
		mergeInto(order, snap)
	}

	// A confirmed update supersedes any pending optimistic edit
	delete(e.overlays, snap.ID)

	order.RecomputeTotal()
	if order.Status == domain.OrderStatusPacked && order.Settlement == nil {
		domain.ApplySettlement(order)
	}

	needsDetail := order.NeedsDetail() && !fromDetail && e.fetcher != nil
	view := order.Clone()
	e.mu.Unlock()

	e.metrics.MergesApplied.Inc()
	if needsDetail {
		go e.ResolveDetail(view.ID)
	}
	return view, nil
}

// staleStatus reports whether applying the claimed status would move the
// order backward along the lifecycle lattice
func staleStatus(orderID string, current, claimed domain.OrderStatus) error {
	if claimed == current {
		return nil
	}
	if current.IsTerminal() || claimed.Rank() < current.Rank() {
		return &errors.ErrStaleData{
			OrderID: orderID,
			Current: string(current),
			Claimed: string(claimed),
		}
	}
	return nil
}

// ReplaceAll rebuilds the collection from a full listing. Orders absent from
// the listing (delivered/cancelled history) drop out here and only here.
func (e *Engine) ReplaceAll(snaps []*Snapshot) {
	fresh := make(map[string]*domain.Order, len(snaps))
	var needy []string
	for _, snap := range snaps {
		if snap == nil {
			continue
		}
		if err := snap.Validate(); err != nil {
			e.metrics.ValidationDrops.Inc()
			e.logger.Warn("skipping invalid order in listing", zap.String("order_id", snap.ID), zap.Error(err))
			continue
		}
		order, err := snap.newOrder()
		if err != nil {
			e.metrics.ValidationDrops.Inc()
			e.logger.Warn("skipping incomplete order in listing", zap.String("order_id", snap.ID), zap.Error(err))
			continue
		}
		order.RecomputeTotal()
		if order.Status == domain.OrderStatusPacked {
			domain.ApplySettlement(order)
		}
		fresh[order.ID] = order
		if order.NeedsDetail() {
			needy = append(needy, order.ID)
		}
	}

	e.mu.Lock()
	e.orders = fresh
	e.overlays = make(map[string]map[string]int)
	e.mu.Unlock()

	if e.fetcher != nil {
		for _, id := range needy {
			go e.ResolveDetail(id)
		}
	}
}

// ResolveDetail runs the detail fetch for one order and merges the result.
// Concurrent calls for the same order share a single in-flight fetch.
func (e *Engine) ResolveDetail(orderID string) {
	if e.fetcher == nil {
		return
	}
	_, err, _ := e.detail.Do(orderID, func() (interface{}, error) {
		e.metrics.DetailFetches.Inc()
		snap, err := e.fetcher.OrderDetail(e.ctx, orderID)
		if err != nil {
			return nil, err
		}
		return e.apply(snap, true)
	})
	if err != nil {
		e.logger.Warn("order detail fetch failed", zap.String("order_id", orderID), zap.Error(err))
	}
}

// ApplyOptimisticEdit records a provisional item-count change on top of the
// last confirmed snapshot. Counts may only shrink: the operator can remove
// quantity locally, never add beyond what was ordered.
func (e *Engine) ApplyOptimisticEdit(orderID, itemID string, count int) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	order, ok := e.orders[orderID]
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: orderID}
	}
	if order.Status.IsTerminal() {
		return &errors.ErrStateViolation{
			OrderID: orderID,
			From:    string(order.Status),
			Event:   "modify",
			Reason:  "order is closed",
		}
	}
	item := order.Item(itemID)
	if item == nil {
		return &errors.ErrNotFound{Resource: "order item", ID: itemID}
	}
	if count < 0 || count > item.Count {
		return &errors.ErrValidation{
			Message: "item count must stay within the confirmed quantity",
			Fields:  map[string]string{"count": "out of range"},
		}
	}

	overlay, ok := e.overlays[orderID]
	if !ok {
		overlay = make(map[string]int)
		e.overlays[orderID] = overlay
	}
	overlay[itemID] = count
	return nil
}

// RollbackOptimisticEdit drops every provisional edit for the order,
// restoring the last confirmed snapshot. Called when the corresponding
// modify call fails; an overlay is never left half-applied.
func (e *Engine) RollbackOptimisticEdit(orderID string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.overlays, orderID)
}

// Get returns the reconciled view of one order, with any pending optimistic
// edits applied on top of the confirmed snapshot
func (e *Engine) Get(orderID string) (*domain.Order, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return nil, false
	}
	return e.viewLocked(order), true
}

// List returns reconciled views of every order, optionally filtered by
// status, sorted by order number
func (e *Engine) List(statuses ...domain.OrderStatus) []*domain.Order {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*domain.Order, 0, len(e.orders))
	for _, order := range e.orders {
		if len(statuses) > 0 && !statusIn(order.Status, statuses) {
			continue
		}
		out = append(out, e.viewLocked(order))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderNum < out[j].OrderNum })
	return out
}

func statusIn(s domain.OrderStatus, set []domain.OrderStatus) bool {
	for _, v := range set {
		if s == v {
			return true
		}
	}
	return false
}

// viewLocked clones the confirmed order and applies the optimistic overlay.
// Caller must hold e.mu.
func (e *Engine) viewLocked(order *domain.Order) *domain.Order {
	view := order.Clone()
	overlay, ok := e.overlays[order.ID]
	if !ok {
		return view
	}
	for itemID, count := range overlay {
		if item := view.Item(itemID); item != nil {
			item.Count = count
		}
	}
	view.RecomputeTotal()
	return view
}
