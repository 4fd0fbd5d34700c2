// Package session orchestrates one operator session: it binds the remote
// gateway, the reconciliation engine and the realtime channel, and exposes
// the operator intents. Every intent validates the transition locally first,
// so illegal operations fail fast without a network round trip, then lets
// the server's returned snapshot drive the authoritative state change.
package session

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/syncmart/branchd/internal/domain"
	"github.com/syncmart/branchd/internal/gateway"
	"github.com/syncmart/branchd/internal/kvstore"
	"github.com/syncmart/branchd/internal/lifecycle"
	"github.com/syncmart/branchd/internal/realtime"
	"github.com/syncmart/branchd/internal/reconcile"
	"github.com/syncmart/branchd/pkg/errors"
)

// ItemEdit is one operator item-count reduction in a modify intent
type ItemEdit struct {
	ItemID string
	Count  int
}

// Session is the per-branch operator session
type Session struct {
	gw      *gateway.Client
	engine  *reconcile.Engine
	channel *realtime.Manager
	kv      *kvstore.Store
	logger  *zap.Logger

	mu              sync.Mutex
	branchID        string
	storeOpen       bool
	deliveryEnabled bool
}

// New creates a session for the given branch. The branch id may be empty
// until Login stores one.
func New(branchID string, gw *gateway.Client, engine *reconcile.Engine, channel *realtime.Manager, kv *kvstore.Store, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		gw:              gw,
		engine:          engine,
		channel:         channel,
		kv:              kv,
		logger:          logger,
		branchID:        branchID,
		storeOpen:       true,
		deliveryEnabled: true,
	}
}

// AttachChannel wires the realtime manager after construction. The manager
// needs the session's handlers to exist first, so the two are bound in two
// steps at startup.
func (s *Session) AttachChannel(channel *realtime.Manager) {
	s.channel = channel
}

// Handlers wires inbound realtime events into the engine and the kv cache
func (s *Session) Handlers() realtime.Handlers {
	return realtime.Handlers{
		OrderUpdate: func(snap *reconcile.Snapshot) {
			// Stale and invalid payloads are logged and counted by the engine
			s.engine.ApplyPushEvent(snap)
		},
		StoreStatus: func(open bool) {
			s.mu.Lock()
			s.storeOpen = open
			s.mu.Unlock()
		},
		DeliveryAvailability: func(available bool) {
			s.mu.Lock()
			s.deliveryEnabled = available
			s.mu.Unlock()
			s.logger.Info("delivery availability changed", zap.Bool("available", available))
		},
		WalletBalance: func(balance int64) {
			if err := s.kv.SetInt64(kvstore.KeyWalletBalance, balance); err != nil {
				s.logger.Error("failed to cache wallet balance", zap.Error(err))
			}
		},
		BranchApproval: func(status string) {
			if err := s.kv.SetBool(kvstore.KeyApproved, status == "approved"); err != nil {
				s.logger.Error("failed to persist approval status", zap.Error(err))
			}
			s.logger.Info("branch approval status updated", zap.String("status", status))
		},
		BranchResubmitted: func() {
			s.logger.Info("branch registration resubmitted")
		},
	}
}

// Start joins the branch room and loads the initial full order listing
func (s *Session) Start(ctx context.Context) error {
	if err := s.channel.Connect(ctx, realtime.BranchScope(s.BranchID())); err != nil {
		return err
	}
	return s.Refresh(ctx)
}

// Stop releases the realtime connection slot
func (s *Session) Stop() {
	if s.channel != nil {
		s.channel.Disconnect()
	}
}

// Refresh replaces the local collection with a full server listing. This is
// the only point where completed orders drop out of the collection.
func (s *Session) Refresh(ctx context.Context) error {
	snaps, err := s.gw.ListOrders(ctx, s.BranchID())
	if err != nil {
		return err
	}
	s.engine.ReplaceAll(snaps)
	s.logger.Info("order collection refreshed", zap.Int("orders", len(snaps)))
	return nil
}

// Login exchanges branch credentials for a bearer token and persists the
// session identity
func (s *Session) Login(ctx context.Context, phone, password string) error {
	result, err := s.gw.Login(ctx, phone, password)
	if err != nil {
		return err
	}
	if err := s.kv.Set(kvstore.KeyAuthToken, result.Token); err != nil {
		return err
	}
	if err := s.kv.Set(kvstore.KeyBranchID, result.BranchID); err != nil {
		return err
	}
	if err := s.kv.SetBool(kvstore.KeyApproved, result.Approved); err != nil {
		return err
	}
	s.mu.Lock()
	s.branchID = result.BranchID
	s.mu.Unlock()
	s.logger.Info("branch logged in", zap.String("branch_id", result.BranchID))
	return nil
}

// BranchID returns the active branch identifier
func (s *Session) BranchID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.branchID
}

// StoreOpen reports the store open/closed toggle
func (s *Session) StoreOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.storeOpen
}

// DeliveryEnabled reports whether delivery assignment is currently allowed
func (s *Session) DeliveryEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deliveryEnabled
}

// WalletBalance returns the cached settlement wallet balance
func (s *Session) WalletBalance() (int64, error) {
	return s.kv.GetInt64(kvstore.KeyWalletBalance)
}

// SetStoreOpen toggles the store and notifies the marketplace
func (s *Session) SetStoreOpen(open bool) error {
	if err := s.channel.Emit(realtime.EventStoreStatus, open); err != nil {
		return err
	}
	s.mu.Lock()
	s.storeOpen = open
	s.mu.Unlock()
	return nil
}

// SetDeliveryAvailable toggles delivery availability and notifies the
// marketplace
func (s *Session) SetDeliveryAvailable(available bool) error {
	if err := s.channel.Emit(realtime.EventDeliveryAvailable, available); err != nil {
		return err
	}
	s.mu.Lock()
	s.deliveryEnabled = available
	s.mu.Unlock()
	return nil
}

// Order returns the reconciled view of one order
func (s *Session) Order(orderID string) (*domain.Order, error) {
	order, ok := s.engine.Get(orderID)
	if !ok {
		return nil, &errors.ErrNotFound{Resource: "order", ID: orderID}
	}
	return order, nil
}

// Orders lists reconciled orders, optionally filtered by status
func (s *Session) Orders(statuses ...domain.OrderStatus) []*domain.Order {
	return s.engine.List(statuses...)
}

// validate fetches the local order and dry-runs the transition on a clone.
// Violations surface before any network call and never touch local state.
func (s *Session) validate(orderID string, apply func(*domain.Order) error) error {
	order, ok := s.engine.Get(orderID)
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: orderID}
	}
	return apply(order)
}

// Accept confirms a placed order
func (s *Session) Accept(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := s.validate(orderID, lifecycle.Accept); err != nil {
		return nil, err
	}
	snap, err := s.gw.Accept(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyRestSnapshot(snap)
}

// ensureAccepted runs the implicit accept leg of the compound pack/modify
// operations. If it fails, the outer operation must not proceed.
func (s *Session) ensureAccepted(ctx context.Context, orderID string) error {
	order, ok := s.engine.Get(orderID)
	if !ok {
		return &errors.ErrNotFound{Resource: "order", ID: orderID}
	}
	if order.Status != domain.OrderStatusPlaced {
		return nil
	}
	snap, err := s.gw.Accept(ctx, orderID)
	if err != nil {
		return err
	}
	_, err = s.engine.ApplyRestSnapshot(snap)
	return err
}

// Pack marks an order packed, implicitly accepting it first when needed.
// Pickup orders get their settlement fields computed when the packed status
// lands in the engine.
func (s *Session) Pack(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := s.ensureAccepted(ctx, orderID); err != nil {
		return nil, err
	}
	if err := s.validate(orderID, lifecycle.Pack); err != nil {
		return nil, err
	}
	snap, err := s.gw.Pack(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyRestSnapshot(snap)
}

// Modify submits item-count reductions. The edits apply optimistically and
// roll back in full if the server rejects the call.
func (s *Session) Modify(ctx context.Context, orderID string, edits []ItemEdit) (*domain.Order, error) {
	if err := s.ensureAccepted(ctx, orderID); err != nil {
		return nil, err
	}
	for _, edit := range edits {
		if err := s.engine.ApplyOptimisticEdit(orderID, edit.ItemID, edit.Count); err != nil {
			s.engine.RollbackOptimisticEdit(orderID)
			return nil, err
		}
	}

	items := make([]gateway.ItemCount, len(edits))
	for i, edit := range edits {
		items[i] = gateway.ItemCount{Item: edit.ItemID, Count: edit.Count}
	}
	snap, err := s.gw.Modify(ctx, orderID, items)
	if err != nil {
		s.engine.RollbackOptimisticEdit(orderID)
		return nil, err
	}
	return s.engine.ApplyRestSnapshot(snap)
}

// Cancel cancels an order with a reason
func (s *Session) Cancel(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	if err := s.validate(orderID, func(o *domain.Order) error {
		return lifecycle.Cancel(o, reason)
	}); err != nil {
		return nil, err
	}
	snap, err := s.gw.Cancel(ctx, orderID, reason)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyRestSnapshot(snap)
}

// CancelItem zeroes one item on an open order
func (s *Session) CancelItem(ctx context.Context, orderID, itemID string) (*domain.Order, error) {
	if err := s.validate(orderID, func(o *domain.Order) error {
		return lifecycle.CancelItem(o, itemID)
	}); err != nil {
		return nil, err
	}
	snap, err := s.gw.CancelItem(ctx, orderID, itemID)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyRestSnapshot(snap)
}

// Assign hands a packed delivery order to a delivery partner. Refused while
// the delivery service is toggled off.
func (s *Session) Assign(ctx context.Context, orderID, partnerID string) (*domain.Order, error) {
	if err := s.validate(orderID, func(o *domain.Order) error {
		return lifecycle.Assign(o, partnerID)
	}); err != nil {
		return nil, err
	}
	if !s.DeliveryEnabled() {
		order, _ := s.engine.Get(orderID)
		from := ""
		if order != nil {
			from = string(order.Status)
		}
		return nil, &errors.ErrStateViolation{
			OrderID: orderID,
			From:    from,
			Event:   "assign",
			Reason:  "delivery service unavailable",
		}
	}
	snap, err := s.gw.Assign(ctx, orderID, partnerID)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyRestSnapshot(snap)
}

// CollectCash settles an order and marks it delivered
func (s *Session) CollectCash(ctx context.Context, orderID string) (*domain.Order, error) {
	if err := s.validate(orderID, lifecycle.CollectCash); err != nil {
		return nil, err
	}
	snap, err := s.gw.CollectCash(ctx, orderID)
	if err != nil {
		return nil, err
	}
	return s.engine.ApplyRestSnapshot(snap)
}
