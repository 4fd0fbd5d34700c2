// Package realtime owns the persistent push channel to the marketplace. A
// Manager holds at most one live connection against one scope; reconnection
// uses exponential backoff with jitter and re-joins the scope's room.
package realtime

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/syncmart/branchd/internal/reconcile"
	"github.com/syncmart/branchd/pkg/errors"
)

// ErrAlreadyConnected is returned when Connect is called while a scope is
// active. Callers must Disconnect before opening a different scope.
var ErrAlreadyConnected = &errors.ErrValidation{Message: "realtime channel already connected"}

// ErrNotConnected is returned when emitting without a live connection
var ErrNotConnected = &errors.ErrValidation{Message: "realtime channel not connected"}

// Config tunes the channel manager
type Config struct {
	URL        string
	MinBackoff time.Duration // reconnect backoff floor, default 1s
	MaxBackoff time.Duration // reconnect backoff cap, default 30s
	Reconnects prometheus.Counter
}

// Manager is the per-session channel manager
type Manager struct {
	cfg      Config
	handlers Handlers
	logger   *zap.Logger
	dialer   *websocket.Dialer

	mu      sync.Mutex
	writeMu sync.Mutex
	conn    *websocket.Conn
	scope   *Scope
	cancel  context.CancelFunc
	done    chan struct{}
}

// NewManager creates a disconnected channel manager
func NewManager(cfg Config, handlers Handlers, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MinBackoff <= 0 {
		cfg.MinBackoff = time.Second
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = 30 * time.Second
	}
	return &Manager{
		cfg:      cfg,
		handlers: handlers,
		logger:   logger,
		dialer:   websocket.DefaultDialer,
	}
}

// Connect dials the channel, joins the scope's room and starts the read
// loop. Returns ErrAlreadyConnected while a scope is active.
func (m *Manager) Connect(ctx context.Context, scope Scope) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scope != nil {
		return ErrAlreadyConnected
	}

	conn, _, err := m.dialer.DialContext(ctx, m.cfg.URL, nil)
	if err != nil {
		return &errors.ErrNetwork{Op: "connect realtime channel", Err: err}
	}
	if err := m.join(conn, scope); err != nil {
		conn.Close()
		return err
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	m.conn = conn
	m.scope = &scope
	m.cancel = cancel
	m.done = done

	m.logger.Info("realtime channel connected",
		zap.String("scope", string(scope.Kind)),
		zap.String("key", scope.Key),
	)
	go m.run(runCtx, scope, done)
	return nil
}

// Disconnect closes the connection and releases the scope slot so a new
// scope can be opened
func (m *Manager) Disconnect() {
	m.mu.Lock()
	if m.scope == nil {
		m.mu.Unlock()
		return
	}
	cancel, conn, done := m.cancel, m.conn, m.done
	m.scope = nil
	m.conn = nil
	m.cancel = nil
	m.done = nil
	m.mu.Unlock()

	cancel()
	if conn != nil {
		conn.Close()
	}
	<-done
	m.logger.Info("realtime channel disconnected")
}

// Emit sends an event to the server on the live connection
func (m *Manager) Emit(event string, data interface{}) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return &errors.ErrValidation{Message: "unencodable event payload: " + err.Error()}
	}
	return m.writeEnvelope(conn, Envelope{Event: event, Data: raw})
}

func (m *Manager) writeEnvelope(conn *websocket.Conn, env Envelope) error {
	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	if err := conn.WriteJSON(env); err != nil {
		return &errors.ErrNetwork{Op: "emit " + env.Event, Err: err}
	}
	return nil
}

func (m *Manager) join(conn *websocket.Conn, scope Scope) error {
	env, err := scope.joinEnvelope()
	if err != nil {
		return &errors.ErrValidation{Message: "unencodable join payload: " + err.Error()}
	}
	return m.writeEnvelope(conn, env)
}

// run reads events until the context ends, redialing with backoff on
// connection errors
func (m *Manager) run(ctx context.Context, scope Scope, done chan struct{}) {
	defer close(done)
	for {
		err := m.readLoop(ctx)
		if ctx.Err() != nil {
			return
		}
		m.logger.Warn("realtime channel dropped", zap.Error(err))
		if !m.reconnect(ctx, scope) {
			return
		}
	}
}

func (m *Manager) readLoop(ctx context.Context) error {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()
	if conn == nil {
		return ErrNotConnected
	}
	for {
		var env Envelope
		if err := conn.ReadJSON(&env); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		m.dispatch(env)
	}
}

// reconnect redials with exponential backoff and jitter, re-joining the
// scope's room on success. Returns false when the context ends first.
func (m *Manager) reconnect(ctx context.Context, scope Scope) bool {
	backoff := m.cfg.MinBackoff
	for {
		wait := backoff/2 + time.Duration(rand.Int63n(int64(backoff/2)+1))
		select {
		case <-ctx.Done():
			return false
		case <-time.After(wait):
		}

		conn, _, err := m.dialer.DialContext(ctx, m.cfg.URL, nil)
		if err == nil {
			err = m.join(conn, scope)
			if err != nil {
				conn.Close()
			}
		}
		if err == nil {
			m.mu.Lock()
			// Disconnect may have released the scope between the redial and
			// here; a connection published now would never be closed.
			if m.scope == nil || ctx.Err() != nil {
				m.mu.Unlock()
				conn.Close()
				return false
			}
			m.conn = conn
			m.mu.Unlock()
			if m.cfg.Reconnects != nil {
				m.cfg.Reconnects.Inc()
			}
			m.logger.Info("realtime channel reconnected", zap.String("scope", string(scope.Kind)))
			return true
		}

		m.logger.Warn("realtime reconnect failed", zap.Error(err), zap.Duration("backoff", backoff))
		backoff *= 2
		if backoff > m.cfg.MaxBackoff {
			backoff = m.cfg.MaxBackoff
		}
	}
}

// dispatch routes one inbound event to its handler
func (m *Manager) dispatch(env Envelope) {
	switch env.Event {
	case EventNewOrder, EventOrderPacked, EventOrderStatus:
		if m.handlers.OrderUpdate == nil {
			return
		}
		snap, err := reconcile.DecodeSnapshot(env.Data)
		if err != nil {
			m.logger.Warn("dropping undecodable order event",
				zap.String("event", env.Event), zap.Error(err))
			return
		}
		m.handlers.OrderUpdate(snap)
	case EventStoreStatus:
		m.dispatchBool(env, m.handlers.StoreStatus)
	case EventDeliveryAvailable:
		m.dispatchBool(env, m.handlers.DeliveryAvailability)
	case EventWalletUpdated:
		if m.handlers.WalletBalance == nil {
			return
		}
		var balance int64
		if err := json.Unmarshal(env.Data, &balance); err != nil {
			m.logger.Warn("dropping undecodable wallet event", zap.Error(err))
			return
		}
		m.handlers.WalletBalance(balance)
	case EventBranchStatus:
		if m.handlers.BranchApproval == nil {
			return
		}
		var payload struct {
			Status string `json:"status"`
		}
		if err := json.Unmarshal(env.Data, &payload); err != nil {
			m.logger.Warn("dropping undecodable branch status event", zap.Error(err))
			return
		}
		m.handlers.BranchApproval(payload.Status)
	case EventBranchResubmit:
		if m.handlers.BranchResubmitted != nil {
			m.handlers.BranchResubmitted()
		}
	default:
		m.logger.Debug("ignoring unknown realtime event", zap.String("event", env.Event))
	}
}

func (m *Manager) dispatchBool(env Envelope, handler func(bool)) {
	if handler == nil {
		return
	}
	var value bool
	if err := json.Unmarshal(env.Data, &value); err != nil {
		m.logger.Warn("dropping undecodable boolean event",
			zap.String("event", env.Event), zap.Error(err))
		return
	}
	handler(value)
}
