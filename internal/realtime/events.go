package realtime

import (
	"encoding/json"

	"github.com/syncmart/branchd/internal/reconcile"
)

// Server -> client events
const (
	EventNewOrder          = "newOrder"
	EventOrderPacked       = "orderPackedWithUpdates"
	EventOrderStatus       = "orderStatusChanged"
	EventStoreStatus       = "syncmart:status"
	EventDeliveryAvailable = "syncmart:delivery-service-available"
	EventWalletUpdated     = "walletUpdated"
	EventBranchStatus      = "branchStatusUpdated"
	EventBranchResubmit    = "branchResubmitted"
)

// Client -> server join events, one per scope kind
const (
	EventJoinBranch   = "joinBranch"
	EventJoinRoom     = "joinRoom"
	EventJoinSyncmart = "joinSyncmartRoom"
)

// Envelope is the wire frame for every event in either direction
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Handlers receives dispatched inbound events. Nil handlers are skipped.
// Order events funnel into the reconciliation engine via OrderUpdate.
type Handlers struct {
	OrderUpdate          func(*reconcile.Snapshot)
	StoreStatus          func(open bool)
	DeliveryAvailability func(available bool)
	WalletBalance        func(balance int64)
	BranchApproval       func(status string)
	BranchResubmitted    func()
}

// ScopeKind selects which room a channel joins
type ScopeKind string

const (
	ScopeBranch       ScopeKind = "branch"
	ScopeCustomer     ScopeKind = "customer"
	ScopeRegistration ScopeKind = "registration"
)

// Scope addresses exactly one realtime room. Exactly one scope is active per
// manager; opening a second requires disconnecting first.
type Scope struct {
	Kind ScopeKind
	Key  string
}

// BranchScope joins the branch room for live order traffic
func BranchScope(branchID string) Scope {
	return Scope{Kind: ScopeBranch, Key: branchID}
}

// CustomerScope joins a customer room
func CustomerScope(customerID string) Scope {
	return Scope{Kind: ScopeCustomer, Key: customerID}
}

// RegistrationScope joins the registration room keyed by phone number,
// used while a branch awaits approval
func RegistrationScope(phone string) Scope {
	return Scope{Kind: ScopeRegistration, Key: phone}
}

// joinEnvelope builds the join event for this scope
func (s Scope) joinEnvelope() (Envelope, error) {
	var event, field string
	switch s.Kind {
	case ScopeBranch:
		event, field = EventJoinBranch, "branchId"
	case ScopeCustomer:
		event, field = EventJoinRoom, "customerId"
	case ScopeRegistration:
		event, field = EventJoinSyncmart, "phone"
	}
	data, err := json.Marshal(map[string]string{field: s.Key})
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{Event: event, Data: data}, nil
}
