package reconcile

import (
	"encoding/json"
	"time"

	"github.com/syncmart/branchd/internal/domain"
	"github.com/syncmart/branchd/pkg/errors"
)

// Snapshot is a full or partial order update from any producer: a REST
// response, a push event payload, or a detail fetch. Pointer fields and nil
// slices mean "not carried by this update" — the engine merges field-level,
// replace-if-present, so absent fields never erase known-good values.
type Snapshot struct {
	ID          string                  `json:"id"`
	OrderNum    *int64                  `json:"orderNum,omitempty"`
	Status      *domain.OrderStatus     `json:"status,omitempty"`
	Fulfillment *domain.FulfillmentType `json:"fulfillment,omitempty"`
	Total       *int64                  `json:"total,omitempty"`
	Items       []ItemSnapshot          `json:"items,omitempty"`
	PartnerID   *string                 `json:"partnerId,omitempty"`
	CustomerID  *string                 `json:"customerId,omitempty"`
	Changes     []string                `json:"changes,omitempty"`
	CreatedAt   *time.Time              `json:"createdAt,omitempty"`
}

// ItemSnapshot is the per-item slice of a Snapshot
type ItemSnapshot struct {
	ID        string  `json:"id"`
	Count     *int    `json:"count,omitempty"`
	Name      *string `json:"name,omitempty"`
	UnitPrice *int64  `json:"unitPrice,omitempty"`
}

// DecodeSnapshot parses a raw order payload. Shared by the gateway (REST
// bodies) and the realtime channel (push event payloads).
func DecodeSnapshot(raw []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil, &errors.ErrValidation{Message: "malformed order payload: " + err.Error()}
	}
	if err := snap.Validate(); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Validate checks the fields any update must carry to be applied at all
func (s *Snapshot) Validate() error {
	fields := map[string]string{}
	if s.ID == "" {
		fields["id"] = "required"
	}
	if s.Status != nil && !s.Status.IsValid() {
		fields["status"] = "unknown status " + string(*s.Status)
	}
	if s.Fulfillment != nil && !s.Fulfillment.IsValid() {
		fields["fulfillment"] = "unknown fulfillment " + string(*s.Fulfillment)
	}
	for _, it := range s.Items {
		if it.ID == "" {
			fields["items"] = "item missing id"
		}
		if it.Count != nil && *it.Count < 0 {
			fields["items"] = "negative item count"
		}
	}
	if len(fields) > 0 {
		return &errors.ErrValidation{Message: "invalid order payload", Fields: fields}
	}
	return nil
}

// newOrder builds a fresh Order from a snapshot for first insertion. Inserts
// need more than merges do: a status and a fulfillment type.
func (s *Snapshot) newOrder() (*domain.Order, error) {
	if s.Status == nil || s.Fulfillment == nil {
		return nil, &errors.ErrValidation{
			Message: "cannot insert order " + s.ID + ": missing status or fulfillment",
		}
	}
	o := &domain.Order{
		ID:          s.ID,
		Status:      *s.Status,
		Fulfillment: *s.Fulfillment,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	if s.CreatedAt != nil {
		o.CreatedAt = *s.CreatedAt
	}
	mergeInto(o, s)
	return o, nil
}

// mergeInto applies the snapshot's carried fields onto the order.
// Status monotonicity is checked by the engine before this runs.
func mergeInto(o *domain.Order, s *Snapshot) {
	if s.OrderNum != nil {
		o.OrderNum = *s.OrderNum
	}
	if s.Status != nil {
		o.Status = *s.Status
	}
	if s.Fulfillment != nil {
		o.Fulfillment = *s.Fulfillment
	}
	if s.Total != nil {
		o.Total = s.Total
	}
	if s.PartnerID != nil {
		o.PartnerID = s.PartnerID
	}
	if s.CustomerID != nil {
		o.CustomerID = *s.CustomerID
	}
	for _, in := range s.Items {
		mergeItem(o, in)
	}
	// Redelivered events carry the same change batch again; only a new batch
	// is recorded so re-applying a snapshot stays idempotent.
	if len(s.Changes) > 0 && !repeatsLastChanges(o.Modifications, s.Changes) {
		o.Modifications = append(o.Modifications, domain.ModificationRecord{
			Changes:    append([]string(nil), s.Changes...),
			RecordedAt: time.Now(),
		})
	}
	o.UpdatedAt = time.Now()
}

func repeatsLastChanges(records []domain.ModificationRecord, changes []string) bool {
	if len(records) == 0 {
		return false
	}
	last := records[len(records)-1].Changes
	if len(last) != len(changes) {
		return false
	}
	for i := range last {
		if last[i] != changes[i] {
			return false
		}
	}
	return true
}

// mergeItem replaces only the fields the item slice explicitly carries.
// Unknown items are appended; items absent from the slice are kept as-is.
func mergeItem(o *domain.Order, in ItemSnapshot) {
	item := o.Item(in.ID)
	if item == nil {
		o.Items = append(o.Items, domain.OrderItem{ID: in.ID})
		item = &o.Items[len(o.Items)-1]
	}
	if in.Count != nil {
		item.Count = *in.Count
	}
	if in.Name != nil || in.UnitPrice != nil {
		if item.Detail == nil {
			item.Detail = &domain.ItemDetail{}
		}
		if in.Name != nil {
			item.Detail.Name = *in.Name
		}
		if in.UnitPrice != nil {
			item.Detail.UnitPrice = *in.UnitPrice
		}
	}
}
