package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/syncmart/branchd/internal/reconcile"
)

// LoginResult is the branch login response
type LoginResult struct {
	Token    string `json:"token"`
	BranchID string `json:"branchId"`
	Approved bool   `json:"approved"`
}

// Login exchanges branch credentials for a bearer token. The only call that
// does not attach the stored credential, so a 401 here surfaces to the
// caller instead of clearing state.
func (c *Client) Login(ctx context.Context, phone, password string) (*LoginResult, error) {
	body, err := c.do(ctx, http.MethodPost, "/branch/login", map[string]string{
		"phone":    phone,
		"password": password,
	}, "login", false)
	if err != nil {
		return nil, err
	}
	var result LoginResult
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}
	return &result, nil
}

type listResponse struct {
	Data []json.RawMessage `json:"data"`
}

// ListOrders fetches the full order listing for a branch
func (c *Client) ListOrders(ctx context.Context, branchID string) ([]*reconcile.Snapshot, error) {
	path := "/orders?branchId=" + url.QueryEscape(branchID)
	body, err := c.do(ctx, http.MethodGet, path, nil, "list orders", true)
	if err != nil {
		return nil, err
	}
	var list listResponse
	if err := json.Unmarshal(body, &list); err != nil {
		return nil, fmt.Errorf("failed to decode order listing: %w", err)
	}
	snaps := make([]*reconcile.Snapshot, 0, len(list.Data))
	for _, raw := range list.Data {
		snap, err := reconcile.DecodeSnapshot(raw)
		if err != nil {
			c.logger.Warn("skipping undecodable order in listing")
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, nil
}

// OrderDetail fetches the resolved payload for one order. Satisfies
// reconcile.DetailFetcher.
func (c *Client) OrderDetail(ctx context.Context, orderID string) (*reconcile.Snapshot, error) {
	body, err := c.do(ctx, http.MethodGet, "/orders/"+url.PathEscape(orderID), nil, "fetch order detail", true)
	if err != nil {
		return nil, err
	}
	return reconcile.DecodeSnapshot(body)
}

// orderCall issues a mutation and decodes the returned order snapshot
func (c *Client) orderCall(ctx context.Context, path string, payload interface{}, op string) (*reconcile.Snapshot, error) {
	body, err := c.do(ctx, http.MethodPatch, path, payload, op, true)
	if err != nil {
		return nil, err
	}
	return reconcile.DecodeSnapshot(body)
}

// Accept confirms a placed order
func (c *Client) Accept(ctx context.Context, orderID string) (*reconcile.Snapshot, error) {
	return c.orderCall(ctx, "/orders/"+url.PathEscape(orderID)+"/accept", nil, "accept order")
}

// Cancel cancels an order with a reason
func (c *Client) Cancel(ctx context.Context, orderID, reason string) (*reconcile.Snapshot, error) {
	return c.orderCall(ctx, "/orders/"+url.PathEscape(orderID)+"/cancel",
		map[string]string{"reason": reason}, "cancel order")
}

// CancelItem zeroes one item on an open order
func (c *Client) CancelItem(ctx context.Context, orderID, itemID string) (*reconcile.Snapshot, error) {
	path := "/orders/" + url.PathEscape(orderID) + "/cancel-item/" + url.PathEscape(itemID)
	return c.orderCall(ctx, path, nil, "cancel order item")
}

// ItemCount is one modified line in a modify request
type ItemCount struct {
	Item  string `json:"item"`
	Count int    `json:"count"`
}

// Modify submits the operator's item-count reductions
func (c *Client) Modify(ctx context.Context, orderID string, items []ItemCount) (*reconcile.Snapshot, error) {
	return c.orderCall(ctx, "/orders/"+url.PathEscape(orderID)+"/modify",
		map[string]interface{}{"modifiedItems": items}, "modify order")
}

// Pack marks an order packed
func (c *Client) Pack(ctx context.Context, orderID string) (*reconcile.Snapshot, error) {
	return c.orderCall(ctx, "/orders/"+url.PathEscape(orderID)+"/pack", nil, "pack order")
}

// Assign hands a packed delivery order to a delivery partner
func (c *Client) Assign(ctx context.Context, orderID, partnerID string) (*reconcile.Snapshot, error) {
	path := "/orders/" + url.PathEscape(orderID) + "/assign/" + url.PathEscape(partnerID)
	return c.orderCall(ctx, path, nil, "assign order")
}

// CollectCash settles an order and marks it delivered
func (c *Client) CollectCash(ctx context.Context, orderID string) (*reconcile.Snapshot, error) {
	return c.orderCall(ctx, "/orders/"+url.PathEscape(orderID)+"/collect-cash", nil, "collect cash")
}
