package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncmart/branchd/internal/domain"
	"github.com/syncmart/branchd/internal/session"
	"github.com/syncmart/branchd/pkg/errors"
)

// OrderResponse represents the order response
type OrderResponse struct {
	ID            string              `json:"id"`
	OrderNum      int64               `json:"order_num"`
	Status        domain.OrderStatus  `json:"status"`
	Fulfillment   string              `json:"fulfillment"`
	Items         []OrderItemResponse `json:"items"`
	Total         *int64              `json:"total,omitempty"`
	PartnerID     *string             `json:"partner_id,omitempty"`
	CancelReason  *string             `json:"cancel_reason,omitempty"`
	Modifications [][]string          `json:"modifications,omitempty"`
	Settlement    *SettlementResponse `json:"settlement,omitempty"`
	CreatedAt     string              `json:"created_at"`
	UpdatedAt     string              `json:"updated_at"`
}

type OrderItemResponse struct {
	ID        string  `json:"id"`
	Count     int     `json:"count"`
	Name      *string `json:"name,omitempty"`
	UnitPrice *int64  `json:"unit_price,omitempty"`
	Resolved  bool    `json:"resolved"`
}

type SettlementResponse struct {
	CustomerCharge int64 `json:"customer_platform_charge"`
	BranchCharge   int64 `json:"branch_platform_charge"`
	CustomerTotal  int64 `json:"final_customer_total"`
	BranchReceives int64 `json:"branch_receives"`
}

func toOrderResponse(o *domain.Order) OrderResponse {
	resp := OrderResponse{
		ID:           o.ID,
		OrderNum:     o.OrderNum,
		Status:       o.Status,
		Fulfillment:  string(o.Fulfillment),
		Total:        o.Total,
		PartnerID:    o.PartnerID,
		CancelReason: o.CancelReason,
		Items:        make([]OrderItemResponse, len(o.Items)),
		CreatedAt:    o.CreatedAt.Format("2006-01-02T15:04:05Z07:00"),
		UpdatedAt:    o.UpdatedAt.Format("2006-01-02T15:04:05Z07:00"),
	}
	for i, it := range o.Items {
		item := OrderItemResponse{ID: it.ID, Count: it.Count, Resolved: it.Resolved()}
		if it.Detail != nil {
			name := it.Detail.Name
			price := it.Detail.UnitPrice
			item.Name = &name
			item.UnitPrice = &price
		}
		resp.Items[i] = item
	}
	for _, m := range o.Modifications {
		resp.Modifications = append(resp.Modifications, m.Changes)
	}
	if o.Settlement != nil {
		resp.Settlement = &SettlementResponse{
			CustomerCharge: o.Settlement.CustomerCharge,
			BranchCharge:   o.Settlement.BranchCharge,
			CustomerTotal:  o.Settlement.CustomerTotal,
			BranchReceives: o.Settlement.BranchReceives,
		}
	}
	return resp
}

// respondError maps the core error taxonomy onto HTTP statuses for the UI
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	var (
		notFound     *errors.ErrNotFound
		violation    *errors.ErrStateViolation
		validation   *errors.ErrValidation
		unauthorized *errors.ErrUnauthorized
		network      *errors.ErrNetwork
		upstream     *errors.ErrRequestFailed
	)
	switch {
	case stderrors.As(err, &notFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case stderrors.As(err, &violation):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case stderrors.As(err, &validation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case stderrors.As(err, &unauthorized):
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
	case stderrors.As(err, &network), stderrors.As(err, &upstream):
		logger.Warn("upstream call failed", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		logger.Error("unexpected error", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// OrderHandler serves order views and operator intents
type OrderHandler struct {
	sess   *session.Session
	logger *zap.Logger
}

// NewOrderHandler creates an order handler
func NewOrderHandler(sess *session.Session, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{sess: sess, logger: logger}
}

// List returns the reconciled orders, optionally filtered by ?status=
func (h *OrderHandler) List(c *gin.Context) {
	var statuses []domain.OrderStatus
	if raw := c.Query("status"); raw != "" {
		status := domain.OrderStatus(raw)
		if !status.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown status " + raw})
			return
		}
		statuses = append(statuses, status)
	}
	orders := h.sess.Orders(statuses...)
	out := make([]OrderResponse, len(orders))
	for i, o := range orders {
		out[i] = toOrderResponse(o)
	}
	c.JSON(http.StatusOK, gin.H{"data": out})
}

// Get returns one reconciled order
func (h *OrderHandler) Get(c *gin.Context) {
	order, err := h.sess.Order(c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}

// Accept confirms a placed order
func (h *OrderHandler) Accept(c *gin.Context) {
	h.intent(c, func() (*domain.Order, error) {
		return h.sess.Accept(c.Request.Context(), c.Param("id"))
	})
}

// Cancel cancels an order with a reason
func (h *OrderHandler) Cancel(c *gin.Context) {
	var req struct {
		Reason string `json:"reason"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	h.intent(c, func() (*domain.Order, error) {
		return h.sess.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
	})
}

// Pack marks an order packed
func (h *OrderHandler) Pack(c *gin.Context) {
	h.intent(c, func() (*domain.Order, error) {
		return h.sess.Pack(c.Request.Context(), c.Param("id"))
	})
}

// Modify submits item-count reductions
func (h *OrderHandler) Modify(c *gin.Context) {
	var req struct {
		ModifiedItems []struct {
			Item  string `json:"item"`
			Count int    `json:"count"`
		} `json:"modifiedItems"`
	}
	if err := c.ShouldBindJSON(&req); err != nil || len(req.ModifiedItems) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "modifiedItems is required"})
		return
	}
	edits := make([]session.ItemEdit, len(req.ModifiedItems))
	for i, it := range req.ModifiedItems {
		edits[i] = session.ItemEdit{ItemID: it.Item, Count: it.Count}
	}
	h.intent(c, func() (*domain.Order, error) {
		return h.sess.Modify(c.Request.Context(), c.Param("id"), edits)
	})
}

// Assign hands a packed delivery order to a partner
func (h *OrderHandler) Assign(c *gin.Context) {
	h.intent(c, func() (*domain.Order, error) {
		return h.sess.Assign(c.Request.Context(), c.Param("id"), c.Param("partnerId"))
	})
}

// CollectCash settles an order
func (h *OrderHandler) CollectCash(c *gin.Context) {
	h.intent(c, func() (*domain.Order, error) {
		return h.sess.CollectCash(c.Request.Context(), c.Param("id"))
	})
}

// CancelItem zeroes one item on an open order
func (h *OrderHandler) CancelItem(c *gin.Context) {
	h.intent(c, func() (*domain.Order, error) {
		return h.sess.CancelItem(c.Request.Context(), c.Param("id"), c.Param("itemId"))
	})
}

func (h *OrderHandler) intent(c *gin.Context, run func() (*domain.Order, error)) {
	order, err := run()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, toOrderResponse(order))
}
