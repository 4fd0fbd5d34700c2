package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/syncmart/branchd/internal/realtime"
	"github.com/syncmart/branchd/internal/session"
)

// BranchHandler serves session, wallet and store-toggle endpoints
type BranchHandler struct {
	sess   *session.Session
	logger *zap.Logger
}

// NewBranchHandler creates a branch handler
func NewBranchHandler(sess *session.Session, logger *zap.Logger) *BranchHandler {
	return &BranchHandler{sess: sess, logger: logger}
}

// Login authenticates the branch against the marketplace
func (h *BranchHandler) Login(c *gin.Context) {
	var req struct {
		Phone    string `json:"phone" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "phone and password are required"})
		return
	}
	if err := h.sess.Login(c.Request.Context(), req.Phone, req.Password); err != nil {
		respondError(c, h.logger, err)
		return
	}
	// Join the branch room and load the listing now that credentials exist.
	// The channel outlives this request, so it gets its own context.
	if err := h.sess.Start(context.Background()); err != nil && !errors.Is(err, realtime.ErrAlreadyConnected) {
		h.logger.Warn("failed to start session after login", zap.Error(err))
	}
	c.JSON(http.StatusOK, gin.H{"branch_id": h.sess.BranchID()})
}

// Wallet returns the cached settlement wallet balance
func (h *BranchHandler) Wallet(c *gin.Context) {
	balance, err := h.sess.WalletBalance()
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"balance": balance})
}

// SetStoreStatus toggles the store open/closed
func (h *BranchHandler) SetStoreStatus(c *gin.Context) {
	var req struct {
		Open *bool `json:"open" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "open is required"})
		return
	}
	if err := h.sess.SetStoreOpen(*req.Open); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"open": *req.Open})
}

// SetDeliveryAvailability toggles the delivery service
func (h *BranchHandler) SetDeliveryAvailability(c *gin.Context) {
	var req struct {
		Available *bool `json:"available" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "available is required"})
		return
	}
	if err := h.sess.SetDeliveryAvailable(*req.Available); err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"available": *req.Available})
}
