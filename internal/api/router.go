package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/syncmart/branchd/internal/api/handlers"
	"github.com/syncmart/branchd/internal/config"
	"github.com/syncmart/branchd/internal/session"
)

// NewRouter builds the local API the operator UI talks to. It only ever
// reads the reconciled collection and issues intents through the session;
// nothing here touches the order map directly.
func NewRouter(cfg *config.Config, sess *session.Session, logger *zap.Logger) *gin.Engine {
	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	orderHandler := handlers.NewOrderHandler(sess, logger)
	branchHandler := handlers.NewBranchHandler(sess, logger)

	v1 := router.Group("/v1")
	{
		v1.POST("/session/login", branchHandler.Login)

		v1.GET("/orders", orderHandler.List)
		v1.GET("/orders/:id", orderHandler.Get)
		v1.POST("/orders/:id/accept", orderHandler.Accept)
		v1.POST("/orders/:id/cancel", orderHandler.Cancel)
		v1.POST("/orders/:id/pack", orderHandler.Pack)
		v1.POST("/orders/:id/modify", orderHandler.Modify)
		v1.POST("/orders/:id/assign/:partnerId", orderHandler.Assign)
		v1.POST("/orders/:id/collect-cash", orderHandler.CollectCash)
		v1.POST("/orders/:id/items/:itemId/cancel", orderHandler.CancelItem)

		v1.GET("/wallet", branchHandler.Wallet)
		v1.POST("/store/status", branchHandler.SetStoreStatus)
		v1.POST("/store/delivery", branchHandler.SetDeliveryAvailability)
	}

	return router
}
