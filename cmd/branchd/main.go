package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/syncmart/branchd/internal/api"
	"github.com/syncmart/branchd/internal/config"
	"github.com/syncmart/branchd/internal/gateway"
	"github.com/syncmart/branchd/internal/kvstore"
	"github.com/syncmart/branchd/internal/realtime"
	"github.com/syncmart/branchd/internal/reconcile"
	"github.com/syncmart/branchd/internal/session"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	var logger *zap.Logger
	if cfg.Environment == "production" {
		logger, _ = zap.NewProduction()
	} else {
		logger, _ = zap.NewDevelopment()
	}
	defer logger.Sync()

	logger.Info("Starting branch daemon",
		zap.String("port", cfg.Port),
		zap.String("environment", cfg.Environment),
	)

	// Initialize the persisted key-value capability
	kv, err := kvstore.Open(cfg.KVPath)
	if err != nil {
		logger.Fatal("Failed to open kv store", zap.Error(err))
	}
	defer kv.Close()

	branchID := cfg.BranchID
	if branchID == "" {
		branchID, _, _ = kv.Get(kvstore.KeyBranchID)
	}

	// Remote fetch gateway with the global 401 policy
	creds := kvstore.NewCredentials(kv)
	gw := gateway.NewClient(cfg.Marketplace.APIBaseURL, creds, logger, func() {
		logger.Warn("session expired; operator must re-authenticate")
	})

	// Reconciliation engine; its context bounds detail-fetch lifetimes
	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()
	metrics := reconcile.NewMetrics(prometheus.DefaultRegisterer)
	engine := reconcile.New(engineCtx, gw, logger, metrics)

	// Session + realtime channel, bound in two steps
	sess := session.New(branchID, gw, engine, nil, kv, logger)
	reconnects := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "branchd_realtime_reconnects_total",
		Help: "Successful realtime channel reconnections.",
	})
	prometheus.MustRegister(reconnects)
	channel := realtime.NewManager(realtime.Config{
		URL:        cfg.Marketplace.RealtimeURL,
		Reconnects: reconnects,
	}, sess.Handlers(), logger)
	sess.AttachChannel(channel)

	// Join the branch room right away when a prior login left credentials
	if token, ok, _ := kv.Get(kvstore.KeyAuthToken); ok && token != "" && branchID != "" {
		if err := sess.Start(engineCtx); err != nil {
			logger.Warn("failed to start session from stored credentials", zap.Error(err))
		}
	} else {
		logger.Info("no stored session; waiting for login")
	}

	// Local API for the operator UI
	router := api.NewRouter(cfg, sess, logger)
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()
	logger.Info("Server started successfully", zap.String("address", srv.Addr))

	// Wait for interrupt signal to gracefully shut down
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	sess.Stop()
	engineCancel()

	logger.Info("Daemon exited")
}
