// Command api is the RideGuard crash-response API server.
//
// Usage:
//
//	rideguard-api
//	API_PORT=8080 rideguard-api
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/joho/godotenv"

	"github.com/rideguard/rideguard-backend/internal/api"
	"github.com/rideguard/rideguard-backend/internal/cache"
	"github.com/rideguard/rideguard-backend/internal/config"
	"github.com/rideguard/rideguard-backend/internal/crash"
	"github.com/rideguard/rideguard-backend/internal/db"
	"github.com/rideguard/rideguard-backend/internal/notify"
	"github.com/rideguard/rideguard-backend/internal/recipient"
	"github.com/rideguard/rideguard-backend/internal/store"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	// Load .env if present
	_ = godotenv.Load(".env")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Error("Failed to load configuration", "error", err)
		os.Exit(1)
	}

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	// Connect to database
	logger.Info("Connecting to database...")
	pool, err := db.New(ctx, cfg)
	if err != nil {
		logger.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("Database connected",
		"min_conns", cfg.DBPoolMinConns,
		"max_conns", cfg.DBPoolMaxConns)

	// Wire the crash pipeline. Everything shared across requests is
	// constructed exactly once here and passed down.
	docStore := store.NewPostgres(pool.Pool)
	facilityCache := cache.New(cfg.FacilityCacheTTL, cfg.CacheEnabled)
	resolver := recipient.New(docStore, cfg.LookupTimeout, logger)

	var sender notify.Sender
	if fcm := notify.NewFCMSender(cfg.FCMCredentialsFile, logger); fcm != nil {
		sender = fcm
		logger.Info("FCM sender configured")
	} else {
		logger.Info("FCM sender disabled (no FIREBASE_CREDENTIALS_FILE)")
	}
	dispatcher := notify.NewDispatcher(sender, cfg.DispatchTimeout, logger)

	svc := crash.NewService(docStore, facilityCache, resolver, dispatcher,
		cfg.CrashDedupEnabled, cfg.LookupTimeout, logger)

	// Create router
	router := api.NewRouter(svc, pool, facilityCache, cfg)

	// Create HTTP server
	addr := fmt.Sprintf("%s:%d", cfg.APIHost, cfg.APIPort)
	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in background
	go func() {
		logger.Info("Starting RideGuard Crash Response API",
			"addr", addr,
			"environment", cfg.Environment,
			"crash_dedup", cfg.CrashDedupEnabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("Server failed", "error", err)
			os.Exit(1)
		}
	}()

	// Wait for interrupt
	<-ctx.Done()
	logger.Info("Shutting down...")

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown error", "error", err)
	}
	logger.Info("Server stopped")
}
