// Command api is the Buzzwatch status API server.
//
// Usage:
//
//	buzzwatch-api
//	API_PORT=8080 buzzwatch-api

// @title Buzzwatch Status API
// @version 1.0.0
// @description Read-only view of the stored Yahoo buzz index and ESPN free-agent snapshots.
// @host localhost:8000
// @BasePath /api/v1
// @schemes http https
// @contact.name Buzzwatch
// @license.name MIT
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/albapepper/buzzwatch/internal/api"
	"github.com/albapepper/buzzwatch/internal/cache"
	"github.com/albapepper/buzzwatch/internal/config"
	"github.com/albapepper/buzzwatch/internal/listener"
	"github.com/albapepper/buzzwatch/internal/maintenance"
	"github.com/albapepper/buzzwatch/internal/provider/espn"
	"github.com/albapepper/buzzwatch/internal/provider/yahoo"
	"github.com/albapepper/buzzwatch/internal/store"

	_ "github.com/albapepper/buzzwatch/docs"               // swagger docs
	_ "github.com/albapepper/buzzwatch/internal/store/all" // store backends
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
	logger = cfg.NewLogger()
	slog.SetDefault(logger)

	// Context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Open stores
	sources := []struct {
		url   string
		table store.Table
	}{
		{cfg.YahooStoreURL, store.Table{Name: cfg.YahooTable, Source: yahoo.Source, Metrics: yahoo.Metrics}},
		{cfg.ESPNStoreURL, store.Table{Name: cfg.ESPNTable, Source: espn.Source, Metrics: espn.Metrics}},
	}
	stores := map[string]store.Store{}
	for _, src := range sources {
		st, err := store.Open(ctx, src.url, store.Options{
			Table: src.table,
			Pool: store.PoolConfig{
				MinConns:        cfg.DBPoolMinConns,
				MaxConns:        cfg.DBPoolMaxConns,
				MaxConnLifetime: cfg.DBPoolMaxLife,
			},
			Logger: logger,
		})
		if err != nil {
			logger.Error("Failed to open store", "source", src.table.Source, "url", store.Redact(src.url), "error", err)
			os.Exit(1)
		}
		defer st.Close()
		stores[src.table.Source] = st
		logger.Info("Store opened", "source", src.table.Source, "url", store.Redact(src.url))
	}

	// Initialize cache
	appCache := cache.New(cfg.CacheEnabled)
	logger.Info("Cache initialized", "enabled", cfg.CacheEnabled)

	// Drop cached responses as soon as a postgres store reports an append
	listening := map[string]bool{}
	for _, src := range sources {
		if !isPostgres(src.url) || listening[src.url] {
			continue
		}
		listening[src.url] = true
		go listener.Start(ctx, src.url, listener.InvalidateCache(appCache, logger), logger)
	}

	// Catch-up sweep for stores without NOTIFY, and store pings
	go maintenance.Start(ctx, stores, appCache, maintenance.DefaultConfig(), logger)

	// Create router
	router := api.NewRouter(stores, appCache, cfg, logger)

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
		logger.Info("Starting Buzzwatch status API",
			"addr", addr,
			"environment", cfg.Environment,
			"docs", fmt.Sprintf("http://localhost:%d/docs/", cfg.APIPort))
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

func isPostgres(url string) bool {
	return strings.HasPrefix(url, "postgres://") || strings.HasPrefix(url, "postgresql://")
}
