// Package main is the entry point for the PBX bridge daemon
package main

import (
	"context"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/wai/pbxbridge/internal/api"
	"github.com/wai/pbxbridge/internal/bridge"
	"github.com/wai/pbxbridge/internal/callform"
	"github.com/wai/pbxbridge/internal/cdr"
	"github.com/wai/pbxbridge/internal/config"
	"github.com/wai/pbxbridge/internal/extensions"
	"github.com/wai/pbxbridge/internal/hours"
	"github.com/wai/pbxbridge/internal/monitor"
	"github.com/wai/pbxbridge/internal/state"
)

func main() {
	// Initialize structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	slog.Info("Starting PBX bridge", "version", "1.0.0")

	// Environment variables referenced by the config file may come from .env
	if err := godotenv.Load(); err != nil {
		slog.Debug("No .env file loaded", "error", err)
	}

	cfgPath := flag.String("config", config.DefaultConfigPath, "config file path")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		slog.Error("Failed to load configuration", "path", *cfgPath, "error", err)
		os.Exit(1)
	}

	// Progress state: memory by default, SQLite when a path is configured
	var store state.Store = state.NewMemoryStore()
	if cfg.State.Path != "" {
		sqliteStore, err := state.NewSQLiteStore(cfg.State.Path)
		if err != nil {
			slog.Error("Failed to open state database", "path", cfg.State.Path, "error", err)
			os.Exit(1)
		}
		defer sqliteStore.Close()
		store = sqliteStore
		slog.Info("Using persistent state store", "path", cfg.State.Path)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// CDR store connection is fatal at startup
	poller := cdr.New(cfg.CdrDatabase, store)
	if err := poller.Connect(ctx); err != nil {
		slog.Error("Failed to connect to CDR store", "error", err)
		os.Exit(1)
	}
	defer poller.Disconnect()

	if !poller.TestConnection(ctx) {
		slog.Error("CDR store connection test failed")
		os.Exit(1)
	}

	apiClient := callform.NewClient(cfg.API)

	// Backend unreachable is degraded, not fatal; calls retry on their own
	if !apiClient.HealthCheck(ctx) {
		slog.Warn("Backend API health check failed, continuing (will retry on calls)")
	}

	businessHours := hours.New(cfg.BusinessHours)
	mapper := extensions.NewMapper(cfg.ExtensionMapping)

	var staffing monitor.StaffingProvider = &monitor.StaticStaffingProvider{}
	if cfg.PbxAPI.BaseURL != "" {
		staffing = monitor.NewPbxStaffingProvider(cfg.PbxAPI)
	} else {
		slog.Warn("No PBX management API configured, staffing checks will fail until one is set")
	}

	groupMonitor := monitor.New(cfg.CallGroups.MonitoredGroups, businessHours,
		apiClient, staffing, store)

	if err := groupMonitor.SyncActiveAlerts(ctx); err != nil {
		slog.Warn("Failed to seed alert state from backend", "error", err)
	}

	svc := bridge.New(poller, apiClient, mapper, groupMonitor,
		time.Duration(cfg.PollingIntervalSeconds)*time.Second,
		time.Duration(cfg.CallGroups.AlertCheckIntervalMinutes)*time.Minute)
	svc.Start(ctx)

	router := api.NewRouter(&api.Dependencies{
		Bridge:  svc,
		Poller:  poller,
		Hours:   businessHours,
		Monitor: groupMonitor,
	})

	httpServer := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		slog.Info("HTTP server started", "addr", cfg.ListenAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("HTTP server error", "error", err)
			cancel()
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigChan:
		slog.Info("Shutdown signal received, initiating graceful shutdown...")
	case <-ctx.Done():
	}

	// Stop the loops before tearing down connections
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), config.ShutdownGracePeriod)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	slog.Info("PBX bridge shutdown complete")
}
