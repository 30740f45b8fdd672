package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/brojonat/walletlens/service/config"
	"github.com/brojonat/walletlens/service/dashboard"
	"github.com/brojonat/walletlens/service/logging"
	"github.com/brojonat/walletlens/service/metrics"
	"github.com/brojonat/walletlens/service/server"
	"github.com/brojonat/walletlens/service/temporal"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}

	// Load and validate configuration from environment
	// This fails fast if any required config is missing or invalid
	cfg := config.MustLoad()

	// Setup structured logging with the diagnostics ring
	appLog := logging.New(logging.Options{
		Level:    cfg.LogLevel,
		File:     cfg.LogFile,
		RingSize: cfg.LogBufferSize,
	})
	defer appLog.Close()
	logger := appLog.Logger

	logger.Info("starting server",
		"addr", cfg.ServerAddr,
		"log_level", cfg.LogLevel,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	metricsCollector := metrics.NewMetrics(nil) // nil uses default registry

	dashboards, _, cleanup, err := dashboard.Build(ctx, cfg, metricsCollector, logger)
	if err != nil {
		logger.Error("failed to initialize dashboard service", "error", err)
		os.Exit(1)
	}
	defer cleanup()
	logger.Info("initialized dashboard service",
		"solana_rpc", cfg.SolanaRPCURL,
		"price_providers", cfg.PriceProviders,
	)

	// Watches and streaming degrade gracefully: the dashboard API works
	// without Temporal or NATS.
	var scheduler temporal.Scheduler
	temporalClient, err := temporal.NewClient(cfg.TemporalHost, cfg.TemporalNamespace, cfg.TemporalTaskQueue, logger)
	if err != nil {
		logger.Warn("temporal unavailable, watch endpoints disabled", "error", err)
	} else {
		defer temporalClient.Close()
		scheduler = temporalClient
	}

	var stream server.DashboardStream
	ssePublisher, err := server.NewSSEPublisher(cfg.NATSURL, logger)
	if err != nil {
		logger.Warn("NATS unavailable, streaming endpoint disabled", "error", err)
	} else {
		defer ssePublisher.Close()
		stream = ssePublisher
	}

	httpServer := server.New(cfg.ServerAddr, cfg, dashboards, scheduler, stream, appLog.Ring, metricsCollector, logger)

	logger.Info("server initialized, all dependencies ready",
		"nats_url", cfg.NATSURL,
		"temporal_host", cfg.TemporalHost,
		"watches_enabled", scheduler != nil,
		"streaming_enabled", stream != nil,
	)

	// Start HTTP server in background
	serverErrors := make(chan error, 1)
	go func() {
		serverErrors <- httpServer.Start()
	}()

	// Wait for shutdown signal or server error
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		logger.Error("server error", "error", err)
		os.Exit(1)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", "signal", sig.String())

		// Graceful shutdown with timeout
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shutdown server gracefully", "error", err)
			os.Exit(1)
		}

		logger.Info("server shutdown complete")
	}
}
