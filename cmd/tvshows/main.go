package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pbs/tvshows/internal/api"
	"github.com/pbs/tvshows/internal/cache"
	"github.com/pbs/tvshows/internal/channels"
	"github.com/pbs/tvshows/internal/config"
	"github.com/pbs/tvshows/internal/httputil"
	"github.com/pbs/tvshows/internal/listings"
	"github.com/pbs/tvshows/internal/logging"
	"github.com/pbs/tvshows/internal/metadata"
	"github.com/pbs/tvshows/internal/providers"
	"github.com/pbs/tvshows/internal/proxy"
	"github.com/pbs/tvshows/internal/scheduler"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// 2. Setup logger
	logger := logging.New(cfg.LogLevel)
	logger.Info("Starting TvShows server")
	logger.WithField("cache_dir", cfg.CacheDir).Info("Configuration loaded")

	// 3. Initialize the disk cache
	store, err := cache.New(cfg.CacheDir)
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}

	// 4. Shared HTTP clients
	clients, err := httputil.NewClients(cfg.FetchTimeout, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize HTTP clients: %w", err)
	}

	// 5. Domain services
	registry := providers.NewRegistry(clients, logger)
	metadataSvc := metadata.NewService(store, clients, registry, cfg.SourceURL, logger)
	channelSvc := channels.NewService(clients, store, cfg.SourceURL, cfg.ScrapeParallelism, logger)
	listingStore := listings.NewStore(store, logger)
	scraper := listings.NewScraper(clients, cfg.ScrapeParallelism, logger)
	coalescer := listings.NewCoalescer(listingStore, scraper, logger)

	telemetry := proxy.NewTelemetry(cfg.SpeedLogInterval, logger)
	relay := proxy.NewRelay(clients, telemetry, cfg.ProxyBufferChunks, logger)
	logger.Info("Services initialized")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go coalescer.Run(ctx)
	go telemetry.Run(ctx)

	// 6. Daily cache sweep
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour
	protected := []string{listings.StateFileName, channels.StateFileName}
	sweeper := cache.NewSweeper(cfg.CacheDir, retention, protected, logger)
	sched := scheduler.NewScheduler(sweeper, cfg.SweepSpec, logger)
	if err := sched.Start(); err != nil {
		return fmt.Errorf("failed to start scheduler: %w", err)
	}
	defer sched.Stop()

	// 7. HTTP server
	server := api.NewServer(cfg, api.Deps{
		Cache:     store,
		Channels:  channelSvc,
		Listings:  listingStore,
		Coalescer: coalescer,
		Metadata:  metadataSvc,
		Relay:     relay,
	}, logger)

	serverErrChan := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrChan <- err
		}
	}()

	// 8. Wait for shutdown signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	logger.Info("TvShows server is running")

	select {
	case err := <-serverErrChan:
		return fmt.Errorf("server error: %w", err)
	case sig := <-sigChan:
		logger.WithField("signal", sig).Info("Received shutdown signal")
		cancel()
		if err := server.Shutdown(context.Background()); err != nil {
			logger.WithError(err).Error("Error during server shutdown")
		}
	}

	logger.Info("TvShows server stopped")
	return nil
}
