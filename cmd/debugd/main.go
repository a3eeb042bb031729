package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"braindump/application/ports"
	"braindump/infrastructure/config"
	"braindump/infrastructure/di"
	"braindump/infrastructure/enrichment"
	"braindump/interfaces/http/debug"
)

func main() {
	configPath := flag.String("config", "", "path to the YAML configuration file")
	flag.Parse()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	var enricher ports.Enricher
	if cfg.EnrichmentEndpoint != "" {
		logger, _ := zap.NewProduction()
		enricher = enrichment.NewClient(cfg.EnrichmentEndpoint, cfg.EnrichmentAPIKey, logger)
	}

	container, cleanup, err := di.InitializeEngine(ctx, cfg, enricher)
	if err != nil {
		log.Fatalf("Failed to initialize engine: %v", err)
	}
	defer cleanup()

	// Hot-reload the tuning section while running
	if *configPath != "" {
		watcher, err := config.NewWatcher(*configPath, container.Logger)
		if err != nil {
			container.Logger.Warn("config watcher unavailable", zap.Error(err))
		} else {
			watcher.OnChange(func(updated *config.Config) {
				container.Logger.Info("configuration reloaded",
					zap.Int("max_history", updated.EngineConfig().MaxHistory),
				)
			})
			watcher.Start()
			defer watcher.Stop()
		}
	}

	router := debug.NewRouter(
		container.Store,
		container.History,
		container.Mutations,
		container.Registry,
		container.Logger,
		cfg.EnableCORS,
	)

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		container.Logger.Info("Starting server",
			zap.String("address", cfg.ServerAddress),
			zap.String("environment", cfg.Environment),
			zap.String("workspace", container.Store.Workspace().ID().String()),
		)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			container.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	container.Logger.Info("Shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(ctx, 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		container.Logger.Error("Server shutdown error", zap.Error(err))
	}
	container.Logger.Info("Server stopped")
}
