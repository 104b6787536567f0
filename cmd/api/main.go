// Command api serves the graph over HTTP until SIGINT or SIGTERM.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"neorest/infrastructure/config"
	"neorest/infrastructure/di"
	"neorest/infrastructure/schema"

	"go.uber.org/zap"
)

const shutdownGrace = 30 * time.Second

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.LoadConfig()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	container, cleanup, err := di.InitializeContainer(ctx, cfg)
	if err != nil {
		return fmt.Errorf("container: %w", err)
	}
	defer cleanup()
	logger := container.Logger
	defer func() { _ = logger.Sync() }()

	watcher, err := loadSchema(ctx, cfg, container)
	if err != nil {
		return err
	}
	if container.Relay != nil {
		container.Relay.Start(ctx)
	}

	srv := &http.Server{
		Addr:         cfg.ServerAddress,
		Handler:      container.Router.Setup(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  time.Minute,
	}
	serveErr := make(chan error, 1)
	go func() {
		logger.Info("Listening",
			zap.String("address", cfg.ServerAddress),
			zap.String("engine", cfg.GraphEngine),
			zap.String("environment", cfg.Environment),
			zap.Bool("extensions", cfg.AllowExtensions),
		)
		serveErr <- srv.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
	case <-ctx.Done():
		logger.Info("Shutting down")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Shutdown incomplete", zap.Error(err))
	}
	if watcher != nil {
		watcher.Stop()
	}
	if container.Relay != nil {
		// drain what the last requests journaled
		container.Relay.Stop()
		if _, err := container.Relay.Flush(shutdownCtx); err != nil {
			logger.Warn("Final relay flush failed", zap.Error(err))
		}
	}
	return nil
}

// loadSchema applies SCHEMA_PATH and, when asked, keeps watching it.
func loadSchema(ctx context.Context, cfg *config.Config, container *di.Container) (*schema.Watcher, error) {
	if cfg.SchemaPath == "" {
		return nil, nil
	}
	names, err := container.Loader.LoadPath(ctx, cfg.SchemaPath)
	if err != nil {
		return nil, fmt.Errorf("schema %s: %w", cfg.SchemaPath, err)
	}
	container.Logger.Info("Schema loaded", zap.String("path", cfg.SchemaPath), zap.Strings("classes", names))

	if !cfg.WatchSchema {
		return nil, nil
	}
	watcher, err := schema.NewWatcher(cfg.SchemaPath, container.Loader, container.Logger)
	if err != nil {
		return nil, fmt.Errorf("watch %s: %w", cfg.SchemaPath, err)
	}
	watcher.Start(ctx)
	return watcher, nil
}
