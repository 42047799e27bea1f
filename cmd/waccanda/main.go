// Command waccanda runs the WACCANDA package host.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/bogdansurdu/vibranium-waccanda/internal/config"
	"github.com/bogdansurdu/vibranium-waccanda/internal/logging"
	"github.com/bogdansurdu/vibranium-waccanda/internal/server"
	"github.com/bogdansurdu/vibranium-waccanda/internal/storage"
	"github.com/bogdansurdu/vibranium-waccanda/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "waccanda: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel, cfg.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "waccanda: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("fatal", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
}

func run(cfg config.Config, logger *zap.Logger) error {
	db, err := store.Open(cfg.DB)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() { _ = db.Close() }()

	// The server starts even when the database is down; installs log the
	// failed queries and /health reports it.
	if err := store.Ping(context.Background(), db); err != nil {
		logger.Error("database unreachable", zap.String("host", cfg.DB.Host), zap.Error(err))
	} else {
		logger.Info("connected to database", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))
	}

	if cfg.DB.Migrate {
		logger.Info("running migrations")
		if err := store.Migrate(store.DSN(cfg.DB)); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
		logger.Info("migrations complete")
	}

	backend, err := openStorage(cfg)
	if err != nil {
		return err
	}

	srv, err := server.New(server.Config{
		Addr:           cfg.Addr,
		Version:        getenvDefault("WACCANDA_VERSION", "dev"),
		Packages:       store.NewPackages(db),
		DB:             db,
		Storage:        backend,
		Logger:         logger,
		Metrics:        server.NewMetrics(),
		MaxUploadBytes: cfg.MaxUploadBytes,
		RateLimit:      cfg.RateLimit,
	})
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", zap.String("addr", cfg.Addr), zap.String("storage", cfg.Storage))
		errCh <- srv.Start()
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigCh:
		logger.Info("shutting down", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		logger.Info("shutdown complete")
		return nil
	case err := <-errCh:
		return err
	}
}

func openStorage(cfg config.Config) (storage.Store, error) {
	switch cfg.Storage {
	case config.StorageMinio:
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return storage.NewMinio(ctx, cfg.S3)
	default:
		return storage.NewFS(cfg.UploadDir, cfg.PackageRoot)
	}
}

// getenvDefault reads an environment variable and returns a default value if not set.
func getenvDefault(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}
