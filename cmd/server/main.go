package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"droplink/internal/server/api"
	"droplink/internal/server/auth"
	"droplink/internal/server/config"
	"droplink/internal/server/database"
	"droplink/internal/server/service"
	"droplink/internal/server/storage"
)

func main() {
	// Structured logging
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	// Load config
	cfg := config.Load()
	slog.Info("configuration loaded",
		"port", cfg.Port,
		"storage_backend", cfg.StorageBackend,
		"max_file_size", cfg.MaxFileSize,
	)

	if cfg.JWTSecret == "" {
		slog.Error("JWT_SECRET must be set")
		os.Exit(1)
	}

	// Connect to database
	ctx := context.Background()
	db, err := database.New(ctx, cfg.DatabaseURL)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	// Run migrations
	if err := db.RunMigrations(ctx); err != nil {
		slog.Error("failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("database migrations complete")

	// Initialize blob storage
	blobs, err := newBlobStore(ctx, cfg)
	if err != nil {
		slog.Error("failed to initialize blob storage", "error", err)
		os.Exit(1)
	}
	slog.Info("blob storage initialized", "backend", cfg.StorageBackend)

	// Initialize repository and service
	repo := database.NewRepository(db)
	svc := service.NewShareService(repo, blobs, cfg)
	verifier := auth.NewVerifier(cfg.JWTSecret)

	// Start the expiry cleanup loop. It only destroys data whose expiry has
	// already made it unreachable; access control never depends on it.
	var cleanup *storage.CleanupService
	cleanupCtx, cleanupCancel := context.WithCancel(context.Background())
	if cfg.CleanupEnabled {
		cleanup = storage.NewCleanupService(repo, blobs, cfg.CleanupInterval)
		cleanup.Start(cleanupCtx)
	}

	// Setup HTTP router
	handler := api.NewHandler(svc, db)
	e := api.SetupRouter(handler, verifier, cfg)

	// Start server in a goroutine
	go func() {
		addr := fmt.Sprintf(":%s", cfg.Port)
		slog.Info("starting server", "addr", addr, "base_url", cfg.BaseURL)
		if err := e.Start(addr); err != nil {
			slog.Info("server stopped", "reason", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutting down", "signal", sig)

	// Stop accepting new requests, finish in-flight with 30s timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
	}

	// Stop cleanup service
	cleanupCancel()
	if cleanup != nil {
		cleanup.Wait()
	}

	slog.Info("server exited cleanly")
}

// newBlobStore selects the configured blob backend.
func newBlobStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.StorageBackend {
	case "minio":
		return storage.NewMinIOStore(ctx, storage.MinIOOptions{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		})
	case "filesystem":
		fs := storage.NewFileSystemStore(cfg.StoragePath)
		if err := fs.EnsureDir(); err != nil {
			return nil, err
		}
		return fs, nil
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.StorageBackend)
	}
}
