package storage

import (
	"context"
	"log/slog"
	"time"

	"droplink/internal/server/database"
)

// CleanupService periodically removes expired share links from both the
// database and blob storage. Expiry alone only makes a link unreachable;
// this loop is the one place that actually destroys the data, and it is
// off the access-control correctness path entirely.
type CleanupService struct {
	repo     *database.Repository
	store    Store
	interval time.Duration
	done     chan struct{}
}

// NewCleanupService creates a new cleanup service.
func NewCleanupService(repo *database.Repository, store Store, interval time.Duration) *CleanupService {
	return &CleanupService{
		repo:     repo,
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
	}
}

// Start begins the cleanup loop in a background goroutine.
func (cs *CleanupService) Start(ctx context.Context) {
	slog.Info("cleanup service started", "interval", cs.interval)

	go func() {
		ticker := time.NewTicker(cs.interval)
		defer ticker.Stop()

		// Run once immediately on start
		cs.runCleanup(ctx)

		for {
			select {
			case <-ticker.C:
				cs.runCleanup(ctx)
			case <-ctx.Done():
				slog.Info("cleanup service stopping")
				close(cs.done)
				return
			}
		}
	}()
}

// Wait blocks until the cleanup service has fully stopped.
func (cs *CleanupService) Wait() {
	<-cs.done
}

func (cs *CleanupService) runCleanup(ctx context.Context) {
	expired, err := cs.repo.ListExpired(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("failed to list expired share links", "error", err)
		return
	}

	if len(expired) == 0 {
		return
	}

	var cleaned, failed int
	for _, link := range expired {
		// Blob first: if the record delete then fails, the next cycle
		// retries and Delete tolerates the already-missing blob.
		if err := cs.store.Delete(ctx, link.StorageKey); err != nil {
			slog.Error("failed to delete blob",
				"link_id", link.ID,
				"storage_key", link.StorageKey,
				"error", err,
			)
			failed++
			continue
		}

		if err := cs.repo.Purge(ctx, link.ID); err != nil {
			slog.Error("failed to purge share link record",
				"link_id", link.ID,
				"error", err,
			)
			failed++
			continue
		}

		cleaned++
		slog.Info("cleaned up expired share link",
			"link_id", link.ID,
			"original_name", link.OriginalName,
			"expired_at", link.ExpiresAt,
		)
	}

	slog.Info("cleanup cycle complete",
		"cleaned", cleaned,
		"failed", failed,
		"total_expired", len(expired),
	)
}
