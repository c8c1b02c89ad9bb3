package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var (
	ErrLinkNotFound = errors.New("share link not found")

	// ErrDuplicateID signals an identifier collision on insert. Collisions
	// are vanishingly rare but must be handled by retrying with a fresh
	// identifier, not assumed away.
	ErrDuplicateID = errors.New("share link id already exists")
)

const uniqueViolation = "23505"

// Repository provides persistence for share links and download events.
type Repository struct {
	db *DB
}

// NewRepository creates a new Repository.
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// Create inserts a new share link record.
func (r *Repository) Create(ctx context.Context, link *ShareLink) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO share_links (
			id, owner_id, storage_key, original_name, byte_size,
			password_hash, download_limit, download_count, expires_at,
			created_at, last_accessed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`,
		link.ID,
		link.OwnerID,
		link.StorageKey,
		link.OriginalName,
		link.ByteSize,
		link.PasswordHash,
		link.DownloadLimit,
		link.DownloadCount,
		link.ExpiresAt,
		link.CreatedAt,
		link.LastAccessedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrDuplicateID
		}
		return fmt.Errorf("failed to create share link: %w", err)
	}
	return nil
}

// GetByID retrieves a share link by its public identifier.
func (r *Repository) GetByID(ctx context.Context, id string) (*ShareLink, error) {
	link := &ShareLink{}
	err := r.db.Pool.QueryRow(ctx, `
		SELECT id, owner_id, storage_key, original_name, byte_size,
			   password_hash, download_limit, download_count, expires_at,
			   created_at, last_accessed_at
		FROM share_links WHERE id = $1
	`, id).Scan(
		&link.ID,
		&link.OwnerID,
		&link.StorageKey,
		&link.OriginalName,
		&link.ByteSize,
		&link.PasswordHash,
		&link.DownloadLimit,
		&link.DownloadCount,
		&link.ExpiresAt,
		&link.CreatedAt,
		&link.LastAccessedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrLinkNotFound
		}
		return nil, fmt.Errorf("failed to get share link: %w", err)
	}
	return link, nil
}

// ListByOwner returns all of an owner's share links, newest first.
func (r *Repository) ListByOwner(ctx context.Context, ownerID string) ([]*ShareLink, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, owner_id, storage_key, original_name, byte_size,
			   password_hash, download_limit, download_count, expires_at,
			   created_at, last_accessed_at
		FROM share_links
		WHERE owner_id = $1
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list share links: %w", err)
	}
	defer rows.Close()

	var links []*ShareLink
	for rows.Next() {
		link := &ShareLink{}
		if err := rows.Scan(
			&link.ID,
			&link.OwnerID,
			&link.StorageKey,
			&link.OriginalName,
			&link.ByteSize,
			&link.PasswordHash,
			&link.DownloadLimit,
			&link.DownloadCount,
			&link.ExpiresAt,
			&link.CreatedAt,
			&link.LastAccessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan share link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// TryConsumeDownload atomically re-checks expiry and the download limit
// against the current counter and, when both pass, increments the counter
// and stamps last_accessed_at. A single conditional UPDATE is the whole
// atomicity story: concurrent callers race on the row, the database
// serializes them, and the limit can never be overshot. This is the sole
// writer of download_count.
func (r *Repository) TryConsumeDownload(ctx context.Context, id string, now time.Time) (ConsumeResult, error) {
	tag, err := r.db.Pool.Exec(ctx, `
		UPDATE share_links
		SET download_count = download_count + 1,
		    last_accessed_at = $2
		WHERE id = $1
		  AND (expires_at IS NULL OR expires_at >= $2)
		  AND (download_limit IS NULL OR download_count < download_limit)
	`, id, now)
	if err != nil {
		return ConsumeNotFound, fmt.Errorf("failed to consume download: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return Consumed, nil
	}

	// No row matched: classify why. The re-read is only for reporting; the
	// correctness of the counter does not depend on it.
	link, err := r.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrLinkNotFound) {
			return ConsumeNotFound, nil
		}
		return ConsumeNotFound, err
	}
	if link.Expired(now) {
		return ConsumeExpired, nil
	}
	return ConsumeLimitReached, nil
}

// Delete removes a share link only when ownerID matches the record's owner.
// The caller is responsible for deleting the corresponding blob.
func (r *Repository) Delete(ctx context.Context, id, ownerID string) (DeleteResult, error) {
	tag, err := r.db.Pool.Exec(ctx,
		"DELETE FROM share_links WHERE id = $1 AND owner_id = $2", id, ownerID)
	if err != nil {
		return DeleteNotFound, fmt.Errorf("failed to delete share link: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return Deleted, nil
	}

	var exists bool
	err = r.db.Pool.QueryRow(ctx,
		"SELECT EXISTS(SELECT 1 FROM share_links WHERE id = $1)", id,
	).Scan(&exists)
	if err != nil {
		return DeleteNotFound, fmt.Errorf("failed to check share link existence: %w", err)
	}
	if exists {
		return DeleteForbidden, nil
	}
	return DeleteNotFound, nil
}

// Purge removes a share link unconditionally. Used by the expiry cleanup
// loop, never by request handling.
func (r *Repository) Purge(ctx context.Context, id string) error {
	tag, err := r.db.Pool.Exec(ctx, "DELETE FROM share_links WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("failed to purge share link: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrLinkNotFound
	}
	return nil
}

// ListExpired returns all share links whose expiry timestamp has passed.
func (r *Repository) ListExpired(ctx context.Context, now time.Time) ([]*ShareLink, error) {
	rows, err := r.db.Pool.Query(ctx, `
		SELECT id, owner_id, storage_key, original_name, byte_size,
			   password_hash, download_limit, download_count, expires_at,
			   created_at, last_accessed_at
		FROM share_links
		WHERE expires_at IS NOT NULL AND expires_at < $1
	`, now)
	if err != nil {
		return nil, fmt.Errorf("failed to query expired share links: %w", err)
	}
	defer rows.Close()

	var links []*ShareLink
	for rows.Next() {
		link := &ShareLink{}
		if err := rows.Scan(
			&link.ID,
			&link.OwnerID,
			&link.StorageKey,
			&link.OriginalName,
			&link.ByteSize,
			&link.PasswordHash,
			&link.DownloadLimit,
			&link.DownloadCount,
			&link.ExpiresAt,
			&link.CreatedAt,
			&link.LastAccessedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan expired share link: %w", err)
		}
		links = append(links, link)
	}
	return links, rows.Err()
}

// RecordDownloadEvent inserts a download audit row.
func (r *Repository) RecordDownloadEvent(ctx context.Context, ev *DownloadEvent) error {
	_, err := r.db.Pool.Exec(ctx, `
		INSERT INTO download_events (id, link_id, ip_address, user_agent, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ev.ID, ev.LinkID, ev.IPAddress, ev.UserAgent, ev.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to record download event: %w", err)
	}
	return nil
}

// GetStats returns aggregate server statistics.
func (r *Repository) GetStats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := r.db.Pool.QueryRow(ctx, `
		SELECT
			COUNT(*),
			COUNT(*) FILTER (WHERE expires_at IS NULL OR expires_at >= NOW()),
			COALESCE(SUM(download_count), 0),
			COALESCE(SUM(byte_size), 0)
		FROM share_links
	`).Scan(
		&stats.TotalLinks,
		&stats.ActiveLinks,
		&stats.TotalDownloads,
		&stats.StorageUsed,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get stats: %w", err)
	}
	return stats, nil
}
