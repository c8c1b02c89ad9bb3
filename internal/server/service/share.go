package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"droplink/internal/server/access"
	"droplink/internal/server/config"
	"droplink/internal/server/database"
	"droplink/internal/server/storage"
	"droplink/internal/server/token"
)

// Sentinel errors for the service layer. Each maps to exactly one wire-level
// error code; none of them is ever matched by message text.
var (
	ErrNotFound          = errors.New("share link not found")
	ErrExpired           = errors.New("share link has expired")
	ErrLimitReached      = errors.New("download limit reached")
	ErrPasswordRequired  = errors.New("password required")
	ErrPasswordIncorrect = errors.New("incorrect password")
	ErrForbidden         = errors.New("not the owner of this share link")

	ErrFileTooLarge         = errors.New("file exceeds maximum allowed size")
	ErrExtensionNotAllowed  = errors.New("file type not allowed")
	ErrInvalidDownloadLimit = errors.New("download limit must be a positive integer")
	ErrInvalidExpiry        = errors.New("expiry must be a positive number of hours")

	// ErrStorageMissing means the record exists but the blob is gone: a
	// data-integrity anomaly, deliberately distinct from ErrNotFound.
	ErrStorageMissing = errors.New("stored file is missing")

	ErrStorageWrite = errors.New("failed to store file")
	ErrDuplicateID  = errors.New("could not allocate a unique link id")
)

// maxIDAttempts bounds the identifier-collision retry loop in Upload.
const maxIDAttempts = 3

// ShareStore is the record-store dependency of the orchestrators. The
// postgres Repository implements it; tests substitute an in-memory store.
type ShareStore interface {
	Create(ctx context.Context, link *database.ShareLink) error
	GetByID(ctx context.Context, id string) (*database.ShareLink, error)
	ListByOwner(ctx context.Context, ownerID string) ([]*database.ShareLink, error)
	TryConsumeDownload(ctx context.Context, id string, now time.Time) (database.ConsumeResult, error)
	Delete(ctx context.Context, id, ownerID string) (database.DeleteResult, error)
	RecordDownloadEvent(ctx context.Context, ev *database.DownloadEvent) error
	GetStats(ctx context.Context) (*database.Stats, error)
}

// UploadOptions are the optional access controls requested at upload time.
type UploadOptions struct {
	Password      string
	DownloadLimit *int
	ExpiryHours   *int
}

// UploadResult is returned after a successful upload.
type UploadResult struct {
	ID           string     `json:"id"`
	DownloadURL  string     `json:"download_url"`
	OriginalName string     `json:"original_name"`
	ByteSize     int64      `json:"byte_size"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
	HasPassword  bool       `json:"has_password"`
}

// LinkInfo is the metadata view of a share link. It never includes the
// storage key or password hash.
type LinkInfo struct {
	ID             string     `json:"id"`
	OriginalName   string     `json:"original_name"`
	ByteSize       int64      `json:"byte_size"`
	DownloadCount  int        `json:"download_count"`
	DownloadLimit  *int       `json:"download_limit,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	LastAccessedAt *time.Time `json:"last_accessed_at,omitempty"`
	HasPassword    bool       `json:"has_password"`
}

// DownloadResult carries the released file stream. Callers own Content and
// must close it.
type DownloadResult struct {
	Content     io.ReadCloser
	Filename    string
	ByteSize    int64
	ContentType string
}

// ClientInfo identifies the downloading client for the audit trail.
type ClientInfo struct {
	IP        string
	UserAgent string
}

// ShareService contains the upload and download orchestration logic.
type ShareService struct {
	store ShareStore
	blobs storage.Store
	cfg   *config.Config
	now   func() time.Time
}

// NewShareService creates a new share service.
func NewShareService(store ShareStore, blobs storage.Store, cfg *config.Config) *ShareService {
	return &ShareService{
		store: store,
		blobs: blobs,
		cfg:   cfg,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// Upload validates the request, persists the bytes, and creates the share
// link record. Validation failures persist nothing; a record is only ever
// created after its blob is fully durable.
func (s *ShareService) Upload(ctx context.Context, ownerID, originalName string, data io.Reader, declaredSize int64, opts UploadOptions) (*UploadResult, error) {
	now := s.now()

	// Validation first: all-or-nothing, reject before buffering anything.
	if !extensionAllowed(originalName, s.cfg.AllowedExtensions) {
		return nil, ErrExtensionNotAllowed
	}
	if declaredSize > s.cfg.MaxFileSize {
		return nil, ErrFileTooLarge
	}
	if opts.DownloadLimit != nil && *opts.DownloadLimit <= 0 {
		return nil, ErrInvalidDownloadLimit
	}
	if opts.ExpiryHours != nil && *opts.ExpiryHours <= 0 {
		return nil, ErrInvalidExpiry
	}

	var expiresAt *time.Time
	if opts.ExpiryHours != nil {
		t := now.Add(time.Duration(*opts.ExpiryHours) * time.Hour)
		expiresAt = &t
	}

	var passwordHash *string
	if opts.Password != "" {
		hash, err := access.HashPassword(opts.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		passwordHash = &hash
	}

	storageKey, err := token.NewStorageKey(originalName, now)
	if err != nil {
		return nil, fmt.Errorf("failed to generate storage key: %w", err)
	}

	// Persist the bytes before the record exists. The reader is capped at
	// the configured maximum so an undersized declaration cannot smuggle in
	// more bytes than allowed.
	written, err := s.blobs.Put(ctx, storageKey, io.LimitReader(data, s.cfg.MaxFileSize+1))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageWrite, err)
	}
	if written > s.cfg.MaxFileSize {
		s.discardBlob(ctx, storageKey)
		return nil, ErrFileTooLarge
	}

	link := &database.ShareLink{
		OwnerID:       ownerID,
		StorageKey:    storageKey,
		OriginalName:  token.SanitizeFilename(originalName),
		ByteSize:      written,
		PasswordHash:  passwordHash,
		DownloadLimit: opts.DownloadLimit,
		DownloadCount: 0,
		ExpiresAt:     expiresAt,
		CreatedAt:     now,
	}

	// Identifier collisions are negligible but handled: retry with a fresh
	// id a bounded number of times, then give up and clean up the blob.
	created := false
	for attempt := 0; attempt < maxIDAttempts; attempt++ {
		id, err := token.NewID(token.LinkIDLength)
		if err != nil {
			s.discardBlob(ctx, storageKey)
			return nil, fmt.Errorf("failed to generate link id: %w", err)
		}
		link.ID = id

		err = s.store.Create(ctx, link)
		if err == nil {
			created = true
			break
		}
		if !errors.Is(err, database.ErrDuplicateID) {
			s.discardBlob(ctx, storageKey)
			return nil, fmt.Errorf("failed to create share link: %w", err)
		}
		slog.Warn("link id collision, retrying", "attempt", attempt+1)
	}
	if !created {
		s.discardBlob(ctx, storageKey)
		return nil, ErrDuplicateID
	}

	slog.Info("share link created",
		"link_id", link.ID,
		"owner_id", ownerID,
		"original_name", link.OriginalName,
		"byte_size", written,
		"has_password", passwordHash != nil,
		"download_limit", opts.DownloadLimit,
		"expires_at", expiresAt,
	)

	return &UploadResult{
		ID:           link.ID,
		DownloadURL:  fmt.Sprintf("%s/d/%s", s.cfg.BaseURL, link.ID),
		OriginalName: link.OriginalName,
		ByteSize:     written,
		ExpiresAt:    expiresAt,
		HasPassword:  passwordHash != nil,
	}, nil
}

// Download runs the access evaluation, performs the atomic consume, and only
// then releases bytes. The pure evaluation pass lets a caller prompt for a
// password without spending a download attempt; the consume re-checks expiry
// and limit inside the store because other downloads may land in between.
func (s *ShareService) Download(ctx context.Context, id, suppliedPassword string, client ClientInfo) (*DownloadResult, error) {
	link, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	now := s.now()
	if v := access.Evaluate(link, now, suppliedPassword); v != access.Allowed {
		return nil, verdictError(v)
	}

	result, err := s.store.TryConsumeDownload(ctx, id, now)
	if err != nil {
		return nil, err
	}
	switch result {
	case database.Consumed:
		// fall through to release bytes
	case database.ConsumeNotFound:
		return nil, ErrNotFound
	case database.ConsumeExpired:
		return nil, ErrExpired
	case database.ConsumeLimitReached:
		// Lost the race against a concurrent download; no bytes.
		return nil, ErrLimitReached
	}

	content, err := s.blobs.Get(ctx, link.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			slog.Error("share link record exists but blob is missing",
				"link_id", link.ID,
				"storage_key", link.StorageKey,
			)
			return nil, ErrStorageMissing
		}
		return nil, err
	}

	s.recordEvent(ctx, link.ID, client, now)

	return &DownloadResult{
		Content:     content,
		Filename:    link.OriginalName,
		ByteSize:    link.ByteSize,
		ContentType: contentTypeFor(link.OriginalName),
	}, nil
}

// Info returns share link metadata without consuming a download attempt.
// Expiry and limit are still enforced; a password never is.
func (s *ShareService) Info(ctx context.Context, id string) (*LinkInfo, error) {
	link, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	if v := access.EvaluateInfo(link, s.now()); v != access.Allowed {
		return nil, verdictError(v)
	}

	return linkInfo(link), nil
}

// List returns the owner's share links, newest first.
func (s *ShareService) List(ctx context.Context, ownerID string) ([]*LinkInfo, error) {
	links, err := s.store.ListByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}

	infos := make([]*LinkInfo, 0, len(links))
	for _, link := range links {
		infos = append(infos, linkInfo(link))
	}
	return infos, nil
}

// Delete removes a share link and its blob, owner-checked. The returned bool
// reports whether the blob came off cleanly; a false with nil error means the
// record is gone but the blob lingers, which is surfaced as partial success
// rather than silently swallowed.
func (s *ShareService) Delete(ctx context.Context, id, ownerID string) (blobDeleted bool, err error) {
	link, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrLinkNotFound) {
			return false, ErrNotFound
		}
		return false, err
	}

	result, err := s.store.Delete(ctx, id, ownerID)
	if err != nil {
		return false, err
	}
	switch result {
	case database.DeleteNotFound:
		return false, ErrNotFound
	case database.DeleteForbidden:
		return false, ErrForbidden
	}

	if err := s.blobs.Delete(ctx, link.StorageKey); err != nil {
		slog.Error("share link record deleted but blob removal failed",
			"link_id", id,
			"storage_key", link.StorageKey,
			"error", err,
		)
		return false, nil
	}

	slog.Info("share link deleted", "link_id", id, "owner_id", ownerID)
	return true, nil
}

// Stats returns aggregate server statistics.
func (s *ShareService) Stats(ctx context.Context) (*database.Stats, error) {
	return s.store.GetStats(ctx)
}

// --- Helpers ---

func (s *ShareService) discardBlob(ctx context.Context, key string) {
	if err := s.blobs.Delete(ctx, key); err != nil {
		slog.Error("failed to clean up orphaned blob", "storage_key", key, "error", err)
	}
}

func (s *ShareService) recordEvent(ctx context.Context, linkID string, client ClientInfo, now time.Time) {
	ev := &database.DownloadEvent{
		ID:        uuid.New(),
		LinkID:    linkID,
		IPAddress: client.IP,
		UserAgent: client.UserAgent,
		CreatedAt: now,
	}
	if err := s.store.RecordDownloadEvent(ctx, ev); err != nil {
		slog.Error("failed to record download event", "link_id", linkID, "error", err)
	}
}

func linkInfo(link *database.ShareLink) *LinkInfo {
	return &LinkInfo{
		ID:             link.ID,
		OriginalName:   link.OriginalName,
		ByteSize:       link.ByteSize,
		DownloadCount:  link.DownloadCount,
		DownloadLimit:  link.DownloadLimit,
		ExpiresAt:      link.ExpiresAt,
		CreatedAt:      link.CreatedAt,
		LastAccessedAt: link.LastAccessedAt,
		HasPassword:    link.PasswordHash != nil,
	}
}

func verdictError(v access.Verdict) error {
	switch v {
	case access.NotFound:
		return ErrNotFound
	case access.Expired:
		return ErrExpired
	case access.LimitReached:
		return ErrLimitReached
	case access.PasswordRequired:
		return ErrPasswordRequired
	case access.PasswordIncorrect:
		return ErrPasswordIncorrect
	default:
		return nil
	}
}

func extensionAllowed(filename string, allowed map[string]bool) bool {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(filename), "."))
	if ext == "" {
		return false
	}
	return allowed[ext]
}

func contentTypeFor(filename string) string {
	if ct := mime.TypeByExtension(filepath.Ext(filename)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
