package database

import (
	"time"

	"github.com/google/uuid"
)

// ShareLink is the persisted record binding a public link identifier to a
// stored file and its access controls. Everything except DownloadCount and
// LastAccessedAt is immutable after creation.
type ShareLink struct {
	ID             string
	OwnerID        string
	StorageKey     string
	OriginalName   string
	ByteSize       int64
	PasswordHash   *string // nil when no password set
	DownloadLimit  *int    // nil when unlimited
	DownloadCount  int
	ExpiresAt      *time.Time // nil when the link never expires
	CreatedAt      time.Time
	LastAccessedAt *time.Time
}

// Expired reports whether the link's expiry timestamp has passed.
// A link downloaded at exactly ExpiresAt is still downloadable.
func (l *ShareLink) Expired(now time.Time) bool {
	return l.ExpiresAt != nil && now.After(*l.ExpiresAt)
}

// LimitExhausted reports whether the download ceiling has been reached.
func (l *ShareLink) LimitExhausted() bool {
	return l.DownloadLimit != nil && l.DownloadCount >= *l.DownloadLimit
}

// DownloadEvent is an audit row recorded after each successful download.
type DownloadEvent struct {
	ID        uuid.UUID
	LinkID    string
	IPAddress string
	UserAgent string
	CreatedAt time.Time
}

// Stats holds aggregate server statistics.
type Stats struct {
	TotalLinks     int64
	ActiveLinks    int64
	TotalDownloads int64
	StorageUsed    int64
}

// ConsumeResult is the outcome of the atomic check-and-increment performed
// by TryConsumeDownload.
type ConsumeResult int

const (
	Consumed ConsumeResult = iota
	ConsumeNotFound
	ConsumeExpired
	ConsumeLimitReached
)

// DeleteResult is the outcome of an owner-checked delete.
type DeleteResult int

const (
	Deleted DeleteResult = iota
	DeleteNotFound
	DeleteForbidden
)
