// Package storage provides the blob-store collaborators: opaque keys in,
// bytes out. Access-control decisions never live here.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrObjectNotFound is returned by Get when no blob exists for a key.
// Callers translate this into their own integrity error; a missing blob
// behind a live share link is not the same thing as an unknown link.
var ErrObjectNotFound = errors.New("object not found")

// Store is the interface for blob storage backends.
type Store interface {
	// Put writes the blob for key and returns the number of bytes stored.
	// The blob must be fully durable when Put returns: record creation
	// happens after, and a record must never reference a partial write.
	Put(ctx context.Context, key string, data io.Reader) (int64, error)

	// Get opens the blob for key, or returns ErrObjectNotFound.
	Get(ctx context.Context, key string) (io.ReadCloser, error)

	// Delete removes the blob for key. Deleting a missing blob is not an
	// error.
	Delete(ctx context.Context, key string) error
}
