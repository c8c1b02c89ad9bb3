package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// FileSystemStore keeps blobs as plain files under a base directory.
type FileSystemStore struct {
	basePath string
}

// NewFileSystemStore creates a new filesystem storage backend.
func NewFileSystemStore(basePath string) *FileSystemStore {
	return &FileSystemStore{basePath: basePath}
}

// EnsureDir creates the storage directory if it doesn't exist.
func (fs *FileSystemStore) EnsureDir() error {
	if err := os.MkdirAll(fs.basePath, 0755); err != nil {
		return fmt.Errorf("failed to create storage directory %s: %w", fs.basePath, err)
	}
	return nil
}

// Put writes data to a file named after the key and syncs it to disk before
// returning. A failed write leaves no partial file behind.
func (fs *FileSystemStore) Put(_ context.Context, key string, data io.Reader) (int64, error) {
	filePath := fs.filePath(key)

	file, err := os.Create(filePath)
	if err != nil {
		return 0, fmt.Errorf("failed to create file %s: %w", filePath, err)
	}

	n, err := io.Copy(file, data)
	if err != nil {
		file.Close()
		os.Remove(filePath)
		return 0, fmt.Errorf("failed to write file: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(filePath)
		return 0, fmt.Errorf("failed to sync file: %w", err)
	}

	if err := file.Close(); err != nil {
		os.Remove(filePath)
		return 0, fmt.Errorf("failed to close file: %w", err)
	}

	return n, nil
}

// Get opens the stored blob for reading.
func (fs *FileSystemStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	file, err := os.Open(fs.filePath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrObjectNotFound
		}
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	return file, nil
}

// Delete removes the stored blob for a key.
func (fs *FileSystemStore) Delete(_ context.Context, key string) error {
	filePath := fs.filePath(key)
	if err := os.Remove(filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete file %s: %w", filePath, err)
	}
	return nil
}

// filePath maps a key to a path under basePath. Keys are generated
// server-side without separators, but filepath.Base guards against a key
// ever escaping the directory.
func (fs *FileSystemStore) filePath(key string) string {
	return filepath.Join(fs.basePath, filepath.Base(key))
}
