package storage

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func newTestStore(t *testing.T) *FileSystemStore {
	t.Helper()
	fs := NewFileSystemStore(t.TempDir())
	if err := fs.EnsureDir(); err != nil {
		t.Fatalf("EnsureDir failed: %v", err)
	}
	return fs
}

func TestFileSystemStorePutGet(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	content := []byte("hello droplink")
	n, err := fs.Put(ctx, "report_20260301_120000_abc123.txt", bytes.NewReader(content))
	if err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if n != int64(len(content)) {
		t.Errorf("expected %d bytes written, got %d", len(content), n)
	}

	rc, err := fs.Get(ctx, "report_20260301_120000_abc123.txt")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	defer rc.Close()

	got, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !bytes.Equal(got, content) {
		t.Errorf("round-trip mismatch: got %q, want %q", got, content)
	}
}

func TestFileSystemStoreGetMissing(t *testing.T) {
	fs := newTestStore(t)

	_, err := fs.Get(context.Background(), "nope_20260301_120000_zzzzzz.bin")
	if !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound, got %v", err)
	}
}

func TestFileSystemStoreDelete(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	if _, err := fs.Put(ctx, "gone.bin", strings.NewReader("bye")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := fs.Delete(ctx, "gone.bin"); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := fs.Get(ctx, "gone.bin"); !errors.Is(err, ErrObjectNotFound) {
		t.Errorf("expected ErrObjectNotFound after delete, got %v", err)
	}

	t.Run("deleting missing blob is not an error", func(t *testing.T) {
		if err := fs.Delete(ctx, "never-existed.bin"); err != nil {
			t.Errorf("unexpected error: %v", err)
		}
	})
}

func TestFileSystemStoreKeyCannotEscapeBase(t *testing.T) {
	fs := newTestStore(t)
	ctx := context.Background()

	if _, err := fs.Put(ctx, "../escape.txt", strings.NewReader("x")); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	// The blob must land inside the base directory, not one level up.
	if _, err := os.Stat(filepath.Join(fs.basePath, "escape.txt")); err != nil {
		t.Errorf("expected blob inside base directory: %v", err)
	}
	if _, err := os.Stat(filepath.Join(fs.basePath, "..", "escape.txt")); err == nil {
		t.Error("blob escaped the base directory")
	}
}
