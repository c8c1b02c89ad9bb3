package token

import (
	"strings"
	"testing"
	"time"
)

func TestNewID(t *testing.T) {
	t.Run("generates correct length", func(t *testing.T) {
		for _, length := range []int{6, 12, 24, 32} {
			id, err := NewID(length)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(id) != length {
				t.Errorf("expected length %d, got %d", length, len(id))
			}
		}
	})

	t.Run("generates unique tokens", func(t *testing.T) {
		seen := make(map[string]bool)
		for i := 0; i < 100; i++ {
			id, err := NewID(LinkIDLength)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if seen[id] {
				t.Fatalf("duplicate token generated: %s", id)
			}
			seen[id] = true
		}
	})

	t.Run("only contains alphanumeric characters", func(t *testing.T) {
		id, err := NewID(200)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		for _, c := range id {
			if !strings.ContainsRune(alphabet, c) {
				t.Errorf("token contains invalid character: %c", c)
			}
		}
	})
}

func TestNewStorageKey(t *testing.T) {
	now := time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

	t.Run("embeds name, timestamp and random suffix", func(t *testing.T) {
		key, err := NewStorageKey("report.pdf", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !strings.HasPrefix(key, "report_20260314_092653_") {
			t.Errorf("unexpected key prefix: %s", key)
		}
		if !strings.HasSuffix(key, ".pdf") {
			t.Errorf("expected .pdf suffix, got %s", key)
		}
		// base + "_" + timestamp + "_" + 6 random chars + ext
		wantLen := len("report_20260314_092653_") + 6 + len(".pdf")
		if len(key) != wantLen {
			t.Errorf("expected key length %d, got %d (%s)", wantLen, len(key), key)
		}
	})

	t.Run("same name twice yields distinct keys", func(t *testing.T) {
		a, err := NewStorageKey("photo.jpg", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		b, err := NewStorageKey("photo.jpg", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if a == b {
			t.Errorf("expected distinct keys, both were %s", a)
		}
	})

	t.Run("strips directory components", func(t *testing.T) {
		key, err := NewStorageKey("../../etc/passwd.txt", now)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if strings.Contains(key, "/") || strings.Contains(key, "..") {
			t.Errorf("key contains path components: %s", key)
		}
	})
}

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain name", "notes.txt", "notes.txt"},
		{"unix path", "/tmp/secret/data.zip", "data.zip"},
		{"windows path", `C:\Users\me\doc.pdf`, "doc.pdf"},
		{"empty", "", "upload.bin"},
		{"dot", ".", "upload.bin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}

	t.Run("caps very long names", func(t *testing.T) {
		long := strings.Repeat("a", 300) + ".txt"
		got := SanitizeFilename(long)
		if len(got) > 255 {
			t.Errorf("expected capped length, got %d", len(got))
		}
		if !strings.HasSuffix(got, ".txt") {
			t.Errorf("extension lost: %s", got)
		}
	})
}
