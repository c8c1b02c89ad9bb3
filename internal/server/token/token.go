// Package token generates the opaque identifiers used in share URLs and
// blob-store keys. All randomness comes from crypto/rand; there is no
// fallback to a weaker source.
package token

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path/filepath"
	"strings"
	"time"
)

const alphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// LinkIDLength is the length of public link identifiers.
// 12 alphanumeric characters give roughly 71 bits of entropy, enough to
// make enumeration of other users' links impractical.
const LinkIDLength = 12

// storageKeySuffixLength is the random tail appended to storage keys so
// same-named uploads never collide.
const storageKeySuffixLength = 6

// NewID produces a random alphanumeric token of the given length.
// It returns an error only if the secure random source fails; callers must
// treat that as fatal rather than substituting a predictable value.
func NewID(length int) (string, error) {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(int64(len(alphabet))))
		if err != nil {
			return "", fmt.Errorf("crypto/rand failure: %w", err)
		}
		result[i] = alphabet[n.Int64()]
	}
	return string(result), nil
}

// NewStorageKey derives a blob-store key from an uploaded filename:
// the sanitized base name, a UTC timestamp, and a short random suffix.
func NewStorageKey(originalName string, now time.Time) (string, error) {
	name := SanitizeFilename(originalName)
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	suffix, err := NewID(storageKeySuffixLength)
	if err != nil {
		return "", err
	}

	return fmt.Sprintf("%s_%s_%s%s", base, now.UTC().Format("20060102_150405"), suffix, ext), nil
}

// SanitizeFilename strips directory components and limits length.
func SanitizeFilename(name string) string {
	// Normalize Windows-style backslashes to forward slashes before
	// calling filepath.Base, which is platform-specific.
	name = strings.ReplaceAll(name, "\\", "/")

	// Take only the base name
	name = filepath.Base(name)

	// Limit length
	if len(name) > 255 {
		ext := filepath.Ext(name)
		name = name[:255-len(ext)] + ext
	}

	if name == "" || name == "." || name == "/" {
		name = "upload.bin"
	}

	return name
}
