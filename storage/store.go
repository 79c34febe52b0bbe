// Package storage provides durable key-value persistence for runtime
// artifacts such as checkpoint records. Keys are /-separated relative paths
// and values are opaque bytes.
package storage

import (
	"context"
	"strings"
)

// Store persists opaque values under relative keys. Implementations are
// stateless; every call performs I/O.
type Store interface {
	// Load retrieves the value for key. Returns ErrKeyNotFound when absent.
	Load(ctx context.Context, key string) ([]byte, error)
	// Save persists value under key, replacing any previous value atomically.
	Save(ctx context.Context, key string, value []byte) error
	// Delete removes key. Missing keys are ignored.
	Delete(ctx context.Context, key string) error
}

// ValidKey reports whether key is a clean relative path that cannot escape
// the store root.
func ValidKey(key string) bool {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsRune(key, '\\') {
		return false
	}
	for _, part := range strings.Split(key, "/") {
		if part == "" || part == "." || part == ".." {
			return false
		}
	}
	return true
}
