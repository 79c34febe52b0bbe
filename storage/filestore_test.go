package storage_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/tailored-agentic-units/cortex/storage"
)

func TestFileStore_SaveLoad(t *testing.T) {
	root := filepath.Join(t.TempDir(), "checkpoints")
	store := storage.NewFileStore(root)
	ctx := context.Background()

	if err := store.Save(ctx, "abc.ckpt", []byte("v1")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if err := store.Save(ctx, "abc.ckpt", []byte("v2")); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	got, err := store.Load(ctx, "abc.ckpt")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if string(got) != "v2" {
		t.Errorf("Load() = %q, want %q", got, "v2")
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		t.Fatalf("ReadDir() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("root holds %d files, want 1 (no temp files left behind)", len(entries))
	}
}

func TestFileStore_Load_KeyNotFound(t *testing.T) {
	store := storage.NewFileStore(t.TempDir())

	_, err := store.Load(context.Background(), "missing.ckpt")
	if !errors.Is(err, storage.ErrKeyNotFound) {
		t.Errorf("Load() error = %v, want %v", err, storage.ErrKeyNotFound)
	}
}

func TestFileStore_InvalidKeys(t *testing.T) {
	store := storage.NewFileStore(t.TempDir())
	ctx := context.Background()

	for _, key := range []string{"", "../escape", "/abs", "a//b", `a\b`, "a/./b"} {
		t.Run(key, func(t *testing.T) {
			if err := store.Save(ctx, key, []byte("x")); !errors.Is(err, storage.ErrInvalidKey) {
				t.Errorf("Save(%q) error = %v, want ErrInvalidKey", key, err)
			}
			if _, err := store.Load(ctx, key); !errors.Is(err, storage.ErrInvalidKey) {
				t.Errorf("Load(%q) error = %v, want ErrInvalidKey", key, err)
			}
		})
	}
}

func TestFileStore_Save_Unwritable(t *testing.T) {
	root := t.TempDir()
	blocker := filepath.Join(root, "blocker")
	writeTestFile(t, root, "blocker", "file, not a directory")

	store := storage.NewFileStore(blocker)
	err := store.Save(context.Background(), "x.ckpt", []byte("x"))
	if !errors.Is(err, storage.ErrSaveFailed) {
		t.Errorf("Save() error = %v, want ErrSaveFailed", err)
	}
}

func TestFileStore_Delete(t *testing.T) {
	root := t.TempDir()
	writeTestFile(t, root, "sessions/a.ckpt", "content")

	store := storage.NewFileStore(root)

	if err := store.Delete(context.Background(), "sessions/a.ckpt"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "sessions", "a.ckpt")); !os.IsNotExist(err) {
		t.Error("file should not exist after Delete")
	}
	if _, err := os.Stat(filepath.Join(root, "sessions")); !os.IsNotExist(err) {
		t.Error("empty parent directory should be removed after Delete")
	}
	if _, err := os.Stat(root); err != nil {
		t.Errorf("root should survive Delete: %v", err)
	}
}

func TestFileStore_Delete_NonExistent(t *testing.T) {
	store := storage.NewFileStore(t.TempDir())

	if err := store.Delete(context.Background(), "nonexistent.ckpt"); err != nil {
		t.Errorf("Delete() error = %v, want nil for missing key", err)
	}
}

func TestWriteFile_CreatesParents(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "memory.bin")

	if err := storage.WriteFile(path, []byte("data")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(got) != "data" {
		t.Errorf("file content = %q, want %q", got, "data")
	}
}

func TestValidKey(t *testing.T) {
	tests := []struct {
		key  string
		want bool
	}{
		{"abc.ckpt", true},
		{"nested/abc.ckpt", true},
		{"", false},
		{"..", false},
		{"a/../b", false},
		{"/etc/passwd", false},
	}

	for _, tt := range tests {
		if got := storage.ValidKey(tt.key); got != tt.want {
			t.Errorf("ValidKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

// writeTestFile creates a file with the given content under root.
func writeTestFile(t *testing.T, root, key, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(key))
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("MkdirAll() error = %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
}
