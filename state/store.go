package state

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto"

	"github.com/tailored-agentic-units/cortex/observability"
	"github.com/tailored-agentic-units/cortex/storage"
)

// FileExtension is appended to record ids to form checkpoint file names.
const FileExtension = ".ckpt"

// Store retains up to MaxCheckpoints records in memory, evicting the oldest
// saved record when the limit is exceeded. With a directory configured every
// record is written to disk before it is registered, and Load falls back to
// disk for ids no longer held in memory.
//
// Store is safe for concurrent use.
type Store struct {
	records  map[string]*Record
	order    []string
	files    storage.Store
	cache    *ristretto.Cache
	limit    int
	observer observability.Observer
	mu       sync.RWMutex
}

// StoreOption configures a Store after config-driven initialization.
type StoreOption func(*Store)

// WithObserver sets the observer that receives store events.
func WithObserver(o observability.Observer) StoreOption {
	return func(s *Store) { s.observer = o }
}

// WithFileStore overrides the config-created disk store.
func WithFileStore(files storage.Store) StoreOption {
	return func(s *Store) { s.files = files }
}

// NewStore creates a Store from configuration.
func NewStore(cfg *Config, opts ...StoreOption) (*Store, error) {
	limit := cfg.MaxCheckpoints
	if limit <= 0 {
		limit = DefaultMaxCheckpoints
	}

	s := &Store{
		records:  make(map[string]*Record),
		limit:    limit,
		observer: observability.NoOpObserver{},
	}
	if cfg.Directory != "" {
		s.files = storage.NewFileStore(cfg.Directory)
	}

	for _, opt := range opts {
		opt(s)
	}

	if s.files != nil && cfg.CacheBytes > 0 {
		cache, err := newRecordCache(cfg.CacheBytes)
		if err != nil {
			return nil, fmt.Errorf("failed to create record cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

func newRecordCache(maxBytes int64) (*ristretto.Cache, error) {
	// Roughly one counter per 400 bytes, ten per expected 4 KiB record.
	counters := max(maxBytes/400, 1000)
	return ristretto.NewCache(&ristretto.Config{
		NumCounters: counters,
		MaxCost:     maxBytes,
		BufferItems: 64,
	})
}

// Save stores a copy of rec and returns its id. When a directory is
// configured the record is written to disk first; a write failure aborts the
// save and leaves the store unchanged.
func (s *Store) Save(ctx context.Context, rec *Record) (string, error) {
	if rec == nil {
		return "", errors.New("nil record")
	}
	if !validID(rec.ID) {
		return "", fmt.Errorf("%w: unusable id %q", ErrInvalidCheckpoint, rec.ID)
	}
	c := rec.Clone()

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.files != nil {
		data, err := c.MarshalBinary()
		if err != nil {
			return "", err
		}
		if err := s.files.Save(ctx, fileKey(c.ID), data); err != nil {
			return "", err
		}
		s.uncache(c.ID)
	}

	if _, exists := s.records[c.ID]; exists {
		s.unorder(c.ID)
	}
	s.records[c.ID] = c
	s.order = append(s.order, c.ID)

	for len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.records, oldest)
		s.removeFile(ctx, oldest)

		s.emit(ctx, EventEvict, observability.LevelVerbose, map[string]any{"id": oldest})
	}

	s.emit(ctx, EventSave, observability.LevelVerbose, map[string]any{
		"id":      c.ID,
		"name":    c.Name,
		"records": len(s.order),
	})
	return c.ID, nil
}

// Load returns a copy of the record with the given id, consulting memory
// first and then disk. Missing ids yield a CheckpointNotFoundError.
func (s *Store) Load(ctx context.Context, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if rec, ok := s.records[id]; ok {
		return rec.Clone(), nil
	}
	if s.files == nil || !validID(id) {
		return nil, &CheckpointNotFoundError{ID: id}
	}

	if s.cache != nil {
		if v, ok := s.cache.Get(id); ok {
			return v.(*Record).Clone(), nil
		}
	}

	data, err := s.files.Load(ctx, fileKey(id))
	if err != nil {
		if errors.Is(err, storage.ErrKeyNotFound) {
			return nil, &CheckpointNotFoundError{ID: id}
		}
		return nil, err
	}

	var rec Record
	if err := rec.UnmarshalBinary(data); err != nil {
		return nil, fmt.Errorf("checkpoint %s: %w", id, err)
	}
	if rec.ID != id {
		return nil, fmt.Errorf("%w: file for %s holds record %s", ErrSerialization, id, rec.ID)
	}

	if s.cache != nil {
		s.cache.Set(id, rec.Clone(), int64(len(data)))
	}

	s.emit(ctx, EventLoad, observability.LevelVerbose, map[string]any{"id": id, "source": "disk"})
	return &rec, nil
}

// Delete removes id from memory and, best-effort, from disk. It reports
// whether an in-memory record was removed.
func (s *Store) Delete(ctx context.Context, id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, existed := s.records[id]
	if existed {
		delete(s.records, id)
		s.unorder(id)
	}
	if validID(id) {
		s.removeFile(ctx, id)
	}

	s.emit(ctx, EventDelete, observability.LevelVerbose, map[string]any{"id": id, "existed": existed})
	return existed
}

// List returns retained ids, oldest first.
func (s *Store) List() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.order)
}

func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// Close releases the read cache.
func (s *Store) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

func (s *Store) unorder(id string) {
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

func (s *Store) uncache(id string) {
	if s.cache != nil {
		s.cache.Del(id)
	}
}

// removeFile deletes the disk copy of id. Failures are reported to the
// observer and otherwise ignored.
func (s *Store) removeFile(ctx context.Context, id string) {
	s.uncache(id)
	if s.files == nil {
		return
	}
	if err := s.files.Delete(ctx, fileKey(id)); err != nil {
		s.emit(ctx, EventCleanupFailed, observability.LevelWarning, map[string]any{
			"id":    id,
			"error": err.Error(),
		})
	}
}

func (s *Store) emit(ctx context.Context, typ observability.EventType, level observability.Level, data map[string]any) {
	s.observer.OnEvent(ctx, observability.Event{
		Type:      typ,
		Level:     level,
		Timestamp: time.Now(),
		Source:    "state.Store",
		Data:      data,
	})
}

func fileKey(id string) string {
	return id + FileExtension
}

// validID reports whether id can name a checkpoint file directly under the
// store directory.
func validID(id string) bool {
	return id != "" && !strings.ContainsAny(id, `/\`) && storage.ValidKey(fileKey(id))
}
