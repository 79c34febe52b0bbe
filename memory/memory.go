// Package memory provides capacity-bounded semantic memory for the runtime.
// Entries carry text, an embedding vector, and metadata; retrieval is by
// exact key or by cosine similarity against a query embedding.
//
// Memory is safe for concurrent use. Snapshots taken with State or written
// with Persist are deep copies and can be restored with SetState or Load.
package memory

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"sync"
	"time"

	"github.com/tailored-agentic-units/cortex/storage"
)

// Memory validates embedding dimensions, stamps creation times, and applies
// similarity thresholds over a VectorStore.
type Memory struct {
	store        *VectorStore
	embeddingDim int
	searchK      int
	threshold    float32
	mu           sync.RWMutex
}

// New creates an empty Memory from configuration. Zero EmbeddingDim,
// MaxEntries, and DefaultSearchK fall back to their defaults;
// SimilarityThreshold is used as given.
func New(cfg Config) *Memory {
	c := DefaultConfig()
	c.Merge(&cfg)

	return &Memory{
		store:        NewVectorStore(c.MaxEntries),
		embeddingDim: c.EmbeddingDim,
		searchK:      c.DefaultSearchK,
		threshold:    cfg.SimilarityThreshold,
	}
}

// Write stores content under key, replacing any previous entry for the key.
func (m *Memory) Write(key, content string, embedding []float32) error {
	return m.WriteWithMetadata(key, content, embedding, nil)
}

// WriteWithMetadata is Write with caller-supplied metadata.
func (m *Memory) WriteWithMetadata(key, content string, embedding []float32, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(embedding) != m.embeddingDim {
		return &DimensionMismatchError{Expected: m.embeddingDim, Actual: len(embedding)}
	}

	m.store.Remove(key)
	m.store.Insert(Entry{
		Key:       key,
		Content:   content,
		Embedding: slices.Clone(embedding),
		Metadata:  maps.Clone(metadata),
		CreatedAt: time.Now().UTC(),
	})
	return nil
}

// Read returns a copy of the entry stored under key.
func (m *Memory) Read(key string) (Entry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.store.Get(key)
	if !ok {
		return Entry{}, false
	}
	return e.Clone(), true
}

// Delete removes key and reports whether it was present.
func (m *Memory) Delete(key string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.store.Remove(key)
}

// Search returns up to k entries most similar to query whose score meets the
// configured threshold. A negative configured threshold disables filtering.
// k <= 0 uses the configured default.
func (m *Memory) Search(query []float32, k int) []SearchResult {
	m.mu.RLock()
	threshold := m.threshold
	if k <= 0 {
		k = m.searchK
	}
	m.mu.RUnlock()

	if threshold < 0 {
		return m.search(query, k, nil)
	}
	return m.SearchWithThreshold(query, k, threshold)
}

// SearchWithThreshold returns up to k entries most similar to query, dropping
// results that score below threshold.
func (m *Memory) SearchWithThreshold(query []float32, k int, threshold float32) []SearchResult {
	return m.search(query, k, &threshold)
}

func (m *Memory) search(query []float32, k int, threshold *float32) []SearchResult {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := m.store.Search(query, k)
	out := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if threshold != nil && r.Score < *threshold {
			continue
		}
		out = append(out, SearchResult{Entry: r.Entry.Clone(), Score: r.Score})
	}
	return out
}

// Entries returns copies of all entries in insertion order.
func (m *Memory) Entries() []Entry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked().Entries
}

func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.Len()
}

func (m *Memory) IsEmpty() bool {
	return m.Len() == 0
}

func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.store.Clear()
}

// EmbeddingDim returns the embedding length every entry must have.
func (m *Memory) EmbeddingDim() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.embeddingDim
}

// MaxEntries returns the store capacity.
func (m *Memory) MaxEntries() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.store.MaxEntries()
}

// State returns a deep copy of the memory contents and shape.
func (m *Memory) State() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshotLocked()
}

func (m *Memory) snapshotLocked() Snapshot {
	entries := m.store.Entries()
	for i := range entries {
		entries[i] = entries[i].Clone()
	}
	return Snapshot{
		EmbeddingDim: m.embeddingDim,
		MaxEntries:   m.store.MaxEntries(),
		Entries:      entries,
	}
}

// SetState replaces the memory contents with snap, adopting its dimension
// and capacity. Entries are re-inserted in order, so a snapshot larger than
// its own capacity keeps only the newest entries. The memory is left
// unchanged if any entry has the wrong dimension.
func (m *Memory) SetState(snap Snapshot) error {
	if snap.EmbeddingDim <= 0 {
		return fmt.Errorf("%w: embedding dimension %d", ErrSerialization, snap.EmbeddingDim)
	}
	for _, e := range snap.Entries {
		if len(e.Embedding) != snap.EmbeddingDim {
			return &DimensionMismatchError{Expected: snap.EmbeddingDim, Actual: len(e.Embedding)}
		}
	}

	store := NewVectorStore(snap.MaxEntries)
	for _, e := range snap.Entries {
		store.Remove(e.Key)
		store.Insert(e.Clone())
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.store = store
	m.embeddingDim = snap.EmbeddingDim
	return nil
}

// Persist atomically writes the memory snapshot to path.
func (m *Memory) Persist(path string) error {
	data, err := m.State().MarshalBinary()
	if err != nil {
		return err
	}
	if err := storage.WriteFile(path, data); err != nil {
		return fmt.Errorf("persist memory: %w", err)
	}
	return nil
}

// ReadSnapshot reads a snapshot file written by Persist.
func ReadSnapshot(path string) (Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Snapshot{}, fmt.Errorf("read memory snapshot: %w", err)
	}

	var snap Snapshot
	if err := snap.UnmarshalBinary(data); err != nil {
		return Snapshot{}, err
	}
	return snap, nil
}

// Load creates a Memory from a snapshot file written by Persist. Search
// settings come from DefaultConfig.
func Load(path string) (*Memory, error) {
	snap, err := ReadSnapshot(path)
	if err != nil {
		return nil, err
	}

	m := New(DefaultConfig())
	if err := m.SetState(snap); err != nil {
		return nil, err
	}
	return m, nil
}
