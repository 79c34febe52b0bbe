package memory

import (
	"maps"
	"slices"
	"time"
)

// Entry is a single memory: text content, its embedding, and caller-supplied
// metadata. Keys are unique within a store.
type Entry struct {
	Key       string            `json:"key"`
	Content   string            `json:"content"`
	Embedding []float32         `json:"embedding"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// Clone returns a deep copy of e.
func (e Entry) Clone() Entry {
	e.Embedding = slices.Clone(e.Embedding)
	e.Metadata = maps.Clone(e.Metadata)
	return e
}

// SearchResult pairs a matched entry with its cosine similarity to the query.
type SearchResult struct {
	Entry Entry   `json:"entry"`
	Score float32 `json:"score"`
}

// Snapshot is the complete serializable state of a Memory. Entries are held
// in insertion order, oldest first.
type Snapshot struct {
	EmbeddingDim int     `json:"embedding_dim"`
	MaxEntries   int     `json:"max_entries"`
	Entries      []Entry `json:"entries"`
}

// Clone returns a deep copy of s.
func (s Snapshot) Clone() Snapshot {
	entries := make([]Entry, len(s.Entries))
	for i, e := range s.Entries {
		entries[i] = e.Clone()
	}
	s.Entries = entries
	return s
}
