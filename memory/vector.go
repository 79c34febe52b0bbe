package memory

import (
	"cmp"
	"math"
	"slices"
)

// VectorStore is a capacity-bounded map from key to Entry that remembers
// insertion order. When full, Insert evicts the oldest inserted entry.
//
// VectorStore performs no locking and no key deduplication; Memory wraps it
// with both.
type VectorStore struct {
	entries    map[string]Entry
	order      []string
	maxEntries int
}

// NewVectorStore creates an empty store holding at most maxEntries entries.
// Non-positive capacities fall back to DefaultMaxEntries.
func NewVectorStore(maxEntries int) *VectorStore {
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &VectorStore{
		entries:    make(map[string]Entry),
		maxEntries: maxEntries,
	}
}

// Insert appends entry, first evicting the oldest entry when the store is at
// capacity. The caller must ensure entry.Key is not already present.
func (s *VectorStore) Insert(entry Entry) {
	if len(s.order) >= s.maxEntries {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.entries, oldest)
	}
	s.entries[entry.Key] = entry
	s.order = append(s.order, entry.Key)
}

func (s *VectorStore) Get(key string) (Entry, bool) {
	e, ok := s.entries[key]
	return e, ok
}

// Remove deletes key and reports whether it was present.
func (s *VectorStore) Remove(key string) bool {
	if _, ok := s.entries[key]; !ok {
		return false
	}
	delete(s.entries, key)
	if i := slices.Index(s.order, key); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
	return true
}

// Search scores every entry against the normalized query and returns the
// top k by descending cosine similarity. Equal scores keep insertion order.
// NaN scores rank last.
func (s *VectorStore) Search(query []float32, k int) []SearchResult {
	if k <= 0 || len(s.order) == 0 {
		return nil
	}

	q := Normalize(query)
	results := make([]SearchResult, 0, len(s.order))
	for _, key := range s.order {
		e := s.entries[key]
		score := CosineSimilarity(q, e.Embedding)
		if math.IsNaN(float64(score)) {
			score = float32(math.Inf(-1))
		}
		results = append(results, SearchResult{Entry: e, Score: score})
	}

	slices.SortStableFunc(results, func(a, b SearchResult) int {
		return cmp.Compare(b.Score, a.Score)
	})

	if len(results) > k {
		results = results[:k]
	}
	return results
}

// Entries returns the stored entries in insertion order.
func (s *VectorStore) Entries() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, key := range s.order {
		out = append(out, s.entries[key])
	}
	return out
}

// Keys returns the stored keys in insertion order.
func (s *VectorStore) Keys() []string {
	return slices.Clone(s.order)
}

func (s *VectorStore) Len() int { return len(s.order) }

func (s *VectorStore) MaxEntries() int { return s.maxEntries }

func (s *VectorStore) Clear() {
	clear(s.entries)
	s.order = nil
}

// CosineSimilarity returns the cosine of the angle between a and b. Vectors of
// different lengths and zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		normA += x * x
		normB += y * y
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(normA) * math.Sqrt(normB)))
}

// Normalize returns a unit-length copy of v. Zero vectors are returned as a
// zero copy.
func Normalize(v []float32) []float32 {
	out := make([]float32, len(v))
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return out
	}
	norm := math.Sqrt(sum)
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}
