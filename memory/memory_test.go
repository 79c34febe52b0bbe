package memory_test

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/tailored-agentic-units/cortex/memory"
)

const testDim = 64

func newMemory(t *testing.T, maxEntries int) *memory.Memory {
	t.Helper()
	cfg := memory.DefaultConfig()
	cfg.EmbeddingDim = testDim
	cfg.MaxEntries = maxEntries
	return memory.New(cfg)
}

// makeEmbedding returns a deterministic unit vector for seed.
func makeEmbedding(seed float64) []float32 {
	v := make([]float32, testDim)
	for i := range v {
		v[i] = float32(math.Sin(float64(i) * seed))
	}
	return memory.Normalize(v)
}

func TestMemory_WriteRead(t *testing.T) {
	m := newMemory(t, 10)

	if err := m.Write("greeting", "hello world", makeEmbedding(1)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	e, ok := m.Read("greeting")
	if !ok {
		t.Fatal("Read() missed a written key")
	}
	if e.Content != "hello world" {
		t.Errorf("Read().Content = %q, want %q", e.Content, "hello world")
	}
	if e.CreatedAt.IsZero() {
		t.Error("Read().CreatedAt should be stamped")
	}
	if _, ok := m.Read("missing"); ok {
		t.Error("Read(missing) should miss")
	}
}

func TestMemory_Write_DimensionMismatch(t *testing.T) {
	m := newMemory(t, 10)

	err := m.Write("short", "x", make([]float32, testDim-1))

	var dimErr *memory.DimensionMismatchError
	if !errors.As(err, &dimErr) {
		t.Fatalf("Write() error = %v, want DimensionMismatchError", err)
	}
	if dimErr.Expected != testDim || dimErr.Actual != testDim-1 {
		t.Errorf("got expected=%d actual=%d, want %d/%d", dimErr.Expected, dimErr.Actual, testDim, testDim-1)
	}
	if !errors.Is(err, memory.ErrDimensionMismatch) {
		t.Error("error should match ErrDimensionMismatch")
	}
	if !m.IsEmpty() {
		t.Error("rejected write must not mutate the store")
	}
}

func TestMemory_Write_SameKeyReplaces(t *testing.T) {
	m := newMemory(t, 10)

	if err := m.Write("k", "first", makeEmbedding(1)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := m.Write("other", "other", makeEmbedding(2)); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	second := makeEmbedding(3)
	if err := m.Write("k", "second", second); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if m.Len() != 2 {
		t.Errorf("Len() = %d, want 2", m.Len())
	}
	e, _ := m.Read("k")
	if e.Content != "second" || e.Embedding[5] != second[5] {
		t.Errorf("Read(k) = %q, want the second write", e.Content)
	}

	// The rewritten key moves to the newest insertion position.
	entries := m.Entries()
	if entries[len(entries)-1].Key != "k" {
		t.Errorf("last entry = %q, want k", entries[len(entries)-1].Key)
	}
}

func TestMemory_Capacity(t *testing.T) {
	const n = 4
	m := newMemory(t, n)

	for i := range n + 1 {
		key := string(rune('a' + i))
		if err := m.Write(key, key, makeEmbedding(float64(i+1))); err != nil {
			t.Fatalf("Write(%s) error = %v", key, err)
		}
	}

	if m.Len() != n {
		t.Errorf("Len() = %d, want %d", m.Len(), n)
	}
	if _, ok := m.Read("a"); ok {
		t.Error("first inserted key should be evicted")
	}
	if _, ok := m.Read("e"); !ok {
		t.Error("newest key should be present")
	}
}

func TestMemory_Search(t *testing.T) {
	m := newMemory(t, 100)
	for i := range 10 {
		key := "entry_" + string(rune('0'+i))
		if err := m.Write(key, key, makeEmbedding(float64(i)*0.1+0.05)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	results := m.Search(makeEmbedding(float64(5)*0.1+0.05), 3)
	if len(results) == 0 {
		t.Fatal("Search() returned no results")
	}
	if results[0].Entry.Key != "entry_5" {
		t.Errorf("best match = %q, want entry_5", results[0].Entry.Key)
	}
	if math.Abs(float64(results[0].Score)-1) > 1e-5 {
		t.Errorf("best score = %v, want 1", results[0].Score)
	}
	for _, r := range results {
		if r.Score < 0.7 {
			t.Errorf("result %q scored %v, below configured threshold", r.Entry.Key, r.Score)
		}
	}
}

func TestMemory_SearchWithThreshold_Unbounded(t *testing.T) {
	m := newMemory(t, 100)
	for i := range 7 {
		if err := m.Write(string(rune('a'+i)), "x", makeEmbedding(float64(i)+0.3)); err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	negInf := float32(math.Inf(-1))
	for _, k := range []int{1, 5, 7, 20} {
		results := m.SearchWithThreshold(makeEmbedding(0.9), k, negInf)
		if len(results) != min(k, m.Len()) {
			t.Errorf("k=%d: got %d results, want %d", k, len(results), min(k, m.Len()))
		}
		for i := 1; i < len(results); i++ {
			if results[i].Score > results[i-1].Score {
				t.Errorf("k=%d: scores not non-increasing at %d: %v > %v", k, i, results[i].Score, results[i-1].Score)
			}
		}
	}
}

func TestMemory_Search_NegativeThresholdDisablesFilter(t *testing.T) {
	cfg := memory.Config{EmbeddingDim: 2, SimilarityThreshold: -1}
	m := memory.New(cfg)
	if err := m.Write("x", "x", []float32{1, 0}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := m.Write("y", "y", []float32{0, 1}); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	if got := m.Search([]float32{1, 0}, 0); len(got) != 2 {
		t.Errorf("Search() returned %d results, want 2", len(got))
	}
}

func TestMemory_Delete(t *testing.T) {
	m := newMemory(t, 10)
	_ = m.Write("k", "v", makeEmbedding(1))

	if !m.Delete("k") {
		t.Error("Delete(k) = false, want true")
	}
	if m.Delete("k") {
		t.Error("Delete(k) twice = true, want false")
	}
}

func TestMemory_ReadReturnsCopy(t *testing.T) {
	m := newMemory(t, 10)
	_ = m.WriteWithMetadata("k", "v", makeEmbedding(1), map[string]string{"source": "test"})

	e, _ := m.Read("k")
	e.Embedding[0] = 42
	e.Metadata["source"] = "mutated"

	again, _ := m.Read("k")
	if again.Embedding[0] == 42 {
		t.Error("mutating a read embedding leaked into the store")
	}
	if again.Metadata["source"] != "test" {
		t.Error("mutating read metadata leaked into the store")
	}
}

func TestMemory_PersistLoad(t *testing.T) {
	m := newMemory(t, 50)
	keys := []string{"zeta", "alpha", "mid"}
	for i, key := range keys {
		err := m.WriteWithMetadata(key, "content "+key, makeEmbedding(float64(i)+1), map[string]string{"i": key})
		if err != nil {
			t.Fatalf("Write() error = %v", err)
		}
	}

	path := filepath.Join(t.TempDir(), "memory.bin")
	if err := m.Persist(path); err != nil {
		t.Fatalf("Persist() error = %v", err)
	}

	loaded, err := memory.Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if loaded.EmbeddingDim() != testDim {
		t.Errorf("EmbeddingDim() = %d, want %d", loaded.EmbeddingDim(), testDim)
	}
	if loaded.MaxEntries() != 50 {
		t.Errorf("MaxEntries() = %d, want 50", loaded.MaxEntries())
	}

	want := m.Entries()
	got := loaded.Entries()
	if len(got) != len(want) {
		t.Fatalf("loaded %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Key != want[i].Key {
			t.Errorf("entry %d key = %q, want %q", i, got[i].Key, want[i].Key)
		}
		if got[i].Content != want[i].Content {
			t.Errorf("entry %d content = %q, want %q", i, got[i].Content, want[i].Content)
		}
		if got[i].Metadata["i"] != want[i].Metadata["i"] {
			t.Errorf("entry %d metadata = %v, want %v", i, got[i].Metadata, want[i].Metadata)
		}
		if !got[i].CreatedAt.Equal(want[i].CreatedAt) {
			t.Errorf("entry %d created_at = %v, want %v", i, got[i].CreatedAt, want[i].CreatedAt)
		}
		for j := range want[i].Embedding {
			if got[i].Embedding[j] != want[i].Embedding[j] {
				t.Fatalf("entry %d embedding[%d] = %v, want %v", i, j, got[i].Embedding[j], want[i].Embedding[j])
			}
		}
	}
}

func TestLoad_Corrupt(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name string
		data []byte
	}{
		{"foreign format", []byte(`{"entries": []}`)},
		{"truncated", []byte("CTXM\x01\x08")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(dir, tt.name)
			if err := os.WriteFile(path, tt.data, 0o644); err != nil {
				t.Fatalf("WriteFile() error = %v", err)
			}

			if _, err := memory.Load(path); !errors.Is(err, memory.ErrSerialization) {
				t.Errorf("Load() error = %v, want ErrSerialization", err)
			}
		})
	}
}

func TestLoad_Missing(t *testing.T) {
	_, err := memory.Load(filepath.Join(t.TempDir(), "absent.bin"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestMemory_StateIsolation(t *testing.T) {
	m := newMemory(t, 10)
	_ = m.Write("before", "before", makeEmbedding(1))

	snap := m.State()
	_ = m.Write("after", "after", makeEmbedding(2))
	snap.Entries[0].Embedding[0] = 99

	if err := m.SetState(snap); err != nil {
		t.Fatalf("SetState() error = %v", err)
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}
	if _, ok := m.Read("after"); ok {
		t.Error("entry written after the snapshot should be gone")
	}

	snap.Entries[0].Content = "changed later"
	e, _ := m.Read("before")
	if e.Content != "before" {
		t.Error("SetState must copy the snapshot, not alias it")
	}
}

func TestMemory_SetState_RejectsBadEntries(t *testing.T) {
	m := newMemory(t, 10)
	_ = m.Write("keep", "keep", makeEmbedding(1))

	bad := memory.Snapshot{
		EmbeddingDim: testDim,
		MaxEntries:   10,
		Entries:      []memory.Entry{{Key: "x", Embedding: []float32{1}}},
	}
	if err := m.SetState(bad); !errors.Is(err, memory.ErrDimensionMismatch) {
		t.Errorf("SetState() error = %v, want ErrDimensionMismatch", err)
	}
	if _, ok := m.Read("keep"); !ok {
		t.Error("failed SetState must leave memory unchanged")
	}
}

func TestMemory_ConcurrentWrites(t *testing.T) {
	m := newMemory(t, 1000)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := range 10 {
				key := string(rune('A'+i)) + string(rune('a'+j))
				if err := m.Write(key, key, makeEmbedding(float64(i*10+j)+0.5)); err != nil {
					t.Errorf("Write() error = %v", err)
				}
				m.Search(makeEmbedding(0.5), 3)
			}
		}(i)
	}
	wg.Wait()

	if m.Len() != 200 {
		t.Errorf("Len() = %d, want 200", m.Len())
	}
}
