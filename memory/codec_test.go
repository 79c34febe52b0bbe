package memory_test

import (
	"errors"
	"testing"

	"github.com/tailored-agentic-units/cortex/memory"
)

func TestSnapshot_MarshalBinary_EmptyStore(t *testing.T) {
	snap := memory.Snapshot{EmbeddingDim: 3, MaxEntries: 7}

	data, err := snap.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}

	var got memory.Snapshot
	if err := got.UnmarshalBinary(data); err != nil {
		t.Fatalf("UnmarshalBinary() error = %v", err)
	}
	if got.EmbeddingDim != 3 || got.MaxEntries != 7 || len(got.Entries) != 0 {
		t.Errorf("got %+v, want dim 3, max 7, no entries", got)
	}
}

func TestSnapshot_UnmarshalBinary_DimensionDisagreement(t *testing.T) {
	snap := memory.Snapshot{
		EmbeddingDim: 3,
		MaxEntries:   7,
		Entries:      []memory.Entry{{Key: "k", Embedding: []float32{1, 2}}},
	}

	data, err := snap.MarshalBinary()
	if err != nil {
		t.Fatalf("MarshalBinary() error = %v", err)
	}

	var got memory.Snapshot
	if err := got.UnmarshalBinary(data); !errors.Is(err, memory.ErrSerialization) {
		t.Errorf("UnmarshalBinary() error = %v, want ErrSerialization", err)
	}
}
