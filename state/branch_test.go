package state_test

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/state"
)

func TestBranch_IsIndependent(t *testing.T) {
	s := newStore(t, state.DefaultConfig())
	ctx := context.Background()

	id, err := s.Save(ctx, testRecord(t, "origin"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	rec, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	b := state.NewBranch(id, rec)
	if b.ID() == "" || b.ID() == id {
		t.Errorf("branch id %q should be fresh", b.ID())
	}
	if parsed, err := uuid.Parse(b.ID()); err != nil || parsed.Version() != 7 {
		t.Errorf("branch id %q is not a UUIDv7 (err = %v)", b.ID(), err)
	}
	if b.ParentID() != id {
		t.Errorf("ParentID() = %q, want %q", b.ParentID(), id)
	}

	// Mutating the source record after forking does not reach the branch.
	rec.Messages[1].Content = "changed source"
	if b.State().Messages[1].Content != "origin" {
		t.Error("branch must deep copy the record it forks")
	}

	b.State().Messages = append(b.State().Messages, protocol.UserMessage("branch only"))
	b.State().Memory.Entries[0].Embedding[0] = -1
	b.State().Engine.Data[0] = 99

	stored, err := s.Load(ctx, id)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(stored.Messages) != 3 {
		t.Errorf("stored record has %d messages, want 3", len(stored.Messages))
	}
	if stored.Memory.Entries[0].Embedding[0] != 1 {
		t.Error("branch mutation leaked into stored memory snapshot")
	}
	if stored.Engine.Data[0] != 1 {
		t.Error("branch mutation leaked into stored engine state")
	}
}

func TestBranch_IntoState(t *testing.T) {
	b := state.NewBranch("parent", testRecord(t, "x"))
	rec := b.IntoState()

	if rec == nil || rec.Messages[1].Content != "x" {
		t.Fatalf("IntoState() = %+v", rec)
	}
	if b.State() != nil {
		t.Error("branch should be empty after IntoState()")
	}
}
