package state_test

import (
	"testing"
	"time"

	"github.com/tailored-agentic-units/cortex/state"
)

func handle(id string) state.Checkpoint {
	return state.Checkpoint{ID: id, Name: "cp-" + id, CreatedAt: time.Now()}
}

func TestCheckpointManager_Empty(t *testing.T) {
	m := state.NewCheckpointManager(3)

	if _, ok := m.Latest(); ok {
		t.Error("Latest() on empty manager should miss")
	}
	if _, ok := m.Get("x"); ok {
		t.Error("Get() on empty manager should miss")
	}
	if len(m.List()) != 0 {
		t.Errorf("List() = %v, want empty", m.List())
	}
}

func TestCheckpointManager_Retention(t *testing.T) {
	m := state.NewCheckpointManager(3)
	for _, id := range []string{"a", "b", "c", "d", "e"} {
		m.Record(handle(id))
	}

	list := m.List()
	want := []string{"c", "d", "e"}
	if len(list) != len(want) {
		t.Fatalf("List() has %d handles, want %d", len(list), len(want))
	}
	for i, id := range want {
		if list[i].ID != id {
			t.Errorf("List()[%d] = %q, want %q", i, list[i].ID, id)
		}
	}

	latest, ok := m.Latest()
	if !ok || latest.ID != "e" {
		t.Errorf("Latest() = %q, %v; want e", latest.ID, ok)
	}
	if _, ok := m.Get("a"); ok {
		t.Error("Get(a) should miss after eviction")
	}
	if c, ok := m.Get("d"); !ok || c.Name != "cp-d" {
		t.Errorf("Get(d) = %+v, %v", c, ok)
	}
}

func TestCheckpointManager_RemoveClear(t *testing.T) {
	m := state.NewCheckpointManager(10)
	m.Record(handle("a"))
	m.Record(handle("b"))

	if !m.Remove("a") {
		t.Error("Remove(a) = false, want true")
	}
	if m.Remove("a") {
		t.Error("second Remove(a) = true, want false")
	}
	if m.Len() != 1 {
		t.Errorf("Len() = %d, want 1", m.Len())
	}

	m.Clear()
	if m.Len() != 0 {
		t.Errorf("Len() after Clear() = %d, want 0", m.Len())
	}
}

func TestFromRecord(t *testing.T) {
	rec := testRecord(t, "x").WithName("named")
	c := state.FromRecord(rec)

	if c.ID != rec.ID || c.Name != "named" || !c.CreatedAt.Equal(rec.CreatedAt) {
		t.Errorf("FromRecord() = %+v, want projection of %s", c, rec.ID)
	}
}
