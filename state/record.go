// Package state snapshots and restores the runtime's working state.
//
// A Record captures the conversation, the memory contents, and the engine's
// opaque context at one moment. Store retains a bounded number of records,
// optionally mirrored to disk; CheckpointManager keeps a cheap index of
// their handles; Branch forks a record into an independent copy.
package state

import (
	"fmt"
	"maps"
	"os"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/engine"
	"github.com/tailored-agentic-units/cortex/memory"
	"github.com/tailored-agentic-units/cortex/storage"
)

// Record is a full snapshot of runtime state. The ID is assigned once by
// NewRecord; Store copies records on the way in and out.
type Record struct {
	ID        string             `json:"id"`
	Name      string             `json:"name,omitempty"`
	Messages  []protocol.Message `json:"messages"`
	Memory    memory.Snapshot    `json:"memory"`
	Engine    engine.State       `json:"engine_state"`
	CreatedAt time.Time          `json:"created_at"`
	Metadata  map[string]string  `json:"metadata,omitempty"`
}

// NewRecord builds a record with a fresh UUIDv7 identifier and the current
// time. Inputs are copied.
func NewRecord(messages []protocol.Message, mem memory.Snapshot, engineState engine.State) *Record {
	return &Record{
		ID:        uuid.Must(uuid.NewV7()).String(),
		Messages:  slices.Clone(messages),
		Memory:    mem.Clone(),
		Engine:    engineState.Clone(),
		CreatedAt: time.Now().UTC(),
		Metadata:  make(map[string]string),
	}
}

// WithName labels the record and returns it.
func (r *Record) WithName(name string) *Record {
	r.Name = name
	return r
}

// WithMetadata sets a metadata key and returns the record.
func (r *Record) WithMetadata(key, value string) *Record {
	if r.Metadata == nil {
		r.Metadata = make(map[string]string)
	}
	r.Metadata[key] = value
	return r
}

// Clone returns a deep copy of r, including its ID.
func (r *Record) Clone() *Record {
	c := *r
	c.Messages = slices.Clone(r.Messages)
	c.Memory = r.Memory.Clone()
	c.Engine = r.Engine.Clone()
	c.Metadata = maps.Clone(r.Metadata)
	return &c
}

// Save atomically writes the record to path.
func (r *Record) Save(path string) error {
	data, err := r.MarshalBinary()
	if err != nil {
		return err
	}
	if err := storage.WriteFile(path, data); err != nil {
		return fmt.Errorf("save record %s: %w", r.ID, err)
	}
	return nil
}

// LoadRecord reads a record written by Record.Save.
func LoadRecord(path string) (*Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("load record: %w", err)
	}

	var r Record
	if err := r.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return &r, nil
}
