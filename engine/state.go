package engine

import "bytes"

// NoneEngineID tags a State that belongs to no particular engine.
const NoneEngineID = "none"

// State is an engine's serialized context. Data is opaque to everything but
// the engine identified by EngineID.
type State struct {
	Data     []byte `json:"data,omitempty"`
	NTokens  int    `json:"n_tokens"`
	EngineID string `json:"engine_id"`
}

// EmptyState returns an untagged State carrying no context.
func EmptyState() State {
	return State{EngineID: NoneEngineID}
}

// CompatibleWith reports whether an engine identified by engineID can accept
// s. Untagged states are accepted by every engine.
func (s State) CompatibleWith(engineID string) bool {
	return s.Untagged() || s.EngineID == engineID
}

// Untagged reports whether s belongs to no engine.
func (s State) Untagged() bool {
	return s.EngineID == "" || s.EngineID == NoneEngineID
}

func (s State) Clone() State {
	s.Data = bytes.Clone(s.Data)
	return s
}
