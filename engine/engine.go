// Package engine defines the boundary between the runtime and the inference
// backends that produce embeddings and generate text. Backends are opaque to
// the runtime: their context is exchanged only as a tagged State blob.
package engine

import (
	"context"

	"github.com/tailored-agentic-units/cortex/core/protocol"
)

// StreamFunc receives generated text chunk by chunk and returns whether
// generation should continue.
type StreamFunc func(chunk string) bool

// TextEngine generates text and embeddings. Implementations need not be safe
// for concurrent use; the kernel serializes calls.
type TextEngine interface {
	// ID names the backend. It tags every State the engine produces.
	ID() string
	// EmbeddingDim is the length of vectors returned by Embed.
	EmbeddingDim() int
	// ContextSize is the maximum number of context tokens.
	ContextSize() int
	// ContextUsed is the number of tokens consumed so far.
	ContextUsed() int
	Embed(ctx context.Context, text string) ([]float32, error)
	Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error)
	// GenerateStreaming passes each chunk to fn and stops early when fn
	// returns false. The returned text holds every chunk delivered to fn.
	GenerateStreaming(ctx context.Context, prompt string, cfg GenerationConfig, fn StreamFunc) (string, error)
	State() (State, error)
	// SetState restores a blob produced by State. Blobs tagged for another
	// engine are rejected with ErrIncompatibleState.
	SetState(state State) error
	// Clear discards the engine context.
	Clear()
}

// ChatEngine is implemented by engines that accept structured conversations
// directly instead of a templated prompt. fn may be nil.
type ChatEngine interface {
	Chat(ctx context.Context, messages []protocol.Message, cfg GenerationConfig, fn StreamFunc) (string, error)
}

// Embedder produces fixed-length embedding vectors for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Dimensions() int
}

type engineEmbedder struct {
	engine TextEngine
}

// AsEmbedder exposes the embedding half of a TextEngine as an Embedder.
func AsEmbedder(e TextEngine) Embedder {
	return engineEmbedder{engine: e}
}

func (e engineEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.engine.Embed(ctx, text)
}

func (e engineEmbedder) Dimensions() int {
	return e.engine.EmbeddingDim()
}
