package engine

import (
	"context"
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"sync"
)

const (
	StubEngineID        = "stub"
	defaultEmbeddingDim = 4096
	defaultContextSize  = 8192
	stubPromptPreview   = 30
)

// Stub is an offline TextEngine for tests and local runs. It embeds with a
// HashEmbedder and answers every prompt with a fixed description of the
// request.
type Stub struct {
	embedder    *HashEmbedder
	contextSize int
	contextUsed int
	prefix      string
	mu          sync.Mutex
}

// StubOption configures a Stub.
type StubOption func(*Stub)

// WithResponsePrefix prepends prefix to every generated response.
func WithResponsePrefix(prefix string) StubOption {
	return func(s *Stub) { s.prefix = prefix }
}

// WithStubEmbeddingDim overrides the embedding length.
func WithStubEmbeddingDim(dim int) StubOption {
	return func(s *Stub) { s.embedder = NewHashEmbedder(dim) }
}

// WithStubContextSize overrides the reported context size.
func WithStubContextSize(n int) StubOption {
	return func(s *Stub) { s.contextSize = n }
}

// NewStub creates a Stub with 4096-dimension embeddings and an 8192-token
// context.
func NewStub(opts ...StubOption) *Stub {
	s := &Stub{
		embedder:    NewHashEmbedder(defaultEmbeddingDim),
		contextSize: defaultContextSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Stub) ID() string { return StubEngineID }

func (s *Stub) EmbeddingDim() int { return s.embedder.Dimensions() }

func (s *Stub) ContextSize() int { return s.contextSize }

func (s *Stub) ContextUsed() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.contextUsed
}

func (s *Stub) Embed(ctx context.Context, text string) ([]float32, error) {
	return s.embedder.Embed(ctx, text)
}

func (s *Stub) Generate(ctx context.Context, prompt string, cfg GenerationConfig) (string, error) {
	return s.GenerateStreaming(ctx, prompt, cfg, nil)
}

// GenerateStreaming emits the response word by word, each chunk keeping its
// trailing space.
func (s *Stub) GenerateStreaming(ctx context.Context, prompt string, cfg GenerationConfig, fn StreamFunc) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	preview := []rune(prompt)
	if len(preview) > stubPromptPreview {
		preview = preview[:stubPromptPreview]
	}
	response := fmt.Sprintf("%s[Stub response for: \"%s\", temp=%s, max=%d]",
		s.prefix,
		string(preview),
		strconv.FormatFloat(cfg.Temperature, 'g', -1, 64),
		cfg.MaxTokens,
	)

	var out strings.Builder
	for chunk := range strings.SplitAfterSeq(response, " ") {
		out.WriteString(chunk)
		if fn != nil && !fn(chunk) {
			break
		}
	}

	s.mu.Lock()
	s.contextUsed += len(prompt)/4 + out.Len()/4
	s.mu.Unlock()

	return out.String(), nil
}

// State encodes the consumed token count.
func (s *Stub) State() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return State{
		Data:     binary.AppendUvarint(nil, uint64(s.contextUsed)),
		NTokens:  s.contextUsed,
		EngineID: StubEngineID,
	}, nil
}

func (s *Stub) SetState(state State) error {
	if !state.CompatibleWith(StubEngineID) {
		return &IncompatibleStateError{Engine: StubEngineID, Tag: state.EngineID}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextUsed = state.NTokens
	return nil
}

func (s *Stub) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contextUsed = 0
}
