// Package claude implements engine.TextEngine over the Anthropic Messages
// API. Embeddings are delegated to a configurable engine.Embedder because the
// API does not produce them.
package claude

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/engine"
)

const (
	EngineID           = "claude"
	DefaultModel       = "claude-sonnet-4-5"
	defaultContextSize = 200_000
	defaultMaxTokens   = 1024
)

// Engine is a TextEngine and ChatEngine backed by Claude.
type Engine struct {
	client      anthropic.Client
	model       string
	embedder    engine.Embedder
	contextSize int
	contextUsed int
	mu          sync.Mutex
}

// Option configures an Engine after config-driven initialization.
type Option func(*Engine)

// WithEmbedder overrides the default HashEmbedder.
func WithEmbedder(e engine.Embedder) Option {
	return func(c *Engine) { c.embedder = e }
}

// WithClient overrides the config-created API client.
func WithClient(client anthropic.Client) Option {
	return func(c *Engine) { c.client = client }
}

// New creates an Engine from configuration. An empty APIKey falls back to the
// SDK's own resolution.
func New(cfg *engine.Config, opts ...Option) *Engine {
	var clientOpts []option.RequestOption
	if cfg.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, option.WithBaseURL(cfg.BaseURL))
	}

	e := &Engine{
		client:      anthropic.NewClient(clientOpts...),
		model:       cfg.Model,
		embedder:    engine.NewHashEmbedder(cfg.EmbeddingDim),
		contextSize: cfg.ContextSize,
	}
	if e.model == "" {
		e.model = DefaultModel
	}
	if e.contextSize <= 0 {
		e.contextSize = defaultContextSize
	}

	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) ID() string { return EngineID }

func (e *Engine) Model() string { return e.model }

func (e *Engine) EmbeddingDim() int { return e.embedder.Dimensions() }

func (e *Engine) ContextSize() int { return e.contextSize }

func (e *Engine) ContextUsed() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.contextUsed
}

func (e *Engine) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.embedder.Embed(ctx, text)
}

// Generate sends prompt as a single user turn.
func (e *Engine) Generate(ctx context.Context, prompt string, cfg engine.GenerationConfig) (string, error) {
	return e.Chat(ctx, protocol.InitMessages(protocol.RoleUser, prompt), cfg, nil)
}

func (e *Engine) GenerateStreaming(ctx context.Context, prompt string, cfg engine.GenerationConfig, fn engine.StreamFunc) (string, error) {
	return e.Chat(ctx, protocol.InitMessages(protocol.RoleUser, prompt), cfg, fn)
}

// Chat sends messages to the Messages API. System messages are joined into
// the system prompt; tool results are sent as user turns. A non-nil fn
// switches to streaming.
func (e *Engine) Chat(ctx context.Context, messages []protocol.Message, cfg engine.GenerationConfig, fn engine.StreamFunc) (string, error) {
	params := e.buildParams(messages, cfg)

	if fn != nil {
		return e.stream(ctx, params, fn)
	}

	resp, err := e.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}

	e.addUsage(resp.Usage.InputTokens + resp.Usage.OutputTokens)
	return b.String(), nil
}

func (e *Engine) stream(ctx context.Context, params anthropic.MessageNewParams, fn engine.StreamFunc) (string, error) {
	stream := e.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	var (
		b      strings.Builder
		tokens int64
	)
	for stream.Next() {
		switch evt := stream.Current().AsAny().(type) {
		case anthropic.MessageStartEvent:
			tokens += evt.Message.Usage.InputTokens
		case anthropic.MessageDeltaEvent:
			tokens += evt.Usage.OutputTokens
		case anthropic.ContentBlockDeltaEvent:
			if delta, ok := evt.Delta.AsAny().(anthropic.TextDelta); ok {
				b.WriteString(delta.Text)
				if !fn(delta.Text) {
					e.addUsage(tokens)
					return b.String(), nil
				}
			}
		}
	}
	if err := stream.Err(); err != nil {
		return b.String(), fmt.Errorf("claude API error: %w", err)
	}

	e.addUsage(tokens)
	return b.String(), nil
}

func (e *Engine) buildParams(messages []protocol.Message, cfg engine.GenerationConfig) anthropic.MessageNewParams {
	var (
		system []string
		turns  []anthropic.MessageParam
	)
	for _, m := range messages {
		switch m.Role {
		case protocol.RoleSystem:
			system = append(system, m.Content)
		case protocol.RoleAssistant:
			turns = append(turns, anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content)))
		default:
			turns = append(turns, anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content)))
		}
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(e.model),
		MaxTokens:   int64(maxTokens),
		Messages:    turns,
		Temperature: anthropic.Float(min(max(cfg.Temperature, 0), 1)),
	}
	if len(system) > 0 {
		params.System = []anthropic.TextBlockParam{{Text: strings.Join(system, "\n\n")}}
	}
	if cfg.TopK > 0 {
		params.TopK = anthropic.Int(int64(cfg.TopK))
	}
	if len(cfg.Stop) > 0 {
		params.StopSequences = cfg.Stop
	}
	return params
}

func (e *Engine) addUsage(tokens int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contextUsed += int(tokens)
}

// State records token usage only; conversation context lives in the
// runtime's message history.
func (e *Engine) State() (engine.State, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return engine.State{NTokens: e.contextUsed, EngineID: EngineID}, nil
}

func (e *Engine) SetState(state engine.State) error {
	if !state.CompatibleWith(EngineID) {
		return &engine.IncompatibleStateError{Engine: EngineID, Tag: state.EngineID}
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.contextUsed = state.NTokens
	return nil
}

func (e *Engine) Clear() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.contextUsed = 0
}
