// Package kernel implements the runtime that composes an inference engine,
// semantic memory, conversation history, and checkpointed state.
//
// The kernel initializes from configuration via New, creating all subsystems
// internally. Functional options allow test overrides of any subsystem.
//
//	k, err := kernel.New(&cfg)
//	k.Remember(ctx, "user_pref", "likes jazz")
//	cp, err := k.Checkpoint(ctx)
//	reply, err := k.Chat(ctx, protocol.UserMessage("Hello"))
//	err = k.Restore(ctx, cp)
package kernel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"sync"
	"time"

	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/engine"
	"github.com/tailored-agentic-units/cortex/engine/claude"
	"github.com/tailored-agentic-units/cortex/memory"
	"github.com/tailored-agentic-units/cortex/observability"
	"github.com/tailored-agentic-units/cortex/session"
	"github.com/tailored-agentic-units/cortex/state"
)

// Option configures a Kernel before config-driven initialization fills in
// the subsystems it leaves unset.
type Option func(*Kernel)

// WithEngine overrides the config-created engine.
func WithEngine(e engine.TextEngine) Option {
	return func(k *Kernel) { k.engine = e }
}

// WithEmbedder overrides the engine as the source of memory embeddings.
func WithEmbedder(e engine.Embedder) Option {
	return func(k *Kernel) { k.embedder = e }
}

// WithObserver overrides the observer named in the config.
func WithObserver(o observability.Observer) Option {
	return func(k *Kernel) { k.observer = o }
}

// WithSession overrides the config-created session.
func WithSession(s session.Session) Option {
	return func(k *Kernel) { k.session = s }
}

// Kernel is the runtime. All operations are serialized; the kernel is safe
// for concurrent use even though engines are not.
type Kernel struct {
	engine      engine.TextEngine
	embedder    engine.Embedder
	memory      *memory.Memory
	store       *state.Store
	checkpoints *state.CheckpointManager
	session     session.Session
	observer    observability.Observer

	template     engine.ChatTemplate
	generation   engine.GenerationConfig
	systemPrompt string
	persistPath  string

	autoInterval    int
	sinceCheckpoint int
	mu              sync.Mutex
}

// New creates a Kernel from configuration. Options run first; any subsystem
// they leave unset is then built from its config section.
func New(cfg *Config, opts ...Option) (*Kernel, error) {
	k := &Kernel{
		generation:   cfg.Generation,
		systemPrompt: cfg.SystemPrompt,
		persistPath:  cfg.Memory.PersistPath,
		autoInterval: cfg.State.AutoCheckpointInterval,
	}

	for _, opt := range opts {
		opt(k)
	}

	if k.observer == nil {
		name := cfg.Observer
		if name == "" {
			name = defaultObserver
		}
		obs, err := observability.GetObserver(name)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve observer: %w", err)
		}
		k.observer = obs
	}

	if k.engine == nil {
		e, err := newEngine(&cfg.Engine)
		if err != nil {
			return nil, fmt.Errorf("failed to create engine: %w", err)
		}
		k.engine = e
	}
	if k.embedder == nil {
		k.embedder = engine.AsEmbedder(k.engine)
	}

	tmpl, err := engine.ParseChatTemplate(string(cfg.Engine.Template))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chat template: %w", err)
	}
	k.template = tmpl

	mem, err := newMemory(cfg.Memory, k.embedder.Dimensions())
	if err != nil {
		return nil, fmt.Errorf("failed to create memory: %w", err)
	}
	k.memory = mem

	store, err := state.NewStore(&cfg.State, state.WithObserver(k.observer))
	if err != nil {
		return nil, fmt.Errorf("failed to create state store: %w", err)
	}
	k.store = store
	k.checkpoints = state.NewCheckpointManager(cfg.State.MaxCheckpoints)

	if k.session == nil {
		sesh, err := session.New(&cfg.Session)
		if err != nil {
			return nil, fmt.Errorf("failed to create session: %w", err)
		}
		k.session = sesh
	}

	return k, nil
}

func newEngine(cfg *engine.Config) (engine.TextEngine, error) {
	switch cfg.Provider {
	case "", engine.ProviderStub:
		return engine.NewStubFromConfig(cfg), nil
	case engine.ProviderClaude:
		return claude.New(cfg), nil
	}
	return nil, fmt.Errorf("%w: %s", engine.ErrUnknownProvider, cfg.Provider)
}

// newMemory builds the memory subsystem, taking the embedder's dimension when
// the config leaves it unset and restoring PersistPath when the file exists.
func newMemory(cfg memory.Config, dim int) (*memory.Memory, error) {
	if cfg.EmbeddingDim <= 0 {
		cfg.EmbeddingDim = dim
	}
	mem := memory.New(cfg)

	if cfg.PersistPath == "" {
		return mem, nil
	}
	snap, err := memory.ReadSnapshot(cfg.PersistPath)
	if errors.Is(err, fs.ErrNotExist) {
		return mem, nil
	}
	if err != nil {
		return nil, err
	}
	if err := mem.SetState(snap); err != nil {
		return nil, err
	}
	return mem, nil
}

// Memory returns the kernel's memory for direct access.
func (k *Kernel) Memory() *memory.Memory {
	return k.memory
}

// Engine returns the active text engine.
func (k *Kernel) Engine() engine.TextEngine {
	return k.engine
}

// ContextSize returns the engine's maximum context in tokens.
func (k *Kernel) ContextSize() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.engine.ContextSize()
}

// ContextUsed returns the tokens the engine has consumed so far.
func (k *Kernel) ContextUsed() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.engine.ContextUsed()
}

// Generate completes a raw prompt with the configured generation settings.
// The conversation history is not touched.
func (k *Kernel) Generate(ctx context.Context, prompt string) (string, error) {
	return k.GenerateWithConfig(ctx, prompt, k.generation)
}

// GenerateWithConfig completes a raw prompt with explicit settings.
func (k *Kernel) GenerateWithConfig(ctx context.Context, prompt string, cfg engine.GenerationConfig) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	out, err := k.engine.Generate(ctx, prompt, cfg)
	if err != nil {
		k.emitError(ctx, "kernel.Generate", err)
		return "", err
	}
	return out, nil
}

// GenerateStreaming completes a raw prompt, passing each chunk to fn until it
// returns false.
func (k *Kernel) GenerateStreaming(ctx context.Context, prompt string, cfg engine.GenerationConfig, fn engine.StreamFunc) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	out, err := k.engine.GenerateStreaming(ctx, prompt, cfg, fn)
	if err != nil {
		k.emitError(ctx, "kernel.GenerateStreaming", err)
		return "", err
	}
	return out, nil
}

// Chat appends msgs to the conversation, generates a reply over the full
// history, and appends the reply. On failure the history is left as it was.
func (k *Kernel) Chat(ctx context.Context, msgs ...protocol.Message) (string, error) {
	return k.ChatWithConfig(ctx, k.generation, msgs...)
}

// ChatWithConfig is Chat with explicit generation settings.
func (k *Kernel) ChatWithConfig(ctx context.Context, cfg engine.GenerationConfig, msgs ...protocol.Message) (string, error) {
	return k.chat(ctx, cfg, nil, msgs)
}

// ChatStreaming is Chat with the reply streamed to fn. When fn stops the
// stream early, the partial reply is what gets appended.
func (k *Kernel) ChatStreaming(ctx context.Context, cfg engine.GenerationConfig, fn engine.StreamFunc, msgs ...protocol.Message) (string, error) {
	return k.chat(ctx, cfg, fn, msgs)
}

func (k *Kernel) chat(ctx context.Context, cfg engine.GenerationConfig, fn engine.StreamFunc, msgs []protocol.Message) (string, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	history := append(k.session.Messages(), msgs...)

	reply, err := k.respond(ctx, k.withSystemPrompt(history), cfg, fn)
	if err != nil {
		k.emitError(ctx, "kernel.Chat", err)
		return "", err
	}

	for _, m := range msgs {
		k.session.AddMessage(m)
	}
	k.session.AddMessage(protocol.AssistantMessage(reply))

	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventChat,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "kernel.Chat",
		Data: map[string]any{
			"messages":       len(msgs),
			"history":        len(history) + 1,
			"reply_length":   len(reply),
			"context_used":   k.engine.ContextUsed(),
			"context_window": k.engine.ContextSize(),
		},
	})

	if err := k.autoCheckpoint(ctx, len(msgs)+1); err != nil {
		return reply, err
	}
	return reply, nil
}

func (k *Kernel) respond(ctx context.Context, messages []protocol.Message, cfg engine.GenerationConfig, fn engine.StreamFunc) (string, error) {
	if ce, ok := k.engine.(engine.ChatEngine); ok {
		return ce.Chat(ctx, messages, cfg, fn)
	}

	prompt := k.template.Format(messages)
	if fn == nil {
		return k.engine.Generate(ctx, prompt, cfg)
	}
	return k.engine.GenerateStreaming(ctx, prompt, cfg, fn)
}

func (k *Kernel) withSystemPrompt(history []protocol.Message) []protocol.Message {
	if k.systemPrompt == "" || (len(history) > 0 && history[0].Role == protocol.RoleSystem) {
		return history
	}

	messages := make([]protocol.Message, 0, len(history)+1)
	messages = append(messages, protocol.SystemMessage(k.systemPrompt))
	messages = append(messages, history...)
	return messages
}

// Messages returns a copy of the conversation history.
func (k *Kernel) Messages() []protocol.Message {
	return k.session.Messages()
}

// ClearMessages discards the conversation history and the engine context.
func (k *Kernel) ClearMessages() {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.session.Clear()
	k.engine.Clear()
	k.sinceCheckpoint = 0
}

// Remember embeds content and stores it in memory under key.
func (k *Kernel) Remember(ctx context.Context, key, content string) error {
	return k.RememberWithMetadata(ctx, key, content, nil)
}

// RememberWithMetadata is Remember with caller-supplied metadata.
func (k *Kernel) RememberWithMetadata(ctx context.Context, key, content string, metadata map[string]string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	embedding, err := k.embedder.Embed(ctx, content)
	if err != nil {
		k.emitError(ctx, "kernel.Remember", err)
		return fmt.Errorf("embed %q: %w", key, err)
	}
	if err := k.memory.WriteWithMetadata(key, content, embedding, metadata); err != nil {
		k.emitError(ctx, "kernel.Remember", err)
		return err
	}

	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventRemember,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "kernel.Remember",
		Data: map[string]any{
			"key":     key,
			"entries": k.memory.Len(),
		},
	})
	return nil
}

// Recall returns the contents of up to k memories most similar to query that
// meet the configured similarity threshold.
func (k *Kernel) Recall(ctx context.Context, query string, n int) ([]string, error) {
	results, err := k.RecallResults(ctx, query, n)
	if err != nil {
		return nil, err
	}

	contents := make([]string, len(results))
	for i, r := range results {
		contents[i] = r.Entry.Content
	}
	return contents, nil
}

// RecallResults is Recall returning full entries and scores.
func (k *Kernel) RecallResults(ctx context.Context, query string, n int) ([]memory.SearchResult, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	embedding, err := k.embedder.Embed(ctx, query)
	if err != nil {
		k.emitError(ctx, "kernel.Recall", err)
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results := k.memory.Search(embedding, n)

	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventRecall,
		Level:     observability.LevelVerbose,
		Timestamp: time.Now(),
		Source:    "kernel.Recall",
		Data: map[string]any{
			"k":       n,
			"results": len(results),
		},
	})
	return results, nil
}

// Forget removes key from memory and reports whether it was present.
func (k *Kernel) Forget(key string) bool {
	return k.memory.Delete(key)
}

// Checkpoint snapshots the conversation, memory, and engine context.
func (k *Kernel) Checkpoint(ctx context.Context) (state.Checkpoint, error) {
	return k.CheckpointNamed(ctx, "")
}

// CheckpointNamed is Checkpoint with a label.
func (k *Kernel) CheckpointNamed(ctx context.Context, name string) (state.Checkpoint, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	rec, err := k.checkpointLocked(ctx, name)
	if err != nil {
		k.emitError(ctx, "kernel.Checkpoint", err)
		return state.Checkpoint{}, err
	}
	return state.FromRecord(rec), nil
}

// checkpointLocked saves a record to the store and indexes its handle. The
// store and the manager share one retention limit, so both evict alike.
func (k *Kernel) checkpointLocked(ctx context.Context, name string) (*state.Record, error) {
	engineState, err := k.engine.State()
	if err != nil {
		return nil, fmt.Errorf("capture engine state: %w", err)
	}

	rec := state.NewRecord(k.session.Messages(), k.memory.State(), engineState).WithName(name)
	if _, err := k.store.Save(ctx, rec); err != nil {
		return nil, err
	}
	k.checkpoints.Record(state.FromRecord(rec))
	k.sinceCheckpoint = 0

	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventCheckpoint,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "kernel.Checkpoint",
		Data: map[string]any{
			"id":       rec.ID,
			"name":     rec.Name,
			"messages": len(rec.Messages),
			"memories": len(rec.Memory.Entries),
		},
	})
	return rec, nil
}

func (k *Kernel) autoCheckpoint(ctx context.Context, appended int) error {
	if k.autoInterval <= 0 {
		return nil
	}
	k.sinceCheckpoint += appended
	if k.sinceCheckpoint < k.autoInterval {
		return nil
	}

	if _, err := k.checkpointLocked(ctx, "auto"); err != nil {
		k.emitError(ctx, "kernel.autoCheckpoint", err)
		return fmt.Errorf("auto checkpoint: %w", err)
	}
	return nil
}

// Restore returns the kernel to the state captured by cp.
func (k *Kernel) Restore(ctx context.Context, cp state.Checkpoint) error {
	return k.RestoreID(ctx, cp.ID)
}

// RestoreID returns the kernel to the state captured by checkpoint id.
// Nothing changes if the checkpoint is missing or cannot be applied.
func (k *Kernel) RestoreID(ctx context.Context, id string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	rec, err := k.store.Load(ctx, id)
	if err != nil {
		k.emitError(ctx, "kernel.Restore", err)
		return err
	}
	if err := k.applyLocked(rec); err != nil {
		k.emitError(ctx, "kernel.Restore", err)
		return err
	}

	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventRestore,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "kernel.Restore",
		Data: map[string]any{
			"id":       id,
			"messages": len(rec.Messages),
			"memories": len(rec.Memory.Entries),
		},
	})
	return nil
}

// applyLocked installs rec as the live state. Engine compatibility is checked
// before anything is replaced, and memory is rolled back if the engine then
// rejects the blob.
func (k *Kernel) applyLocked(rec *state.Record) error {
	if !rec.Engine.CompatibleWith(k.engine.ID()) {
		return &engine.IncompatibleStateError{Engine: k.engine.ID(), Tag: rec.Engine.EngineID}
	}

	previous := k.memory.State()
	if err := k.memory.SetState(rec.Memory); err != nil {
		return err
	}
	if err := k.engine.SetState(rec.Engine); err != nil {
		if rerr := k.memory.SetState(previous); rerr != nil {
			return errors.Join(err, rerr)
		}
		return err
	}

	k.session.Replace(rec.Messages)
	k.sinceCheckpoint = 0
	return nil
}

// Branch checkpoints the current state and returns an independent copy of it
// whose parent is the new checkpoint.
func (k *Kernel) Branch(ctx context.Context) (*state.Branch, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	rec, err := k.checkpointLocked(ctx, "")
	if err != nil {
		k.emitError(ctx, "kernel.Branch", err)
		return nil, err
	}

	b := state.NewBranch(rec.ID, rec)
	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventBranch,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "kernel.Branch",
		Data: map[string]any{
			"branch": b.ID(),
			"parent": b.ParentID(),
		},
	})
	return b, nil
}

// Switch adopts the state held by b as the live state. The branch itself is
// not modified.
func (k *Kernel) Switch(ctx context.Context, b *state.Branch) error {
	if b == nil || b.State() == nil {
		return ErrEmptyBranch
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	rec := b.State().Clone()
	if err := k.applyLocked(rec); err != nil {
		k.emitError(ctx, "kernel.Switch", err)
		return err
	}

	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventRestore,
		Level:     observability.LevelInfo,
		Timestamp: time.Now(),
		Source:    "kernel.Switch",
		Data: map[string]any{
			"branch":   b.ID(),
			"messages": len(rec.Messages),
		},
	})
	return nil
}

// DeleteCheckpoint removes id from the store and the checkpoint index. It
// reports whether either held it.
func (k *Kernel) DeleteCheckpoint(ctx context.Context, id string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	stored := k.store.Delete(ctx, id)
	indexed := k.checkpoints.Remove(id)
	return stored || indexed
}

// LatestCheckpoint returns the most recent checkpoint handle.
func (k *Kernel) LatestCheckpoint() (state.Checkpoint, bool) {
	return k.checkpoints.Latest()
}

// Checkpoints lists retained checkpoint handles, oldest first.
func (k *Kernel) Checkpoints() []state.Checkpoint {
	return k.checkpoints.List()
}

// PersistMemory writes the memory snapshot to the configured persist path.
// It is a no-op when no path is configured.
func (k *Kernel) PersistMemory() error {
	if k.persistPath == "" {
		return nil
	}
	return k.memory.Persist(k.persistPath)
}

// Close persists memory and releases the state store.
func (k *Kernel) Close() error {
	err := k.PersistMemory()
	k.store.Close()
	return err
}

func (k *Kernel) emitError(ctx context.Context, source string, err error) {
	k.observer.OnEvent(ctx, observability.Event{
		Type:      EventError,
		Level:     observability.LevelError,
		Timestamp: time.Now(),
		Source:    source,
		Data:      map[string]any{"error": err.Error()},
	})
}
