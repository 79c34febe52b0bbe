package kernel

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/engine"
	"github.com/tailored-agentic-units/cortex/memory"
	"github.com/tailored-agentic-units/cortex/state"
	"github.com/tailored-agentic-units/cortex/storage"
)

// Files written inside each session directory.
const (
	SessionStateFile  = "session.state"
	SessionMemoryFile = "memory.bin"
)

// Session is a kernel whose conversation and memory persist in its own
// directory under a session root. Reopening the same id resumes where the
// previous process left off.
type Session struct {
	kernel   *Kernel
	id       string
	dir      string
	autoSave bool

	cfg  *Config
	opts []Option
}

// SessionOption configures OpenSession.
type SessionOption func(*Session)

// WithoutAutoSave disables saving after every Chat and Remember.
func WithoutAutoSave() SessionOption {
	return func(s *Session) { s.autoSave = false }
}

// WithSessionConfig sets the config used to build the session's kernel.
func WithSessionConfig(cfg *Config) SessionOption {
	return func(s *Session) { s.cfg = cfg }
}

// WithKernelOptions passes options through to the session's kernel.
func WithKernelOptions(opts ...Option) SessionOption {
	return func(s *Session) { s.opts = append(s.opts, opts...) }
}

// OpenSession creates or resumes session id under root. The directory
// <root>/<id> is created if needed, and any saved conversation and memory are
// restored into a fresh kernel.
func OpenSession(root, id string, opts ...SessionOption) (*Session, error) {
	dir, err := sessionDir(root, id)
	if err != nil {
		return nil, err
	}

	s := &Session{id: id, dir: dir, autoSave: true}
	for _, opt := range opts {
		opt(s)
	}
	if s.cfg == nil {
		cfg := DefaultConfig()
		s.cfg = &cfg
	}
	if s.cfg.Session.DisableAutoSave {
		s.autoSave = false
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create session directory: %w", err)
	}

	k, err := New(s.cfg, s.opts...)
	if err != nil {
		return nil, err
	}
	s.kernel = k

	if err := s.restore(); err != nil {
		return nil, fmt.Errorf("restore session %s: %w", id, err)
	}
	return s, nil
}

// restore loads session.state, falling back to memory.bin alone when only
// the memory was saved.
func (s *Session) restore() error {
	rec, err := state.LoadRecord(s.path(SessionStateFile))
	switch {
	case err == nil:
		s.kernel.mu.Lock()
		defer s.kernel.mu.Unlock()
		return s.kernel.applyLocked(rec)
	case !errors.Is(err, fs.ErrNotExist):
		return err
	}

	snap, err := memory.ReadSnapshot(s.path(SessionMemoryFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	return s.kernel.memory.SetState(snap)
}

func (s *Session) ID() string { return s.id }

// Dir returns the session's directory.
func (s *Session) Dir() string { return s.dir }

// Kernel returns the underlying runtime for advanced operations.
func (s *Session) Kernel() *Kernel { return s.kernel }

// Messages returns a copy of the conversation history.
func (s *Session) Messages() []protocol.Message {
	return s.kernel.Messages()
}

// Chat sends a user message and returns the reply.
func (s *Session) Chat(ctx context.Context, message string) (string, error) {
	return s.ChatWithConfig(ctx, s.kernel.generation, message)
}

// ChatWithConfig is Chat with explicit generation settings.
func (s *Session) ChatWithConfig(ctx context.Context, cfg engine.GenerationConfig, message string) (string, error) {
	reply, err := s.kernel.ChatWithConfig(ctx, cfg, protocol.UserMessage(message))
	if err != nil {
		return "", err
	}
	return reply, s.maybeSave()
}

// ChatStreaming is Chat with the reply streamed to fn.
func (s *Session) ChatStreaming(ctx context.Context, message string, fn engine.StreamFunc) (string, error) {
	reply, err := s.kernel.ChatStreaming(ctx, s.kernel.generation, fn, protocol.UserMessage(message))
	if err != nil {
		return "", err
	}
	return reply, s.maybeSave()
}

// SetSystem replaces the conversation with a single system message.
func (s *Session) SetSystem(content string) error {
	k := s.kernel
	k.mu.Lock()
	k.session.Clear()
	k.engine.Clear()
	k.session.AddMessage(protocol.SystemMessage(content))
	k.mu.Unlock()

	return s.maybeSave()
}

// Remember stores content in the session's memory.
func (s *Session) Remember(ctx context.Context, key, content string) error {
	if err := s.kernel.Remember(ctx, key, content); err != nil {
		return err
	}
	return s.maybeSave()
}

// Recall searches the session's memory.
func (s *Session) Recall(ctx context.Context, query string, n int) ([]string, error) {
	return s.kernel.Recall(ctx, query, n)
}

// Save writes the conversation and memory to session.state and the memory
// alone to memory.bin. Engine context is not saved, so a session can be
// resumed with any engine.
func (s *Session) Save() error {
	rec := state.NewRecord(s.kernel.Messages(), s.kernel.memory.State(), engine.EmptyState())
	rec.ID = s.id
	if err := rec.Save(s.path(SessionStateFile)); err != nil {
		return err
	}
	return s.kernel.memory.Persist(s.path(SessionMemoryFile))
}

// Clear wipes the conversation, the memory, and the saved files.
func (s *Session) Clear() error {
	s.kernel.ClearMessages()
	s.kernel.memory.Clear()

	for _, name := range []string{SessionStateFile, SessionMemoryFile} {
		if err := os.Remove(s.path(name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("clear session %s: %w", s.id, err)
		}
	}
	return nil
}

// Close saves the session when auto-save is on and closes the kernel.
func (s *Session) Close() error {
	err := s.maybeSave()
	return errors.Join(err, s.kernel.Close())
}

func (s *Session) maybeSave() error {
	if !s.autoSave {
		return nil
	}
	return s.Save()
}

func (s *Session) path(name string) string {
	return filepath.Join(s.dir, name)
}

// ListSessions returns the ids of sessions under root in lexical order. A
// missing root yields no sessions.
func ListSessions(root string) ([]string, error) {
	if root == "" {
		return nil, ErrNoSessionRoot
	}

	entries, err := os.ReadDir(root)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() && !strings.HasPrefix(e.Name(), ".") {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}

// DeleteSession removes the directory of session id. Missing sessions are
// ignored.
func DeleteSession(root, id string) error {
	dir, err := sessionDir(root, id)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete session %s: %w", id, err)
	}
	return nil
}

func sessionDir(root, id string) (string, error) {
	if root == "" {
		return "", ErrNoSessionRoot
	}
	if strings.ContainsRune(id, '/') || strings.HasPrefix(id, ".") || !storage.ValidKey(id) {
		return "", fmt.Errorf("%w: %q", ErrInvalidSessionID, id)
	}
	return filepath.Join(root, id), nil
}
