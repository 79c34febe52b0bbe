package session

import (
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/tailored-agentic-units/cortex/core/protocol"
)

type memorySession struct {
	id       string
	messages []protocol.Message
	mu       sync.RWMutex
}

// NewMemorySession creates a Session backed by an in-memory slice.
// The session is assigned a unique UUIDv7 identifier.
func NewMemorySession() Session {
	return NewMemorySessionWithID(uuid.Must(uuid.NewV7()).String())
}

// NewMemorySessionWithID creates an in-memory Session with a caller-chosen
// identifier, used when reopening a persisted session.
func NewMemorySessionWithID(id string) Session {
	return &memorySession{id: id}
}

func (s *memorySession) ID() string {
	return s.id
}

func (s *memorySession) AddMessage(msg protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, msg)
}

func (s *memorySession) Messages() []protocol.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.messages)
}

func (s *memorySession) Replace(msgs []protocol.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = slices.Clone(msgs)
}

func (s *memorySession) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.messages)
}

func (s *memorySession) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = nil
}
