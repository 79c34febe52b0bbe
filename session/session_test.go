package session_test

import (
	"sync"
	"testing"

	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/session"
)

func TestNew(t *testing.T) {
	s := session.NewMemorySession()

	if s.ID() == "" {
		t.Error("session ID should not be empty")
	}
	if len(s.Messages()) != 0 {
		t.Errorf("new session should have 0 messages, got %d", len(s.Messages()))
	}
}

func TestSession_ID_Unique(t *testing.T) {
	s1 := session.NewMemorySession()
	s2 := session.NewMemorySession()

	if s1.ID() == s2.ID() {
		t.Errorf("two sessions should have different IDs, both got %q", s1.ID())
	}
}

func TestSession_ID_Stable(t *testing.T) {
	s := session.NewMemorySession()

	id1 := s.ID()
	id2 := s.ID()

	if id1 != id2 {
		t.Errorf("same session returned different IDs: %q and %q", id1, id2)
	}
}

func TestSession_AddMessage_And_Messages(t *testing.T) {
	s := session.NewMemorySession()

	s.AddMessage(protocol.ToolMessage("get_weather", `{"temp": 72}`))
	msgs := s.Messages()

	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}

	got := msgs[0]
	if got.Role != protocol.RoleTool {
		t.Errorf("got role %q, want %q", got.Role, protocol.RoleTool)
	}
	if got.Content != `{"temp": 72}` {
		t.Errorf("got content %q, want %q", got.Content, `{"temp": 72}`)
	}
	if got.Name != "get_weather" {
		t.Errorf("got name %q, want %q", got.Name, "get_weather")
	}
	if s.Len() != 1 {
		t.Errorf("Len() = %d, want 1", s.Len())
	}
}

func TestSession_Messages_Order(t *testing.T) {
	s := session.NewMemorySession()

	roles := []protocol.Role{
		protocol.RoleSystem,
		protocol.RoleUser,
		protocol.RoleAssistant,
		protocol.RoleTool,
	}

	for _, role := range roles {
		s.AddMessage(protocol.NewMessage(role, string(role)))
	}

	msgs := s.Messages()
	if len(msgs) != len(roles) {
		t.Fatalf("got %d messages, want %d", len(msgs), len(roles))
	}

	for i, msg := range msgs {
		if msg.Role != roles[i] {
			t.Errorf("message %d: got role %q, want %q", i, msg.Role, roles[i])
		}
	}
}

func TestSession_Messages_Roles(t *testing.T) {
	tests := []struct {
		name string
		role protocol.Role
	}{
		{"system", protocol.RoleSystem},
		{"user", protocol.RoleUser},
		{"assistant", protocol.RoleAssistant},
		{"tool", protocol.RoleTool},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := session.NewMemorySession()
			s.AddMessage(protocol.NewMessage(tt.role, "content"))

			msgs := s.Messages()
			if len(msgs) != 1 {
				t.Fatalf("got %d messages, want 1", len(msgs))
			}
			if msgs[0].Role != tt.role {
				t.Errorf("got role %q, want %q", msgs[0].Role, tt.role)
			}
		})
	}
}

func TestSession_Messages_DefensiveCopy(t *testing.T) {
	s := session.NewMemorySession()
	s.AddMessage(protocol.NewMessage(protocol.RoleUser, "hello"))
	s.AddMessage(protocol.NewMessage(protocol.RoleAssistant, "hi"))

	msgs := s.Messages()
	msgs[0] = protocol.NewMessage(protocol.RoleSystem, "tampered")
	msgs = append(msgs, protocol.NewMessage(protocol.RoleUser, "extra"))

	original := s.Messages()
	if len(original) != 2 {
		t.Fatalf("got %d messages, want 2", len(original))
	}
	if original[0].Role != protocol.RoleUser {
		t.Errorf("first message role was mutated: got %q, want %q", original[0].Role, protocol.RoleUser)
	}
}

func TestSession_Replace(t *testing.T) {
	s := session.NewMemorySession()
	s.AddMessage(protocol.UserMessage("discarded"))

	restored := []protocol.Message{
		protocol.SystemMessage("be brief"),
		protocol.UserMessage("hello"),
	}
	s.Replace(restored)
	restored[1].Content = "tampered"

	msgs := s.Messages()
	if len(msgs) != 2 {
		t.Fatalf("got %d messages, want 2", len(msgs))
	}
	if msgs[1].Content != "hello" {
		t.Errorf("replaced history was aliased: got %q, want %q", msgs[1].Content, "hello")
	}
}

func TestSession_Replace_Empty(t *testing.T) {
	s := session.NewMemorySession()
	s.AddMessage(protocol.UserMessage("hello"))

	s.Replace(nil)

	if s.Len() != 0 {
		t.Errorf("Len() = %d after Replace(nil), want 0", s.Len())
	}
}

func TestNewMemorySessionWithID(t *testing.T) {
	s := session.NewMemorySessionWithID("notes")
	if s.ID() != "notes" {
		t.Errorf("ID() = %q, want %q", s.ID(), "notes")
	}
}

func TestSession_Clear(t *testing.T) {
	s := session.NewMemorySession()
	s.AddMessage(protocol.NewMessage(protocol.RoleUser, "hello"))
	s.AddMessage(protocol.NewMessage(protocol.RoleAssistant, "hi"))

	s.Clear()

	if len(s.Messages()) != 0 {
		t.Errorf("got %d messages after Clear, want 0", len(s.Messages()))
	}
}

func TestSession_Clear_ThenAdd(t *testing.T) {
	s := session.NewMemorySession()
	s.AddMessage(protocol.NewMessage(protocol.RoleUser, "first"))
	s.Clear()
	s.AddMessage(protocol.NewMessage(protocol.RoleUser, "second"))

	msgs := s.Messages()
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	if msgs[0].Content != "second" {
		t.Errorf("got content %q, want %q", msgs[0].Content, "second")
	}
}

func TestSession_Concurrent_AddMessage(t *testing.T) {
	s := session.NewMemorySession()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(n)
	for range n {
		go func() {
			defer wg.Done()
			s.AddMessage(protocol.NewMessage(protocol.RoleUser, "msg"))
		}()
	}
	wg.Wait()

	msgs := s.Messages()
	if len(msgs) != n {
		t.Errorf("got %d messages, want %d", len(msgs), n)
	}
}

func TestSession_Concurrent_AddAndRead(t *testing.T) {
	s := session.NewMemorySession()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(2 * n)

	for range n {
		go func() {
			defer wg.Done()
			s.AddMessage(protocol.NewMessage(protocol.RoleUser, "msg"))
		}()
		go func() {
			defer wg.Done()
			_ = s.Messages()
		}()
	}
	wg.Wait()
}

func TestSession_Concurrent_AddAndClear(t *testing.T) {
	s := session.NewMemorySession()
	const n = 100

	var wg sync.WaitGroup
	wg.Add(2 * n)

	for range n {
		go func() {
			defer wg.Done()
			s.AddMessage(protocol.NewMessage(protocol.RoleUser, "msg"))
		}()
		go func() {
			defer wg.Done()
			s.Clear()
		}()
	}
	wg.Wait()
}
