// Package protocol defines the conversation types shared by the runtime,
// its engines, and persisted checkpoints.
package protocol

// Role identifies the sender of a conversation message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleSystem, RoleUser, RoleAssistant, RoleTool:
		return true
	}
	return false
}

// Message represents a single message in a conversation. Name optionally
// identifies the participant, typically the tool that produced a RoleTool
// message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
	Name    string `json:"name,omitempty"`
}

// NewMessage creates a Message with the given role and content.
//
// Example:
//
//	msg := protocol.NewMessage(protocol.RoleUser, "Hello, world!")
func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content}
}

// SystemMessage creates a RoleSystem message.
func SystemMessage(content string) Message { return NewMessage(RoleSystem, content) }

// UserMessage creates a RoleUser message.
func UserMessage(content string) Message { return NewMessage(RoleUser, content) }

// AssistantMessage creates a RoleAssistant message.
func AssistantMessage(content string) Message { return NewMessage(RoleAssistant, content) }

// ToolMessage creates a RoleTool message attributed to the named tool.
func ToolMessage(name, content string) Message {
	return Message{Role: RoleTool, Content: content, Name: name}
}

// InitMessages creates a single-element message slice from a role and content string.
// Convenience wrapper for the common pattern of initializing a conversation from a prompt.
func InitMessages(role Role, content string) []Message {
	return []Message{NewMessage(role, content)}
}
