// Package session manages conversation history for the runtime.
package session

import (
	"github.com/tailored-agentic-units/cortex/core/protocol"
)

// Session holds an ordered sequence of conversation messages. Implementations
// must be safe for concurrent use.
type Session interface {
	// ID returns the unique session identifier.
	ID() string
	// AddMessage appends a message to the conversation history.
	AddMessage(msg protocol.Message)
	// Messages returns a defensive copy of the conversation history.
	Messages() []protocol.Message
	// Replace swaps the whole history, as when restoring a checkpoint.
	Replace(msgs []protocol.Message)
	// Len returns the number of messages.
	Len() int
	// Clear resets the conversation history.
	Clear()
}
