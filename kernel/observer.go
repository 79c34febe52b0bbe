package kernel

import "github.com/tailored-agentic-units/cortex/observability"

// Kernel event types emitted by runtime operations.
const (
	EventRemember   observability.EventType = "kernel.remember"
	EventRecall     observability.EventType = "kernel.recall"
	EventChat       observability.EventType = "kernel.chat"
	EventCheckpoint observability.EventType = "kernel.checkpoint"
	EventRestore    observability.EventType = "kernel.restore"
	EventBranch     observability.EventType = "kernel.branch"
	EventError      observability.EventType = "kernel.error"
)
