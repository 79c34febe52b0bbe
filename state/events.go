package state

import "github.com/tailored-agentic-units/cortex/observability"

// Store event types.
const (
	EventSave          observability.EventType = "state.save"
	EventLoad          observability.EventType = "state.load"
	EventEvict         observability.EventType = "state.evict"
	EventDelete        observability.EventType = "state.delete"
	EventCleanupFailed observability.EventType = "state.cleanup_failed"
)
