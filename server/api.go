package server

import (
	"github.com/tailored-agentic-units/cortex/core/protocol"
	"github.com/tailored-agentic-units/cortex/state"
)

// ServiceName is the Connect service path prefix.
const ServiceName = "cortex.v1.CortexService"

// Procedure paths served by Handler.
const (
	RememberProcedure         = "/" + ServiceName + "/Remember"
	RecallProcedure           = "/" + ServiceName + "/Recall"
	ChatProcedure             = "/" + ServiceName + "/Chat"
	CheckpointProcedure       = "/" + ServiceName + "/Checkpoint"
	RestoreProcedure          = "/" + ServiceName + "/Restore"
	ListCheckpointsProcedure  = "/" + ServiceName + "/ListCheckpoints"
	DeleteCheckpointProcedure = "/" + ServiceName + "/DeleteCheckpoint"
)

type RememberRequest struct {
	Key      string            `json:"key"`
	Content  string            `json:"content"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type RememberResponse struct{}

type RecallRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

type RecallResult struct {
	Key      string            `json:"key"`
	Content  string            `json:"content"`
	Score    float32           `json:"score"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type RecallResponse struct {
	Results []RecallResult `json:"results"`
}

// ChatRequest appends Messages to the conversation before replying.
type ChatRequest struct {
	Messages []protocol.Message `json:"messages"`
}

type ChatResponse struct {
	Reply string `json:"reply"`
}

type CheckpointRequest struct {
	Name string `json:"name,omitempty"`
}

type CheckpointResponse struct {
	Checkpoint state.Checkpoint `json:"checkpoint"`
}

type RestoreRequest struct {
	ID string `json:"id"`
}

type RestoreResponse struct{}

type ListCheckpointsRequest struct{}

type ListCheckpointsResponse struct {
	Checkpoints []state.Checkpoint `json:"checkpoints"`
}

type DeleteCheckpointRequest struct {
	ID string `json:"id"`
}

type DeleteCheckpointResponse struct {
	Deleted bool `json:"deleted"`
}
