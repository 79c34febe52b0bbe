package state

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/cortex/core/wire"
)

var (
	// ErrInvalidCheckpoint is matched by CheckpointNotFoundError.
	ErrInvalidCheckpoint = errors.New("invalid checkpoint")
	// ErrSerialization indicates a record file that could not be decoded.
	ErrSerialization = wire.ErrSerialization
)

// CheckpointNotFoundError reports an id absent from both memory and disk.
type CheckpointNotFoundError struct {
	ID string
}

func (e *CheckpointNotFoundError) Error() string {
	return fmt.Sprintf("%s: %s", ErrInvalidCheckpoint, e.ID)
}

func (e *CheckpointNotFoundError) Unwrap() error {
	return ErrInvalidCheckpoint
}
