package server

import (
	"context"
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"github.com/tailored-agentic-units/cortex/engine"
	"github.com/tailored-agentic-units/cortex/memory"
	"github.com/tailored-agentic-units/cortex/state"
)

// ErrInvalidRequest marks requests rejected before reaching the runtime.
var ErrInvalidRequest = errors.New("invalid request")

func invalid(format string, args ...any) error {
	return connect.NewError(connect.CodeInvalidArgument, fmt.Errorf("%w: %s", ErrInvalidRequest, fmt.Sprintf(format, args...)))
}

// toConnectError maps runtime error kinds onto Connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}

	code := connect.CodeInternal
	switch {
	case errors.Is(err, state.ErrInvalidCheckpoint):
		code = connect.CodeNotFound
	case errors.Is(err, memory.ErrDimensionMismatch):
		code = connect.CodeInvalidArgument
	case errors.Is(err, engine.ErrIncompatibleState):
		code = connect.CodeFailedPrecondition
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	}
	return connect.NewError(code, err)
}
