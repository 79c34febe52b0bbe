package engine

import (
	"errors"
	"fmt"
)

var (
	// ErrIncompatibleState is matched by IncompatibleStateError.
	ErrIncompatibleState = errors.New("incompatible engine state")
	// ErrUnknownProvider is returned for an unrecognized engine provider.
	ErrUnknownProvider = errors.New("unknown engine provider")
	// ErrUnknownTemplate is returned by ParseChatTemplate.
	ErrUnknownTemplate = errors.New("unknown chat template")
)

// IncompatibleStateError reports a State tagged for a different engine.
type IncompatibleStateError struct {
	Engine string
	Tag    string
}

func (e *IncompatibleStateError) Error() string {
	return fmt.Sprintf("%s: engine %q cannot restore state tagged %q", ErrIncompatibleState, e.Engine, e.Tag)
}

func (e *IncompatibleStateError) Unwrap() error {
	return ErrIncompatibleState
}
