package memory

import (
	"errors"
	"fmt"

	"github.com/tailored-agentic-units/cortex/core/wire"
)

var (
	// ErrDimensionMismatch is the sentinel matched by DimensionMismatchError.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
	// ErrSerialization indicates a snapshot that could not be decoded.
	ErrSerialization = wire.ErrSerialization
)

// DimensionMismatchError reports an embedding whose length differs from the
// store's configured dimension.
type DimensionMismatchError struct {
	Expected int
	Actual   int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("%s: expected %d, got %d", ErrDimensionMismatch, e.Expected, e.Actual)
}

func (e *DimensionMismatchError) Unwrap() error {
	return ErrDimensionMismatch
}
