package batch

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidArgument is returned for a non-positive batch size or a nil provider.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrCountMismatch is returned when a provider returns a different number
	// of vectors than it was given texts.
	ErrCountMismatch = errors.New("embedding count mismatch")
)

// CountMismatchError describes the chunk whose output length was wrong.
type CountMismatchError struct {
	Expected int
	Actual   int
	Offset   int // index of the chunk's first item in the input
}

func (e *CountMismatchError) Error() string {
	return fmt.Sprintf("embedding count mismatch at offset %d: expected %d, got %d", e.Offset, e.Expected, e.Actual)
}

// Unwrap allows errors.Is(err, ErrCountMismatch).
func (e *CountMismatchError) Unwrap() error {
	return ErrCountMismatch
}
