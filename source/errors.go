package source

import (
	"errors"
	"fmt"
)

var (
	// ErrTruncated is returned when the backing data ends before the requested range.
	ErrTruncated = errors.New("source truncated")

	// ErrWriteFailed is returned when write-back could not persist all bytes.
	ErrWriteFailed = errors.New("source write failed")

	// ErrSourceNotFound is returned when the backing file or blob does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrOutOfRange is returned for element ranges outside the source.
	ErrOutOfRange = errors.New("range out of bounds")

	// ErrWriteBackUnsupported may be returned by WriteBack to signal a read-only source.
	ErrWriteBackUnsupported = errors.New("write-back not supported")

	// ErrInvalidSequence is returned for sequences with a zero step or no elements.
	ErrInvalidSequence = errors.New("invalid sequence")

	// ErrInvalidElementType is returned for unknown element types.
	ErrInvalidElementType = errors.New("invalid element type")

	// ErrClosed is returned when a closed source is used.
	ErrClosed = errors.New("source closed")
)

// PopulationError describes a failed population or write-back call.
type PopulationError struct {
	Op    string // "populate", "write-back" or "open"
	Start uint64
	End   uint64
	Err   error
}

func (e *PopulationError) Error() string {
	return fmt.Sprintf("source: %s [%d,%d): %v", e.Op, e.Start, e.End, e.Err)
}

func (e *PopulationError) Unwrap() error {
	return e.Err
}

func wrap(op string, start, end uint64, kind, cause error) error {
	if cause == nil {
		return &PopulationError{Op: op, Start: start, End: end, Err: kind}
	}
	return &PopulationError{Op: op, Start: start, End: end, Err: fmt.Errorf("%w: %w", kind, cause)}
}
