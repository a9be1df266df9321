package source

import (
	"context"
	"fmt"
)

// Source provides the contents of an object.
type Source interface {
	// ElementType returns the element representation.
	ElementType() ElementType
	// Len returns the number of elements.
	Len() uint64
	// Populate fills dst with elements [start, end). dst is exactly
	// (end-start)*ElementType().Size() bytes. Implementations must be safe
	// for concurrent calls on disjoint ranges.
	Populate(ctx context.Context, start, end uint64, dst []byte) error
}

// WriteBacker is implemented by sources that can externalize modified data.
type WriteBacker interface {
	// WriteBack persists elements [start, end) held in src.
	WriteBack(ctx context.Context, start, end uint64, src []byte) error
}

// Shaper is implemented by sources with a multi-dimensional shape.
// The product of Dims must equal Len.
type Shaper interface {
	Dims() []uint64
}

// MinLoader is implemented by sources that prefer loading at least
// MinLoadCount elements per population call.
type MinLoader interface {
	MinLoadCount() uint64
}

// CanWriteBack reports whether src externalizes writes.
func CanWriteBack(src Source) bool {
	_, ok := src.(WriteBacker)
	return ok
}

// ByteLen returns the size of src in bytes.
func ByteLen(src Source) uint64 {
	return src.Len() * src.ElementType().Size()
}

// DimsOf returns the shape of src, or a single dimension of Len elements.
func DimsOf(src Source) []uint64 {
	if s, ok := src.(Shaper); ok {
		if d := s.Dims(); len(d) > 0 {
			return d
		}
	}
	return []uint64{src.Len()}
}

// checkRange validates a population request against a source.
func checkRange(op string, src Source, start, end uint64, buf []byte) error {
	if start > end || end > src.Len() {
		return &PopulationError{Op: op, Start: start, End: end, Err: ErrOutOfRange}
	}
	if want := (end - start) * src.ElementType().Size(); uint64(len(buf)) != want {
		return &PopulationError{Op: op, Start: start, End: end,
			Err: fmt.Errorf("%w: buffer is %d bytes, want %d", ErrOutOfRange, len(buf), want)}
	}
	return nil
}
