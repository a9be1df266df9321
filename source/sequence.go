package source

import (
	"context"
	"fmt"
	"math"
)

// Sequence is a computed arithmetic sequence from, from+by, ... up to to.
// It cannot fail and has no backing storage.
type Sequence struct {
	from, to, by float64
	count        uint64
	typ          ElementType
}

// NewSequence creates the sequence from, from+by, ... with
// floor((to-from)/by)+1 elements. Elements are Int when every value is an
// integer that fits in int32, otherwise Real.
func NewSequence(from, to, by float64) (*Sequence, error) {
	for _, v := range []float64{from, to, by} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("%w: non-finite bound", ErrInvalidSequence)
		}
	}
	if by == 0 {
		return nil, fmt.Errorf("%w: step must not be zero", ErrInvalidSequence)
	}

	steps := math.Floor((to - from) / by)
	if steps < 0 {
		return nil, fmt.Errorf("%w: empty range from %v to %v by %v", ErrInvalidSequence, from, to, by)
	}
	if steps >= math.MaxInt64 {
		return nil, fmt.Errorf("%w: too many elements", ErrInvalidSequence)
	}
	count := uint64(steps) + 1

	last := from + by*float64(count-1)
	typ := Real
	if isInt32(from) && isInt32(by) && isInt32(last) {
		typ = Int
	}

	return &Sequence{from: from, to: to, by: by, count: count, typ: typ}, nil
}

func isInt32(v float64) bool {
	return v == math.Trunc(v) && v >= math.MinInt32 && v <= math.MaxInt32
}

func (s *Sequence) ElementType() ElementType { return s.typ }

func (s *Sequence) Len() uint64 { return s.count }

// At returns element i.
func (s *Sequence) At(i uint64) float64 {
	return s.from + s.by*float64(i)
}

func (s *Sequence) Populate(ctx context.Context, start, end uint64, dst []byte) error {
	if err := checkRange("populate", s, start, end, dst); err != nil {
		return err
	}

	switch s.typ {
	case Int:
		// Integer arithmetic keeps large sequences exact.
		from, by := int64(s.from), int64(s.by)
		for i := start; i < end; i++ {
			ByteOrder.PutUint32(dst[(i-start)*4:], uint32(int32(from+by*int64(i))))
		}
	default:
		for i := start; i < end; i++ {
			ByteOrder.PutUint64(dst[(i-start)*8:], math.Float64bits(s.At(i)))
		}
	}
	return nil
}

func (s *Sequence) String() string {
	return fmt.Sprintf("seq(%v, %v, %v)", s.from, s.to, s.by)
}
