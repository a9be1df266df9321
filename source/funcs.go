package source

import (
	"context"
	"errors"
)

// PopulateFunc fills dst with elements [start, end).
type PopulateFunc func(ctx context.Context, start, end uint64, dst []byte) error

// WriteBackFunc persists elements [start, end) held in src.
type WriteBackFunc func(ctx context.Context, start, end uint64, src []byte) error

// DestroyFunc releases source resources. It runs once, when the object is destroyed.
type DestroyFunc func() error

// Funcs assembles a Source from plain functions.
type Funcs struct {
	Type      ElementType
	Count     uint64
	Shape     []uint64
	MinLoad   uint64
	Populate  PopulateFunc
	WriteBack WriteBackFunc // optional
	Destroy   DestroyFunc   // optional
}

// New validates f and returns it as a Source. The result implements
// WriteBacker only when f.WriteBack is set.
func New(f Funcs) (Source, error) {
	if !f.Type.Valid() {
		return nil, ErrInvalidElementType
	}
	if f.Populate == nil {
		return nil, errors.New("source: populate function is required")
	}
	if f.Count == 0 {
		return nil, ErrOutOfRange
	}
	if err := checkDims(f.Shape, f.Count); err != nil {
		return nil, err
	}

	fs := &funcSource{f: f}
	if f.WriteBack != nil {
		return &writableFuncSource{fs}, nil
	}
	return fs, nil
}

type funcSource struct {
	f Funcs
}

func (s *funcSource) ElementType() ElementType { return s.f.Type }

func (s *funcSource) Len() uint64 { return s.f.Count }

func (s *funcSource) Dims() []uint64 { return s.f.Shape }

func (s *funcSource) MinLoadCount() uint64 { return s.f.MinLoad }

func (s *funcSource) Populate(ctx context.Context, start, end uint64, dst []byte) error {
	if err := checkRange("populate", s, start, end, dst); err != nil {
		return err
	}
	return s.f.Populate(ctx, start, end, dst)
}

func (s *funcSource) Close() error {
	if s.f.Destroy == nil {
		return nil
	}
	return s.f.Destroy()
}

type writableFuncSource struct {
	*funcSource
}

func (s *writableFuncSource) WriteBack(ctx context.Context, start, end uint64, src []byte) error {
	if err := checkRange("write-back", s, start, end, src); err != nil {
		return err
	}
	return s.f.WriteBack(ctx, start, end, src)
}
