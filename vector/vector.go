package vector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"
	"sync/atomic"
	"unsafe"

	"github.com/hupe1980/ufo"
	"github.com/hupe1980/ufo/source"
	"golang.org/x/sync/errgroup"
)

var (
	// ErrClosed is returned by every method after Close.
	ErrClosed = errors.New("vector: closed")
	// ErrTypeMismatch is returned by the typed accessors.
	ErrTypeMismatch = errors.New("vector: element type mismatch")
	// ErrOutOfRange is returned for indices outside the vector.
	ErrOutOfRange = ufo.ErrOutOfRange
)

// Kind tells what backs a vector.
type Kind uint8

const (
	// Virtual vectors are backed by an engine object.
	Virtual Kind = iota
	// Materialized vectors are backed by a heap buffer.
	Materialized
)

func (k Kind) String() string {
	switch k {
	case Virtual:
		return "virtual"
	case Materialized:
		return "materialized"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// handle shares one object between shallow duplicates. The last Close
// destroys the object.
type handle struct {
	obj  *ufo.Object
	refs atomic.Int64
}

// release drops one reference. If destroying the object fails, the
// reference is kept so the caller can retry.
func (h *handle) release(ctx context.Context) error {
	if h.refs.Add(-1) > 0 {
		return nil
	}
	if err := h.obj.Destroy(ctx); err != nil {
		h.refs.Add(1)
		return err
	}
	return nil
}

// Vector is safe for concurrent use.
type Vector struct {
	kind   Kind
	typ    source.ElementType
	count  uint64
	dims   []uint64
	h      *handle // Virtual
	data   []byte  // Materialized
	closed atomic.Bool
}

// FromObject wraps obj. The vector owns obj: closing the last vector that
// shares it destroys the object.
func FromObject(obj *ufo.Object) *Vector {
	h := &handle{obj: obj}
	h.refs.Store(1)
	return &Vector{
		kind:  Virtual,
		typ:   obj.ElementType(),
		count: obj.Len(),
		dims:  obj.Dims(),
		h:     h,
	}
}

// FromBytes wraps data, which holds densely packed elements of typ in
// native byte order. dims defaults to a single dimension.
func FromBytes(typ source.ElementType, data []byte, dims ...uint64) (*Vector, error) {
	if !typ.Valid() {
		return nil, source.ErrInvalidElementType
	}
	size := typ.Size()
	if uint64(len(data))%size != 0 {
		return nil, fmt.Errorf("vector: %d bytes is not a whole number of %s elements", len(data), typ)
	}
	count := uint64(len(data)) / size
	if len(dims) == 0 {
		dims = []uint64{count}
	}
	p := uint64(1)
	for _, d := range dims {
		if d != 0 && p > math.MaxUint64/d {
			return nil, errors.New("vector: dims overflow")
		}
		p *= d
	}
	if p != count {
		return nil, fmt.Errorf("vector: dims product %d does not match %d elements", p, count)
	}
	return &Vector{
		kind:  Materialized,
		typ:   typ,
		count: count,
		dims:  append([]uint64(nil), dims...),
		data:  data,
	}, nil
}

// Kind returns what backs v.
func (v *Vector) Kind() Kind { return v.kind }

// ElementType returns the element type.
func (v *Vector) ElementType() source.ElementType { return v.typ }

// Len returns the number of elements without populating anything.
func (v *Vector) Len() uint64 { return v.count }

// Dims returns the shape.
func (v *Vector) Dims() []uint64 { return append([]uint64(nil), v.dims...) }

// Object returns the object behind a Virtual vector.
func (v *Vector) Object() (*ufo.Object, bool) {
	switch v.kind {
	case Virtual:
		return v.h.obj, true
	case Materialized:
		return nil, false
	default:
		panic("vector: unknown kind")
	}
}

// Element returns element i.
func (v *Vector) Element(ctx context.Context, i uint64) (Value, error) {
	var buf [16]byte
	size := v.typ.Size()
	if err := v.Region(ctx, i, 1, buf[:size]); err != nil {
		return Value{}, err
	}
	return decodeValue(v.typ, buf[:size]), nil
}

// Region copies elements [start, start+n) into out, which must be exactly
// n*ElementType().Size() bytes.
func (v *Vector) Region(ctx context.Context, start, n uint64, out []byte) error {
	if v.closed.Load() {
		return ErrClosed
	}
	size := v.typ.Size()
	if start > v.count || n > v.count-start || uint64(len(out)) != n*size {
		return ErrOutOfRange
	}

	switch v.kind {
	case Virtual:
		return v.h.obj.Region(ctx, start, n, out)
	case Materialized:
		copy(out, v.data[start*size:(start+n)*size])
		return nil
	default:
		panic("vector: unknown kind")
	}
}

// Ints returns elements [start, start+n) of an Int vector.
func (v *Vector) Ints(ctx context.Context, start, n uint64) ([]int32, error) {
	if v.typ != source.Int {
		return nil, fmt.Errorf("%w: %s vector", ErrTypeMismatch, v.typ)
	}
	buf := make([]byte, n*4)
	if err := v.Region(ctx, start, n, buf); err != nil {
		return nil, err
	}
	out := make([]int32, n)
	for i := range out {
		out[i] = int32(source.ByteOrder.Uint32(buf[i*4:]))
	}
	return out, nil
}

// Reals returns elements [start, start+n) of a Real vector.
func (v *Vector) Reals(ctx context.Context, start, n uint64) ([]float64, error) {
	if v.typ != source.Real {
		return nil, fmt.Errorf("%w: %s vector", ErrTypeMismatch, v.typ)
	}
	buf := make([]byte, n*8)
	if err := v.Region(ctx, start, n, buf); err != nil {
		return nil, err
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Float64frombits(source.ByteOrder.Uint64(buf[i*8:]))
	}
	return out, nil
}

// duplicateChunk is the number of bytes copied per goroutine by a deep Duplicate.
const duplicateChunk = 4 << 20

// Duplicate returns a second vector with the same contents.
//
// A shallow duplicate shares storage: Virtual vectors share the object
// through a reference-counted handle, Materialized vectors share the
// buffer. A deep duplicate is always Materialized and owns a fresh copy;
// duplicating a Virtual vector deeply populates it in parallel.
func (v *Vector) Duplicate(ctx context.Context, deep bool) (*Vector, error) {
	if v.closed.Load() {
		return nil, ErrClosed
	}

	if !deep {
		dup := &Vector{kind: v.kind, typ: v.typ, count: v.count, dims: v.dims, h: v.h, data: v.data}
		if v.kind == Virtual {
			v.h.refs.Add(1)
		}
		return dup, nil
	}

	size := v.typ.Size()
	var data []byte
	switch v.kind {
	case Virtual:
		data = make([]byte, v.count*size)
		step := max(1, duplicateChunk/size)

		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(runtime.GOMAXPROCS(0))
		for start := uint64(0); start < v.count; start += step {
			n := min(step, v.count-start)
			g.Go(func() error {
				return v.h.obj.Region(gctx, start, n, data[start*size:(start+n)*size])
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	case Materialized:
		data = bytes.Clone(v.data)
	default:
		panic("vector: unknown kind")
	}

	return &Vector{kind: Materialized, typ: v.typ, count: v.count, dims: v.dims, data: data}, nil
}

// RawPointer materializes the whole vector and returns the address of
// element 0. The memory stays valid until the vector (or, for Virtual
// vectors, the last shallow duplicate) is closed. Writes through the
// pointer are only written back when writeable is true.
func (v *Vector) RawPointer(ctx context.Context, writeable bool) (unsafe.Pointer, error) {
	if v.closed.Load() {
		return nil, ErrClosed
	}
	switch v.kind {
	case Virtual:
		intent := ufo.ReadOnly
		if writeable {
			intent = ufo.ReadWrite
		}
		return v.h.obj.Pointer(ctx, intent)
	case Materialized:
		return unsafe.Pointer(unsafe.SliceData(v.data)), nil //nolint:gosec // heap buffer owned by the vector
	default:
		panic("vector: unknown kind")
	}
}

// Close releases v. Closing the last vector sharing an object destroys it.
// Closing twice returns ErrClosed. When the destroy fails, v stays open and
// Close may be called again.
func (v *Vector) Close(ctx context.Context) error {
	if !v.closed.CompareAndSwap(false, true) {
		return ErrClosed
	}
	switch v.kind {
	case Virtual:
		if err := v.h.release(ctx); err != nil {
			v.closed.Store(false)
			return err
		}
		return nil
	case Materialized:
		return nil
	default:
		panic("vector: unknown kind")
	}
}
