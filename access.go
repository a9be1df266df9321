package ufo

import (
	"context"
	"io"
	"unsafe"

	"golang.org/x/sync/errgroup"
)

// Intent declares how a raw pointer will be used.
type Intent uint8

const (
	// ReadOnly promises the memory will only be read.
	ReadOnly Intent = iota
	// ReadWrite marks every chunk dirty so the next Flush writes it back.
	ReadWrite
)

// ReadAt copies bytes of the data region starting at off into p,
// populating exactly the chunks it touches. It follows io.ReaderAt
// semantics: fewer than len(p) bytes are returned together with io.EOF.
func (o *Object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := o.acquire(); err != nil {
		return 0, err
	}
	defer o.done()

	if off < 0 {
		return 0, ErrOutOfRange
	}
	size := int64(len(o.data))
	if off >= size {
		return 0, io.EOF
	}
	n := int(min(int64(len(p)), size-off))
	if n == 0 {
		return 0, nil
	}

	a, b := o.elementSpan(off, n)
	if err := o.ensure(ctx, a, b); err != nil {
		return 0, err
	}

	copy(p[:n], o.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// WriteAt copies p into the data region at off and marks the touched
// chunks dirty. Writes never grow the object.
func (o *Object) WriteAt(ctx context.Context, p []byte, off int64) (int, error) {
	if err := o.acquire(); err != nil {
		return 0, err
	}
	defer o.done()

	if off < 0 || off > int64(len(o.data)) || int64(len(p)) > int64(len(o.data))-off {
		return 0, ErrOutOfRange
	}
	if len(p) == 0 {
		return 0, nil
	}

	a, b := o.elementSpan(off, len(p))
	if err := o.ensure(ctx, a, b); err != nil {
		return 0, err
	}

	n := copy(o.data[off:], p)
	o.markDirty(a, b)
	return n, nil
}

// Region copies elements [start, start+n) into out, which must be exactly
// n*ElementSize() bytes.
func (o *Object) Region(ctx context.Context, start, n uint64, out []byte) error {
	if err := o.acquire(); err != nil {
		return err
	}
	defer o.done()

	if start > o.count || n > o.count-start || uint64(len(out)) != n*o.elemSize {
		return ErrOutOfRange
	}
	if err := o.ensure(ctx, start, start+n); err != nil {
		return err
	}
	copy(out, o.data[start*o.elemSize:(start+n)*o.elemSize])
	return nil
}

// View populates elements [start, start+n) and returns the backing memory
// without copying. The slice aliases the object and is only valid until it
// is destroyed. Writes through it are not tracked; use WriteAt or MarkDirty.
func (o *Object) View(ctx context.Context, start, n uint64) ([]byte, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.done()

	if start > o.count || n > o.count-start {
		return nil, ErrOutOfRange
	}
	if err := o.ensure(ctx, start, start+n); err != nil {
		return nil, err
	}
	return o.data[start*o.elemSize : (start+n)*o.elemSize : (start+n)*o.elemSize], nil
}

// MarkDirty records that elements [start, start+n) were modified through
// a raw view so the next Flush writes them back.
func (o *Object) MarkDirty(start, n uint64) error {
	if start > o.count || n > o.count-start {
		return ErrOutOfRange
	}
	if n > 0 {
		o.markDirty(start, start+n)
	}
	return nil
}

// Materialize populates the whole object. Chunk batches run in parallel,
// bounded by the worker count.
func (o *Object) Materialize(ctx context.Context) error {
	if err := o.acquire(); err != nil {
		return err
	}
	defer o.done()

	return o.materialize(ctx)
}

func (o *Object) materialize(ctx context.Context) error {
	if o.populated.AllSet(0, o.numChunks) {
		return nil
	}

	step := uint64(o.inst.opts.maxBatchChunks) * o.chunkElems
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.inst.opts.workers)

	for a := uint64(0); a < o.count; a += step {
		b := min(a+step, o.count)
		if o.populated.AllSet(a/o.chunkElems, (b-1)/o.chunkElems+1) {
			continue
		}
		g.Go(func() error {
			return o.ensure(gctx, a, b)
		})
	}
	return g.Wait()
}

// Pointer materializes the whole object and returns the address of element 0.
//
// This is the unsafe path: the memory stays valid only until the object is
// destroyed, and writes through the pointer are only written back when
// intent is ReadWrite, which marks every chunk dirty.
func (o *Object) Pointer(ctx context.Context, intent Intent) (unsafe.Pointer, error) {
	b, err := o.Bytes(ctx, intent)
	if err != nil {
		return nil, err
	}
	return unsafe.Pointer(unsafe.SliceData(b)), nil //nolint:gosec // off-heap mapping owned by the object
}

// Bytes is like Pointer but returns the data region as a slice.
func (o *Object) Bytes(ctx context.Context, intent Intent) ([]byte, error) {
	if err := o.acquire(); err != nil {
		return nil, err
	}
	defer o.done()

	if err := o.materialize(ctx); err != nil {
		return nil, err
	}
	if intent == ReadWrite {
		o.markDirty(0, o.count)
	}
	return o.data, nil
}

// elementSpan converts a byte range to the covering element range.
func (o *Object) elementSpan(off int64, n int) (uint64, uint64) {
	a := uint64(off) / o.elemSize
	b := (uint64(off) + uint64(n) + o.elemSize - 1) / o.elemSize
	return a, b
}

func (o *Object) markDirty(a, b uint64) {
	first := a / o.chunkElems
	last := (b-1)/o.chunkElems + 1

	o.mu.Lock()
	o.dirty.AddRange(first, last)
	o.mu.Unlock()
}
