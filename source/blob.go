package source

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/ufo/blobstore"
	"github.com/hupe1980/ufo/internal/conv"
)

// Blob is a read-only source over a blobstore.Blob. Each population issues
// one ranged read, so remote stores only transfer the touched chunks.
type Blob struct {
	shape
	blob   blobstore.Blob
	name   string
	typ    ElementType
	count  uint64
	offset int64
}

// NewBlob opens name in store and returns it as a source of typ elements.
func NewBlob(ctx context.Context, store blobstore.BlobStore, name string, typ ElementType, opts ...Option) (*Blob, error) {
	if !typ.Valid() {
		return nil, ErrInvalidElementType
	}
	b, err := store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, wrap("open", 0, 0, ErrSourceNotFound, err)
		}
		return nil, err
	}
	src, err := FromBlob(b, name, typ, opts...)
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return src, nil
}

// FromBlob wraps an already opened blob. The source takes ownership of b.
func FromBlob(b blobstore.Blob, name string, typ ElementType, opts ...Option) (*Blob, error) {
	if !typ.Valid() {
		return nil, ErrInvalidElementType
	}
	o := applyOptions(opts)
	if o.offset < 0 || o.offset > b.Size() {
		return nil, wrap("open", 0, 0, ErrOutOfRange, nil)
	}

	count := o.length
	if !o.hasLen {
		size, err := conv.Int64ToUint64(b.Size() - o.offset)
		if err != nil {
			return nil, wrap("open", 0, 0, ErrTruncated, err)
		}
		count = size / typ.Size()
	}
	if count == 0 {
		return nil, wrap("open", 0, 0, ErrOutOfRange, nil)
	}
	if err := checkDims(o.dims, count); err != nil {
		return nil, err
	}

	return &Blob{
		shape:  shape{dims: o.dims, minLoad: o.minLoad},
		blob:   b,
		name:   name,
		typ:    typ,
		count:  count,
		offset: o.offset,
	}, nil
}

// Name returns the blob name.
func (s *Blob) Name() string { return s.name }

func (s *Blob) ElementType() ElementType { return s.typ }

func (s *Blob) Len() uint64 { return s.count }

func (s *Blob) Populate(ctx context.Context, start, end uint64, dst []byte) error {
	if err := checkRange("populate", s, start, end, dst); err != nil {
		return err
	}

	off, err := conv.Uint64ToInt64(start * s.typ.Size())
	if err != nil {
		return wrap("populate", start, end, ErrOutOfRange, err)
	}

	n, err := s.blob.ReadAt(ctx, dst, s.offset+off)
	if n == len(dst) {
		return nil
	}
	if err != nil && !errors.Is(err, io.EOF) {
		if ctx.Err() != nil {
			return err
		}
		return wrap("populate", start, end, ErrTruncated, err)
	}
	return wrap("populate", start, end, ErrTruncated, nil)
}

// Close releases the underlying blob.
func (s *Blob) Close() error {
	return s.blob.Close()
}

var (
	_ Source    = (*Blob)(nil)
	_ io.Closer = (*Blob)(nil)
)
