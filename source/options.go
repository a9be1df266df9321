package source

import (
	"fmt"

	"github.com/hupe1980/ufo/internal/conv"
	"github.com/hupe1980/ufo/internal/fs"
)

type options struct {
	length  uint64
	hasLen  bool
	dims    []uint64
	minLoad uint64
	offset  int64
	fs      fs.FileSystem
}

// Option configures file and blob sources.
type Option func(*options)

// WithLength fixes the element count instead of deriving it from the backing size.
// A file source with an explicit length may point at a file that does not exist yet.
func WithLength(n uint64) Option {
	return func(o *options) {
		o.length = n
		o.hasLen = true
	}
}

// WithDims sets the shape reported through Shaper.
func WithDims(dims ...uint64) Option {
	return func(o *options) { o.dims = dims }
}

// WithMinLoad sets the count reported through MinLoader.
func WithMinLoad(n uint64) Option {
	return func(o *options) { o.minLoad = n }
}

// WithOffset skips a fixed number of header bytes in the backing data.
func WithOffset(off int64) Option {
	return func(o *options) { o.offset = off }
}

// WithFileSystem sets the file system used by file sources.
func WithFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) { o.fs = fsys }
}

func applyOptions(opts []Option) options {
	o := options{fs: fs.Default}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// shape carries optional Dims and MinLoadCount for built-in sources.
type shape struct {
	dims    []uint64
	minLoad uint64
}

func (s shape) Dims() []uint64 { return s.dims }

func (s shape) MinLoadCount() uint64 { return s.minLoad }

func checkDims(dims []uint64, n uint64) error {
	if len(dims) == 0 {
		return nil
	}
	p := uint64(1)
	for _, d := range dims {
		var err error
		if p, err = conv.MulUint64(p, d); err != nil {
			return fmt.Errorf("%w: dims overflow", ErrOutOfRange)
		}
	}
	if p != n {
		return fmt.Errorf("%w: dims product %d != length %d", ErrOutOfRange, p, n)
	}
	return nil
}
