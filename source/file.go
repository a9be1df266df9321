package source

import (
	"context"
	"errors"
	"io"
	iofs "io/fs"
	"os"
	"sync"

	"github.com/hupe1980/ufo/internal/conv"
	"github.com/hupe1980/ufo/internal/fs"
)

// File is a source backed by a flat file of densely packed native-width
// elements: element i lives at byte offset off + i*size.
type File struct {
	shape
	path   string
	typ    ElementType
	count  uint64
	offset int64
	fsys   fs.FileSystem

	mu     sync.Mutex
	reader fs.File
	writer fs.File
	closed bool
}

// NewFile creates a file source. The length is derived from the file size
// unless WithLength is given; with an explicit length the file may not
// exist yet and a missing file surfaces on first population.
func NewFile(path string, typ ElementType, opts ...Option) (*File, error) {
	if !typ.Valid() {
		return nil, ErrInvalidElementType
	}
	o := applyOptions(opts)
	if o.offset < 0 {
		return nil, &PopulationError{Op: "open", Err: ErrOutOfRange}
	}

	count := o.length
	if !o.hasLen {
		fi, err := o.fs.Stat(path)
		if err != nil {
			if errors.Is(err, iofs.ErrNotExist) {
				return nil, wrap("open", 0, 0, ErrSourceNotFound, err)
			}
			return nil, wrap("open", 0, 0, ErrTruncated, err)
		}
		size, err := conv.Int64ToUint64(fi.Size() - o.offset)
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

	return &File{
		shape:  shape{dims: o.dims, minLoad: o.minLoad},
		path:   path,
		typ:    typ,
		count:  count,
		offset: o.offset,
		fsys:   o.fs,
	}, nil
}

// Path returns the backing file path.
func (f *File) Path() string { return f.path }

func (f *File) ElementType() ElementType { return f.typ }

func (f *File) Len() uint64 { return f.count }

func (f *File) byteOffset(i uint64) (int64, error) {
	off, err := conv.MulUint64(i, f.typ.Size())
	if err != nil {
		return 0, err
	}
	o, err := conv.Uint64ToInt64(off)
	if err != nil {
		return 0, err
	}
	return f.offset + o, nil
}

// Populate reads elements [start, end) with one positional read.
func (f *File) Populate(ctx context.Context, start, end uint64, dst []byte) error {
	if err := checkRange("populate", f, start, end, dst); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	r, err := f.readHandle()
	if err != nil {
		return f.openError(start, end, err)
	}

	off, err := f.byteOffset(start)
	if err != nil {
		return wrap("populate", start, end, ErrOutOfRange, err)
	}

	n, err := r.ReadAt(dst, off)
	if n == len(dst) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return wrap("populate", start, end, ErrTruncated, nil)
	}
	return wrap("populate", start, end, ErrTruncated, err)
}

// WriteBack writes elements [start, end) with one positional write,
// creating the file if needed.
func (f *File) WriteBack(ctx context.Context, start, end uint64, src []byte) error {
	if err := checkRange("write-back", f, start, end, src); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	w, err := f.writeHandle()
	if err != nil {
		return wrap("write-back", start, end, ErrWriteFailed, err)
	}

	off, err := f.byteOffset(start)
	if err != nil {
		return wrap("write-back", start, end, ErrOutOfRange, err)
	}

	n, err := w.WriteAt(src, off)
	if err != nil {
		return wrap("write-back", start, end, ErrWriteFailed, err)
	}
	if n != len(src) {
		return wrap("write-back", start, end, ErrWriteFailed, io.ErrShortWrite)
	}
	return nil
}

// Sync flushes the write handle to stable storage, if one is open.
func (f *File) Sync() error {
	f.mu.Lock()
	w := f.writer
	f.mu.Unlock()
	if w == nil {
		return nil
	}
	return w.Sync()
}

// Close releases both handles. It is idempotent.
func (f *File) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil
	}
	f.closed = true

	var errs []error
	if f.writer != nil {
		errs = append(errs, f.writer.Sync(), f.writer.Close())
		f.writer = nil
	}
	if f.reader != nil {
		errs = append(errs, f.reader.Close())
		f.reader = nil
	}
	return errors.Join(errs...)
}

func (f *File) readHandle() (fs.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if f.reader == nil {
		r, err := f.fsys.OpenFile(f.path, os.O_RDONLY, 0)
		if err != nil {
			return nil, err
		}
		f.reader = r
	}
	return f.reader, nil
}

func (f *File) writeHandle() (fs.File, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.closed {
		return nil, ErrClosed
	}
	if f.writer == nil {
		w, err := f.fsys.OpenFile(f.path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			return nil, err
		}
		f.writer = w
	}
	return f.writer, nil
}

func (f *File) openError(start, end uint64, err error) error {
	if errors.Is(err, ErrClosed) {
		return &PopulationError{Op: "populate", Start: start, End: end, Err: err}
	}
	if errors.Is(err, iofs.ErrNotExist) {
		return wrap("populate", start, end, ErrSourceNotFound, err)
	}
	return wrap("populate", start, end, ErrTruncated, err)
}

var (
	_ Source      = (*File)(nil)
	_ WriteBacker = (*File)(nil)
	_ io.Closer   = (*File)(nil)
)
