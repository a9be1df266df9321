package mmap

import (
	"sync/atomic"
	"unsafe"
)

// Reservation is a range of reserved, initially inaccessible virtual memory.
//
// Commit and Decommit operate on page-aligned sub-ranges. The reservation
// does not track which pages are committed; that is the caller's job.
type Reservation struct {
	data     []byte
	pageSize int
	closed   atomic.Bool
	ops      reserveOps
}

// reserveOps bundles the platform-specific primitives for a reservation.
type reserveOps struct {
	commit   func(b []byte) error
	decommit func(b []byte) error
	release  func(b []byte) error
}

// Reserve reserves size bytes of address space, rounded up to the page size.
// No physical memory is committed.
func Reserve(size int) (*Reservation, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	pageSize := PageSize()
	size = AlignUp(size, pageSize)

	data, ops, err := osReserve(size)
	if err != nil {
		return nil, err
	}

	return &Reservation{
		data:     data,
		pageSize: pageSize,
		ops:      ops,
	}, nil
}

// Size returns the reserved size in bytes (a multiple of the page size).
func (r *Reservation) Size() int {
	return len(r.data)
}

// PageSize returns the page size the reservation was created with.
func (r *Reservation) PageSize() int {
	return r.pageSize
}

// Bytes returns the full reserved range. Pages that are not committed trap on access.
// Warning: The slice is valid only until Release() is called.
func (r *Reservation) Bytes() []byte {
	if r.closed.Load() {
		return nil
	}
	return r.data
}

// Pointer returns the base address of the reservation, or nil after Release.
func (r *Reservation) Pointer() unsafe.Pointer {
	if r.closed.Load() || len(r.data) == 0 {
		return nil
	}
	return unsafe.Pointer(&r.data[0]) //nolint:gosec // raw base address of an off-heap mapping
}

// Commit makes [off, off+n) readable and writable. off must be page aligned;
// n is rounded up to the page size but never past the end of the reservation.
func (r *Reservation) Commit(off, n int) error {
	b, err := r.span(off, n)
	if err != nil {
		return err
	}
	return r.ops.commit(b)
}

// Decommit discards the contents of [off, off+n) and makes it inaccessible again.
// The next Commit of the range yields zero-filled pages.
func (r *Reservation) Decommit(off, n int) error {
	b, err := r.span(off, n)
	if err != nil {
		return err
	}
	return r.ops.decommit(b)
}

// Release unmaps the whole reservation. It is idempotent.
func (r *Reservation) Release() error {
	if r.closed.Swap(true) {
		return nil
	}
	return r.ops.release(r.data)
}

func (r *Reservation) span(off, n int) ([]byte, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if off < 0 {
		return nil, ErrInvalidOffset
	}
	if off%r.pageSize != 0 {
		return nil, ErrUnaligned
	}
	if n <= 0 {
		return nil, ErrInvalidSize
	}
	end := min(AlignUp(off+n, r.pageSize), len(r.data))
	if off >= end {
		return nil, ErrOutOfBounds
	}
	return r.data[off:end:end], nil
}
