package mmap

import (
	"errors"
	"os"
)

var (
	// ErrClosed is returned after a mapping is closed or a reservation released.
	ErrClosed = errors.New("mmap: mapping is closed")
	// ErrInvalidSize is returned for non-positive sizes.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrOutOfBounds is returned for ranges past the end of a reservation.
	ErrOutOfBounds = errors.New("mmap: out of bounds")
	// ErrInvalidOffset is returned for negative offsets.
	ErrInvalidOffset = errors.New("mmap: invalid offset")
	// ErrUnaligned is returned when a commit range is not page aligned.
	ErrUnaligned = errors.New("mmap: range is not page aligned")
)

// PageSize returns the operating system's memory page size.
func PageSize() int {
	return os.Getpagesize()
}

// AlignUp rounds n up to a multiple of align.
func AlignUp(n, align int) int {
	return (n + align - 1) / align * align
}
