//go:build unix

package mmap

import (
	"os"

	"golang.org/x/sys/unix"
)

func osMap(f *os.File, size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func osMapAnon(size int) ([]byte, func([]byte) error, error) {
	data, err := unix.Mmap(-1, 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, nil, err
	}
	return data, unix.Munmap, nil
}

func osReserve(size int) ([]byte, reserveOps, error) {
	// PROT_NONE private anonymous memory does not count against overcommit
	// until pages are made writable.
	data, err := unix.Mmap(-1, 0, size, unix.PROT_NONE, unix.MAP_ANON|unix.MAP_PRIVATE)
	if err != nil {
		return nil, reserveOps{}, err
	}
	return data, reserveOps{
		commit: func(b []byte) error {
			return unix.Mprotect(b, unix.PROT_READ|unix.PROT_WRITE)
		},
		decommit: func(b []byte) error {
			if err := unix.Madvise(b, unix.MADV_DONTNEED); err != nil {
				return err
			}
			return unix.Mprotect(b, unix.PROT_NONE)
		},
		release: unix.Munmap,
	}, nil
}
