package mmap

import (
	"io"
	"os"
	"sync"
)

// Mapping is a whole-file read-only view or an anonymous read-write region.
// Both live outside the Go heap and must be closed explicitly.
type Mapping struct {
	mu    sync.RWMutex
	data  []byte
	unmap func([]byte) error
}

// Open maps the file at path read-only. Empty files yield an empty mapping
// that needs no unmapping.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if fi.Size() == 0 {
		return &Mapping{data: []byte{}}, nil
	}

	data, unmap, err := osMap(f, int(fi.Size()))
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// MapAnon maps size bytes of zero-filled read-write memory.
func MapAnon(size int) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	data, unmap, err := osMapAnon(size)
	if err != nil {
		return nil, err
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Close unmaps the region. Later calls are no-ops.
func (m *Mapping) Close() error {
	m.mu.Lock()
	data, unmap := m.data, m.unmap
	m.data, m.unmap = nil, nil
	m.mu.Unlock()

	if unmap == nil || len(data) == 0 {
		return nil
	}
	return unmap(data)
}

// Bytes returns the mapped memory, or nil once closed. The slice must not be
// used after Close.
func (m *Mapping) Bytes() []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.data
}

// Size returns the mapped length, or 0 once closed.
func (m *Mapping) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}

// ReadAt copies from the mapping with io.ReaderAt semantics.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.data == nil {
		return 0, ErrClosed
	}
	if off < 0 {
		return 0, ErrInvalidOffset
	}
	if off >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
