package mmap

import (
	"io"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMmap_OpenReadClose(t *testing.T) {
	// Create a file with some data
	content := []byte("Hello, Mmap!")
	f, err := os.CreateTemp("", "mmap_test")
	require.NoError(t, err)
	defer os.Remove(f.Name())

	_, err = f.Write(content)
	require.NoError(t, err)
	f.Close()

	// Open mmap
	m, err := Open(f.Name())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, int64(len(content)), int64(m.Size()))
	assert.Equal(t, content, m.Bytes())

	// ReadAt
	buf := make([]byte, 5)
	n, err := m.ReadAt(buf, 7) // "Mmap!"
	require.NoError(t, err)
	assert.Equal(t, 5, n)
	assert.Equal(t, "Mmap!", string(buf))

	// ReadAt out of bounds
	buf2 := make([]byte, 10)
	n, err = m.ReadAt(buf2, 100)
	assert.Equal(t, 0, n)
	assert.Equal(t, io.EOF, err)

	// ReadAt partial
	buf3 := make([]byte, 10)
	n, err = m.ReadAt(buf3, 7) // "Mmap!" (5 bytes)
	assert.Equal(t, 5, n)
	assert.Equal(t, io.EOF, err)
	assert.Equal(t, "Mmap!", string(buf3[:n]))

	// ReadAt negative offset
	_, err = m.ReadAt(buf, -1)
	assert.Equal(t, ErrInvalidOffset, err)
}

func TestMmap_EmptyFile(t *testing.T) {
	f, err := os.CreateTemp("", "mmap_test_empty")
	require.NoError(t, err)
	defer os.Remove(f.Name())
	f.Close()

	m, err := Open(f.Name())
	require.NoError(t, err)
	defer m.Close()

	assert.Equal(t, 0, m.Size())
}

func TestMapAnon(t *testing.T) {
	m, err := MapAnon(4096)
	require.NoError(t, err)

	data := m.Bytes()
	require.Len(t, data, 4096)
	data[0] = 0xAB
	data[4095] = 0xCD
	assert.Equal(t, byte(0xAB), m.Bytes()[0])

	require.NoError(t, m.Close())
	require.NoError(t, m.Close())
	assert.Nil(t, m.Bytes())

	_, err = MapAnon(0)
	assert.ErrorIs(t, err, ErrInvalidSize)
}

func TestReservation_CommitDecommit(t *testing.T) {
	ps := PageSize()

	r, err := Reserve(4*ps - 100)
	require.NoError(t, err)
	defer r.Release()

	assert.Equal(t, 4*ps, r.Size())
	assert.NotNil(t, r.Pointer())

	require.NoError(t, r.Commit(ps, ps))
	page := r.Bytes()[ps : 2*ps]
	for i := range page {
		page[i] = byte(i)
	}
	assert.Equal(t, byte(7), r.Bytes()[ps+7])

	// Decommit discards contents; a fresh commit is zero-filled.
	require.NoError(t, r.Decommit(ps, ps))
	require.NoError(t, r.Commit(ps, ps))
	assert.Equal(t, byte(0), r.Bytes()[ps+7])

	// Length is clamped to the reservation.
	require.NoError(t, r.Commit(3*ps, 10*ps))
	r.Bytes()[4*ps-1] = 1
}

func TestReservation_Errors(t *testing.T) {
	ps := PageSize()

	_, err := Reserve(0)
	assert.ErrorIs(t, err, ErrInvalidSize)

	r, err := Reserve(2 * ps)
	require.NoError(t, err)

	assert.ErrorIs(t, r.Commit(1, ps), ErrUnaligned)
	assert.ErrorIs(t, r.Commit(-ps, ps), ErrInvalidOffset)
	assert.ErrorIs(t, r.Commit(0, 0), ErrInvalidSize)
	assert.ErrorIs(t, r.Commit(2*ps, ps), ErrOutOfBounds)

	require.NoError(t, r.Release())
	require.NoError(t, r.Release())

	assert.Nil(t, r.Bytes())
	assert.Nil(t, r.Pointer())
	assert.ErrorIs(t, r.Commit(0, ps), ErrClosed)
}

func TestAlignUp(t *testing.T) {
	assert.Equal(t, 0, AlignUp(0, 4096))
	assert.Equal(t, 4096, AlignUp(1, 4096))
	assert.Equal(t, 4096, AlignUp(4096, 4096))
	assert.Equal(t, 8192, AlignUp(4097, 4096))
}
