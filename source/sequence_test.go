package source

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSequence(t *testing.T) {
	s, err := NewSequence(0, 9, 2)
	require.NoError(t, err)
	assert.Equal(t, uint64(5), s.Len())
	assert.Equal(t, Int, s.ElementType())

	buf := make([]byte, 5*4)
	require.NoError(t, s.Populate(context.Background(), 0, 5, buf))

	var got []int32
	for i := range 5 {
		got = append(got, int32(ByteOrder.Uint32(buf[i*4:])))
	}
	assert.Equal(t, []int32{0, 2, 4, 6, 8}, got)

	// Partial range.
	part := make([]byte, 4)
	require.NoError(t, s.Populate(context.Background(), 2, 3, part))
	assert.Equal(t, int32(4), int32(ByteOrder.Uint32(part)))
}

func TestSequence_Descending(t *testing.T) {
	s, err := NewSequence(10, 1, -3)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), s.Len())
	assert.Equal(t, float64(1), s.At(3))
}

func TestSequence_Real(t *testing.T) {
	s, err := NewSequence(0, 1, 0.25)
	require.NoError(t, err)
	assert.Equal(t, Real, s.ElementType())
	assert.Equal(t, uint64(5), s.Len())

	buf := make([]byte, 8)
	require.NoError(t, s.Populate(context.Background(), 3, 4, buf))
	assert.Equal(t, 0.75, math.Float64frombits(ByteOrder.Uint64(buf)))

	big, err := NewSequence(0, 3e9, 1e9)
	require.NoError(t, err)
	assert.Equal(t, Real, big.ElementType(), "values beyond int32 switch to real")
}

func TestSequence_Invalid(t *testing.T) {
	_, err := NewSequence(0, 10, 0)
	assert.ErrorIs(t, err, ErrInvalidSequence)

	_, err = NewSequence(0, 10, -1)
	assert.ErrorIs(t, err, ErrInvalidSequence)

	_, err = NewSequence(0, math.Inf(1), 1)
	assert.ErrorIs(t, err, ErrInvalidSequence)

	_, err = NewSequence(0, 1e300, 1e-300)
	assert.ErrorIs(t, err, ErrInvalidSequence)
}
