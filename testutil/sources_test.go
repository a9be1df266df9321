package testutil

import (
	"context"
	"testing"

	"github.com/hupe1980/ufo/source"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountingSource(t *testing.T) {
	ctx := context.Background()
	c := NewCountingSource(Identity(8))

	buf := make([]byte, 16)
	require.NoError(t, c.Populate(ctx, 2, 6, buf))
	require.NoError(t, c.Populate(ctx, 4, 8, buf))

	assert.Equal(t, int64(2), c.Calls())
	assert.Equal(t, int32(2), c.Count(5))
	assert.Equal(t, int32(0), c.Count(0))
	assert.Equal(t, 6, c.Populated())
	assert.Equal(t, int32(2), c.MaxCount())

	err := c.WriteBack(ctx, 0, 1, make([]byte, 4))
	assert.ErrorIs(t, err, source.ErrWriteBackUnsupported)
}

func TestFailingSource(t *testing.T) {
	ctx := context.Background()
	f := NewFailingSource(Identity(8), 5)

	require.NoError(t, f.Populate(ctx, 0, 4, make([]byte, 16)))
	err := f.Populate(ctx, 4, 8, make([]byte, 16))
	assert.ErrorIs(t, err, ErrInjected)
	assert.Equal(t, int64(1), f.Failures())

	f.Heal()
	require.NoError(t, f.Populate(ctx, 4, 8, make([]byte, 16)))
}

func TestMemory(t *testing.T) {
	ctx := context.Background()
	m := NewMemory(source.Byte, []byte{1, 2, 3, 4})
	assert.Equal(t, uint64(4), m.Len())

	require.NoError(t, m.WriteBack(ctx, 1, 3, []byte{9, 9}))
	assert.Equal(t, []byte{1, 9, 9, 4}, m.Snapshot())

	dst := make([]byte, 2)
	require.NoError(t, m.Populate(ctx, 2, 4, dst))
	assert.Equal(t, []byte{9, 4}, dst)
}

func TestRNG_Range(t *testing.T) {
	r := NewRNG(42)
	for range 1000 {
		start, count := r.Range(100, 10)
		assert.Less(t, start, uint64(100))
		assert.GreaterOrEqual(t, count, uint64(1))
		assert.LessOrEqual(t, count, uint64(10))
		assert.LessOrEqual(t, start+count, uint64(100))
	}
}
