package ufo

import (
	"context"
	"errors"
	"testing"

	"github.com/hupe1980/ufo/source"
	"github.com/hupe1980/ufo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlush_WritesDirtyChunks(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)

	mem := testutil.NewMemory(source.Int, make([]byte, 4*10000))
	obj, err := inst.CreateObject(ctx, Config{Source: mem})
	require.NoError(t, err)

	buf := make([]byte, 4)
	ne.PutUint32(buf, 77)
	_, err = obj.WriteAt(ctx, buf, 9000*4)
	require.NoError(t, err)
	assert.True(t, obj.Dirty())
	assert.Equal(t, uint32(0), ne.Uint32(mem.Snapshot()[9000*4:]))

	require.NoError(t, obj.Flush(ctx))
	assert.False(t, obj.Dirty())
	assert.Equal(t, uint32(77), ne.Uint32(mem.Snapshot()[9000*4:]))
	assert.Equal(t, int64(1), obj.Stats().WriteBacks)

	// Nothing left to write.
	require.NoError(t, obj.Flush(ctx))
	assert.Equal(t, int64(1), obj.Stats().WriteBacks)
}

func TestFlush_BatchesContiguousRuns(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t, WithMaxBatchChunks(2))

	mem := testutil.NewMemory(source.Int, make([]byte, 4*10000))
	obj, err := inst.CreateObject(ctx, Config{Source: mem})
	require.NoError(t, err)

	b, err := obj.Bytes(ctx, ReadWrite)
	require.NoError(t, err)
	for i := range obj.Len() {
		ne.PutUint32(b[i*4:], uint32(i)+1)
	}

	require.NoError(t, obj.Flush(ctx))
	chunks := obj.NumChunks()
	assert.Equal(t, int64((chunks+1)/2), obj.Stats().WriteBacks)

	snap := mem.Snapshot()
	for _, i := range []uint64{0, 5000, 9999} {
		assert.Equal(t, uint32(i)+1, ne.Uint32(snap[i*4:]))
	}
}

func TestFlush_ReadOnlySource(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)

	obj, err := inst.CreateObject(ctx, Config{Source: testutil.Identity(100)})
	require.NoError(t, err)

	_, err = obj.WriteAt(ctx, []byte{9, 9, 9, 9}, 0)
	require.NoError(t, err)
	assert.True(t, obj.Dirty())

	// Modifications to a source without write-back are discarded silently.
	require.NoError(t, obj.Flush(ctx))
	assert.False(t, obj.Dirty())
	assert.Equal(t, int64(0), obj.Stats().WriteBacks)
}

func TestFlush_UnsupportedWriteBack(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)

	counting := testutil.NewCountingSource(testutil.Identity(100))
	obj, err := inst.CreateObject(ctx, Config{Source: counting})
	require.NoError(t, err)

	require.NoError(t, obj.MarkDirty(0, 100))
	require.NoError(t, obj.Flush(ctx))
	assert.False(t, obj.Dirty())
}

type failingWriter struct {
	*testutil.Memory
	err error
}

func (f *failingWriter) WriteBack(ctx context.Context, start, end uint64, src []byte) error {
	if f.err != nil {
		return f.err
	}
	return f.Memory.WriteBack(ctx, start, end, src)
}

func TestFlush_FailureKeepsDirty(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)

	boom := errors.New("disk full")
	src := &failingWriter{Memory: testutil.NewMemory(source.Int, make([]byte, 400)), err: boom}
	obj, err := inst.CreateObject(ctx, Config{Source: src})
	require.NoError(t, err)

	_, err = obj.WriteAt(ctx, []byte{1, 0, 0, 0}, 40)
	require.NoError(t, err)

	assert.ErrorIs(t, obj.Flush(ctx), boom)
	assert.True(t, obj.Dirty())

	// A failed flush keeps the object alive on destroy.
	assert.ErrorIs(t, obj.Destroy(ctx), boom)
	_, ok := inst.Object(obj.ID())
	assert.True(t, ok)

	src.err = nil
	require.NoError(t, obj.Destroy(ctx))
	assert.Equal(t, byte(1), src.Snapshot()[40])
}

func TestFlush_ForcedShutdownDiscardsOnFailure(t *testing.T) {
	ctx := t.Context()
	inst := New()
	require.NoError(t, inst.Init())

	boom := errors.New("disk full")
	src := &failingWriter{Memory: testutil.NewMemory(source.Int, make([]byte, 400)), err: boom}
	obj, err := inst.CreateObject(ctx, Config{Source: src})
	require.NoError(t, err)
	require.NoError(t, obj.MarkDirty(0, 1))

	err = inst.Shutdown(ctx, false)
	assert.ErrorIs(t, err, boom)
	require.NoError(t, inst.AwaitShutdown(ctx))
	assert.ErrorIs(t, obj.Flush(ctx), ErrDestroyed)
}

func TestFlush_MarkDirtyRange(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)

	obj, err := inst.CreateObject(ctx, Config{Source: testutil.NewMemory(source.Int, make([]byte, 400))})
	require.NoError(t, err)

	assert.ErrorIs(t, obj.MarkDirty(90, 20), ErrOutOfRange)
	require.NoError(t, obj.MarkDirty(100, 0))
	assert.False(t, obj.Dirty())

	_, err = obj.WriteAt(ctx, make([]byte, 8), 396)
	assert.ErrorIs(t, err, ErrOutOfRange)
}
