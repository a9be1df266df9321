package vector

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"
	"unsafe"

	"github.com/hupe1980/ufo"
	"github.com/hupe1980/ufo/source"
	"github.com/hupe1980/ufo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstance(t *testing.T) *ufo.Instance {
	t.Helper()
	inst := ufo.New()
	require.NoError(t, inst.Init())
	t.Cleanup(func() {
		_ = inst.Shutdown(context.Background(), false)
		_ = inst.AwaitShutdown(context.Background())
	})
	return inst
}

func newVirtual(t *testing.T, inst *ufo.Instance, src source.Source) *Vector {
	t.Helper()
	obj, err := inst.CreateObject(t.Context(), ufo.Config{Source: src})
	require.NoError(t, err)
	return FromObject(obj)
}

func TestVector_Virtual(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)
	counting := testutil.NewCountingSource(testutil.Identity(10_000))
	v := newVirtual(t, inst, counting)

	assert.Equal(t, Virtual, v.Kind())
	assert.Equal(t, uint64(10_000), v.Len())
	assert.Equal(t, []uint64{10_000}, v.Dims())
	assert.Equal(t, int64(0), counting.Calls())

	e, err := v.Element(ctx, 7777)
	require.NoError(t, err)
	i, ok := e.Int()
	require.True(t, ok)
	assert.Equal(t, int32(7777), i)
	_, ok = e.Real()
	assert.False(t, ok)
	assert.Equal(t, "7777", e.String())

	ints, err := v.Ints(ctx, 10, 5)
	require.NoError(t, err)
	assert.Equal(t, []int32{10, 11, 12, 13, 14}, ints)

	_, err = v.Reals(ctx, 0, 1)
	assert.ErrorIs(t, err, ErrTypeMismatch)
	_, err = v.Element(ctx, 10_000)
	assert.ErrorIs(t, err, ErrOutOfRange)

	obj, ok := v.Object()
	require.True(t, ok)
	require.NoError(t, v.Close(ctx))
	assert.ErrorIs(t, v.Close(ctx), ErrClosed)
	_, ok = inst.Object(obj.ID())
	assert.False(t, ok, "closing the only vector destroys the object")

	_, err = v.Element(ctx, 0)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestVector_Materialized(t *testing.T) {
	ctx := t.Context()
	data := make([]byte, 6*8)
	for i := range 6 {
		source.ByteOrder.PutUint64(data[i*8:], math.Float64bits(float64(i)/2))
	}

	v, err := FromBytes(source.Real, data, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, Materialized, v.Kind())
	assert.Equal(t, []uint64{2, 3}, v.Dims())

	reals, err := v.Reals(ctx, 1, 3)
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 1.5}, reals)

	e, err := v.Element(ctx, 5)
	require.NoError(t, err)
	r, ok := e.Real()
	require.True(t, ok)
	assert.InDelta(t, 2.5, r, 0)

	_, ok = v.Object()
	assert.False(t, ok)

	p, err := v.RawPointer(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, unsafe.Pointer(&data[0]), p)
	require.NoError(t, v.Close(ctx))

	_, err = FromBytes(source.Real, make([]byte, 7))
	assert.Error(t, err)
	_, err = FromBytes(source.Int, make([]byte, 8), 3)
	assert.Error(t, err)
	_, err = FromBytes(source.Invalid, nil)
	assert.ErrorIs(t, err, source.ErrInvalidElementType)
}

func TestValue_Types(t *testing.T) {
	buf := make([]byte, 16)

	buf[0] = 200
	b, ok := decodeValue(source.Byte, buf).Byte()
	assert.True(t, ok)
	assert.Equal(t, byte(200), b)

	source.ByteOrder.PutUint32(buf, 1)
	truth, ok := decodeValue(source.Bool, buf).Bool()
	assert.True(t, ok)
	assert.True(t, truth)

	source.ByteOrder.PutUint64(buf, math.Float64bits(1.5))
	source.ByteOrder.PutUint64(buf[8:], math.Float64bits(-2))
	c, ok := decodeValue(source.Complex, buf).Complex()
	assert.True(t, ok)
	assert.Equal(t, complex(1.5, -2), c)
}

func TestVector_ShallowDuplicate(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)
	v := newVirtual(t, inst, testutil.Identity(100))
	obj, _ := v.Object()

	dup, err := v.Duplicate(ctx, false)
	require.NoError(t, err)
	assert.Equal(t, Virtual, dup.Kind())
	dupObj, _ := dup.Object()
	assert.Same(t, obj, dupObj)

	require.NoError(t, v.Close(ctx))
	_, ok := inst.Object(obj.ID())
	assert.True(t, ok, "the duplicate keeps the object alive")

	e, err := dup.Element(ctx, 42)
	require.NoError(t, err)
	i, _ := e.Int()
	assert.Equal(t, int32(42), i)

	require.NoError(t, dup.Close(ctx))
	_, ok = inst.Object(obj.ID())
	assert.False(t, ok)
}

func TestVector_DeepDuplicate(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)
	v := newVirtual(t, inst, testutil.Identity(3_000_000))
	defer v.Close(ctx)

	dup, err := v.Duplicate(ctx, true)
	require.NoError(t, err)
	assert.Equal(t, Materialized, dup.Kind())

	ints, err := dup.Ints(ctx, 2_999_990, 10)
	require.NoError(t, err)
	assert.Equal(t, int32(2_999_999), ints[9])

	// The copy is independent of the object.
	require.NoError(t, v.Close(ctx))
	ints, err = dup.Ints(ctx, 0, 3)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 1, 2}, ints)

	again, err := dup.Duplicate(ctx, true)
	require.NoError(t, err)
	p1, _ := dup.RawPointer(ctx, false)
	p2, _ := again.RawPointer(ctx, false)
	assert.NotEqual(t, p1, p2)
}

func TestVector_DuplicateFailure(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)
	v := newVirtual(t, inst, testutil.NewFailingSource(testutil.Identity(10_000), 9_000))
	defer v.Close(ctx)

	_, err := v.Duplicate(ctx, true)
	assert.ErrorIs(t, err, testutil.ErrInjected)
}

func TestVector_RawPointerWriteable(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)
	mem := testutil.NewMemory(source.Int, make([]byte, 400))
	v := newVirtual(t, inst, mem)

	p, err := v.RawPointer(ctx, true)
	require.NoError(t, err)
	unsafe.Slice((*int32)(p), 100)[3] = -5

	require.NoError(t, v.Close(ctx))
	assert.Equal(t, uint32(math.MaxUint32-4), source.ByteOrder.Uint32(mem.Snapshot()[12:]))
}

func TestVector_ConcurrentAccess(t *testing.T) {
	ctx := t.Context()
	inst := newInstance(t)
	counting := testutil.NewCountingSource(testutil.Identity(50_000))
	v := newVirtual(t, inst, counting)
	defer v.Close(ctx)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rng := testutil.NewRNG(int64(g))
			for range 100 {
				start, n := rng.Range(v.Len(), 64)
				ints, err := v.Ints(ctx, start, n)
				if !assert.NoError(t, err) {
					return
				}
				for j, x := range ints {
					assert.Equal(t, int32(start)+int32(j), x)
				}
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, int32(1), counting.MaxCount())
}

func TestVector_CloseRetriesFailedDestroy(t *testing.T) {
	ctx := t.Context()
	inst := ufo.New()
	require.NoError(t, inst.Init())

	errDiskFull := errors.New("disk full")
	var failing atomic.Bool
	failing.Store(true)
	src, err := source.New(source.Funcs{
		Type:  source.Int,
		Count: 1024,
		Populate: func(_ context.Context, _, _ uint64, dst []byte) error {
			clear(dst)
			return nil
		},
		WriteBack: func(context.Context, uint64, uint64, []byte) error {
			if failing.Load() {
				return errDiskFull
			}
			return nil
		},
	})
	require.NoError(t, err)

	v := newVirtual(t, inst, src)
	_, err = v.RawPointer(ctx, true)
	require.NoError(t, err)

	require.ErrorIs(t, v.Close(ctx), errDiskFull)
	assert.Equal(t, 1, inst.Stats().LiveObjects)

	// Still open: readable and closable.
	ints, err := v.Ints(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, []int32{0, 0}, ints)

	failing.Store(false)
	require.NoError(t, v.Close(ctx))
	assert.ErrorIs(t, v.Close(ctx), ErrClosed)
	assert.Equal(t, 0, inst.Stats().LiveObjects)

	require.NoError(t, inst.Shutdown(ctx, true))
	wctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	require.NoError(t, inst.AwaitShutdown(wctx))
}
