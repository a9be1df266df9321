package pack

import (
	"bytes"
	"context"
	"testing"

	"github.com/hupe1980/ufo"
	"github.com/hupe1980/ufo/blobstore"
	"github.com/hupe1980/ufo/source"
	"github.com/hupe1980/ufo/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstance(t *testing.T, opts ...ufo.Option) *ufo.Instance {
	t.Helper()
	inst := ufo.New(opts...)
	require.NoError(t, inst.Init())
	t.Cleanup(func() {
		_ = inst.Shutdown(context.Background(), false)
		_ = inst.AwaitShutdown(context.Background())
	})
	return inst
}

func writePack(t *testing.T, inst *ufo.Instance, src source.Source, opts WriteOptions) ([]byte, WriteStats) {
	t.Helper()
	obj, err := inst.CreateObject(t.Context(), ufo.Config{Source: src})
	require.NoError(t, err)
	defer obj.Destroy(context.Background())

	var buf bytes.Buffer
	stats, err := Write(t.Context(), &buf, obj, opts)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), stats.Bytes)
	return buf.Bytes(), stats
}

func openPack(t *testing.T, data []byte, opts ...OpenOption) *Source {
	t.Helper()
	store := blobstore.NewMemoryStore()
	require.NoError(t, store.Put(t.Context(), "vec.pack", data))
	src, err := OpenStore(t.Context(), store, "vec.pack", opts...)
	require.NoError(t, err)
	return src
}

func TestPack_RoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecLZ4, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			ctx := t.Context()
			inst := newInstance(t)

			data, stats := writePack(t, inst, testutil.Identity(10_000), WriteOptions{
				FrameElements: 1000,
				Codec:         codec,
				Concurrency:   3,
			})
			assert.Equal(t, uint64(10), stats.Frames)
			assert.Equal(t, int64(40_000), stats.RawBytes)

			src := openPack(t, data)
			assert.Equal(t, source.Int, src.ElementType())
			assert.Equal(t, uint64(10_000), src.Len())
			assert.Equal(t, []uint64{10_000}, src.Dims())
			assert.Equal(t, uint64(1000), src.MinLoadCount())
			assert.Equal(t, codec, src.Codec())
			assert.Equal(t, uint64(10), src.Frames())

			obj, err := inst.CreateObject(ctx, ufo.Config{Source: src})
			require.NoError(t, err)

			buf := make([]byte, 4)
			for _, i := range []uint64{0, 999, 1000, 5555, 9999} {
				_, err := obj.ReadAt(ctx, buf, int64(i*4))
				require.NoError(t, err)
				assert.Equal(t, uint32(i), source.ByteOrder.Uint32(buf))
			}
			require.NoError(t, obj.Destroy(ctx))
		})
	}
}

func TestPack_Compresses(t *testing.T) {
	for _, codec := range []Codec{CodecLZ4, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			inst := newInstance(t)
			zeros := testutil.NewMemory(source.Real, make([]byte, 8*50_000))
			data, stats := writePack(t, inst, zeros, WriteOptions{Codec: codec})
			assert.Greater(t, stats.Ratio(), 10.0)

			src := openPack(t, data)
			defer src.Close()
			dst := bytes.Repeat([]byte{1}, 80)
			require.NoError(t, src.Populate(t.Context(), 49_990, 50_000, dst))
			assert.Equal(t, make([]byte, 80), dst)
		})
	}
}

func TestPack_PopulateSpansFrames(t *testing.T) {
	inst := newInstance(t)
	data, _ := writePack(t, inst, testutil.Identity(2500), WriteOptions{FrameElements: 1000, Codec: CodecLZ4})
	src := openPack(t, data, WithCacheBytes(1<<20))
	defer src.Close()

	dst := make([]byte, 1600*4)
	require.NoError(t, src.Populate(t.Context(), 900, 2500, dst))
	for i := range uint64(1600) {
		require.Equal(t, uint32(900+i), source.ByteOrder.Uint32(dst[i*4:]))
	}
	_, misses := src.CacheStats()
	assert.Equal(t, int64(3), misses)

	require.NoError(t, src.Populate(t.Context(), 2000, 2001, dst[:4]))
	hits, _ := src.CacheStats()
	assert.Equal(t, int64(1), hits)

	err := src.Populate(t.Context(), 2400, 2600, make([]byte, 800))
	assert.ErrorIs(t, err, source.ErrOutOfRange)
	err = src.Populate(t.Context(), 0, 10, make([]byte, 39))
	assert.ErrorIs(t, err, source.ErrOutOfRange)
}

func TestPack_Shape(t *testing.T) {
	inst := newInstance(t)
	seq, err := source.NewSequence(0.5, 12, 0.5)
	require.NoError(t, err)
	obj, err := inst.CreateObject(t.Context(), ufo.Config{Source: seq, Dims: []uint64{4, 6}})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = Write(t.Context(), &buf, obj, WriteOptions{Codec: CodecZstd, ZstdLevel: 19})
	require.NoError(t, err)

	src := openPack(t, buf.Bytes())
	defer src.Close()
	assert.Equal(t, source.Real, src.ElementType())
	assert.Equal(t, []uint64{4, 6}, src.Dims())
	assert.Equal(t, uint64(1), src.Frames())
}

func TestPack_Corruption(t *testing.T) {
	inst := newInstance(t)
	data, _ := writePack(t, inst, testutil.Identity(4000), WriteOptions{FrameElements: 1000, Codec: CodecZstd})

	t.Run("frame checksum", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[20] ^= 0xff
		src := openPack(t, bad)
		defer src.Close()

		err := src.Populate(t.Context(), 0, 10, make([]byte, 40))
		assert.ErrorIs(t, err, ErrChecksum)
		var perr *source.PopulationError
		assert.ErrorAs(t, err, &perr)

		// Other frames are intact.
		require.NoError(t, src.Populate(t.Context(), 1000, 1010, make([]byte, 40)))
	})

	t.Run("trailer magic", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-1] ^= 0xff
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(t.Context(), "p", bad))
		_, err := OpenStore(t.Context(), store, "p")
		assert.ErrorIs(t, err, ErrInvalidMagic)
	})

	t.Run("footer checksum", func(t *testing.T) {
		bad := bytes.Clone(data)
		bad[len(bad)-trailerSize-1] ^= 0xff
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(t.Context(), "p", bad))
		_, err := OpenStore(t.Context(), store, "p")
		assert.ErrorIs(t, err, ErrChecksum)
	})

	t.Run("truncated", func(t *testing.T) {
		store := blobstore.NewMemoryStore()
		require.NoError(t, store.Put(t.Context(), "p", data[:8]))
		_, err := OpenStore(t.Context(), store, "p")
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("missing", func(t *testing.T) {
		_, err := OpenStore(t.Context(), blobstore.NewMemoryStore(), "nope")
		assert.ErrorIs(t, err, source.ErrSourceNotFound)
	})
}

func TestPack_CacheChargesBudget(t *testing.T) {
	inst := newInstance(t)
	data, _ := writePack(t, inst, testutil.Identity(4000), WriteOptions{FrameElements: 1000, Codec: CodecLZ4})

	before := inst.Stats().CommittedBytes
	src := openPack(t, data, WithBudget(inst.Budget()))
	require.NoError(t, src.Populate(t.Context(), 0, 2000, make([]byte, 8000)))
	assert.Equal(t, before+8000, inst.Stats().CommittedBytes)
	frames, size := src.CacheUsage()
	assert.Equal(t, 2, frames)
	assert.Equal(t, int64(8000), size)

	require.NoError(t, src.Close())
	assert.Equal(t, before, inst.Stats().CommittedBytes)
	frames, size = src.CacheUsage()
	assert.Zero(t, frames)
	assert.Zero(t, size)
}

func TestWrite_Errors(t *testing.T) {
	inst := newInstance(t)
	obj, err := inst.CreateObject(t.Context(), ufo.Config{
		Source: testutil.NewFailingSource(testutil.Identity(3000), 2500),
	})
	require.NoError(t, err)

	var buf bytes.Buffer
	_, err = Write(t.Context(), &buf, obj, WriteOptions{FrameElements: 1000})
	assert.ErrorIs(t, err, testutil.ErrInjected)

	_, err = Write(t.Context(), &buf, obj, WriteOptions{Codec: Codec(9)})
	assert.Error(t, err)
}
