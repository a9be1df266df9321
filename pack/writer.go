package pack

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"runtime"

	"github.com/hupe1980/ufo/internal/hash"
	"github.com/hupe1980/ufo/source"
	"golang.org/x/sync/errgroup"
)

// DefaultFrameBytes is the target uncompressed frame size when
// WriteOptions.FrameElements is zero.
const DefaultFrameBytes = 256 << 10

// Vector is what Write packs. *ufo.Object implements it; Region
// materializes the requested elements on demand.
type Vector interface {
	Len() uint64
	ElementType() source.ElementType
	Dims() []uint64
	Region(ctx context.Context, start, n uint64, out []byte) error
}

// WriteOptions configures Write.
type WriteOptions struct {
	// FrameElements is the number of elements per frame.
	// Defaults to DefaultFrameBytes worth of elements.
	FrameElements uint64
	// Codec selects the compression. The zero value stores frames raw.
	Codec Codec
	// ZstdLevel is the zstd compression level; zero uses the default.
	ZstdLevel int
	// Concurrency bounds how many frames are compressed in parallel.
	// Defaults to GOMAXPROCS.
	Concurrency int
}

// WriteStats summarizes a written pack.
type WriteStats struct {
	Frames   uint64
	RawBytes int64
	Bytes    int64
}

// Ratio returns the compression ratio (raw / stored).
func (s WriteStats) Ratio() float64 {
	if s.Bytes == 0 {
		return 0
	}
	return float64(s.RawBytes) / float64(s.Bytes)
}

// Write packs v into w. Frames are read and compressed in parallel and
// written in order; at most Concurrency frames are held in memory.
func Write(ctx context.Context, w io.Writer, v Vector, opts WriteOptions) (WriteStats, error) {
	typ := v.ElementType()
	if !typ.Valid() {
		return WriteStats{}, source.ErrInvalidElementType
	}
	if !opts.Codec.valid() {
		return WriteStats{}, fmt.Errorf("pack: unknown codec %d", opts.Codec)
	}
	count := v.Len()
	if count == 0 {
		return WriteStats{}, errors.New("pack: empty vector")
	}

	size := typ.Size()
	frameElems := opts.FrameElements
	if frameElems == 0 {
		frameElems = max(1, DefaultFrameBytes/size)
	}
	workers := opts.Concurrency
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	comp, err := newCompressor(opts.Codec, opts.ZstdLevel)
	if err != nil {
		return WriteStats{}, err
	}
	defer comp.Close()

	frames := (count + frameElems - 1) / frameElems
	ft := &footer{
		Type:       typ,
		Codec:      opts.Codec,
		Count:      count,
		FrameElems: frameElems,
		Dims:       v.Dims(),
		Offsets:    make([]uint64, 0, frames+1),
		Checksums:  make([]uint32, 0, frames),
	}
	if len(ft.Dims) == 0 {
		ft.Dims = []uint64{count}
	}

	cw := &countingWriter{w: w}
	var stats WriteStats

	window := make([][]byte, workers)
	for first := uint64(0); first < frames; first += uint64(workers) {
		last := min(first+uint64(workers), frames)

		g, gctx := errgroup.WithContext(ctx)
		for f := first; f < last; f++ {
			g.Go(func() error {
				start := f * frameElems
				n := min(frameElems, count-start)
				raw := make([]byte, n*size)
				if err := v.Region(gctx, start, n, raw); err != nil {
					return fmt.Errorf("pack: read frame %d: %w", f, err)
				}
				out, err := comp.compress(raw)
				if err != nil {
					return fmt.Errorf("pack: compress frame %d: %w", f, err)
				}
				window[f-first] = out
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return stats, err
		}

		for f := first; f < last; f++ {
			frame := window[f-first]
			window[f-first] = nil
			ft.Offsets = append(ft.Offsets, uint64(cw.n))
			ft.Checksums = append(ft.Checksums, hash.CRC32C(frame))
			if _, err := cw.Write(frame); err != nil {
				return stats, err
			}
			stats.Frames++
			stats.RawBytes += int64(binary.LittleEndian.Uint32(frame))
		}
	}

	ft.Offsets = append(ft.Offsets, uint64(cw.n))
	enc := ft.encode()
	if _, err := cw.Write(enc); err != nil {
		return stats, err
	}
	if _, err := cw.Write(encodeTrailer(uint64(len(enc)), hash.CRC32C(enc))); err != nil {
		return stats, err
	}
	stats.Bytes = cw.n
	return stats, nil
}

type countingWriter struct {
	w io.Writer
	n int64
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	return n, err
}
