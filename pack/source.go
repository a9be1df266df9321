package pack

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/ufo/blobstore"
	"github.com/hupe1980/ufo/internal/cache"
	"github.com/hupe1980/ufo/internal/hash"
	"github.com/hupe1980/ufo/source"
)

// DefaultCacheBytes bounds the decompressed frame cache when no size is given.
const DefaultCacheBytes = 32 << 20

// Budget is charged for cached frame bytes; (*ufo.Instance).Budget()
// returns one so cached frames count against the instance commit limit.
type Budget = cache.Budget

type openOptions struct {
	name       string
	cacheBytes int64
	budget     Budget
	verify     bool
}

// OpenOption configures Open.
type OpenOption func(*openOptions)

// WithName sets the name used for cache keys and errors.
func WithName(name string) OpenOption {
	return func(o *openOptions) {
		o.name = name
	}
}

// WithCacheBytes bounds the decompressed frame cache. Zero disables caching.
func WithCacheBytes(n int64) OpenOption {
	return func(o *openOptions) {
		o.cacheBytes = n
	}
}

// WithBudget charges cached frames against b.
func WithBudget(b Budget) OpenOption {
	return func(o *openOptions) {
		o.budget = b
	}
}

// WithVerify enables or disables CRC32C verification of frames. Enabled by default.
func WithVerify(verify bool) OpenOption {
	return func(o *openOptions) {
		o.verify = verify
	}
}

// Source is a read-only source over a pack. It implements source.Source,
// source.Shaper, source.MinLoader and io.Closer.
type Source struct {
	blob   blobstore.Blob
	name   string
	ft     *footer
	cache  *cache.LRU
	verify bool
}

// Open reads the footer of the pack in blob. The source takes ownership of blob.
func Open(ctx context.Context, blob blobstore.Blob, optFns ...OpenOption) (*Source, error) {
	o := openOptions{cacheBytes: DefaultCacheBytes, verify: true}
	for _, fn := range optFns {
		fn(&o)
	}

	ft, err := readFooter(ctx, blob)
	if err != nil {
		return nil, err
	}

	s := &Source{
		blob:   blob,
		name:   o.name,
		ft:     ft,
		verify: o.verify,
	}
	if o.cacheBytes > 0 {
		s.cache = cache.NewLRU(o.cacheBytes, o.budget)
	}
	return s, nil
}

// OpenStore opens name in store as a pack.
func OpenStore(ctx context.Context, store blobstore.BlobStore, name string, optFns ...OpenOption) (*Source, error) {
	blob, err := store.Open(ctx, name)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, &source.PopulationError{Op: "open", Err: fmt.Errorf("%w: %w", source.ErrSourceNotFound, err)}
		}
		return nil, err
	}
	s, err := Open(ctx, blob, append([]OpenOption{WithName(name)}, optFns...)...)
	if err != nil {
		_ = blob.Close()
		return nil, err
	}
	return s, nil
}

func readFooter(ctx context.Context, blob blobstore.Blob) (*footer, error) {
	size := blob.Size()
	if size < trailerSize {
		return nil, fmt.Errorf("%w: blob too small", ErrCorrupt)
	}

	tr := make([]byte, trailerSize)
	if err := readFull(ctx, blob, tr, size-trailerSize); err != nil {
		return nil, err
	}
	footerLen, crc, err := decodeTrailer(tr)
	if err != nil {
		return nil, err
	}
	if footerLen > uint64(size-trailerSize) {
		return nil, fmt.Errorf("%w: footer length %d exceeds blob", ErrCorrupt, footerLen)
	}

	footerOff := size - trailerSize - int64(footerLen)
	buf := make([]byte, footerLen)
	if err := readFull(ctx, blob, buf, footerOff); err != nil {
		return nil, err
	}
	if !hash.Verify(buf, crc) {
		return nil, fmt.Errorf("%w: footer", ErrChecksum)
	}

	ft, err := decodeFooter(buf)
	if err != nil {
		return nil, err
	}
	if ft.Offsets[len(ft.Offsets)-1] != uint64(footerOff) {
		return nil, fmt.Errorf("%w: frames end at %d, footer at %d", ErrCorrupt, ft.Offsets[len(ft.Offsets)-1], footerOff)
	}
	return ft, nil
}

func readFull(ctx context.Context, blob blobstore.Blob, p []byte, off int64) error {
	n, err := blob.ReadAt(ctx, p, off)
	if n == len(p) {
		return nil
	}
	if err == nil || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: short read at %d", ErrCorrupt, off)
	}
	return err
}

// Name returns the name given by WithName or OpenStore.
func (s *Source) Name() string { return s.name }

func (s *Source) ElementType() source.ElementType { return s.ft.Type }

func (s *Source) Len() uint64 { return s.ft.Count }

func (s *Source) Dims() []uint64 { return s.ft.Dims }

// MinLoadCount returns the frame size so a population never decompresses
// a frame for only part of its elements.
func (s *Source) MinLoadCount() uint64 { return s.ft.FrameElems }

// Codec returns the frame compression.
func (s *Source) Codec() Codec { return s.ft.Codec }

// Frames returns the number of frames.
func (s *Source) Frames() uint64 { return s.ft.frames() }

// CacheStats returns the frame cache hit and miss counts.
func (s *Source) CacheStats() (hits, misses int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Stats()
}

// CacheUsage returns the number of decompressed frames held in the cache
// and their size in bytes.
func (s *Source) CacheUsage() (frames int, bytes int64) {
	if s.cache == nil {
		return 0, 0
	}
	return s.cache.Len(), s.cache.Size()
}

// Populate decompresses the frames covering [start, end) into dst.
func (s *Source) Populate(ctx context.Context, start, end uint64, dst []byte) error {
	size := s.ft.Type.Size()
	if start > end || end > s.ft.Count {
		return &source.PopulationError{Op: "populate", Start: start, End: end, Err: source.ErrOutOfRange}
	}
	if uint64(len(dst)) != (end-start)*size {
		return &source.PopulationError{Op: "populate", Start: start, End: end,
			Err: fmt.Errorf("%w: buffer is %d bytes, want %d", source.ErrOutOfRange, len(dst), (end-start)*size)}
	}
	if start == end {
		return nil
	}

	fe := s.ft.FrameElems
	for f := start / fe; f <= (end-1)/fe; f++ {
		data, err := s.frame(ctx, f)
		if err != nil {
			if ctx.Err() != nil {
				return err
			}
			return &source.PopulationError{Op: "populate", Start: start, End: end, Err: err}
		}
		f0 := f * fe
		lo := max(start, f0)
		hi := min(end, f0+fe, s.ft.Count)
		copy(dst[(lo-start)*size:(hi-start)*size], data[(lo-f0)*size:(hi-f0)*size])
	}
	return nil
}

// frame returns the decompressed contents of frame f.
func (s *Source) frame(ctx context.Context, f uint64) ([]byte, error) {
	key := cache.Key{Kind: cache.KindFrame, Path: s.name, Index: f}
	if s.cache != nil {
		if data, ok := s.cache.Get(key); ok {
			return data, nil
		}
	}

	off, end := s.ft.Offsets[f], s.ft.Offsets[f+1]
	stored := make([]byte, end-off)
	if err := readFull(ctx, s.blob, stored, int64(off)); err != nil {
		if errors.Is(err, ErrCorrupt) {
			return nil, fmt.Errorf("%w: %w", source.ErrTruncated, err)
		}
		return nil, err
	}
	if s.verify && !hash.Verify(stored, s.ft.Checksums[f]) {
		return nil, fmt.Errorf("%w: frame %d", ErrChecksum, f)
	}

	n := min(s.ft.FrameElems, s.ft.Count-f*s.ft.FrameElems)
	data, err := decompress(s.ft.Codec, stored, int(n*s.ft.Type.Size()))
	if err != nil {
		return nil, fmt.Errorf("frame %d: %w", f, err)
	}

	if s.cache != nil {
		s.cache.Set(key, data)
	}
	return data, nil
}

// Close drops cached frames and closes the blob.
func (s *Source) Close() error {
	if s.cache != nil {
		s.cache.Purge()
	}
	return s.blob.Close()
}

var (
	_ source.Source    = (*Source)(nil)
	_ source.Shaper    = (*Source)(nil)
	_ source.MinLoader = (*Source)(nil)
	_ io.Closer        = (*Source)(nil)
)
