package blobstore

import (
	"context"
	"errors"
	"io"

	"github.com/hupe1980/ufo/internal/cache"
	"golang.org/x/sync/errgroup"
)

// DefaultBlockSize is the cache granularity used when none is given.
const DefaultBlockSize = 64 << 10

// CachingStore wraps a BlobStore and caches fixed-size blocks of the blobs it reads.
// Remote stores benefit the most: repeated chunk populations over the same
// region hit memory instead of the network.
type CachingStore struct {
	inner     BlobStore
	cache     *cache.LRU
	blockSize int64
	fetchers  int
}

// Budget is charged for cached bytes. A nil Budget only tracks the capacity.
type Budget = cache.Budget

// NewCachingStore creates a new CachingStore holding at most capacity bytes.
// blockSize defaults to DefaultBlockSize if <= 0.
func NewCachingStore(inner BlobStore, capacity int64, budget Budget, blockSize int64) *CachingStore {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}
	return &CachingStore{
		inner:     inner,
		cache:     cache.NewLRU(capacity, budget),
		blockSize: blockSize,
		fetchers:  16,
	}
}

func (s *CachingStore) Open(ctx context.Context, name string) (Blob, error) {
	b, err := s.inner.Open(ctx, name)
	if err != nil {
		return nil, err
	}
	return &cachingBlob{inner: b, store: s, name: name}, nil
}

// Create passes through; the cached blocks are dropped when the blob is replaced.
func (s *CachingStore) Create(ctx context.Context, name string) (WritableBlob, error) {
	w, err := s.inner.Create(ctx, name)
	if err != nil {
		return nil, err
	}
	return &invalidatingWriter{WritableBlob: w, invalidate: func() { s.invalidate(name) }}, nil
}

func (s *CachingStore) Put(ctx context.Context, name string, data []byte) error {
	s.invalidate(name)
	return s.inner.Put(ctx, name, data)
}

func (s *CachingStore) Delete(ctx context.Context, name string) error {
	s.invalidate(name)
	return s.inner.Delete(ctx, name)
}

func (s *CachingStore) List(ctx context.Context, prefix string) ([]string, error) {
	return s.inner.List(ctx, prefix)
}

// CacheStats returns the block cache hit and miss counts.
func (s *CachingStore) CacheStats() (hits, misses int64) {
	return s.cache.Stats()
}

func (s *CachingStore) invalidate(name string) {
	s.cache.Invalidate(func(k cache.Key) bool {
		return k.Kind == cache.KindBlob && k.Path == name
	})
}

type invalidatingWriter struct {
	WritableBlob
	invalidate func()
}

func (w *invalidatingWriter) Close() error {
	err := w.WritableBlob.Close()
	w.invalidate()
	return err
}

type cachingBlob struct {
	inner Blob
	store *CachingStore
	name  string
}

func (b *cachingBlob) Close() error { return b.inner.Close() }

func (b *cachingBlob) Size() int64 { return b.inner.Size() }

func (b *cachingBlob) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	size := b.inner.Size()
	if off < 0 || off >= size {
		return 0, io.EOF
	}

	want := p
	if off+int64(len(p)) > size {
		want = p[:size-off]
	}

	bs := b.store.blockSize
	first := off / bs
	last := (off + int64(len(want)) - 1) / bs

	blocks, err := b.blocks(ctx, first, last)
	if err != nil {
		return 0, err
	}

	n := 0
	for i, data := range blocks {
		blkStart := (first + int64(i)) * bs
		lo := max(blkStart, off)
		hi := min(blkStart+int64(len(data)), off+int64(len(want)))
		if hi <= lo {
			break
		}
		n += copy(want[lo-off:hi-off], data[lo-blkStart:hi-blkStart])
	}

	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

// blocks returns blocks [first, last], fetching misses concurrently.
func (b *cachingBlob) blocks(ctx context.Context, first, last int64) ([][]byte, error) {
	out := make([][]byte, last-first+1)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.store.fetchers)

	for blk := first; blk <= last; blk++ {
		key := cache.Key{Kind: cache.KindBlob, Path: b.name, Index: uint64(blk)}
		if data, ok := b.store.cache.Get(key); ok {
			out[blk-first] = data
			continue
		}
		g.Go(func() error {
			data, err := b.fetch(gctx, blk)
			if err != nil {
				return err
			}
			b.store.cache.Set(key, data)
			out[blk-first] = data
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *cachingBlob) fetch(ctx context.Context, blk int64) ([]byte, error) {
	bs := b.store.blockSize
	start := blk * bs
	n := min(bs, b.inner.Size()-start)
	buf := make([]byte, n)
	read, err := b.inner.ReadAt(ctx, buf, start)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return buf[:read], nil
}
