package cache

import (
	"sync"
	"testing"

	"github.com/hupe1980/ufo/internal/resource"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_Basic(t *testing.T) {
	c := NewLRU(30, nil)
	a := Key{Kind: KindFrame, Path: "a", Index: 0}
	b := Key{Kind: KindFrame, Path: "a", Index: 1}
	d := Key{Kind: KindFrame, Path: "a", Index: 2}

	c.Set(a, make([]byte, 10))
	c.Set(b, make([]byte, 10))
	c.Set(d, make([]byte, 10))
	assert.Equal(t, int64(30), c.Size())

	// Touch a so b becomes the eviction candidate.
	_, ok := c.Get(a)
	require.True(t, ok)

	c.Set(Key{Kind: KindFrame, Path: "a", Index: 3}, make([]byte, 10))
	_, ok = c.Get(b)
	assert.False(t, ok)
	_, ok = c.Get(a)
	assert.True(t, ok)

	hits, misses := c.Stats()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}

func TestLRU_EdgeCases(t *testing.T) {
	c := NewLRU(50, nil)
	k := Key{Kind: KindBlob, Path: "x"}

	c.Set(k, make([]byte, 60))
	_, ok := c.Get(k)
	assert.False(t, ok, "block larger than capacity must not be cached")

	c.Set(k, make([]byte, 10))
	c.Set(k, make([]byte, 20))
	assert.Equal(t, int64(20), c.Size())
	assert.Equal(t, 1, c.Len())

	c.Set(k, make([]byte, 5))
	assert.Equal(t, int64(5), c.Size())
}

func TestLRU_Budget(t *testing.T) {
	rc := resource.NewController(resource.Config{CommitLimitBytes: 16})
	c := NewLRU(100, rc)

	c.Set(Key{Index: 1}, make([]byte, 10))
	assert.Equal(t, int64(10), rc.Committed())

	// Budget refuses: 10 + 8 > 16.
	c.Set(Key{Index: 2}, make([]byte, 8))
	_, ok := c.Get(Key{Index: 2})
	assert.False(t, ok)
	assert.Equal(t, int64(10), rc.Committed())

	c.Invalidate(func(k Key) bool { return k.Index == 1 })
	assert.Equal(t, int64(0), rc.Committed())
	assert.Equal(t, 0, c.Len())
}

func TestLRU_Concurrent(t *testing.T) {
	c := NewLRU(1<<10, nil)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				k := Key{Path: "p", Index: uint64((g*200 + i) % 64)}
				c.Set(k, make([]byte, 16))
				c.Get(k)
			}
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, c.Size(), int64(1<<10))
	c.Purge()
	assert.Equal(t, int64(0), c.Size())
}
