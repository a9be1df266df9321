package testutil

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ufo/source"
)

// ErrInjected is returned by FailingSource.
var ErrInjected = errors.New("injected population failure")

// Identity returns an Int source of n elements where element i is i.
func Identity(n uint64) source.Source {
	src, err := source.New(source.Funcs{
		Type:  source.Int,
		Count: n,
		Populate: func(_ context.Context, start, end uint64, dst []byte) error {
			for i := start; i < end; i++ {
				source.ByteOrder.PutUint32(dst[(i-start)*4:], uint32(i))
			}
			return nil
		},
	})
	if err != nil {
		panic(err)
	}
	return src
}

// Memory is a writable in-memory source. Populate copies from and
// WriteBack copies into Data.
type Memory struct {
	mu   sync.Mutex
	Typ  source.ElementType
	Data []byte
}

// NewMemory creates a memory source over a copy of data.
func NewMemory(typ source.ElementType, data []byte) *Memory {
	return &Memory{Typ: typ, Data: append([]byte(nil), data...)}
}

func (m *Memory) ElementType() source.ElementType { return m.Typ }

func (m *Memory) Len() uint64 { return uint64(len(m.Data)) / m.Typ.Size() }

func (m *Memory) Populate(_ context.Context, start, end uint64, dst []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(dst, m.Data[start*m.Typ.Size():end*m.Typ.Size()])
	return nil
}

func (m *Memory) WriteBack(_ context.Context, start, _ uint64, src []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.Data[start*m.Typ.Size():], src)
	return nil
}

// Snapshot returns a copy of the current contents.
func (m *Memory) Snapshot() []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.Data...)
}

// CountingSource wraps a source and counts how often each element was populated.
type CountingSource struct {
	source.Source
	calls     atomic.Int64
	active    atomic.Int64
	maxActive atomic.Int64
	perElem   []atomic.Int32
}

// NewCountingSource wraps inner.
func NewCountingSource(inner source.Source) *CountingSource {
	return &CountingSource{
		Source:  inner,
		perElem: make([]atomic.Int32, inner.Len()),
	}
}

func (c *CountingSource) Populate(ctx context.Context, start, end uint64, dst []byte) error {
	c.calls.Add(1)
	n := c.active.Add(1)
	defer c.active.Add(-1)
	for {
		cur := c.maxActive.Load()
		if n <= cur || c.maxActive.CompareAndSwap(cur, n) {
			break
		}
	}

	err := c.Source.Populate(ctx, start, end, dst)
	if err == nil {
		for i := start; i < end; i++ {
			c.perElem[i].Add(1)
		}
	}
	return err
}

// WriteBack forwards to the wrapped source, or reports it unsupported.
func (c *CountingSource) WriteBack(ctx context.Context, start, end uint64, src []byte) error {
	if wb, ok := c.Source.(source.WriteBacker); ok {
		return wb.WriteBack(ctx, start, end, src)
	}
	return source.ErrWriteBackUnsupported
}

// Calls returns the number of Populate calls.
func (c *CountingSource) Calls() int64 { return c.calls.Load() }

// MaxConcurrent returns the highest number of overlapping Populate calls seen.
func (c *CountingSource) MaxConcurrent() int64 { return c.maxActive.Load() }

// Count returns how many times element i was successfully populated.
func (c *CountingSource) Count(i uint64) int32 { return c.perElem[i].Load() }

// Populated returns the number of elements populated at least once.
func (c *CountingSource) Populated() int {
	n := 0
	for i := range c.perElem {
		if c.perElem[i].Load() > 0 {
			n++
		}
	}
	return n
}

// MaxCount returns the highest population count of any element.
func (c *CountingSource) MaxCount() int32 {
	var m int32
	for i := range c.perElem {
		m = max(m, c.perElem[i].Load())
	}
	return m
}

// FailingSource wraps a source and fails every population that touches a
// poisoned element until Heal is called.
type FailingSource struct {
	source.Source
	mu       sync.Mutex
	poisoned map[uint64]bool
	failures atomic.Int64
}

// NewFailingSource wraps inner and poisons the given elements.
func NewFailingSource(inner source.Source, poisoned ...uint64) *FailingSource {
	f := &FailingSource{Source: inner, poisoned: make(map[uint64]bool)}
	for _, i := range poisoned {
		f.poisoned[i] = true
	}
	return f
}

func (f *FailingSource) Populate(ctx context.Context, start, end uint64, dst []byte) error {
	f.mu.Lock()
	for i := range f.poisoned {
		if i >= start && i < end {
			f.mu.Unlock()
			f.failures.Add(1)
			return &source.PopulationError{Op: "populate", Start: start, End: end, Err: ErrInjected}
		}
	}
	f.mu.Unlock()
	return f.Source.Populate(ctx, start, end, dst)
}

// Heal stops all injected failures.
func (f *FailingSource) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.poisoned)
}

// Failures returns the number of injected failures.
func (f *FailingSource) Failures() int64 { return f.failures.Load() }

// GatedSource wraps a source and blocks every population until Open is called.
type GatedSource struct {
	source.Source
	entered chan struct{}
	gate    chan struct{}
	once    sync.Once
}

// NewGatedSource wraps inner with a closed gate.
func NewGatedSource(inner source.Source) *GatedSource {
	return &GatedSource{
		Source:  inner,
		entered: make(chan struct{}, 1024),
		gate:    make(chan struct{}),
	}
}

func (g *GatedSource) Populate(ctx context.Context, start, end uint64, dst []byte) error {
	select {
	case g.entered <- struct{}{}:
	default:
	}
	<-g.gate
	return g.Source.Populate(ctx, start, end, dst)
}

// Entered returns a channel receiving one value per population that reached the gate.
func (g *GatedSource) Entered() <-chan struct{} { return g.entered }

// Open releases all current and future populations.
func (g *GatedSource) Open() {
	g.once.Do(func() { close(g.gate) })
}
