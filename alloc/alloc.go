package alloc

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"unsafe"

	"github.com/hupe1980/ufo"
	"github.com/hupe1980/ufo/internal/mmap"
	"github.com/hupe1980/ufo/source"
)

var (
	// ErrUnknownPointer is returned for pointers this allocator did not
	// return, or that were already deallocated.
	ErrUnknownPointer = errors.New("alloc: unknown pointer")
	// ErrCorruptHeader is returned when the header in front of a payload
	// was overwritten.
	ErrCorruptHeader = errors.New("alloc: corrupt block header")
	// ErrInvalidSize is returned for non-positive allocation sizes.
	ErrInvalidSize = errors.New("alloc: invalid size")
)

type block struct {
	kind    Kind
	mapping *mmap.Mapping
	obj     *ufo.Object
	size    int
}

// BackedConfig describes an engine-backed allocation.
type BackedConfig struct {
	// Intent is passed to Object.Pointer. ReadWrite makes Deallocate write
	// modifications back to the source.
	Intent ufo.Intent
	// MinLoadCount and Name are passed to the object config.
	MinLoadCount uint64
	Name         string
}

// Stats is a snapshot of allocator counters.
type Stats struct {
	AnonBlocks    int
	BackedBlocks  int
	AnonBytes     int64
	BackedBytes   int64
	Allocations   int64
	Deallocations int64
}

// Allocator tracks the blocks it hands out. It is safe for concurrent use.
type Allocator struct {
	inst *ufo.Instance

	mu     sync.Mutex
	blocks map[uintptr]*block
	allocs int64
	frees  int64
}

// New creates an allocator. inst is only needed for AllocateBacked.
func New(inst *ufo.Instance) *Allocator {
	return &Allocator{inst: inst, blocks: make(map[uintptr]*block)}
}

// Allocate returns size bytes of zeroed off-heap memory. The header occupies
// the last HeaderSize bytes of a leading page so the payload is page aligned.
func (a *Allocator) Allocate(size int) (unsafe.Pointer, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}
	page := mmap.PageSize()
	total := page + mmap.AlignUp(size, page)
	m, err := mmap.MapAnon(total)
	if err != nil {
		return nil, fmt.Errorf("alloc: map %d bytes: %w", size, err)
	}

	mem := m.Bytes()
	Header{Kind: KindAnon, Size: uint64(size), Total: uint64(total)}.encode(mem[page-HeaderSize : page])
	p := unsafe.Pointer(&mem[page]) //nolint:gosec // payload of an off-heap mapping

	a.add(p, &block{kind: KindAnon, mapping: m, size: size})
	return p, nil
}

// AllocateBacked creates an engine object over src with a HeaderSize
// prefix, materializes it and returns the address of its first element.
func (a *Allocator) AllocateBacked(ctx context.Context, src source.Source, cfg BackedConfig) (unsafe.Pointer, error) {
	if a.inst == nil {
		return nil, errors.New("alloc: allocator has no instance")
	}
	obj, err := a.inst.CreateObject(ctx, ufo.Config{
		Source:       src,
		MinLoadCount: cfg.MinLoadCount,
		Prefix:       HeaderSize,
		Name:         cfg.Name,
	})
	if err != nil {
		return nil, err
	}

	p, err := obj.Pointer(ctx, cfg.Intent)
	if err != nil {
		return nil, errors.Join(err, obj.Destroy(ctx))
	}

	Header{
		Kind:     KindBacked,
		Type:     obj.ElementType(),
		Size:     uint64(obj.ByteLen()),
		Elements: obj.Len(),
		Object:   uint64(obj.ID()),
		Total:    uint64(obj.Stats().ReservedBytes),
	}.encode(obj.PrefixBytes())

	a.add(p, &block{kind: KindBacked, obj: obj, size: obj.ByteLen()})
	return p, nil
}

func (a *Allocator) add(p unsafe.Pointer, b *block) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blocks[uintptr(p)] = b
	a.allocs++
}

// headerBytes returns the header in front of a known payload.
func headerBytes(p unsafe.Pointer) []byte {
	return unsafe.Slice((*byte)(unsafe.Add(p, -HeaderSize)), HeaderSize) //nolint:gosec // header precedes every payload
}

// released reports whether the memory of b is already gone, which happens
// when the instance force-destroyed a backed object on shutdown.
func (a *Allocator) released(b *block) bool {
	if b.kind != KindBacked {
		return false
	}
	_, live := a.inst.Object(b.obj.ID())
	return !live
}

// Header returns the header of a live block.
func (a *Allocator) Header(p unsafe.Pointer) (Header, error) {
	a.mu.Lock()
	b, ok := a.blocks[uintptr(p)]
	a.mu.Unlock()
	if !ok {
		return Header{}, ErrUnknownPointer
	}
	if a.released(b) {
		return Header{}, ufo.ErrDestroyed
	}
	return decodeHeader(headerBytes(p))
}

// Object returns the engine object behind a backed block.
func (a *Allocator) Object(p unsafe.Pointer) (*ufo.Object, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	b, ok := a.blocks[uintptr(p)]
	if !ok || b.kind != KindBacked {
		return nil, false
	}
	return b.obj, true
}

// Deallocate frees a block. Anonymous blocks are unmapped; backed blocks
// are destroyed, which flushes their dirty data first. If destroying fails
// the block stays allocated. Backed blocks whose object was already
// destroyed with the instance are simply forgotten.
func (a *Allocator) Deallocate(ctx context.Context, p unsafe.Pointer) error {
	a.mu.Lock()
	b, ok := a.blocks[uintptr(p)]
	if ok {
		delete(a.blocks, uintptr(p))
	}
	a.mu.Unlock()
	if !ok {
		return ErrUnknownPointer
	}
	if a.released(b) {
		a.mu.Lock()
		a.frees++
		a.mu.Unlock()
		return nil
	}

	h, err := decodeHeader(headerBytes(p))
	if err == nil && (h.Kind != b.kind || h.Size != uint64(b.size)) {
		err = ErrCorruptHeader
	}
	if err == nil && b.kind == KindAnon && h.Total != uint64(b.mapping.Size()) {
		err = ErrCorruptHeader
	}
	if err != nil {
		a.restore(p, b)
		return err
	}

	switch b.kind {
	case KindAnon:
		err = b.mapping.Close()
	case KindBacked:
		err = b.obj.Destroy(ctx)
	}
	if err != nil {
		a.restore(p, b)
		return err
	}

	a.mu.Lock()
	a.frees++
	a.mu.Unlock()
	return nil
}

func (a *Allocator) restore(p unsafe.Pointer, b *block) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.blocks[uintptr(p)] = b
}

// Stats returns a snapshot of the allocator.
func (a *Allocator) Stats() Stats {
	a.mu.Lock()
	defer a.mu.Unlock()

	s := Stats{Allocations: a.allocs, Deallocations: a.frees}
	for _, b := range a.blocks {
		switch b.kind {
		case KindAnon:
			s.AnonBlocks++
			s.AnonBytes += int64(b.size)
		case KindBacked:
			s.BackedBlocks++
			s.BackedBytes += int64(b.size)
		}
	}
	return s
}

// Close deallocates every remaining block.
func (a *Allocator) Close(ctx context.Context) error {
	a.mu.Lock()
	ptrs := make([]uintptr, 0, len(a.blocks))
	for p := range a.blocks {
		ptrs = append(ptrs, p)
	}
	a.mu.Unlock()

	var errs []error
	for _, p := range ptrs {
		if err := a.Deallocate(ctx, unsafe.Pointer(p)); err != nil && !errors.Is(err, ErrUnknownPointer) { //nolint:govet // p came from a live block
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
