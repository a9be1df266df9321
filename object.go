package ufo

import (
	"context"
	"errors"
	"io"
	"math"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/hupe1980/ufo/internal/bitset"
	"github.com/hupe1980/ufo/internal/conv"
	"github.com/hupe1980/ufo/internal/mmap"
	"github.com/hupe1980/ufo/source"
)

// ObjectID identifies an object within its instance.
type ObjectID uint64

// ChunkState is the population state of one chunk.
type ChunkState uint8

const (
	Unpopulated ChunkState = iota
	Populating
	Populated
)

func (s ChunkState) String() string {
	switch s {
	case Unpopulated:
		return "unpopulated"
	case Populating:
		return "populating"
	case Populated:
		return "populated"
	default:
		return "unknown"
	}
}

type objectState int32

const (
	objectLive objectState = iota
	objectDestroying
	objectDestroyed
)

// Config describes an object to create.
type Config struct {
	// Source provides the contents. Required.
	Source source.Source
	// MinLoadCount is the minimum number of elements per population call.
	// Zero uses the source's MinLoader hint, or one element.
	MinLoadCount uint64
	// Dims overrides the source shape. The product must equal the element count.
	Dims []uint64
	// Prefix reserves this many committed bytes immediately before the data,
	// e.g. for an allocation header.
	Prefix int
	// Name is used in logs.
	Name string
}

// Object is a vector whose storage is a reserved address range populated
// chunk by chunk on first access.
type Object struct {
	id      ObjectID
	inst    *Instance
	name    string
	src     source.Source
	wb      source.WriteBacker
	logger  *Logger
	metrics MetricsCollector

	typ      source.ElementType
	elemSize uint64
	count    uint64
	dims     []uint64

	res        *mmap.Reservation
	prefix     int // requested prefix bytes
	dataOff    int // offset of element 0 within the reservation
	data       []byte
	chunkElems uint64
	numChunks  uint64

	populated *bitset.BitSet
	committed atomic.Int64

	mu       sync.Mutex
	inflight map[uint64]*population
	dirty    *roaring.Bitmap

	flushMu   sync.Mutex
	destroyMu sync.Mutex
	state     atomic.Int32
	refs      atomic.Int64

	populations   atomic.Int64
	populatedElem atomic.Int64
	writeBacks    atomic.Int64
	faultHits     atomic.Int64
	faultMisses   atomic.Int64

	populatorWaits atomic.Int64
	ioThrottled    atomic.Int64
}

// CreateObject reserves address space for cfg.Source and registers the object.
// Nothing is populated until the object is accessed.
func (inst *Instance) CreateObject(ctx context.Context, cfg Config) (*Object, error) {
	switch instanceState(inst.state.Load()) {
	case stateNew:
		return nil, ErrNotInitialized
	case stateShuttingDown:
		return nil, ErrShutdown
	}

	o, err := inst.newObject(cfg)
	if err != nil {
		inst.logger.LogCreate(ctx, cfg.Name, 0, 0, err)
		return nil, err
	}

	if err := inst.register(o); err != nil {
		o.release()
		return nil, err
	}

	o.logger = inst.logger.WithObject(o.id)
	inst.metrics.RecordObjectCreated(int64(o.res.Size()))
	o.logger.LogCreate(ctx, o.name, o.count, o.res.Size(), nil)
	return o, nil
}

func (inst *Instance) newObject(cfg Config) (*Object, error) {
	src := cfg.Source
	if src == nil {
		return nil, &ConfigError{Field: "source", Reason: "must not be nil"}
	}
	typ := src.ElementType()
	if !typ.Valid() {
		return nil, &ConfigError{Field: "element type", Reason: typ.String()}
	}
	count := src.Len()
	if count == 0 {
		return nil, &ConfigError{Field: "element count", Reason: "must be positive"}
	}
	if cfg.Prefix < 0 {
		return nil, &ConfigError{Field: "prefix", Reason: "must not be negative"}
	}

	dims := cfg.Dims
	if len(dims) == 0 {
		dims = source.DimsOf(src)
	}
	if err := checkDims(dims, count); err != nil {
		return nil, err
	}

	elemSize := typ.Size()
	dataBytes, err := conv.ByteSpan(count, int(elemSize))
	if err != nil {
		return nil, &ConfigError{Field: "element count", Reason: "object too large"}
	}

	page := inst.opts.pageSize
	minLoad := cfg.MinLoadCount
	if minLoad == 0 {
		if ml, ok := src.(source.MinLoader); ok {
			minLoad = ml.MinLoadCount()
		}
	}
	minLoad = max(minLoad, 1)
	minLoad = min(minLoad, count)

	// Chunks are always rounded up to whole pages.
	chunkBytes := mmap.AlignUp(int(minLoad*elemSize), page)
	chunkElems := uint64(chunkBytes) / elemSize
	numChunks := (count + chunkElems - 1) / chunkElems
	if numChunks > math.MaxUint32 {
		return nil, &ConfigError{Field: "min load count", Reason: "too many chunks"}
	}

	dataOff := mmap.AlignUp(cfg.Prefix, page)
	total := dataOff + mmap.AlignUp(dataBytes, page)

	res, err := mmap.Reserve(total)
	if err != nil {
		return nil, &ReservationError{Op: "reserve", Size: int64(total), Err: err}
	}

	o := &Object{
		id:         ObjectID(inst.nextID.Add(1)),
		inst:       inst,
		name:       cfg.Name,
		src:        src,
		logger:     inst.logger,
		metrics:    inst.metrics,
		typ:        typ,
		elemSize:   elemSize,
		count:      count,
		dims:       dims,
		res:        res,
		prefix:     cfg.Prefix,
		dataOff:    dataOff,
		data:       res.Bytes()[dataOff : dataOff+dataBytes],
		chunkElems: chunkElems,
		numChunks:  numChunks,
		populated:  bitset.New(numChunks),
		inflight:   make(map[uint64]*population),
		dirty:      roaring.New(),
	}
	if wb, ok := src.(source.WriteBacker); ok {
		o.wb = wb
	}

	if dataOff > 0 {
		if err := inst.rc.Commit(int64(dataOff)); err != nil {
			_ = res.Release()
			return nil, &ReservationError{Op: "commit", Size: int64(dataOff), Err: err}
		}
		if err := res.Commit(0, dataOff); err != nil {
			inst.rc.Uncommit(int64(dataOff))
			_ = res.Release()
			return nil, &ReservationError{Op: "commit", Size: int64(dataOff), Err: err}
		}
		o.committed.Add(int64(dataOff))
	}

	return o, nil
}

func checkDims(dims []uint64, count uint64) error {
	p := uint64(1)
	for _, d := range dims {
		var err error
		if p, err = conv.MulUint64(p, d); err != nil {
			return &ConfigError{Field: "dims", Reason: "product overflows"}
		}
	}
	if p != count {
		return &ConfigError{Field: "dims", Reason: "product does not match element count"}
	}
	return nil
}

// ID returns the object id.
func (o *Object) ID() ObjectID { return o.id }

// Name returns the configured name.
func (o *Object) Name() string { return o.name }

// Len returns the number of elements. It never populates anything.
func (o *Object) Len() uint64 { return o.count }

// ElementType returns the element representation.
func (o *Object) ElementType() source.ElementType { return o.typ }

// ElementSize returns the element width in bytes.
func (o *Object) ElementSize() uint64 { return o.elemSize }

// Dims returns the object shape.
func (o *Object) Dims() []uint64 { return append([]uint64(nil), o.dims...) }

// ByteLen returns the size of the data region.
func (o *Object) ByteLen() int { return len(o.data) }

// Source returns the backing source.
func (o *Object) Source() source.Source { return o.src }

// ChunkElements returns the number of elements per chunk.
func (o *Object) ChunkElements() uint64 { return o.chunkElems }

// NumChunks returns the number of chunks.
func (o *Object) NumChunks() uint64 { return o.numChunks }

// PrefixBytes returns the Prefix bytes immediately before the data region.
// The memory is committed at creation and is never handed to the source.
func (o *Object) PrefixBytes() []byte {
	if o.prefix == 0 || o.state.Load() == int32(objectDestroyed) {
		return nil
	}
	return o.res.Bytes()[o.dataOff-o.prefix : o.dataOff]
}

// ChunkState returns the state of chunk i.
func (o *Object) ChunkState(i uint64) ChunkState {
	if i >= o.numChunks {
		return Unpopulated
	}
	if o.populated.Test(i) {
		return Populated
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, ok := o.inflight[i]; ok {
		return Populating
	}
	// A population may have finished between the two checks.
	if o.populated.Test(i) {
		return Populated
	}
	return Unpopulated
}

// Snapshot holds the populated and dirty chunk sets at one point in time.
type Snapshot struct {
	Populated *roaring.Bitmap
	Dirty     *roaring.Bitmap
}

// Snapshot returns the populated and dirty chunk indices.
func (o *Object) Snapshot() Snapshot {
	pop := roaring.New()
	for i := uint64(0); i < o.numChunks; i++ {
		if o.populated.Test(i) {
			pop.Add(uint32(i))
		}
	}

	o.mu.Lock()
	dirty := o.dirty.Clone()
	o.mu.Unlock()

	return Snapshot{Populated: pop, Dirty: dirty}
}

// ObjectStats is a snapshot of per-object counters.
type ObjectStats struct {
	Elements          uint64
	ChunkElements     uint64
	Chunks            uint64
	PopulatedChunks   int
	DirtyChunks       uint64
	InFlightChunks    int
	CommittedBytes    int64
	ReservedBytes     int
	Populations       int64
	PopulatedElements int64
	WriteBacks        int64
	FaultHits         int64
	FaultMisses       int64
	// PopulatorWaits counts populations that found every worker slot taken.
	PopulatorWaits int64
	// IOThrottled counts populations and write-backs delayed by the IO limit.
	IOThrottled int64
}

// Stats returns a snapshot of the object's counters.
func (o *Object) Stats() ObjectStats {
	o.mu.Lock()
	dirty := o.dirty.GetCardinality()
	inflight := len(o.inflight)
	o.mu.Unlock()

	return ObjectStats{
		Elements:          o.count,
		ChunkElements:     o.chunkElems,
		Chunks:            o.numChunks,
		PopulatedChunks:   o.populated.Count(),
		DirtyChunks:       dirty,
		InFlightChunks:    inflight,
		CommittedBytes:    o.committed.Load(),
		ReservedBytes:     o.res.Size(),
		Populations:       o.populations.Load(),
		PopulatedElements: o.populatedElem.Load(),
		WriteBacks:        o.writeBacks.Load(),
		FaultHits:         o.faultHits.Load(),
		FaultMisses:       o.faultMisses.Load(),
		PopulatorWaits:    o.populatorWaits.Load(),
		IOThrottled:       o.ioThrottled.Load(),
	}
}

// acquire pins the object for an access. Every successful acquire must be
// paired with a done.
func (o *Object) acquire() error {
	o.refs.Add(1)
	if objectState(o.state.Load()) != objectLive {
		o.refs.Add(-1)
		return ErrDestroyed
	}
	return nil
}

func (o *Object) done() {
	o.refs.Add(-1)
}

// Destroy flushes dirty data, waits for in-flight populations and accesses,
// releases the address range and closes the source if it is an io.Closer.
// If the flush fails the object stays live and the error is returned.
// Destroying an object twice returns ErrDestroyed.
func (o *Object) Destroy(ctx context.Context) error {
	return o.destroy(ctx, destroyWait)
}

// TryDestroy is like Destroy but fails with ErrBusy instead of waiting for
// an in-flight population or access. The object then stays live.
func (o *Object) TryDestroy(ctx context.Context) error {
	return o.destroy(ctx, destroyTry)
}

type destroyMode uint8

const (
	destroyWait  destroyMode = iota
	destroyTry               // ErrBusy while pinned
	destroyForce             // flush errors do not keep the object alive
)

func (o *Object) destroy(ctx context.Context, mode destroyMode) error {
	o.destroyMu.Lock()
	defer o.destroyMu.Unlock()

	if !o.state.CompareAndSwap(int32(objectLive), int32(objectDestroying)) {
		return ErrDestroyed
	}

	// Once the state has left objectLive no new access can pin the object,
	// and populations only start from pinned accesses.
	drainCtx := ctx
	if mode == destroyTry {
		if o.busy() {
			o.state.Store(int32(objectLive))
			return ErrBusy
		}
		// Only accesses bouncing off the state can still hold a reference.
		drainCtx = context.WithoutCancel(ctx)
	}

	if err := o.drain(drainCtx); err != nil {
		o.state.Store(int32(objectLive))
		o.logger.LogDestroy(ctx, o.committed.Load(), err)
		return err
	}

	flushErr := o.flush(ctx)
	if flushErr != nil && mode != destroyForce {
		o.state.Store(int32(objectLive))
		o.logger.LogDestroy(ctx, o.committed.Load(), flushErr)
		return flushErr
	}

	committed := o.release()
	o.state.Store(int32(objectDestroyed))
	o.inst.unregister(o)

	var closeErr error
	if c, ok := o.src.(io.Closer); ok {
		closeErr = c.Close()
	}

	o.metrics.RecordObjectDestroyed(committed)
	err := errors.Join(flushErr, closeErr)
	o.logger.LogDestroy(ctx, committed, err)
	return err
}

func (o *Object) busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.inflight) > 0 || o.refs.Load() > 0
}

// drain waits until no access or population holds the object.
func (o *Object) drain(ctx context.Context) error {
	backoff := time.Microsecond
	for o.refs.Load() > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		if backoff < time.Millisecond {
			runtime.Gosched()
			backoff *= 2
			continue
		}
		time.Sleep(backoff)
	}
	return nil
}

// release unmaps the reservation and returns the committed bytes to the budget.
func (o *Object) release() int64 {
	committed := o.committed.Swap(0)
	if committed > 0 && o.inst.rc != nil {
		o.inst.rc.Uncommit(committed)
	}
	if err := o.res.Release(); err != nil {
		o.logger.Error("release reservation failed", "error", err)
	}
	return committed
}
