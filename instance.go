package ufo

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/hupe1980/ufo/internal/resource"
)

type instanceState int32

const (
	stateNew instanceState = iota
	stateRunning
	stateShuttingDown
)

// Instance owns a population worker pool, a registry of live objects and the
// resource budgets they share. Several instances may coexist in one process;
// no object outlives its instance.
type Instance struct {
	opts    options
	logger  *Logger
	metrics MetricsCollector

	state        atomic.Int32
	rejectFaults atomic.Bool
	pool         *workerPool
	rc           *resource.Controller

	nextID atomic.Uint64

	mu       sync.Mutex
	objects  map[ObjectID]*Object
	released chan struct{} // closed once shutting down with no live objects
}

// New creates an instance. Options are validated by Init.
func New(optFns ...Option) *Instance {
	opts := applyOptions(optFns)
	return &Instance{
		opts:     opts,
		logger:   opts.logger,
		metrics:  opts.metricsCollector,
		objects:  make(map[ObjectID]*Object),
		released: make(chan struct{}),
	}
}

// Init validates the configuration and starts the worker pool.
func (inst *Instance) Init() error {
	if err := inst.opts.validate(); err != nil {
		return err
	}

	inst.mu.Lock()
	defer inst.mu.Unlock()

	switch instanceState(inst.state.Load()) {
	case stateRunning:
		return ErrAlreadyInitialized
	case stateShuttingDown:
		return ErrShutdown
	}

	inst.rc = resource.NewController(resource.Config{
		CommitLimitBytes:   inst.opts.commitLimit,
		MaxPopulators:      int64(inst.opts.workers),
		IOLimitBytesPerSec: inst.opts.ioLimit,
	})
	if !inst.opts.synchronous {
		inst.pool = newWorkerPool(inst.opts.workers)
	}
	inst.state.Store(int32(stateRunning))

	inst.logger.Info("instance initialized",
		"workers", inst.opts.workers,
		"page_size", inst.opts.pageSize,
		"synchronous", inst.opts.synchronous,
	)
	return nil
}

// PageSize returns the chunk granularity in bytes.
func (inst *Instance) PageSize() int {
	return inst.opts.pageSize
}

// Logger returns the instance logger.
func (inst *Instance) Logger() *Logger {
	return inst.logger
}

// Budget is the shared commit budget. Caches layered over objects, such as
// pack frame caches, charge their resident bytes against it.
type Budget interface {
	Commit(bytes int64) error
	Uncommit(bytes int64)
}

// Budget returns the commit budget of the instance, or nil before Init.
func (inst *Instance) Budget() Budget {
	if inst.rc == nil {
		return nil
	}
	return inst.rc
}

// Object returns the live object with the given id.
func (inst *Instance) Object(id ObjectID) (*Object, bool) {
	inst.mu.Lock()
	defer inst.mu.Unlock()
	o, ok := inst.objects[id]
	return o, ok
}

// Objects returns the live objects ordered by id.
func (inst *Instance) Objects() []*Object {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	ids := slices.Sorted(maps.Keys(inst.objects))
	out := make([]*Object, 0, len(ids))
	for _, id := range ids {
		out = append(out, inst.objects[id])
	}
	return out
}

// Stats returns a snapshot of instance-wide counters.
func (inst *Instance) Stats() InstanceStats {
	inst.mu.Lock()
	live := len(inst.objects)
	inst.mu.Unlock()

	var committed, limit int64
	if inst.rc != nil {
		committed = inst.rc.Committed()
		limit = inst.rc.CommitLimit()
	}
	return InstanceStats{
		LiveObjects:    live,
		CommittedBytes: committed,
		CommitLimit:    limit,
		ShuttingDown:   instanceState(inst.state.Load()) == stateShuttingDown,
	}
}

// InstanceStats is a snapshot of an instance.
type InstanceStats struct {
	LiveObjects    int
	CommittedBytes int64
	CommitLimit    int64
	ShuttingDown   bool
}

func (inst *Instance) register(o *Object) error {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	switch instanceState(inst.state.Load()) {
	case stateNew:
		return ErrNotInitialized
	case stateShuttingDown:
		return ErrShutdown
	}
	inst.objects[o.id] = o
	return nil
}

func (inst *Instance) unregister(o *Object) {
	inst.mu.Lock()
	defer inst.mu.Unlock()

	delete(inst.objects, o.id)
	inst.maybeReleasedLocked()
}

func (inst *Instance) maybeReleasedLocked() {
	if instanceState(inst.state.Load()) != stateShuttingDown || len(inst.objects) > 0 {
		return
	}
	select {
	case <-inst.released:
	default:
		close(inst.released)
	}
}

// Shutdown stops accepting new objects.
//
// With awaitObjects false it also rejects new faults, waits for in-flight
// populations and force-destroys every live object; dirty data is flushed
// best effort and flush errors are returned joined. With awaitObjects true
// live objects stay fully usable and AwaitShutdown waits until callers have
// destroyed all of them.
func (inst *Instance) Shutdown(ctx context.Context, awaitObjects bool) error {
	inst.mu.Lock()
	switch instanceState(inst.state.Load()) {
	case stateNew:
		inst.mu.Unlock()
		return ErrNotInitialized
	case stateShuttingDown:
		inst.mu.Unlock()
		return ErrShutdown
	}
	inst.state.Store(int32(stateShuttingDown))
	live := make([]*Object, 0, len(inst.objects))
	for _, o := range inst.objects {
		live = append(live, o)
	}
	inst.maybeReleasedLocked()
	inst.mu.Unlock()

	inst.logger.LogShutdown(ctx, len(live), awaitObjects, nil)
	if awaitObjects {
		return nil
	}

	inst.rejectFaults.Store(true)

	var errs []error
	for _, o := range live {
		if err := o.destroy(ctx, destroyForce); err != nil && !errors.Is(err, ErrDestroyed) {
			errs = append(errs, fmt.Errorf("object %d: %w", o.id, err))
		}
	}
	err := errors.Join(errs...)
	if err != nil {
		inst.logger.LogShutdown(ctx, len(live), awaitObjects, err)
	}
	return err
}

// AwaitShutdown blocks until Shutdown was called, every object has been
// destroyed and the worker pool has drained. If ctx ends first it returns
// an error matching both ErrShutdownTimeout and the context error.
func (inst *Instance) AwaitShutdown(ctx context.Context) error {
	if instanceState(inst.state.Load()) == stateNew {
		return ErrNotInitialized
	}

	select {
	case <-inst.released:
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}

	if inst.pool == nil {
		return nil
	}

	drained := make(chan struct{})
	go func() {
		inst.pool.Close()
		close(drained)
	}()

	select {
	case <-drained:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %w", ErrShutdownTimeout, ctx.Err())
	}
}

// faultsAllowed reports whether new populations may start.
func (inst *Instance) faultsAllowed() bool {
	return !inst.rejectFaults.Load()
}

// run executes a population task on the pool, or inline when the instance
// is synchronous or the pool is already closed.
func (inst *Instance) run(ctx context.Context, task func()) {
	if inst.pool == nil {
		task()
		return
	}
	if err := inst.pool.Submit(context.WithoutCancel(ctx), task); err != nil {
		task()
	}
}
