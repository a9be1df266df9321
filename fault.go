package ufo

import (
	"context"
	"time"

	"github.com/hupe1980/ufo/internal/mmap"
)

// population is one claimed run of contiguous chunks [lo, hi).
// done is closed once the run is populated or failed; err is valid after that.
type population struct {
	lo, hi uint64
	done   chan struct{}
	err    error
}

// ensure makes every chunk overlapping elements [a, b) populated.
//
// Unpopulated chunks are claimed under the object mutex and populated in
// batches; chunks another caller is already populating are waited for. A
// failed population leaves its chunks unpopulated and its error is returned
// to the triggering caller and to every waiter. If ctx ends while waiting,
// ctx.Err() is returned but claimed populations still run to completion.
func (o *Object) ensure(ctx context.Context, a, b uint64) error {
	if a >= b {
		return nil
	}
	first := a / o.chunkElems
	last := (b-1)/o.chunkElems + 1

	if o.populated.AllSet(first, last) {
		o.faultHits.Add(1)
		o.metrics.RecordFault(true)
		return nil
	}
	o.faultMisses.Add(1)
	o.metrics.RecordFault(false)

	for {
		if !o.inst.faultsAllowed() {
			return ErrShutdown
		}

		claimed, waits := o.claim(first, last)
		if len(claimed) == 0 && len(waits) == 0 {
			return nil
		}

		for _, p := range claimed {
			o.refs.Add(1)
			o.inst.run(ctx, func() { o.populate(ctx, p) })
		}

		for _, p := range append(claimed, waits...) {
			select {
			case <-p.done:
				if p.err != nil {
					return p.err
				}
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		if o.populated.AllSet(first, last) {
			return nil
		}
	}
}

// claim marks the unpopulated chunks in [first, last) as Populating and
// returns them as batches, together with the foreign populations to wait for.
func (o *Object) claim(first, last uint64) (claimed, waits []*population) {
	maxBatch := uint64(o.inst.opts.maxBatchChunks)

	o.mu.Lock()
	defer o.mu.Unlock()

	seen := make(map[*population]bool)
	for c := first; c < last; {
		next := o.populated.NextClear(c, last)
		if next < 0 {
			break
		}
		c = uint64(next)
		if p, ok := o.inflight[c]; ok {
			if !seen[p] {
				seen[p] = true
				waits = append(waits, p)
			}
			c = max(c+1, min(p.hi, last))
			continue
		}

		p := &population{lo: c, done: make(chan struct{})}
		for c < last && c-p.lo < maxBatch && !o.populated.Test(c) {
			if _, busy := o.inflight[c]; busy {
				break
			}
			o.inflight[c] = p
			c++
		}
		p.hi = c
		claimed = append(claimed, p)
	}
	return claimed, waits
}

// populate commits the memory of p, lets the source fill it and publishes
// the outcome. It releases the object reference taken by ensure.
func (o *Object) populate(ctx context.Context, p *population) {
	ctx = context.WithoutCancel(ctx)
	start := time.Now()

	e0 := p.lo * o.chunkElems
	e1 := min(p.hi*o.chunkElems, o.count)

	err := o.fill(ctx, e0, e1)

	o.populations.Add(1)
	o.metrics.RecordPopulate(e1-e0, time.Since(start), err)
	o.logger.LogPopulate(ctx, e0, e1, time.Since(start), err)

	// Populated bits are published before the in-flight entries disappear so
	// no other caller can claim the run a second time.
	if err == nil {
		o.populatedElem.Add(int64(e1 - e0))
		o.populated.SetRange(p.lo, p.hi)
	}

	o.mu.Lock()
	for c := p.lo; c < p.hi; c++ {
		delete(o.inflight, c)
	}
	p.err = err
	o.mu.Unlock()

	// Unpin before waking waiters so a caller that saw its read succeed
	// finds the object idle.
	o.refs.Add(-1)
	close(p.done)
}

// fill commits the pages backing elements [e0, e1) and populates them.
// On failure the pages are decommitted again and the budget is returned.
func (o *Object) fill(ctx context.Context, e0, e1 uint64) error {
	off := o.dataOff + int(e0*o.elemSize)
	n := int((e1 - e0) * o.elemSize)
	commit := min(mmap.AlignUp(n, o.inst.opts.pageSize), o.res.Size()-off)

	rc := o.inst.rc
	if err := rc.Commit(int64(commit)); err != nil {
		return &ReservationError{Op: "commit", Size: int64(commit), Err: err}
	}
	if err := o.res.Commit(off, commit); err != nil {
		rc.Uncommit(int64(commit))
		return &ReservationError{Op: "commit", Size: int64(commit), Err: err}
	}

	err := o.acquirePopulator(ctx)
	if err == nil {
		err = o.acquireIO(ctx, n)
		if err == nil {
			err = o.src.Populate(ctx, e0, e1, o.data[e0*o.elemSize:e1*o.elemSize])
		}
		rc.ReleasePopulator()
	}

	if err != nil {
		if derr := o.res.Decommit(off, commit); derr != nil {
			o.logger.Error("decommit failed", "error", derr)
		}
		rc.Uncommit(int64(commit))
		return err
	}

	o.committed.Add(int64(commit))
	return nil
}

// acquirePopulator takes a population slot, counting the calls that had to
// wait for one.
func (o *Object) acquirePopulator(ctx context.Context) error {
	if o.inst.rc.TryAcquirePopulator() {
		return nil
	}
	o.populatorWaits.Add(1)
	return o.inst.rc.AcquirePopulator(ctx)
}

// acquireIO takes n bytes of IO budget, counting the transfers that were
// throttled.
func (o *Object) acquireIO(ctx context.Context, n int) error {
	if o.inst.rc.TryAcquireIO(n) {
		return nil
	}
	o.ioThrottled.Add(1)
	return o.inst.rc.AcquireIO(ctx, n)
}
