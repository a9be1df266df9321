package ufo

import (
	"context"
	"errors"
	"time"

	"github.com/hupe1980/ufo/source"
)

// Flush writes dirty chunks back through the source.
//
// Contiguous dirty chunks are written in runs of at most MaxBatchChunks.
// Sources without write-back simply forget the dirty set. A failed run
// stays dirty so a later Flush retries it.
func (o *Object) Flush(ctx context.Context) error {
	if err := o.acquire(); err != nil {
		return err
	}
	defer o.done()

	return o.flush(ctx)
}

// Dirty reports whether the object holds unflushed writes.
func (o *Object) Dirty() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return !o.dirty.IsEmpty()
}

func (o *Object) flush(ctx context.Context) error {
	o.flushMu.Lock()
	defer o.flushMu.Unlock()

	o.mu.Lock()
	if o.dirty.IsEmpty() {
		o.mu.Unlock()
		return nil
	}
	if o.wb == nil {
		o.dirty.Clear()
		o.mu.Unlock()
		return nil
	}
	chunks := o.dirty.ToArray()
	o.mu.Unlock()

	maxBatch := uint32(o.inst.opts.maxBatchChunks)
	for i := 0; i < len(chunks); {
		lo := chunks[i]
		hi := lo + 1
		i++
		for i < len(chunks) && chunks[i] == hi && hi-lo < maxBatch {
			hi++
			i++
		}

		err := o.writeBack(ctx, uint64(lo), uint64(hi))
		if errors.Is(err, source.ErrWriteBackUnsupported) {
			o.mu.Lock()
			o.dirty.Clear()
			o.mu.Unlock()
			return nil
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// writeBack externalizes chunks [lo, hi). The dirty bits are cleared before
// the call so writes racing with it keep the chunks dirty; on failure they
// are restored.
func (o *Object) writeBack(ctx context.Context, lo, hi uint64) error {
	o.mu.Lock()
	o.dirty.RemoveRange(lo, hi)
	o.mu.Unlock()

	e0 := lo * o.chunkElems
	e1 := min(hi*o.chunkElems, o.count)

	start := time.Now()
	err := o.acquireIO(ctx, int((e1-e0)*o.elemSize))
	if err == nil {
		err = o.wb.WriteBack(ctx, e0, e1, o.data[e0*o.elemSize:e1*o.elemSize])
	}

	o.writeBacks.Add(1)
	o.metrics.RecordWriteBack(e1-e0, time.Since(start), err)
	o.logger.LogWriteBack(ctx, e0, e1, err)

	if err != nil {
		o.mu.Lock()
		o.dirty.AddRange(lo, hi)
		o.mu.Unlock()
	}
	return err
}
