package ufo

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var errPoolClosed = errors.New("worker pool closed")

// workerPool runs population tasks on a fixed set of goroutines so a burst
// of faults does not spawn one goroutine per chunk run.
type workerPool struct {
	workCh   chan func()
	stopCh   chan struct{}
	wg       sync.WaitGroup
	closed   atomic.Bool
	submitMu sync.RWMutex
}

func newWorkerPool(numWorkers int) *workerPool {
	wp := &workerPool{
		workCh: make(chan func(), numWorkers*2),
		stopCh: make(chan struct{}),
	}

	wp.wg.Add(numWorkers)
	for range numWorkers {
		go wp.worker()
	}

	return wp
}

func (wp *workerPool) worker() {
	defer wp.wg.Done()

	// workCh is closed on shutdown, so ranging drains queued work before exit.
	for task := range wp.workCh {
		task()
	}
}

// Submit enqueues task, blocking while the queue is full.
// It fails if the pool is closed or ctx is done before the task was queued.
func (wp *workerPool) Submit(ctx context.Context, task func()) error {
	wp.submitMu.RLock()
	defer wp.submitMu.RUnlock()

	if wp.closed.Load() {
		return errPoolClosed
	}

	select {
	case wp.workCh <- task:
		return nil
	case <-wp.stopCh:
		return errPoolClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting work, runs everything already queued and waits
// for the workers to exit. It is idempotent.
func (wp *workerPool) Close() {
	if !wp.closed.CompareAndSwap(false, true) {
		wp.wg.Wait()
		return
	}

	// stopCh unblocks submitters waiting on a full queue before the
	// write lock is taken.
	close(wp.stopCh)
	wp.submitMu.Lock()
	close(wp.workCh)
	wp.submitMu.Unlock()

	wp.wg.Wait()
}
