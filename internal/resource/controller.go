package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrCommitLimitExceeded is returned when committing memory would exceed the configured budget.
var ErrCommitLimitExceeded = errors.New("commit limit exceeded")

// Config holds resource limits.
type Config struct {
	// CommitLimitBytes is the hard limit for committed (populated) memory.
	// If 0, no hard limit is enforced (only tracking).
	CommitLimitBytes int64

	// MaxPopulators is the maximum number of concurrent population or write-back calls.
	// If 0, defaults to 1.
	MaxPopulators int64

	// IOLimitBytesPerSec is the maximum population/write-back throughput.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller governs the resources shared by all objects of an engine instance.
type Controller struct {
	cfg Config

	// Committed memory
	commitSem  *semaphore.Weighted // nil if unlimited
	commitUsed atomic.Int64

	// Concurrency
	popSem *semaphore.Weighted

	// IO
	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxPopulators <= 0 {
		cfg.MaxPopulators = 1
	}

	c := &Controller{
		cfg:    cfg,
		popSem: semaphore.NewWeighted(cfg.MaxPopulators),
	}

	if cfg.CommitLimitBytes > 0 {
		c.commitSem = semaphore.NewWeighted(cfg.CommitLimitBytes)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// Commit attempts to account bytes of newly committed memory.
// Returns ErrCommitLimitExceeded if the budget would be exceeded.
// Non-blocking - callers decide whether to fail the access or retry.
func (c *Controller) Commit(bytes int64) error {
	if c == nil {
		return nil
	}
	if bytes <= 0 {
		return nil
	}

	if c.commitSem != nil {
		if !c.commitSem.TryAcquire(bytes) {
			return ErrCommitLimitExceeded
		}
	}

	c.commitUsed.Add(bytes)
	return nil
}

// Uncommit returns bytes to the budget.
func (c *Controller) Uncommit(bytes int64) {
	if c == nil {
		return
	}
	if bytes <= 0 {
		return
	}

	if c.commitSem != nil {
		c.commitSem.Release(bytes)
	}
	c.commitUsed.Add(-bytes)
}

// Committed returns the currently committed memory in bytes.
func (c *Controller) Committed() int64 {
	if c == nil {
		return 0
	}
	return c.commitUsed.Load()
}

// CommitLimit returns the configured budget in bytes (0 if unlimited).
func (c *Controller) CommitLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.CommitLimitBytes
}

// AcquirePopulator reserves a population slot.
// Blocks if all slots are busy.
func (c *Controller) AcquirePopulator(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.popSem.Acquire(ctx, 1)
}

// TryAcquirePopulator attempts to reserve a population slot without blocking.
func (c *Controller) TryAcquirePopulator() bool {
	if c == nil {
		return true
	}
	return c.popSem.TryAcquire(1)
}

// ReleasePopulator releases a population slot.
func (c *Controller) ReleasePopulator() {
	if c == nil {
		return
	}
	c.popSem.Release(1)
}

// AcquireIO waits until the IO limit allows the specified number of bytes.
// Requests larger than the burst are split into burst-sized waits.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil || c.ioLimiter == nil {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for bytes > 0 {
		n := min(bytes, burst)
		if err := c.ioLimiter.WaitN(ctx, n); err != nil {
			return err
		}
		bytes -= n
	}
	return nil
}

// TryAcquireIO attempts to acquire IO tokens without blocking.
// Returns true if tokens were acquired, false otherwise.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil || c.ioLimiter == nil {
		return true
	}
	return c.ioLimiter.AllowN(time.Now(), bytes)
}
