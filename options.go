package ufo

import (
	"log/slog"
	"runtime"

	"github.com/hupe1980/ufo/internal/mmap"
)

// DefaultMaxBatchChunks is the largest number of contiguous chunks handed
// to a source in a single population call.
const DefaultMaxBatchChunks = 16

type options struct {
	workers          int
	synchronous      bool
	pageSize         int
	maxBatchChunks   int
	commitLimit      int64
	ioLimit          int64
	metricsCollector MetricsCollector
	logger           *Logger
}

// Option configures an Instance.
type Option func(*options)

// WithWorkers sets the number of population workers.
// Defaults to runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(o *options) {
		o.workers = n
	}
}

// WithSynchronousPopulation runs populations on the faulting goroutine
// instead of the worker pool. Useful in tests and for sources that must run
// on the caller's goroutine.
func WithSynchronousPopulation() Option {
	return func(o *options) {
		o.synchronous = true
	}
}

// WithPageSize sets the chunk granularity. It must be a multiple of the OS
// page size. Larger pages mean fewer, bigger population calls.
func WithPageSize(n int) Option {
	return func(o *options) {
		o.pageSize = n
	}
}

// WithMaxBatchChunks caps how many contiguous chunks one population call covers.
func WithMaxBatchChunks(n int) Option {
	return func(o *options) {
		o.maxBatchChunks = n
	}
}

// WithCommitLimit bounds the bytes of populated memory across all objects.
// A fault that would exceed the budget fails with a *ReservationError.
// Zero means unlimited.
func WithCommitLimit(bytes int64) Option {
	return func(o *options) {
		o.commitLimit = bytes
	}
}

// WithIOLimit rate-limits population and write-back throughput in bytes per second.
// Zero means unlimited.
func WithIOLimit(bytesPerSec int64) Option {
	return func(o *options) {
		o.ioLimit = bytesPerSec
	}
}

// WithMetricsCollector configures metrics collection.
//
// Example:
//
//	metrics := &ufo.BasicMetricsCollector{}
//	inst := ufo.New(ufo.WithMetricsCollector(metrics))
//	// ... use inst ...
//	stats := metrics.GetStats()
//	fmt.Printf("populations: %d\n", stats.PopulateCount)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		if logger == nil {
			logger = NoopLogger()
		}
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
// Convenience wrapper for WithLogger(NewTextLogger(level)).
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

func applyOptions(optFns []Option) options {
	o := options{
		workers:          runtime.GOMAXPROCS(0),
		pageSize:         mmap.PageSize(),
		maxBatchChunks:   DefaultMaxBatchChunks,
		metricsCollector: NoopMetricsCollector{},
		logger:           NoopLogger(),
	}
	for _, fn := range optFns {
		if fn != nil {
			fn(&o)
		}
	}
	return o
}

func (o *options) validate() error {
	if o.workers <= 0 {
		return &ConfigError{Field: "workers", Reason: "must be positive"}
	}
	os := mmap.PageSize()
	if o.pageSize <= 0 || o.pageSize%os != 0 {
		return &ConfigError{Field: "page size", Reason: "must be a positive multiple of the OS page size"}
	}
	if o.maxBatchChunks <= 0 {
		return &ConfigError{Field: "max batch chunks", Reason: "must be positive"}
	}
	if o.commitLimit < 0 {
		return &ConfigError{Field: "commit limit", Reason: "must not be negative"}
	}
	if o.ioLimit < 0 {
		return &ConfigError{Field: "io limit", Reason: "must not be negative"}
	}
	return nil
}
