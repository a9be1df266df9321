package ufo

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
type MetricsCollector interface {
	// RecordPopulate is called after each population call with the number
	// of elements requested.
	RecordPopulate(elements uint64, duration time.Duration, err error)

	// RecordWriteBack is called after each write-back call.
	RecordWriteBack(elements uint64, duration time.Duration, err error)

	// RecordFault is called for every accessor that touches an object.
	// hit is true when every covered chunk was already populated.
	RecordFault(hit bool)

	// RecordObjectCreated is called after an object reserved its address range.
	RecordObjectCreated(reservedBytes int64)

	// RecordObjectDestroyed is called after an object released its address range.
	RecordObjectDestroyed(committedBytes int64)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordPopulate(uint64, time.Duration, error)  {}
func (NoopMetricsCollector) RecordWriteBack(uint64, time.Duration, error) {}
func (NoopMetricsCollector) RecordFault(bool)                             {}
func (NoopMetricsCollector) RecordObjectCreated(int64)                    {}
func (NoopMetricsCollector) RecordObjectDestroyed(int64)                  {}

// BasicMetricsCollector provides simple in-memory metrics collection.
type BasicMetricsCollector struct {
	PopulateCount      atomic.Int64
	PopulateErrors     atomic.Int64
	PopulatedElements  atomic.Int64
	PopulateTotalNanos atomic.Int64
	WriteBackCount     atomic.Int64
	WriteBackErrors    atomic.Int64
	WrittenElements    atomic.Int64
	FaultHits          atomic.Int64
	FaultMisses        atomic.Int64
	ObjectsCreated     atomic.Int64
	ObjectsDestroyed   atomic.Int64
	ReservedBytes      atomic.Int64
}

// RecordPopulate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordPopulate(elements uint64, duration time.Duration, err error) {
	b.PopulateCount.Add(1)
	b.PopulateTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.PopulateErrors.Add(1)
		return
	}
	b.PopulatedElements.Add(int64(elements))
}

// RecordWriteBack implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWriteBack(elements uint64, _ time.Duration, err error) {
	b.WriteBackCount.Add(1)
	if err != nil {
		b.WriteBackErrors.Add(1)
		return
	}
	b.WrittenElements.Add(int64(elements))
}

// RecordFault implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFault(hit bool) {
	if hit {
		b.FaultHits.Add(1)
	} else {
		b.FaultMisses.Add(1)
	}
}

// RecordObjectCreated implements MetricsCollector.
func (b *BasicMetricsCollector) RecordObjectCreated(reservedBytes int64) {
	b.ObjectsCreated.Add(1)
	b.ReservedBytes.Add(reservedBytes)
}

// RecordObjectDestroyed implements MetricsCollector.
func (b *BasicMetricsCollector) RecordObjectDestroyed(int64) {
	b.ObjectsDestroyed.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		PopulateCount:     b.PopulateCount.Load(),
		PopulateErrors:    b.PopulateErrors.Load(),
		PopulatedElements: b.PopulatedElements.Load(),
		PopulateAvgNanos:  b.avgPopulateNanos(),
		WriteBackCount:    b.WriteBackCount.Load(),
		WriteBackErrors:   b.WriteBackErrors.Load(),
		WrittenElements:   b.WrittenElements.Load(),
		FaultHits:         b.FaultHits.Load(),
		FaultMisses:       b.FaultMisses.Load(),
		ObjectsCreated:    b.ObjectsCreated.Load(),
		ObjectsDestroyed:  b.ObjectsDestroyed.Load(),
		ReservedBytes:     b.ReservedBytes.Load(),
	}
}

func (b *BasicMetricsCollector) avgPopulateNanos() int64 {
	count := b.PopulateCount.Load()
	if count == 0 {
		return 0
	}
	return b.PopulateTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	PopulateCount     int64
	PopulateErrors    int64
	PopulatedElements int64
	PopulateAvgNanos  int64
	WriteBackCount    int64
	WriteBackErrors   int64
	WrittenElements   int64
	FaultHits         int64
	FaultMisses       int64
	ObjectsCreated    int64
	ObjectsDestroyed  int64
	ReservedBytes     int64
}
