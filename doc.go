// Package ufo provides user fault objects: vectors whose storage is reserved
// as a virtual address range and materialized on demand, chunk by chunk, the
// first time a byte range is touched.
//
// # Quick Start
//
//	ctx := context.Background()
//	inst := ufo.New(ufo.WithLogLevel(slog.LevelInfo))
//	if err := inst.Init(); err != nil {
//	    return err
//	}
//	defer inst.AwaitShutdown(ctx)
//	defer inst.Shutdown(ctx, false)
//
//	seq, _ := source.NewSequence(0, 1e9, 1)
//	obj, _ := inst.CreateObject(ctx, ufo.Config{Source: seq, MinLoadCount: 1 << 16})
//
//	buf := make([]byte, 4*10)
//	_ = obj.Region(ctx, 5_000_000, 10, buf) // populates one chunk only
//
// # Chunks
//
// An object is divided into chunks of ChunkElements elements. The chunk size
// is MinLoadCount elements rounded up to a whole number of pages. A chunk is
// Unpopulated, Populating or Populated; populated chunks stay populated until
// the object is destroyed.
//
// # Fault Handling
//
// Every accessor (ReadAt, WriteAt, Region, View, Materialize, Pointer)
// checks the chunks it covers and populates the missing ones before touching
// memory. Concurrent accessors of the same chunk share one population call.
// Unpopulated pages of the reservation are inaccessible, so a stray raw
// access traps instead of reading garbage.
//
// A failed population leaves its chunks unpopulated; the error is returned
// to every caller waiting on them and the next access retries.
//
// # Write-back
//
// WriteAt and ReadWrite pointers mark chunks dirty. Flush and Destroy write
// dirty runs back through sources implementing source.WriteBacker.
//
// # Shutdown
//
// Shutdown(ctx, false) rejects new faults and destroys every live object;
// Shutdown(ctx, true) only stops object creation. AwaitShutdown waits until
// every object is gone and the worker pool has drained.
package ufo
