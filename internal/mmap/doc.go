// Package mmap provides virtual address reservations and memory-mapped files.
//
// # Reservations
//
// A Reservation claims a contiguous range of virtual address space without
// backing it with physical memory. Pages start inaccessible; any direct
// access to them traps. Commit makes a page-aligned sub-range readable and
// writable, Decommit returns it to the inaccessible state and gives the
// physical pages back to the kernel, and Release unmaps the whole range.
//
//	r, err := mmap.Reserve(1 << 30)
//	if err != nil { ... }
//	defer r.Release()
//
//	if err := r.Commit(0, 64*1024); err != nil { ... }
//	copy(r.Bytes()[:64*1024], data)
//
// # File Mappings
//
// Open maps a file read-only for zero-copy access, MapAnon creates a
// read-write anonymous mapping for off-heap allocations.
//
// # Platform Support
//
//   - Unix: mmap(2) and mprotect(2); Decommit drops pages with madvise(2)
//   - Windows: VirtualAlloc/VirtualFree for reservations,
//     CreateFileMapping/MapViewOfFile for files
//
// # Thread Safety
//
// Commit and Decommit on disjoint ranges may run concurrently. Release and
// Close are idempotent. Nothing may touch Bytes() after either returns.
package mmap
