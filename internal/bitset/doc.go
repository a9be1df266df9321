// Package bitset provides a fixed-size, lock-free bitset for chunk tracking.
//
// Architecture:
//   - Flat array of atomic.Uint64 words, sized once at construction
//   - Lock-free: Test and SetRange use atomic word operations
//   - Range queries (AllSet, NextClear, CountRange) read a point-in-time view
//
// Used internally for:
//   - Populated-chunk tracking of materialized objects
//
// Bits are expected to move monotonically from clear to set during normal
// operation; readers that observe a set bit may rely on every write that
// happened before the Set call.
package bitset
