// Package vector is a uniform read API over lazily populated engine
// objects and plain in-memory buffers.
//
// A Vector is either Virtual, backed by a *ufo.Object that populates on
// access, or Materialized, backed by a heap buffer. Callers index, slice
// and duplicate both the same way; only Virtual vectors ever call into a
// source.
package vector
