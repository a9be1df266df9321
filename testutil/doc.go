// Package testutil provides sources and helpers for testing code built on ufo.
//
// This package is intended for use in tests and benchmarks only.
//
//   - Identity: an Int source whose element i is i
//   - Memory: a writable in-memory source
//   - CountingSource: records every population, per element
//   - FailingSource: fails populations that touch chosen elements
//   - GatedSource: blocks populations until released
//   - RNG: a seeded, thread-safe random generator
package testutil
