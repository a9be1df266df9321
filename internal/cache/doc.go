// Package cache provides a byte-bounded LRU cache for immutable blocks.
//
// Blocks are decompressed pack frames or ranges of remote blobs. The cache
// can charge its resident bytes against an external Budget so that cached
// data and committed object memory share one limit.
package cache
