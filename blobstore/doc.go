// Package blobstore provides the storage abstraction behind blob-backed sources.
//
// A Blob is read with context-aware range reads, which lets a chunk population
// fetch exactly the bytes it needs from local files, memory, S3 or MinIO.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem, blobs are memory mapped for reads
//   - MemoryStore: in-process map, optionally with simulated read latency
//   - CachingStore: block cache in front of any other store
//   - s3.Store: Amazon S3 with range reads and multipart uploads
//   - minio.Store: MinIO and other S3 compatible services
package blobstore
