// Package hash provides CRC32-Castagnoli checksums for data integrity.
//
// Pack frames carry a CRC32C of their decompressed payload, and the S3
// store attaches one to every upload. Go's crc32 package uses SSE4.2 or the
// ARM CRC extension when present.
package hash
