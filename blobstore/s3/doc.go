// Package s3 provides an Amazon S3 implementation of blobstore.BlobStore.
//
// # Usage
//
//	store, err := s3.Connect(ctx, "my-bucket", s3.WithPrefix("objects/"), s3.WithRegion("us-east-1"))
//	src, err := source.NewBlob(ctx, store, "matrix.bin", source.Real)
//
// # Features
//
//   - Range reads so a chunk population fetches only its bytes
//   - Multipart uploads for write-back of large objects
//   - CRC32C integrity checksums on Put
//   - Automatic pagination for listing
package s3
