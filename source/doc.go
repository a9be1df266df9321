// Package source defines how user fault objects obtain their contents.
//
// A Source knows its element type and length and can fill any element range
// on request. The engine calls Populate the first time a chunk of an object
// is touched; it never issues overlapping concurrent calls for one object,
// but disjoint ranges may be populated in parallel.
//
// Optional capabilities are discovered with type assertions:
//
//   - WriteBacker externalizes modified ranges on Flush or Destroy.
//   - Shaper reports a multi-dimensional shape.
//   - MinLoader advertises a preferred minimum number of elements per load.
//   - io.Closer releases source resources when the object is destroyed.
//
// Built-in sources:
//
//   - NewFile: flat native-width elements in a local file
//   - NewSequence: arithmetic sequences, computed on demand
//   - NewBlob: element ranges of a blobstore.Blob (local, memory, S3, MinIO)
//   - New: plain functions wrapped into a Source
package source
