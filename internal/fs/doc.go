// Package fs is the file layer under file-backed sources.
//
// Sources only need positional I/O, so [File] is ReadAt, WriteAt, Sync and
// Close, and [FileSystem] opens and stats paths. [Default] is the [LocalFS]
// on top of package os.
//
// [FaultyFS] wraps another FileSystem and fails or truncates reads and writes
// by byte offset, which is how population and write-back errors are driven in
// tests:
//
//	ffs := fs.NewFaultyFS(nil)
//	f := fs.NoFault()
//	f.FailReadFrom = 8192
//	ffs.AddRule("data.bin", f)
package fs
