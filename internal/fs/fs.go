package fs

import (
	"io"
	"os"
)

// File is an open file used for positional element reads and writes.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
	Sync() error
}

// FileSystem is the subset of the os package that file sources use.
type FileSystem interface {
	OpenFile(name string, flag int, perm os.FileMode) (File, error)
	Stat(name string) (os.FileInfo, error)
}

// LocalFS is the operating system file system.
type LocalFS struct{}

func (LocalFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	f, err := os.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return f, nil
}

func (LocalFS) Stat(name string) (os.FileInfo, error) {
	return os.Stat(name)
}

// Default is used when no FileSystem is configured.
var Default FileSystem = LocalFS{}
