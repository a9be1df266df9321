package fs

import (
	"errors"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

// ErrInjected is the default error returned by injected faults.
var ErrInjected = errors.New("injected fault error")

// Fault defines specific failure behavior for files matching a rule.
type Fault struct {
	// FailOpen makes OpenFile itself fail.
	FailOpen bool
	// FailReadFrom fails every ReadAt that touches bytes at or beyond this offset. -1 to disable.
	FailReadFrom int64
	// ShortReadFrom truncates every ReadAt at this offset without an error. -1 to disable.
	ShortReadFrom int64
	// FailWriteAfterBytes fails writes after this many bytes were written TO THIS FILE. -1 to disable.
	FailWriteAfterBytes int64
	// ShortWrite makes WriteAt report one byte less than requested without an error.
	ShortWrite bool
	FailOnSync bool
	Err        error
}

// NoFault returns a Fault with every trigger disabled.
func NoFault() Fault {
	return Fault{FailReadFrom: -1, ShortReadFrom: -1, FailWriteAfterBytes: -1}
}

// FaultyFS is a FileSystem wrapper that can inject errors.
type FaultyFS struct {
	FS    FileSystem
	mu    sync.Mutex
	rules map[string]Fault // Filename pattern -> Fault

	reads  atomic.Int64
	writes atomic.Int64
}

// NewFaultyFS creates a new FaultyFS wrapping the provided FS (or Default if nil).
func NewFaultyFS(fs FileSystem) *FaultyFS {
	if fs == nil {
		fs = Default
	}
	return &FaultyFS{
		FS:    fs,
		rules: make(map[string]Fault),
	}
}

// AddRule adds a fault injection rule for files whose name contains pattern.
// Rules apply to files opened after the call.
func (f *FaultyFS) AddRule(pattern string, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[pattern] = fault
}

// ClearRules removes all rules.
func (f *FaultyFS) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules = make(map[string]Fault)
}

// Reads returns the number of ReadAt calls issued through this FS.
func (f *FaultyFS) Reads() int64 { return f.reads.Load() }

// Writes returns the number of WriteAt calls issued through this FS.
func (f *FaultyFS) Writes() int64 { return f.writes.Load() }

func (f *FaultyFS) faultFor(name string) Fault {
	f.mu.Lock()
	defer f.mu.Unlock()

	fault := NoFault()
	for pattern, rule := range f.rules {
		if strings.Contains(name, pattern) {
			fault = rule
		}
	}
	if fault.Err == nil {
		fault.Err = ErrInjected
	}
	return fault
}

func (f *FaultyFS) OpenFile(name string, flag int, perm os.FileMode) (File, error) {
	fault := f.faultFor(name)
	if fault.FailOpen {
		return nil, &os.PathError{Op: "open", Path: name, Err: fault.Err}
	}

	file, err := f.FS.OpenFile(name, flag, perm)
	if err != nil {
		return nil, err
	}
	return &faultyFile{File: file, fs: f, fault: fault}, nil
}

func (f *FaultyFS) Stat(name string) (os.FileInfo, error) {
	return f.FS.Stat(name)
}

type faultyFile struct {
	File
	fs      *FaultyFS
	fault   Fault
	written atomic.Int64
}

func (ff *faultyFile) ReadAt(p []byte, off int64) (int, error) {
	ff.fs.reads.Add(1)

	end := off + int64(len(p))
	if ff.fault.FailReadFrom >= 0 && end > ff.fault.FailReadFrom {
		return 0, ff.fault.Err
	}
	if ff.fault.ShortReadFrom >= 0 && end > ff.fault.ShortReadFrom {
		keep := max(ff.fault.ShortReadFrom-off, 0)
		return ff.File.ReadAt(p[:keep], off)
	}
	return ff.File.ReadAt(p, off)
}

func (ff *faultyFile) WriteAt(p []byte, off int64) (int, error) {
	ff.fs.writes.Add(1)

	if ff.fault.FailWriteAfterBytes >= 0 {
		if ff.written.Load()+int64(len(p)) > ff.fault.FailWriteAfterBytes {
			return 0, ff.fault.Err
		}
	}
	if ff.fault.ShortWrite && len(p) > 0 {
		n, err := ff.File.WriteAt(p[:len(p)-1], off)
		ff.written.Add(int64(n))
		return n, err
	}

	n, err := ff.File.WriteAt(p, off)
	ff.written.Add(int64(n))
	return n, err
}

func (ff *faultyFile) Sync() error {
	if ff.fault.FailOnSync {
		return ff.fault.Err
	}
	return ff.File.Sync()
}
