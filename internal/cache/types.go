package cache

// Kind separates key spaces.
type Kind uint8

const (
	KindUnknown Kind = iota
	KindBlob         // raw ranges of a blob store object
	KindFrame        // decompressed pack frames
)

// Key identifies a cached block.
type Key struct {
	Kind Kind
	// Path identifies the source (e.g. blob name).
	Path string
	// Index is a logical block identifier (byte offset or frame index).
	Index uint64
}

// Budget is charged for resident cache bytes.
// *resource.Controller satisfies it.
type Budget interface {
	Commit(bytes int64) error
	Uncommit(bytes int64)
}
