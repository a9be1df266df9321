package pack

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/ufo/source"
)

const (
	// Magic identifies a pack trailer ("UFOP").
	Magic   = 0x55464f50
	Version = 1

	frameHeaderSize = 8
	trailerSize     = 16
	// fixed part of the footer before the variable-length arrays
	footerFixedSize = 4 + 4 + 1 + 1 + 2 + 4 + 8 + 8 + 8

	maxDims = 64
)

var (
	ErrInvalidMagic   = errors.New("pack: invalid magic number")
	ErrInvalidVersion = errors.New("pack: unsupported version")
	ErrCorrupt        = errors.New("pack: corrupt data")
	ErrChecksum       = errors.New("pack: checksum mismatch")
)

// Codec selects the frame compression.
type Codec uint8

const (
	CodecNone Codec = iota
	CodecLZ4
	CodecZstd
)

func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecLZ4:
		return "lz4"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

func (c Codec) valid() bool { return c <= CodecZstd }

// footer is the index stored after the last frame.
type footer struct {
	Type       source.ElementType
	Codec      Codec
	Count      uint64
	FrameElems uint64
	Dims       []uint64
	Offsets    []uint64 // len(Offsets) == frames+1; the last entry is the footer offset
	Checksums  []uint32 // CRC32C of each stored frame payload
}

func (f *footer) frames() uint64 {
	return uint64(len(f.Checksums))
}

func (f *footer) encode() []byte {
	n := footerFixedSize + 8*len(f.Dims) + 8*len(f.Offsets) + 4*len(f.Checksums)
	buf := make([]byte, n)
	binary.LittleEndian.PutUint32(buf[0:], Magic)
	binary.LittleEndian.PutUint32(buf[4:], Version)
	buf[8] = byte(f.Type)
	buf[9] = byte(f.Codec)
	// Padding [10:12]
	binary.LittleEndian.PutUint32(buf[12:], uint32(len(f.Dims)))
	binary.LittleEndian.PutUint64(buf[16:], f.Count)
	binary.LittleEndian.PutUint64(buf[24:], f.FrameElems)
	binary.LittleEndian.PutUint64(buf[32:], f.frames())

	off := footerFixedSize
	for _, d := range f.Dims {
		binary.LittleEndian.PutUint64(buf[off:], d)
		off += 8
	}
	for _, o := range f.Offsets {
		binary.LittleEndian.PutUint64(buf[off:], o)
		off += 8
	}
	for _, c := range f.Checksums {
		binary.LittleEndian.PutUint32(buf[off:], c)
		off += 4
	}
	return buf
}

func decodeFooter(buf []byte) (*footer, error) {
	if len(buf) < footerFixedSize {
		return nil, fmt.Errorf("%w: footer too small", ErrCorrupt)
	}
	if binary.LittleEndian.Uint32(buf[0:]) != Magic {
		return nil, ErrInvalidMagic
	}
	if binary.LittleEndian.Uint32(buf[4:]) != Version {
		return nil, ErrInvalidVersion
	}

	f := &footer{
		Type:       source.ElementType(buf[8]),
		Codec:      Codec(buf[9]),
		Count:      binary.LittleEndian.Uint64(buf[16:]),
		FrameElems: binary.LittleEndian.Uint64(buf[24:]),
	}
	ndims := uint64(binary.LittleEndian.Uint32(buf[12:]))
	frames := binary.LittleEndian.Uint64(buf[32:])

	if !f.Type.Valid() || !f.Codec.valid() || f.Count == 0 || f.FrameElems == 0 || ndims > maxDims {
		return nil, fmt.Errorf("%w: invalid footer fields", ErrCorrupt)
	}
	if frames != (f.Count+f.FrameElems-1)/f.FrameElems {
		return nil, fmt.Errorf("%w: frame count %d does not cover %d elements", ErrCorrupt, frames, f.Count)
	}
	want := uint64(footerFixedSize) + 8*ndims + 8*(frames+1) + 4*frames
	if uint64(len(buf)) != want {
		return nil, fmt.Errorf("%w: footer is %d bytes, want %d", ErrCorrupt, len(buf), want)
	}

	off := footerFixedSize
	f.Dims = make([]uint64, ndims)
	for i := range f.Dims {
		f.Dims[i] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
	}
	f.Offsets = make([]uint64, frames+1)
	for i := range f.Offsets {
		f.Offsets[i] = binary.LittleEndian.Uint64(buf[off:])
		off += 8
		if i > 0 && f.Offsets[i] < f.Offsets[i-1]+frameHeaderSize {
			return nil, fmt.Errorf("%w: frame offsets not increasing", ErrCorrupt)
		}
	}
	f.Checksums = make([]uint32, frames)
	for i := range f.Checksums {
		f.Checksums[i] = binary.LittleEndian.Uint32(buf[off:])
		off += 4
	}
	return f, nil
}

// trailer: [footer length u64][footer CRC32C u32][magic u32]
func encodeTrailer(footerLen uint64, crc uint32) []byte {
	buf := make([]byte, trailerSize)
	binary.LittleEndian.PutUint64(buf[0:], footerLen)
	binary.LittleEndian.PutUint32(buf[8:], crc)
	binary.LittleEndian.PutUint32(buf[12:], Magic)
	return buf
}

func decodeTrailer(buf []byte) (footerLen uint64, crc uint32, err error) {
	if len(buf) != trailerSize {
		return 0, 0, fmt.Errorf("%w: short trailer", ErrCorrupt)
	}
	if binary.LittleEndian.Uint32(buf[12:]) != Magic {
		return 0, 0, ErrInvalidMagic
	}
	return binary.LittleEndian.Uint64(buf[0:]), binary.LittleEndian.Uint32(buf[8:]), nil
}
