package alloc

import (
	"encoding/binary"
	"fmt"

	"github.com/hupe1980/ufo/source"
)

const (
	// HeaderSize is the number of bytes reserved in front of every payload.
	HeaderSize = 64

	headerMagic   = 0x55464f41 // "UFOA"
	headerVersion = 1
)

// Kind tells how a block was allocated.
type Kind uint8

const (
	KindAnon   Kind = 1 // anonymous mapping
	KindBacked Kind = 2 // engine object
)

func (k Kind) String() string {
	switch k {
	case KindAnon:
		return "anon"
	case KindBacked:
		return "backed"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Header precedes every payload.
type Header struct {
	Kind       Kind
	Type       source.ElementType // Invalid for anonymous blocks
	Size       uint64             // payload bytes
	Elements   uint64             // zero for anonymous blocks
	Object     uint64             // object id for backed blocks
	Total      uint64             // bytes of the whole mapping, header page included
	HeaderSize uint32             // bytes of this header record
}

// Layout: [magic u32][version u16][kind u8][type u8][size u64][elements u64]
// [object u64][total u64][header size u32][reserved]
func (h Header) encode(buf []byte) {
	clear(buf[:HeaderSize])
	binary.LittleEndian.PutUint32(buf[0:], headerMagic)
	binary.LittleEndian.PutUint16(buf[4:], headerVersion)
	buf[6] = byte(h.Kind)
	buf[7] = byte(h.Type)
	binary.LittleEndian.PutUint64(buf[8:], h.Size)
	binary.LittleEndian.PutUint64(buf[16:], h.Elements)
	binary.LittleEndian.PutUint64(buf[24:], h.Object)
	binary.LittleEndian.PutUint64(buf[32:], h.Total)
	binary.LittleEndian.PutUint32(buf[40:], HeaderSize)
}

func decodeHeader(buf []byte) (Header, error) {
	if len(buf) < HeaderSize ||
		binary.LittleEndian.Uint32(buf[0:]) != headerMagic ||
		binary.LittleEndian.Uint16(buf[4:]) != headerVersion {
		return Header{}, ErrCorruptHeader
	}
	h := Header{
		Kind:       Kind(buf[6]),
		Type:       source.ElementType(buf[7]),
		Size:       binary.LittleEndian.Uint64(buf[8:]),
		Elements:   binary.LittleEndian.Uint64(buf[16:]),
		Object:     binary.LittleEndian.Uint64(buf[24:]),
		Total:      binary.LittleEndian.Uint64(buf[32:]),
		HeaderSize: binary.LittleEndian.Uint32(buf[40:]),
	}
	if h.Kind != KindAnon && h.Kind != KindBacked {
		return Header{}, ErrCorruptHeader
	}
	if h.HeaderSize != HeaderSize || h.Total < h.Size+HeaderSize {
		return Header{}, ErrCorruptHeader
	}
	return h, nil
}
