package source

import (
	"encoding/binary"
	"fmt"
)

// ElementType identifies the element representation of a source.
type ElementType uint8

const (
	// Invalid is the zero ElementType.
	Invalid ElementType = iota
	// Byte is an unsigned 8-bit element.
	Byte
	// Bool is stored as a native int32 holding 0 or 1.
	Bool
	// Int is a native int32.
	Int
	// Real is a native float64.
	Real
	// Complex is two native float64 values (real, imaginary).
	Complex
)

// ByteOrder is the element encoding used by every source.
var ByteOrder = binary.NativeEndian

// Size returns the element width in bytes, or 0 for Invalid.
func (t ElementType) Size() uint64 {
	switch t {
	case Byte:
		return 1
	case Bool, Int:
		return 4
	case Real:
		return 8
	case Complex:
		return 16
	default:
		return 0
	}
}

// Valid reports whether t is a known element type.
func (t ElementType) Valid() bool {
	return t.Size() != 0
}

func (t ElementType) String() string {
	switch t {
	case Byte:
		return "byte"
	case Bool:
		return "bool"
	case Int:
		return "int"
	case Real:
		return "real"
	case Complex:
		return "complex"
	default:
		return fmt.Sprintf("ElementType(%d)", uint8(t))
	}
}

// ParseElementType parses the names returned by String.
func ParseElementType(s string) (ElementType, error) {
	for t := Byte; t <= Complex; t++ {
		if t.String() == s {
			return t, nil
		}
	}
	return Invalid, fmt.Errorf("%w: %q", ErrInvalidElementType, s)
}
