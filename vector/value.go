package vector

import (
	"fmt"
	"math"

	"github.com/hupe1980/ufo/source"
)

// Value is a single element of any element type.
type Value struct {
	typ source.ElementType
	i   int32
	b   byte
	re  float64
	im  float64
}

func decodeValue(typ source.ElementType, buf []byte) Value {
	v := Value{typ: typ}
	switch typ {
	case source.Byte:
		v.b = buf[0]
	case source.Bool, source.Int:
		v.i = int32(source.ByteOrder.Uint32(buf))
	case source.Real:
		v.re = math.Float64frombits(source.ByteOrder.Uint64(buf))
	case source.Complex:
		v.re = math.Float64frombits(source.ByteOrder.Uint64(buf))
		v.im = math.Float64frombits(source.ByteOrder.Uint64(buf[8:]))
	}
	return v
}

// Type returns the element type of v.
func (v Value) Type() source.ElementType { return v.typ }

// Byte returns the value of a Byte element.
func (v Value) Byte() (byte, bool) { return v.b, v.typ == source.Byte }

// Bool returns the value of a Bool element. Any non-zero stored value is true.
func (v Value) Bool() (bool, bool) { return v.i != 0, v.typ == source.Bool }

// Int returns the value of an Int element.
func (v Value) Int() (int32, bool) { return v.i, v.typ == source.Int }

// Real returns the value of a Real element.
func (v Value) Real() (float64, bool) { return v.re, v.typ == source.Real }

// Complex returns the value of a Complex element.
func (v Value) Complex() (complex128, bool) { return complex(v.re, v.im), v.typ == source.Complex }

func (v Value) String() string {
	switch v.typ {
	case source.Byte:
		return fmt.Sprintf("%d", v.b)
	case source.Bool:
		return fmt.Sprintf("%t", v.i != 0)
	case source.Int:
		return fmt.Sprintf("%d", v.i)
	case source.Real:
		return fmt.Sprintf("%g", v.re)
	case source.Complex:
		return fmt.Sprintf("%g", complex(v.re, v.im))
	default:
		return "<invalid>"
	}
}
