package rs41

import (
	"encoding/binary"
	"math"
	"strings"
)

// Kind is the on-wire encoding of a field element. All multi-byte kinds are
// little endian.
type Kind int

const (
	U8 Kind = iota
	I8
	U16
	I16
	U24
	I24
	U32
	I32
	F32
	Chars
)

// Size returns the width in bytes of one element of the kind.
func (k Kind) Size() int {
	switch k {
	case U8, I8, Chars:
		return 1
	case U16, I16:
		return 2
	case U24, I24:
		return 3
	default:
		return 4
	}
}

func (k Kind) signed() bool {
	return k == I8 || k == I16 || k == I24 || k == I32
}

// Field describes one value inside a frame or the subframe table.
//
// For integer kinds the physical value is raw/Scale + Bias (a zero Scale
// means 1). Count > 1 marks an array of consecutive elements; for Chars it
// is the string length.
type Field struct {
	Name   string
	Offset int
	Kind   Kind
	Count  int
	Scale  float64
	Bias   float64
}

// Size returns the total number of bytes covered by the field.
func (f Field) Size() int {
	n := f.Count
	if n < 1 {
		n = 1
	}
	return n * f.Kind.Size()
}

// End returns the offset one past the field's last byte.
func (f Field) End() int {
	return f.Offset + f.Size()
}

// At returns the i-th element of an array field as a scalar field.
func (f Field) At(i int) Field {
	e := f
	e.Offset = f.Offset + i*f.Kind.Size()
	e.Count = 1
	return e
}

func (f Field) scale() float64 {
	if f.Scale == 0 {
		return 1
	}
	return f.Scale
}

// Uint reads the raw unsigned value of a scalar field.
func (f Field) Uint(buf []byte) uint64 {
	b := buf[f.Offset:]
	switch f.Kind.Size() {
	case 1:
		return uint64(b[0])
	case 2:
		return uint64(binary.LittleEndian.Uint16(b))
	case 3:
		return uint64(b[0]) | uint64(b[1])<<8 | uint64(b[2])<<16
	default:
		return uint64(binary.LittleEndian.Uint32(b))
	}
}

// Int reads the raw value of a scalar field, sign extended for signed kinds.
func (f Field) Int(buf []byte) int64 {
	raw := f.Uint(buf)
	if !f.Kind.signed() {
		return int64(raw)
	}
	bits := uint(f.Kind.Size() * 8)
	shift := 64 - bits
	return int64(raw<<shift) >> shift
}

// SetUint writes the low bytes of v into a scalar field.
func (f Field) SetUint(buf []byte, v uint64) {
	b := buf[f.Offset:]
	switch f.Kind.Size() {
	case 1:
		b[0] = byte(v)
	case 2:
		binary.LittleEndian.PutUint16(b, uint16(v))
	case 3:
		b[0] = byte(v)
		b[1] = byte(v >> 8)
		b[2] = byte(v >> 16)
	default:
		binary.LittleEndian.PutUint32(b, uint32(v))
	}
}

// SetInt writes v in two's complement, saturated to the kind's range.
func (f Field) SetInt(buf []byte, v int64) {
	lo, hi := f.bounds()
	if v < lo {
		v = lo
	}
	if v > hi {
		v = hi
	}
	f.SetUint(buf, uint64(v))
}

func (f Field) bounds() (int64, int64) {
	bits := uint(f.Kind.Size() * 8)
	if f.Kind.signed() {
		return -(1 << (bits - 1)), 1<<(bits-1) - 1
	}
	return 0, 1<<bits - 1
}

// Max returns the largest physical value an integer field can hold.
func (f Field) Max() float64 {
	_, hi := f.bounds()
	return float64(hi)/f.scale() + f.Bias
}

// Float reads the physical value of a scalar field.
func (f Field) Float(buf []byte) float64 {
	if f.Kind == F32 {
		return float64(math.Float32frombits(uint32(f.Uint(buf))))
	}
	return float64(f.Int(buf))/f.scale() + f.Bias
}

// SetFloat writes a physical value, rounding integer kinds to the nearest
// raw step.
func (f Field) SetFloat(buf []byte, v float64) {
	if f.Kind == F32 {
		f.SetUint(buf, uint64(math.Float32bits(float32(v))))
		return
	}
	f.SetInt(buf, int64(math.Round((v-f.Bias)*f.scale())))
}

// Floats reads every element of an array field.
func (f Field) Floats(buf []byte) []float64 {
	n := f.Count
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = f.At(i).Float(buf)
	}
	return out
}

// SetFloats writes up to Count elements of an array field.
func (f Field) SetFloats(buf []byte, vs []float64) {
	for i, v := range vs {
		if i >= f.Count && !(f.Count < 1 && i == 0) {
			break
		}
		f.At(i).SetFloat(buf, v)
	}
}

// String reads a character field with trailing NULs removed.
func (f Field) String(buf []byte) string {
	return strings.TrimRight(string(buf[f.Offset:f.End()]), "\x00")
}

// SetString writes s zero padded (or truncated) to the field length.
func (f Field) SetString(buf []byte, s string) {
	b := buf[f.Offset:f.End()]
	n := copy(b, s)
	for i := n; i < len(b); i++ {
		b[i] = 0
	}
}

// Overlap returns the part of the field inside [start, end) as offsets
// relative to the field start, or ok=false if the ranges are disjoint.
func (f Field) Overlap(start, end int) (from, to int, ok bool) {
	lo := max(f.Offset, start)
	hi := min(f.End(), end)
	if lo >= hi {
		return 0, 0, false
	}
	return lo - f.Offset, hi - f.Offset, true
}
