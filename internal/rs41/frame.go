package rs41

import (
	"encoding/hex"
	"errors"
	"fmt"
)

// Frame geometry
const (
	BufferSize   = 1024
	FrameLength  = 0x140
	HeaderLength = 8

	FrameTypeOffset   = 0x038
	FrameTypeRegular  = 0x0F
	FrameTypeExtended = 0xF0

	SubframeSize    = 16
	SubframeOffset  = 0x053
	SubframeEntries = 51
)

// ErrShortFrame is returned when raw input holds fewer than FrameLength bytes.
var ErrShortFrame = errors.New("rs41: frame shorter than 320 bytes")

// Header is the sync word that starts every frame.
var Header = [HeaderLength]byte{0x86, 0x35, 0xF4, 0x40, 0x93, 0xDF, 0x1A, 0x60}

// Frame is the working buffer for one RS41 frame. Only the first
// FrameLength bytes are meaningful.
type Frame [BufferSize]byte

// FrameFromBytes copies raw frame bytes into a new buffer.
func FrameFromBytes(raw []byte) (*Frame, error) {
	if len(raw) < FrameLength {
		return nil, fmt.Errorf("%w: got %d", ErrShortFrame, len(raw))
	}
	f := new(Frame)
	copy(f[:], raw)
	return f, nil
}

// Load replaces the buffer contents with raw and zeroes the remainder.
func (f *Frame) Load(raw []byte) {
	n := copy(f[:], raw)
	clear(f[n:])
}

// Bytes returns the meaningful part of the buffer.
func (f *Frame) Bytes() []byte {
	return f[:FrameLength]
}

// Clone returns an independent copy.
func (f *Frame) Clone() *Frame {
	c := *f
	return &c
}

// Hex renders the frame as space separated hex, the log file format.
func (f *Frame) Hex() string {
	out := make([]byte, 0, FrameLength*3)
	for i, b := range f.Bytes() {
		if i > 0 {
			out = append(out, ' ')
		}
		out = append(out, hex.EncodeToString([]byte{b})...)
	}
	return string(out)
}

// BuildHeader writes the sync word and frame type.
func (f *Frame) BuildHeader(frameType byte) {
	copy(f[:], Header[:])
	f[FrameTypeOffset] = frameType
}

// HasHeader reports whether the sync word is present.
func (f *Frame) HasHeader() bool {
	return [HeaderLength]byte(f[:HeaderLength]) == Header
}

// FrameType returns the frame type byte.
func (f *Frame) FrameType() byte {
	return f[FrameTypeOffset]
}

// Block identifies one framed data block: ID byte, length byte, data and a
// trailing little endian CRC over the data.
type Block struct {
	Name   string
	ID     byte
	Offset int
	Length int
}

// Frame blocks
var (
	BlockStatus  = Block{Name: "STATUS", ID: 0x79, Offset: 0x039, Length: 0x28}
	BlockMeas    = Block{Name: "MEAS", ID: 0x7A, Offset: 0x065, Length: 0x2A}
	BlockGPSInfo = Block{Name: "GPSINFO", ID: 0x7C, Offset: 0x093, Length: 0x1E}
	BlockGPSRaw  = Block{Name: "GPSRAW", ID: 0x7D, Offset: 0x0B5, Length: 0x59}
	BlockGPSPos  = Block{Name: "GPSPOS", ID: 0x7B, Offset: 0x112, Length: 0x15}
	BlockEmpty   = Block{Name: "EMPTY", ID: 0x76, Offset: 0x12B, Length: 0x11}

	Blocks = []Block{BlockStatus, BlockMeas, BlockGPSInfo, BlockGPSRaw, BlockGPSPos, BlockEmpty}
)

// DataStart returns the offset of the first data byte.
func (b Block) DataStart() int { return b.Offset + 2 }

// CRCOffset returns the offset of the CRC, right after the data.
func (b Block) CRCOffset() int { return b.DataStart() + b.Length }

// Data returns the block's data bytes within f.
func (f *Frame) Data(b Block) []byte {
	return f[b.DataStart():b.CRCOffset()]
}

// WriteBlockHeader writes ID and length.
func (f *Frame) WriteBlockHeader(b Block) {
	f[b.Offset] = b.ID
	f[b.Offset+1] = byte(b.Length)
}

// SetCRC computes the block CRC and stores it.
func (f *Frame) SetCRC(b Block) {
	crc := CRC16(f.Data(b))
	f[b.CRCOffset()] = byte(crc)
	f[b.CRCOffset()+1] = byte(crc >> 8)
}

// StoredCRC returns the CRC carried in the frame.
func (f *Frame) StoredCRC(b Block) uint16 {
	return uint16(f[b.CRCOffset()]) | uint16(f[b.CRCOffset()+1])<<8
}

// CheckCRC reports whether the stored CRC matches the block data.
func (f *Frame) CheckCRC(b Block) bool {
	return f.StoredCRC(b) == CRC16(f.Data(b))
}

// Get and Set helpers for scalar frame fields.

func (f *Frame) Uint(fd Field) uint64 { return fd.Uint(f[:]) }
func (f *Frame) Int(fd Field) int64 { return fd.Int(f[:]) }
func (f *Frame) Float(fd Field) float64 { return fd.Float(f[:]) }
func (f *Frame) Text(fd Field) string { return fd.String(f[:]) }
func (f *Frame) SetUint(fd Field, v uint64) { fd.SetUint(f[:], v) }
func (f *Frame) SetInt(fd Field, v int64) { fd.SetInt(f[:], v) }
func (f *Frame) SetFloat(fd Field, v float64) { fd.SetFloat(f[:], v) }
func (f *Frame) SetText(fd Field, v string) { fd.SetString(f[:], v) }

// FrameNumber returns the STATUS frame counter.
func (f *Frame) FrameNumber() int { return int(f.Uint(StatusFrameNumber)) }

// SetFrameNumber sets the STATUS frame counter.
func (f *Frame) SetFrameNumber(n int) { f.SetUint(StatusFrameNumber, uint64(n)) }

// Subframe returns the subframe index carried by this frame.
func (f *Frame) Subframe() int { return int(f[StatusSubframe.Offset]) }

// SetSubframe sets the subframe index.
func (f *Frame) SetSubframe(sf int) { f[StatusSubframe.Offset] = byte(sf) }

// LastSubframe returns the highest subframe index of the rotation.
func (f *Frame) LastSubframe() int { return int(f[StatusLastSubframe.Offset]) }

// SubframeBytes returns the 16-byte subframe slice carried by this frame.
func (f *Frame) SubframeBytes() []byte {
	return f[SubframeOffset : SubframeOffset+SubframeSize]
}
