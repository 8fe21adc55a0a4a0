package sink

import (
	"encoding/binary"
)

// RFHeaderLength is the size of the transmitter control header.
const RFHeaderLength = 16

// Transmitter defaults
const (
	DefaultFrequency  = 401400000 // Hz
	DefaultBaud       = 4800
	DefaultDeviation  = 2400 // Hz
	DefaultModulation = ModulationGaussian5
	DefaultPower      = -3   // dBm

	DefaultSerialBaud = 57600
)

// Modulation shaping values understood by the transmitter.
const (
	ModulationNone      = 0
	ModulationGaussian1 = 1 // BT 1.0
	ModulationGaussian5 = 2 // BT 0.5
	ModulationGaussian3 = 3 // BT 0.3
)

// RFHeader configures the transmitter for the burst that follows it.
type RFHeader struct {
	Frequency  uint32 // Hz
	Baud       uint32
	Deviation  uint32 // Hz
	Modulation uint8
	Power      int8 // dBm
}

// DefaultRFHeader returns the header for a 401.4 MHz RS41 burst at power
// dBm.
func DefaultRFHeader(power int8) RFHeader {
	return RFHeader{
		Frequency:  DefaultFrequency,
		Baud:       DefaultBaud,
		Deviation:  DefaultDeviation,
		Modulation: DefaultModulation,
		Power:      power,
	}
}

// Encode returns the header followed by payload. All header fields are big
// endian; the leading length counts the whole message.
func (h RFHeader) Encode(payload []byte) []byte {
	out := make([]byte, RFHeaderLength+len(payload))
	binary.BigEndian.PutUint16(out[0:], uint16(len(out)))
	binary.BigEndian.PutUint32(out[2:], h.Frequency)
	binary.BigEndian.PutUint32(out[6:], h.Baud)
	binary.BigEndian.PutUint32(out[10:], h.Deviation)
	out[14] = h.Modulation
	out[15] = byte(h.Power)
	copy(out[RFHeaderLength:], payload)
	return out
}

// DecodeRFHeader parses the header of an encoded message and returns the
// payload.
func DecodeRFHeader(msg []byte) (RFHeader, []byte, bool) {
	if len(msg) < RFHeaderLength || int(binary.BigEndian.Uint16(msg)) != len(msg) {
		return RFHeader{}, nil, false
	}
	h := RFHeader{
		Frequency:  binary.BigEndian.Uint32(msg[2:]),
		Baud:       binary.BigEndian.Uint32(msg[6:]),
		Deviation:  binary.BigEndian.Uint32(msg[10:]),
		Modulation: msg[14],
		Power:      int8(msg[15]),
	}
	return h, msg[RFHeaderLength:], true
}
