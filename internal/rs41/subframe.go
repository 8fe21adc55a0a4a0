package rs41

import "fmt"

// SubframeTableSize is the size of the calibration table rebuilt from the
// subframe rotation.
const SubframeTableSize = SubframeEntries * SubframeSize

// Subframe table fields. Offsets are into the assembled table.
var (
	SFTxFrequency             = Field{Name: "TxFrequency", Offset: 0x002, Kind: U16, Scale: 6400, Bias: 400}
	SFFirmwareVersion         = Field{Name: "FirmwareVersion", Offset: 0x015, Kind: U16}
	SFBurstKillEnabled        = Field{Name: "BurstKillEnabled", Offset: 0x02B, Kind: U8}
	SFTempRefRes              = Field{Name: "TempRefRes", Offset: 0x03D, Kind: F32, Count: 2}
	SFRHCapCoeff              = Field{Name: "RHCapCoeff", Offset: 0x045, Kind: F32, Count: 2}
	SFTempPolCoeff            = Field{Name: "TempPolCoeff", Offset: 0x04D, Kind: F32, Count: 3}
	SFTempCalCoeff            = Field{Name: "TempCalCoeff", Offset: 0x059, Kind: F32, Count: 3}
	SFHumidCalCoeff           = Field{Name: "HumidCalCoeff", Offset: 0x075, Kind: F32, Count: 2}
	SFHumHeaterTempCalCoeff   = Field{Name: "HumHeaterTempCalCoeff", Offset: 0x07D, Kind: F32, Count: 42}
	SFHeaterTempPolCoeff      = Field{Name: "HeaterTempPolCoeff", Offset: 0x125, Kind: F32, Count: 3}
	SFHeaterTempCalCoeff      = Field{Name: "HeaterTempCalCoeff", Offset: 0x131, Kind: F32, Count: 3}
	SFModel                   = Field{Name: "Model", Offset: 0x218, Kind: Chars, Count: 10}
	SFMainboardType           = Field{Name: "MainboardType", Offset: 0x222, Kind: Chars, Count: 10}
	SFMainboardSerial         = Field{Name: "MainboardSerial", Offset: 0x22C, Kind: Chars, Count: 9}
	SFPressureSerial          = Field{Name: "PressureSerial", Offset: 0x243, Kind: Chars, Count: 9}
	SFHumCPressureCalCoeff    = Field{Name: "HumCPressureCalCoeff", Offset: 0x2A6, Kind: F32, Count: 3}
	SFHumCPressureTempCalCoef = Field{Name: "HumCPressureTempCalCoeff", Offset: 0x2BA, Kind: F32, Count: 12}
	SFBurstKillDuration       = Field{Name: "BurstKillTimerDuration", Offset: 0x316, Kind: U16}
	SFBurstKillTimeUntilKill  = Field{Name: "BurstKillTimeUntilKill", Offset: 0x320, Kind: I16}
	SFLaunchSiteEarthRadius   = Field{Name: "LaunchSiteEarthRadius", Offset: 0x322, Kind: I16, Bias: 6371008}
	SFFlightModeAltitude      = Field{Name: "FlightModeAltAboveLaunch", Offset: 0x324, Kind: U16}
	SFTxPower                 = Field{Name: "TxPower", Offset: 0x326, Kind: U8}
	SFSoftwareResets          = Field{Name: "SoftwareResets", Offset: 0x327, Kind: U8}
	SFCPUTemperature          = Field{Name: "CPUTemperature", Offset: 0x328, Kind: I8}
	SFRadioTemperature        = Field{Name: "RadioTemperature", Offset: 0x329, Kind: I8}
	SFBatteryCapacity         = Field{Name: "RemainingBatteryCapacity", Offset: 0x32A, Kind: I16, Scale: 0.1}
	SFDiscardedUBX            = Field{Name: "DiscardedUBXPackets", Offset: 0x32C, Kind: U8}
	SFMissingUBX              = Field{Name: "MissingUBXPackets", Offset: 0x32D, Kind: U8}
)

// PressureCoeffCount is the number of pressure polynomial coefficients.
const PressureCoeffCount = 25

// pressureCoeffOffsets maps a coefficient index to its table offset. The
// coefficients are stored grouped by temperature power; indices without an
// entry are always zero.
var pressureCoeffOffsets = map[int]int{
	0: 0x25E, 4: 0x262, 8: 0x266, 12: 0x26A, 16: 0x26E, 20: 0x272, 24: 0x276,
	1: 0x27A, 5: 0x27E, 9: 0x282, 13: 0x286,
	2: 0x28A, 6: 0x28E, 10: 0x292, 14: 0x296,
	3: 0x29A, 7: 0x29E, 11: 0x2A2,
}

// ModelWithPressureSensor is the model string of sondes carrying a pressure
// sensor.
const ModelWithPressureSensor = "RS41-SGP"

// SubframeTable accumulates the 16-byte calibration slices broadcast one per
// frame. A slot is only overwritten by a newer observation of the same slot.
type SubframeTable struct {
	data [SubframeTableSize]byte
	seen [SubframeEntries]bool
}

// NewSubframeTable creates an empty table.
func NewSubframeTable() *SubframeTable {
	return &SubframeTable{}
}

// Bytes exposes the assembled table.
func (t *SubframeTable) Bytes() []byte {
	return t.data[:]
}

// Clone returns an independent copy.
func (t *SubframeTable) Clone() *SubframeTable {
	c := *t
	return &c
}

// Load copies the subframe slice carried by f into the table.
func (t *SubframeTable) Load(f *Frame) error {
	return t.LoadSlice(f.Subframe(), f.SubframeBytes())
}

// LoadSlice stores data as slot sf and marks it seen.
func (t *SubframeTable) LoadSlice(sf int, data []byte) error {
	if sf < 0 || sf >= SubframeEntries {
		return fmt.Errorf("rs41: subframe index %d out of range", sf)
	}
	copy(t.data[sf*SubframeSize:(sf+1)*SubframeSize], data)
	t.seen[sf] = true
	return nil
}

// Apply copies slot sf into the subframe bytes of f.
func (t *SubframeTable) Apply(sf int, f *Frame) {
	if sf < 0 || sf >= SubframeEntries {
		return
	}
	copy(f.SubframeBytes(), t.data[sf*SubframeSize:(sf+1)*SubframeSize])
}

// Seen reports whether slot sf has been observed.
func (t *SubframeTable) Seen(sf int) bool {
	return sf >= 0 && sf < SubframeEntries && t.seen[sf]
}

// Complete reports whether every slot 0..last has been observed.
func (t *SubframeTable) Complete(last int) bool {
	return len(t.Missing(last)) == 0
}

// Missing lists the unobserved slots in 0..last.
func (t *SubframeTable) Missing(last int) []int {
	var out []int
	for sf := 0; sf <= last && sf < SubframeEntries; sf++ {
		if !t.seen[sf] {
			out = append(out, sf)
		}
	}
	return out
}

// SeenCount returns the number of observed slots.
func (t *SubframeTable) SeenCount() int {
	n := 0
	for _, s := range t.seen {
		if s {
			n++
		}
	}
	return n
}

func (t *SubframeTable) Uint(fd Field) uint64 { return fd.Uint(t.data[:]) }
func (t *SubframeTable) Int(fd Field) int64 { return fd.Int(t.data[:]) }
func (t *SubframeTable) Float(fd Field) float64 { return fd.Float(t.data[:]) }
func (t *SubframeTable) Floats(fd Field) []float64 { return fd.Floats(t.data[:]) }
func (t *SubframeTable) Text(fd Field) string { return fd.String(t.data[:]) }
func (t *SubframeTable) SetUint(fd Field, v uint64) { fd.SetUint(t.data[:], v) }
func (t *SubframeTable) SetInt(fd Field, v int64) { fd.SetInt(t.data[:], v) }
func (t *SubframeTable) SetFloat(fd Field, v float64) { fd.SetFloat(t.data[:], v) }
func (t *SubframeTable) SetFloats(fd Field, v []float64) { fd.SetFloats(t.data[:], v) }
func (t *SubframeTable) SetText(fd Field, v string) { fd.SetString(t.data[:], v) }

// PressureCalCoeff returns the 25 pressure polynomial coefficients.
func (t *SubframeTable) PressureCalCoeff() [PressureCoeffCount]float64 {
	var out [PressureCoeffCount]float64
	for i, off := range pressureCoeffOffsets {
		out[i] = Field{Offset: off, Kind: F32}.Float(t.data[:])
	}
	return out
}

// SetPressureCalCoeff stores the pressure coefficients. Indices without a
// table slot are dropped.
func (t *SubframeTable) SetPressureCalCoeff(c [PressureCoeffCount]float64) {
	for i, off := range pressureCoeffOffsets {
		Field{Offset: off, Kind: F32}.SetFloat(t.data[:], c[i])
	}
}

// Model returns the sonde model string.
func (t *SubframeTable) Model() string {
	return t.Text(SFModel)
}

// HasPressureSensor reports whether the model carries a pressure sensor.
func (t *SubframeTable) HasPressureSensor() bool {
	return t.Model() == ModelWithPressureSensor
}

// writeInMessage encodes a table field into a scratch table and copies the
// bytes that belong to the frame's current subframe slot into the frame.
func writeInMessage(fd Field, f *Frame, encode func(buf []byte)) bool {
	sf := f.Subframe()
	start := sf * SubframeSize
	from, to, ok := fd.Overlap(start, start+SubframeSize)
	if !ok {
		return false
	}
	var scratch [SubframeTableSize]byte
	encode(scratch[:])
	copy(f[SubframeOffset+fd.Offset+from-start:], scratch[fd.Offset+from:fd.Offset+to])
	return true
}

// SetFloatInMessage writes a table field value into f if the frame's
// subframe slot carries (part of) the field. It reports whether f changed.
func SetFloatInMessage(fd Field, v float64, f *Frame) bool {
	return writeInMessage(fd, f, func(buf []byte) { fd.SetFloat(buf, v) })
}

// SetUintInMessage is SetFloatInMessage for raw integer values.
func SetUintInMessage(fd Field, v uint64, f *Frame) bool {
	return writeInMessage(fd, f, func(buf []byte) { fd.SetUint(buf, v) })
}

// SetTextInMessage is SetFloatInMessage for character fields.
func SetTextInMessage(fd Field, s string, f *Frame) bool {
	return writeInMessage(fd, f, func(buf []byte) { fd.SetString(buf, s) })
}
