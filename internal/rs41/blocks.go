package rs41

// STATUS block fields
var (
	StatusFrameNumber    = Field{Name: "FrameNumber", Offset: 0x03B, Kind: U16}
	StatusSerial         = Field{Name: "Serial", Offset: 0x03D, Kind: Chars, Count: 8}
	StatusBattery        = Field{Name: "BatteryVoltage", Offset: 0x045, Kind: U8, Scale: 10}
	StatusFlightFlags    = Field{Name: "FlightFlags", Offset: 0x048, Kind: U8}
	StatusBatteryFlags   = Field{Name: "BatteryFlags", Offset: 0x049, Kind: U8}
	StatusCryptoMode     = Field{Name: "CryptoMode", Offset: 0x04A, Kind: U8}
	StatusPCBTemperature = Field{Name: "PCBTemperature", Offset: 0x04B, Kind: I8}
	StatusHeatingPWM     = Field{Name: "HeatingPWM", Offset: 0x04E, Kind: U16, Scale: 10}
	StatusTxPower        = Field{Name: "TxPower", Offset: 0x050, Kind: U8}
	StatusLastSubframe   = Field{Name: "LastSubframe", Offset: 0x051, Kind: U8}
	StatusSubframe       = Field{Name: "Subframe", Offset: 0x052, Kind: U8}
)

// STATUS flag bits
const (
	FlagFlightMode = 0x01
	FlagDescent    = 0x02
	FlagBatteryLow = 0x10
)

// MEAS block fields. Each triple is main, ref1, ref2 as consecutive u24.
var (
	MeasTemperature       = Field{Name: "Temperature", Offset: 0x067, Kind: U24, Count: 3}
	MeasHumidity          = Field{Name: "Humidity", Offset: 0x070, Kind: U24, Count: 3}
	MeasHeaterTemperature = Field{Name: "HeaterTemperature", Offset: 0x079, Kind: U24, Count: 3}
	MeasPressure          = Field{Name: "Pressure", Offset: 0x082, Kind: U24, Count: 3}
	MeasPressureSensorTmp = Field{Name: "PressureSensorTemperature", Offset: 0x08D, Kind: I16, Scale: 100}
)

// GPSINFO block fields
var (
	GPSInfoWeek       = Field{Name: "GPSWeek", Offset: 0x095, Kind: U16}
	GPSInfoTimeOfWeek = Field{Name: "GPSMilliseconds", Offset: 0x097, Kind: U32}
)

// GPSINFO satellite slots start here, two bytes each.
const gpsInfoSlotsOffset = 0x09B

// GPSRAW block fields
var (
	GPSRawMinPR = Field{Name: "MinPR", Offset: 0x0B7, Kind: U32}
)

// GPSRAW record layout
const (
	GPSSlots          = 12
	gpsRawRecordsAt   = 0x0BC
	GPSRawRecordSize  = 7
	GPSRawRecordsSize = GPSSlots * GPSRawRecordSize
)

// GPSPOS block fields
var (
	GPSPosX          = Field{Name: "ECEFX", Offset: 0x114, Kind: I32, Scale: 100}
	GPSPosY          = Field{Name: "ECEFY", Offset: 0x118, Kind: I32, Scale: 100}
	GPSPosZ          = Field{Name: "ECEFZ", Offset: 0x11C, Kind: I32, Scale: 100}
	GPSPosVX         = Field{Name: "ECEFVX", Offset: 0x120, Kind: I16, Scale: 100}
	GPSPosVY         = Field{Name: "ECEFVY", Offset: 0x122, Kind: I16, Scale: 100}
	GPSPosVZ         = Field{Name: "ECEFVZ", Offset: 0x124, Kind: I16, Scale: 100}
	GPSPosSatellites = Field{Name: "NumSV", Offset: 0x126, Kind: U8}
	GPSPosSAcc       = Field{Name: "SAcc", Offset: 0x127, Kind: U8, Scale: 10}
	GPSPosPDOP       = Field{Name: "PDOP", Offset: 0x128, Kind: U8, Scale: 10}
)

// Status is the decoded STATUS block.
type Status struct {
	FrameNumber    int
	Serial         string
	BatteryVoltage float64
	FlightMode     bool
	Descent        bool
	BatteryLow     bool
	CryptoMode     int
	PCBTemperature int
	HeatingPWM     float64
	TxPower        int
	LastSubframe   int
	Subframe       int
	SubframeData   [SubframeSize]byte
}

// ReadStatus decodes the STATUS block.
func ReadStatus(f *Frame) Status {
	flags := f[StatusFlightFlags.Offset]
	s := Status{
		FrameNumber:    f.FrameNumber(),
		Serial:         f.Text(StatusSerial),
		BatteryVoltage: f.Float(StatusBattery),
		FlightMode:     flags&FlagFlightMode != 0,
		Descent:        flags&FlagDescent != 0,
		BatteryLow:     f[StatusBatteryFlags.Offset]&FlagBatteryLow != 0,
		CryptoMode:     int(f.Uint(StatusCryptoMode)),
		PCBTemperature: int(f.Int(StatusPCBTemperature)),
		HeatingPWM:     f.Float(StatusHeatingPWM),
		TxPower:        int(f.Uint(StatusTxPower)),
		LastSubframe:   f.LastSubframe(),
		Subframe:       f.Subframe(),
	}
	copy(s.SubframeData[:], f.SubframeBytes())
	return s
}

// BuildStatus writes a complete STATUS block. When table is non-nil the
// subframe bytes come from the table slot named by s.Subframe, otherwise
// from s.SubframeData.
func BuildStatus(f *Frame, s Status, table *SubframeTable) {
	f.WriteBlockHeader(BlockStatus)
	f.SetFrameNumber(s.FrameNumber)
	f.SetText(StatusSerial, s.Serial)
	f.SetFloat(StatusBattery, s.BatteryVoltage)
	f[0x046], f[0x047] = 0, 0
	var flags byte
	if s.FlightMode {
		flags |= FlagFlightMode
	}
	if s.Descent {
		flags |= FlagDescent
	}
	f[StatusFlightFlags.Offset] = flags
	if s.BatteryLow {
		f[StatusBatteryFlags.Offset] = FlagBatteryLow
	} else {
		f[StatusBatteryFlags.Offset] = 0
	}
	f.SetUint(StatusCryptoMode, uint64(s.CryptoMode))
	f.SetInt(StatusPCBTemperature, int64(s.PCBTemperature))
	f[0x04C], f[0x04D] = 0, 0
	f.SetFloat(StatusHeatingPWM, s.HeatingPWM)
	f.SetUint(StatusTxPower, uint64(s.TxPower))
	f.SetUint(StatusLastSubframe, uint64(s.LastSubframe))
	f.SetSubframe(s.Subframe)
	if table != nil {
		table.Apply(s.Subframe, f)
	} else {
		copy(f.SubframeBytes(), s.SubframeData[:])
	}
	f.SetCRC(BlockStatus)
}

// Triple is one main/ref1/ref2 measurement count set.
type Triple struct {
	Main int
	Ref1 int
	Ref2 int
}

// Triple reads a three element u24 MEAS field.
func (f *Frame) Triple(fd Field) Triple {
	return Triple{
		Main: int(f.Uint(fd.At(0))),
		Ref1: int(f.Uint(fd.At(1))),
		Ref2: int(f.Uint(fd.At(2))),
	}
}

// SetTriple writes a three element u24 MEAS field.
func (f *Frame) SetTriple(fd Field, t Triple) {
	f.SetInt(fd.At(0), int64(t.Main))
	f.SetInt(fd.At(1), int64(t.Ref1))
	f.SetInt(fd.At(2), int64(t.Ref2))
}

// SetMain writes only the main count of a MEAS triple.
func (f *Frame) SetMain(fd Field, main int) {
	f.SetInt(fd.At(0), int64(main))
}

// Meas is the decoded MEAS block.
type Meas struct {
	Temperature               Triple
	Humidity                  Triple
	HeaterTemperature         Triple
	Pressure                  Triple
	PressureSensorTemperature float64
}

// ReadMeas decodes the MEAS block.
func ReadMeas(f *Frame) Meas {
	return Meas{
		Temperature:               f.Triple(MeasTemperature),
		Humidity:                  f.Triple(MeasHumidity),
		HeaterTemperature:         f.Triple(MeasHeaterTemperature),
		Pressure:                  f.Triple(MeasPressure),
		PressureSensorTemperature: f.Float(MeasPressureSensorTmp),
	}
}

// BuildMeas writes a complete MEAS block. Sondes without a pressure sensor
// report zero pressure counts.
func BuildMeas(f *Frame, m Meas, hasPressureSensor bool) {
	f.WriteBlockHeader(BlockMeas)
	f.SetTriple(MeasTemperature, m.Temperature)
	f.SetTriple(MeasHumidity, m.Humidity)
	f.SetTriple(MeasHeaterTemperature, m.HeaterTemperature)
	if hasPressureSensor {
		f.SetTriple(MeasPressure, m.Pressure)
	} else {
		f.SetTriple(MeasPressure, Triple{})
	}
	f[0x08B], f[0x08C] = 0, 0
	f.SetFloat(MeasPressureSensorTmp, m.PressureSensorTemperature)
	f[0x08F], f[0x090] = 0, 0
	f.SetCRC(BlockMeas)
}

// SatInfo is one GPSINFO slot: PRN and packed reception quality.
type SatInfo struct {
	PRN     byte
	Quality byte
}

// MesQI returns the measurement quality indicator.
func (s SatInfo) MesQI() int { return int(s.Quality >> 5) }

// CNo returns the carrier to noise density in dBHz.
func (s SatInfo) CNo() int { return int(s.Quality&0x1F) + 20 }

// GPSInfo is the decoded GPSINFO block.
type GPSInfo struct {
	Week       int
	TimeOfWeek uint32
	Satellites [GPSSlots]SatInfo
}

// ReadGPSInfo decodes the GPSINFO block.
func ReadGPSInfo(f *Frame) GPSInfo {
	g := GPSInfo{
		Week:       int(f.Uint(GPSInfoWeek)),
		TimeOfWeek: uint32(f.Uint(GPSInfoTimeOfWeek)),
	}
	for i := range g.Satellites {
		g.Satellites[i] = SatInfo{PRN: f[gpsInfoSlotsOffset+2*i], Quality: f[gpsInfoSlotsOffset+2*i+1]}
	}
	return g
}

// BuildGPSInfo writes a complete GPSINFO block.
func BuildGPSInfo(f *Frame, g GPSInfo) {
	f.WriteBlockHeader(BlockGPSInfo)
	f.SetUint(GPSInfoWeek, uint64(g.Week))
	f.SetUint(GPSInfoTimeOfWeek, uint64(g.TimeOfWeek))
	for i, s := range g.Satellites {
		f[gpsInfoSlotsOffset+2*i] = s.PRN
		f[gpsInfoSlotsOffset+2*i+1] = s.Quality
	}
	f.SetCRC(BlockGPSInfo)
}

// RawObservation is one GPSRAW record.
type RawObservation struct {
	DeltaPR  int32 // cm above MinPR
	Velocity int32 // cm/s, 24-bit on the wire
}

var (
	rawDeltaPR  = Field{Kind: I32}
	rawVelocity = Field{Offset: 4, Kind: I24}
)

// GPSRaw is the decoded GPSRAW block. Records keeps the wire bytes so that
// end markers and unused slots survive a read/build cycle.
type GPSRaw struct {
	MinPR   uint32
	Records [GPSRawRecordsSize]byte
}

// Observation decodes record i.
func (g *GPSRaw) Observation(i int) RawObservation {
	rec := g.Records[i*GPSRawRecordSize:]
	return RawObservation{
		DeltaPR:  int32(rawDeltaPR.Int(rec)),
		Velocity: int32(rawVelocity.Int(rec)),
	}
}

// SetObservation encodes record i.
func (g *GPSRaw) SetObservation(i int, o RawObservation) {
	rec := g.Records[i*GPSRawRecordSize:]
	rawDeltaPR.SetInt(rec, int64(o.DeltaPR))
	rawVelocity.SetInt(rec, int64(o.Velocity))
}

// ReadGPSRaw decodes the GPSRAW block.
func ReadGPSRaw(f *Frame) GPSRaw {
	g := GPSRaw{MinPR: uint32(f.Uint(GPSRawMinPR))}
	copy(g.Records[:], f[gpsRawRecordsAt:gpsRawRecordsAt+GPSRawRecordsSize])
	return g
}

// BuildGPSRaw writes a complete GPSRAW block.
func BuildGPSRaw(f *Frame, g GPSRaw) {
	f.WriteBlockHeader(BlockGPSRaw)
	f.SetUint(GPSRawMinPR, uint64(g.MinPR))
	f[0x0BB] = 0xFF
	copy(f[gpsRawRecordsAt:], g.Records[:])
	f.SetCRC(BlockGPSRaw)
}

// GPSPos is the decoded GPSPOS block in metres and metres per second.
type GPSPos struct {
	X, Y, Z    float64
	VX, VY, VZ float64
	Satellites int
	SAcc       float64
	PDOP       float64
}

// ReadGPSPos decodes the GPSPOS block.
func ReadGPSPos(f *Frame) GPSPos {
	return GPSPos{
		X:          f.Float(GPSPosX),
		Y:          f.Float(GPSPosY),
		Z:          f.Float(GPSPosZ),
		VX:         f.Float(GPSPosVX),
		VY:         f.Float(GPSPosVY),
		VZ:         f.Float(GPSPosVZ),
		Satellites: int(f.Uint(GPSPosSatellites)),
		SAcc:       f.Float(GPSPosSAcc),
		PDOP:       f.Float(GPSPosPDOP),
	}
}

// BuildGPSPos writes a complete GPSPOS block.
func BuildGPSPos(f *Frame, p GPSPos) {
	f.WriteBlockHeader(BlockGPSPos)
	f.SetFloat(GPSPosX, p.X)
	f.SetFloat(GPSPosY, p.Y)
	f.SetFloat(GPSPosZ, p.Z)
	f.SetFloat(GPSPosVX, p.VX)
	f.SetFloat(GPSPosVY, p.VY)
	f.SetFloat(GPSPosVZ, p.VZ)
	f.SetUint(GPSPosSatellites, uint64(p.Satellites))
	f.SetFloat(GPSPosSAcc, p.SAcc)
	f.SetFloat(GPSPosPDOP, p.PDOP)
	f.SetCRC(BlockGPSPos)
}

// BuildEmpty writes the zero filled EMPTY block.
func BuildEmpty(f *Frame) {
	f.WriteBlockHeader(BlockEmpty)
	clear(f.Data(BlockEmpty))
	f.SetCRC(BlockEmpty)
}

// Content is everything needed to assemble a regular frame.
type Content struct {
	Status            Status
	Meas              Meas
	GPSInfo           GPSInfo
	GPSRaw            GPSRaw
	GPSPos            GPSPos
	HasPressureSensor bool
}

// BuildFrame assembles a regular frame from content, including block CRCs
// and Reed-Solomon parity.
func BuildFrame(c Content, table *SubframeTable) *Frame {
	f := new(Frame)
	f.BuildHeader(FrameTypeRegular)
	BuildStatus(f, c.Status, table)
	BuildMeas(f, c.Meas, c.HasPressureSensor)
	BuildGPSInfo(f, c.GPSInfo)
	BuildGPSRaw(f, c.GPSRaw)
	BuildGPSPos(f, c.GPSPos)
	BuildEmpty(f)
	EncodeReedSolomon(f)
	return f
}
