package rs41

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleContent() Content {
	c := Content{
		Status: Status{
			FrameNumber:    4321,
			Serial:         "S3140123",
			BatteryVoltage: 2.9,
			FlightMode:     true,
			CryptoMode:     0,
			PCBTemperature: -12,
			HeatingPWM:     12.5,
			TxPower:        7,
			LastSubframe:   0x32,
			Subframe:       0x21,
		},
		Meas: Meas{
			Temperature:               Triple{Main: 389210, Ref1: 334000, Ref2: 471000},
			Humidity:                  Triple{Main: 551851, Ref1: 479750, Ref2: 547300},
			HeaterTemperature:         Triple{Main: 401000, Ref1: 334000, Ref2: 471000},
			Pressure:                  Triple{Main: 363743, Ref1: 294608, Ref2: 423151},
			PressureSensorTemperature: 21.37,
		},
		GPSInfo: GPSInfo{Week: 2281, TimeOfWeek: 302400000},
		GPSPos: GPSPos{
			X: 4433265.12, Y: 3035010.55, Z: 3384721.30,
			VX: -1.25, VY: 3.5, VZ: 5.01,
			Satellites: 9, SAcc: 1.2, PDOP: 1.7,
		},
		HasPressureSensor: true,
	}
	c.GPSInfo.Satellites[0] = SatInfo{PRN: 5, Quality: 0xE8}
	c.GPSRaw.MinPR = 20123456
	c.GPSRaw.SetObservation(0, RawObservation{DeltaPR: 123456, Velocity: -4567})
	return c
}

// TestBuildFrame tests assembly of a complete regular frame
func TestBuildFrame(t *testing.T) {
	f := BuildFrame(sampleContent(), nil)

	assert.True(t, f.HasHeader())
	assert.Equal(t, byte(FrameTypeRegular), f.FrameType())
	for _, b := range Blocks {
		t.Run(b.Name, func(t *testing.T) {
			assert.Equal(t, b.ID, f[b.Offset])
			assert.Equal(t, byte(b.Length), f[b.Offset+1])
			assert.True(t, f.CheckCRC(b))
		})
	}

	res := DecodeReedSolomon(f)
	assert.True(t, res.Recovered())
	assert.Zero(t, res.Corrected())
}

// TestBlockRoundTrip tests that reading a built frame yields the input
func TestBlockRoundTrip(t *testing.T) {
	c := sampleContent()
	f := BuildFrame(c, nil)

	st := ReadStatus(f)
	assert.Equal(t, c.Status.FrameNumber, st.FrameNumber)
	assert.Equal(t, c.Status.Serial, st.Serial)
	assert.InDelta(t, c.Status.BatteryVoltage, st.BatteryVoltage, 1e-9)
	assert.True(t, st.FlightMode)
	assert.False(t, st.Descent)
	assert.Equal(t, -12, st.PCBTemperature)
	assert.InDelta(t, 12.5, st.HeatingPWM, 1e-9)
	assert.Equal(t, 0x32, st.LastSubframe)
	assert.Equal(t, 0x21, st.Subframe)

	assert.Equal(t, c.Meas, ReadMeas(f))
	assert.Equal(t, c.GPSInfo, ReadGPSInfo(f))

	raw := ReadGPSRaw(f)
	assert.Equal(t, c.GPSRaw.MinPR, raw.MinPR)
	assert.Equal(t, RawObservation{DeltaPR: 123456, Velocity: -4567}, raw.Observation(0))
	assert.Equal(t, byte(0xFF), f[0x0BB])

	pos := ReadGPSPos(f)
	assert.InDelta(t, c.GPSPos.X, pos.X, 1e-6)
	assert.InDelta(t, c.GPSPos.Y, pos.Y, 1e-6)
	assert.InDelta(t, c.GPSPos.Z, pos.Z, 1e-6)
	assert.InDelta(t, c.GPSPos.VX, pos.VX, 1e-9)
	assert.InDelta(t, c.GPSPos.VZ, pos.VZ, 1e-9)
	assert.Equal(t, 9, pos.Satellites)
	assert.InDelta(t, 1.7, pos.PDOP, 1e-9)
}

// TestBuildMeasWithoutPressureSensor tests that non-SGP sondes carry zero pressure
func TestBuildMeasWithoutPressureSensor(t *testing.T) {
	c := sampleContent()
	c.HasPressureSensor = false
	f := BuildFrame(c, nil)

	assert.Equal(t, Triple{}, ReadMeas(f).Pressure)
	assert.True(t, f.CheckCRC(BlockMeas))
}

// TestBuildStatusFromTable tests that subframe bytes come from the table slot
func TestBuildStatusFromTable(t *testing.T) {
	table := NewSubframeTable()
	slot := []byte("0123456789ABCDEF")
	require.NoError(t, table.LoadSlice(0x21, slot))

	f := BuildFrame(sampleContent(), table)
	assert.Equal(t, slot, f.SubframeBytes())
	assert.True(t, f.CheckCRC(BlockStatus))
}

// TestCRCDetectsBitFlips tests single bit corruption detection in every block
func TestCRCDetectsBitFlips(t *testing.T) {
	rng := rand.New(rand.NewSource(41))
	base := BuildFrame(sampleContent(), nil)

	for _, b := range Blocks {
		t.Run(b.Name, func(t *testing.T) {
			missed := 0
			for i := 0; i < 1000; i++ {
				f := base.Clone()
				pos := b.DataStart() + rng.Intn(b.Length)
				f[pos] ^= 1 << uint(rng.Intn(8))
				if f.CheckCRC(b) {
					missed++
				}
			}
			assert.Zero(t, missed)
		})
	}
}

// TestFrameFromBytes tests raw frame loading
func TestFrameFromBytes(t *testing.T) {
	_, err := FrameFromBytes(make([]byte, 100))
	assert.ErrorIs(t, err, ErrShortFrame)

	src := BuildFrame(sampleContent(), nil)
	f, err := FrameFromBytes(src.Bytes())
	require.NoError(t, err)
	assert.Equal(t, src.Bytes(), f.Bytes())
	assert.Len(t, f.Hex(), FrameLength*3-1)
}
