package rs41

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestFieldIntegerRoundTrip tests raw round trips at the kind boundaries
func TestFieldIntegerRoundTrip(t *testing.T) {
	tests := []struct {
		name   string
		kind   Kind
		values []int64
	}{
		{name: "u8", kind: U8, values: []int64{0, 1, 255}},
		{name: "i8", kind: I8, values: []int64{-128, -1, 0, 127}},
		{name: "u16", kind: U16, values: []int64{0, 0x1234, 65535}},
		{name: "i16", kind: I16, values: []int64{-32768, -1, 32767}},
		{name: "u24", kind: U24, values: []int64{0, 0xABCDEF, 1<<24 - 1}},
		{name: "i24", kind: I24, values: []int64{-1 << 23, -1, 1<<23 - 1}},
		{name: "u32", kind: U32, values: []int64{0, 1<<32 - 1}},
		{name: "i32", kind: I32, values: []int64{-1 << 31, -1, 1<<31 - 1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, 8)
			fd := Field{Offset: 2, Kind: tt.kind}
			for _, v := range tt.values {
				fd.SetInt(buf, v)
				assert.Equal(t, v, fd.Int(buf))
			}
			assert.Zero(t, buf[0])
			assert.Zero(t, buf[1])
		})
	}
}

// TestFieldSaturates tests clamping of out of range writes
func TestFieldSaturates(t *testing.T) {
	buf := make([]byte, 4)
	fd := Field{Kind: I16}
	fd.SetInt(buf, 40000)
	assert.Equal(t, int64(32767), fd.Int(buf))
	fd.SetInt(buf, -40000)
	assert.Equal(t, int64(-32768), fd.Int(buf))

	u := Field{Kind: U8}
	u.SetInt(buf, -3)
	assert.Equal(t, uint64(0), u.Uint(buf))
}

// TestFieldScaled tests fixed point conversions
func TestFieldScaled(t *testing.T) {
	buf := make([]byte, SubframeTableSize)

	GPSPosVX.SetFloat(buf, -327.68)
	assert.InDelta(t, -327.68, GPSPosVX.Float(buf), 1e-9)

	SFTxFrequency.SetFloat(buf, 405.1)
	assert.Equal(t, uint64(32640), SFTxFrequency.Uint(buf))
	assert.InDelta(t, 405.1, SFTxFrequency.Float(buf), 1e-9)

	SFLaunchSiteEarthRadius.SetFloat(buf, 6371008-250)
	assert.Equal(t, int64(-250), SFLaunchSiteEarthRadius.Int(buf))
	assert.InDelta(t, 6371008-250, SFLaunchSiteEarthRadius.Float(buf), 1e-9)

	SFBatteryCapacity.SetFloat(buf, 1230)
	assert.Equal(t, int64(123), SFBatteryCapacity.Int(buf))

	// rounding to the nearest step
	StatusBattery.SetFloat(buf, 2.96)
	assert.Equal(t, uint64(30), StatusBattery.Uint(buf))
}

// TestFieldFloatArray tests f32 array access
func TestFieldFloatArray(t *testing.T) {
	buf := make([]byte, SubframeTableSize)
	in := []float64{1.5, -2.25, 1e-3}
	SFTempPolCoeff.SetFloats(buf, in)

	out := SFTempPolCoeff.Floats(buf)
	assert.Len(t, out, 3)
	for i := range in {
		assert.InDelta(t, in[i], out[i], 1e-7)
	}
	assert.Equal(t, 12, SFTempPolCoeff.Size())
	assert.Equal(t, 0x059, SFTempPolCoeff.End())
}

// TestFieldString tests padded character fields
func TestFieldString(t *testing.T) {
	buf := make([]byte, 32)
	fd := Field{Offset: 4, Kind: Chars, Count: 8}

	fd.SetString(buf, "ABCDEFGHIJ")
	assert.Equal(t, "ABCDEFGH", fd.String(buf))

	fd.SetString(buf, "N12")
	assert.Equal(t, "N12", fd.String(buf))
	assert.Equal(t, make([]byte, 5), buf[7:12])
}

// TestFieldOverlap tests intersection with a subframe slot
func TestFieldOverlap(t *testing.T) {
	from, to, ok := SFModel.Overlap(0x210, 0x220)
	assert.True(t, ok)
	assert.Equal(t, 0, from)
	assert.Equal(t, 8, to)

	from, to, ok = SFModel.Overlap(0x220, 0x230)
	assert.True(t, ok)
	assert.Equal(t, 8, from)
	assert.Equal(t, 10, to)

	_, _, ok = SFModel.Overlap(0x230, 0x240)
	assert.False(t, ok)
}
