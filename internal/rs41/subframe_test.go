package rs41

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func frameAtSubframe(sf int) *Frame {
	f := new(Frame)
	f.SetSubframe(sf)
	return f
}

// TestSubframeTableCompleteness tests that completion happens exactly once every slot is seen
func TestSubframeTableCompleteness(t *testing.T) {
	table := NewSubframeTable()
	last := SubframeEntries - 1

	for sf := 0; sf <= last; sf++ {
		assert.False(t, table.Complete(last), "complete before slot %d", sf)
		f := frameAtSubframe(sf)
		copy(f.SubframeBytes(), []byte{byte(sf), 0xAA})
		require.NoError(t, table.Load(f))
	}
	assert.True(t, table.Complete(last))
	assert.Empty(t, table.Missing(last))
	assert.Equal(t, SubframeEntries, table.SeenCount())
	assert.Equal(t, byte(0x20), table.Bytes()[0x20*SubframeSize])

	// repeated slots do not change completion, newer values win
	f := frameAtSubframe(3)
	copy(f.SubframeBytes(), []byte{0x55})
	require.NoError(t, table.Load(f))
	assert.True(t, table.Complete(last))
	assert.Equal(t, byte(0x55), table.Bytes()[3*SubframeSize])
}

// TestSubframeTableMissing tests reporting of unseen slots
func TestSubframeTableMissing(t *testing.T) {
	table := NewSubframeTable()
	for _, sf := range []int{0, 1, 3} {
		require.NoError(t, table.LoadSlice(sf, make([]byte, SubframeSize)))
	}
	assert.Equal(t, []int{2, 4}, table.Missing(4))
	assert.True(t, table.Complete(1))
	assert.Error(t, table.LoadSlice(SubframeEntries, nil))
}

// TestSubframeTableApply tests copying a slot back into a frame
func TestSubframeTableApply(t *testing.T) {
	table := NewSubframeTable()
	require.NoError(t, table.LoadSlice(7, []byte("abcdefghijklmnop")))

	f := new(Frame)
	table.Apply(7, f)
	assert.Equal(t, []byte("abcdefghijklmnop"), f.SubframeBytes())
}

// TestPressureCalCoeff tests the grouped coefficient layout
func TestPressureCalCoeff(t *testing.T) {
	table := NewSubframeTable()
	var in [PressureCoeffCount]float64
	for i := range in {
		in[i] = float64(i) + 0.5
	}
	table.SetPressureCalCoeff(in)

	out := table.PressureCalCoeff()
	for i := range out {
		if _, stored := pressureCoeffOffsets[i]; stored {
			assert.Equal(t, in[i], out[i], "coefficient %d", i)
		} else {
			assert.Zero(t, out[i], "coefficient %d", i)
		}
	}
	assert.Zero(t, out[15])
	assert.Equal(t, 24.5, out[24])
}

// TestSetInMessage tests writing table fields into the matching subframe slot
func TestSetInMessage(t *testing.T) {
	t.Run("tx frequency only in slot 0", func(t *testing.T) {
		f := frameAtSubframe(0)
		assert.True(t, SetFloatInMessage(SFTxFrequency, 404.0, f))
		assert.Equal(t, uint16(25600), binary.LittleEndian.Uint16(f[0x055:]))

		other := frameAtSubframe(1)
		assert.False(t, SetFloatInMessage(SFTxFrequency, 404.0, other))
		assert.Equal(t, make([]byte, SubframeSize), other.SubframeBytes())
	})

	t.Run("firmware in slot 1", func(t *testing.T) {
		f := frameAtSubframe(1)
		assert.True(t, SetUintInMessage(SFFirmwareVersion, 20904, f))
		assert.Equal(t, uint16(20904), binary.LittleEndian.Uint16(f[0x058:]))
	})

	t.Run("model split over slots 0x21 and 0x22", func(t *testing.T) {
		f := frameAtSubframe(0x21)
		assert.True(t, SetTextInMessage(SFModel, "RS41-SGP", f))
		assert.Equal(t, []byte("RS41-SGP"), f[0x05B:0x063])

		f = frameAtSubframe(0x22)
		f[0x053], f[0x054] = 0xEE, 0xEE
		assert.True(t, SetTextInMessage(SFModel, "RS41-SGP", f))
		assert.Equal(t, []byte{0, 0}, f[0x053:0x055])
	})

	t.Run("mainboard serial split over slots 0x22 and 0x23", func(t *testing.T) {
		f := frameAtSubframe(0x22)
		assert.True(t, SetTextInMessage(SFMainboardSerial, "P2710455X", f))
		assert.Equal(t, []byte("P271"), f[0x05F:0x063])

		f = frameAtSubframe(0x23)
		assert.True(t, SetTextInMessage(SFMainboardSerial, "P2710455X", f))
		assert.Equal(t, []byte("0455X"), f[0x053:0x058])
	})

	t.Run("pressure serial in slot 0x24", func(t *testing.T) {
		f := frameAtSubframe(0x24)
		assert.True(t, SetTextInMessage(SFPressureSerial, "S2345678", f))
		assert.Equal(t, []byte("S2345678"), f[0x056:0x05E])
	})

	t.Run("launch site radius in slot 0x32", func(t *testing.T) {
		f := frameAtSubframe(0x32)
		assert.True(t, SetFloatInMessage(SFLaunchSiteEarthRadius, 6371008+100, f))
		assert.Equal(t, uint16(100), binary.LittleEndian.Uint16(f[0x055:]))
	})
}

// TestSubframeTableModel tests model detection
func TestSubframeTableModel(t *testing.T) {
	table := NewSubframeTable()
	table.SetText(SFModel, "RS41-SG")
	assert.Equal(t, "RS41-SG", table.Model())
	assert.False(t, table.HasPressureSensor())

	table.SetText(SFModel, ModelWithPressureSensor)
	assert.True(t, table.HasPressureSensor())
}
