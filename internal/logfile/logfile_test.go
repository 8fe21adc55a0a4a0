package logfile

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rs41sim/internal/gps"
	"rs41sim/internal/rs41"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testFrame(fn, sf int, alt float64, descent bool) *rs41.Frame {
	pos := gps.GeodeticToECEF(gps.Geodetic{Lat: 32, Lon: 34.8, Alt: alt})
	c := rs41.Content{
		Status: rs41.Status{
			FrameNumber:  fn,
			Serial:       "S1340533",
			FlightMode:   true,
			Descent:      descent,
			LastSubframe: 50,
			Subframe:     sf,
		},
		GPSPos: rs41.GPSPos{X: pos.X, Y: pos.Y, Z: pos.Z, Satellites: 8},
	}
	for i := range c.Status.SubframeData {
		c.Status.SubframeData[i] = byte(sf)
	}
	return rs41.BuildFrame(c, nil)
}

func logText(frames []*rs41.Frame) string {
	var b strings.Builder
	for _, f := range frames {
		b.WriteString(f.Hex())
		b.WriteString("\n")
	}
	return b.String()
}

// TestParse tests reading of hex records
func TestParse(t *testing.T) {
	f := testFrame(100, 3, 1000, false)
	text := f.Hex() + "\n\n   \nzz 01 02\n" + "86  35\tf4\n"

	l, err := Parse(strings.NewReader(text), "test", quietLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())

	got, err := l.Frame(0)
	require.NoError(t, err)
	assert.Equal(t, f.Bytes(), got.Bytes())

	assert.Nil(t, l.Record(1))
	assert.Equal(t, []byte{0x86, 0x35, 0xF4}, l.Record(2))

	short, err := l.Frame(2)
	require.NoError(t, err)
	assert.Equal(t, byte(0xF4), short[2])
	assert.Zero(t, short[3])

	_, err = l.Frame(3)
	assert.Error(t, err)
}

// TestParseEmpty tests that a log without records is rejected
func TestParseEmpty(t *testing.T) {
	_, err := Parse(strings.NewReader("\n  \n"), "empty", quietLogger())
	assert.ErrorIs(t, err, ErrEmptyLog)
}

// TestOpen tests reading a log from disk
func TestOpen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "RS41-SGP flight.txt")
	frames := []*rs41.Frame{testFrame(1, 0, 10, false), testFrame(2, 1, 20, false)}
	require.NoError(t, os.WriteFile(path, []byte(logText(frames)), 0o644))

	l, err := Open(path, quietLogger())
	require.NoError(t, err)
	assert.Equal(t, "RS41-SGP flight.txt", l.Name)
	assert.Equal(t, 2, l.Len())

	_, err = Open(filepath.Join(dir, "missing.txt"), quietLogger())
	assert.ErrorIs(t, err, os.ErrNotExist)
}

// TestLoadSubframeData tests assembly of the subframe table from a log
func TestLoadSubframeData(t *testing.T) {
	var frames []*rs41.Frame
	for i := 0; i < 60; i++ {
		frames = append(frames, testFrame(1000+i, i%51, 100, false))
	}
	text := logText(frames)
	lines := strings.Split(text, "\n")
	lines[3] = "xx"
	l, err := Parse(strings.NewReader(strings.Join(lines, "\n")), "subframes", quietLogger())
	require.NoError(t, err)

	// a few byte errors are repaired before the STATUS check
	damaged := l.Record(5)
	damaged[0x050] ^= 0xFF
	damaged[0x058] ^= 0x0F

	table := rs41.NewSubframeTable()
	ok, next := l.LoadSubframeData(table, 51)
	assert.True(t, ok)
	assert.Equal(t, 55, next)
	assert.Equal(t, byte(5), table.Bytes()[5*rs41.SubframeSize])
	assert.Equal(t, byte(3), table.Bytes()[3*rs41.SubframeSize])

	short, err := Parse(strings.NewReader(logText(frames[:10])), "short", quietLogger())
	require.NoError(t, err)
	table = rs41.NewSubframeTable()
	ok, next = short.LoadSubframeData(table, 51)
	assert.False(t, ok)
	assert.Equal(t, 10, next)
	assert.Equal(t, 10, table.SeenCount())
}

// TestParseCriteria tests criteria names
func TestParseCriteria(t *testing.T) {
	tests := []struct {
		name    string
		want    Criteria
		wantErr bool
	}{
		{name: "GPSAltitude>", want: Criteria{Kind: AltitudeAbove, Value: 20000}},
		{name: "gpsaltitude<", want: Criteria{Kind: AltitudeBelow, Value: 20000}},
		{name: "UponDescent", want: Criteria{Kind: UponDescent}},
		{name: "Pressure>", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseCriteria(tt.name, 20000)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, "GPSAltitude>20000", Criteria{Kind: AltitudeAbove, Value: 20000}.String())
}

// TestFindCriteria tests first match search over a log
func TestFindCriteria(t *testing.T) {
	var frames []*rs41.Frame
	for i := 0; i < 12; i++ {
		frames = append(frames, testFrame(i, i, float64(i)*1000, i >= 8))
	}
	l, err := Parse(strings.NewReader(logText(frames)), "criteria", quietLogger())
	require.NoError(t, err)

	tests := []struct {
		name      string
		criteria  Criteria
		wantMet   bool
		wantIndex int
	}{
		{name: "above", criteria: Criteria{Kind: AltitudeAbove, Value: 5500}, wantMet: true, wantIndex: 6},
		{name: "below", criteria: Criteria{Kind: AltitudeBelow, Value: 500}, wantMet: true, wantIndex: 0},
		{name: "descent", criteria: Criteria{Kind: UponDescent}, wantMet: true, wantIndex: 8},
		{name: "never", criteria: Criteria{Kind: AltitudeAbove, Value: 50000}, wantMet: false, wantIndex: 11},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			met, index := l.FindCriteria(tt.criteria)
			assert.Equal(t, tt.wantMet, met)
			assert.Equal(t, tt.wantIndex, index)
		})
	}
}

// TestMatchNeedsValidBlocks tests that corrupted blocks never match
func TestMatchNeedsValidBlocks(t *testing.T) {
	f := testFrame(1, 0, 30000, true)
	assert.InDelta(t, 30000, Altitude(f), 0.05)

	f[rs41.GPSPosX.Offset] ^= 0x01
	assert.False(t, Criteria{Kind: AltitudeAbove, Value: 100}.Match(f))

	f[rs41.StatusSerial.Offset] ^= 0x01
	assert.False(t, Criteria{Kind: UponDescent}.Match(f))
}
