package calibration

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rs41sim/internal/rs41"
)

func testThermistor() Thermistor {
	return Thermistor{
		RefRes:      [2]float64{750, 1100},
		Cal:         [3]float64{1.279928, -0.063965, 0},
		Pol:         [3]float64{-243.9108, 0.187654, 8.2e-06},
		CountOffset: ambientCountOffset,
	}
}

func testPressureSensor() PressureSensor {
	var p PressureSensor
	p.Coeff[24] = 1
	p.Coeff[4] = 500
	p.Coeff[5] = 0.5
	p.Coeff[8] = -10
	return p
}

func testHumiditySensor() HumiditySensor {
	var h HumiditySensor
	h.CapCoeff = [2]float64{40, 60}
	h.CalCoeff = [2]float64{45, 100}
	h.HeaterTempCoeff[0] = 10
	h.HeaterTempCoeff[6] = 2
	return h
}

// TestThermistorRoundTrip tests temperature inversion over the flight range
func TestThermistorRoundTrip(t *testing.T) {
	th := testThermistor()
	refs, err := th.Counts(15)
	require.NoError(t, err)

	for temp := -90.0; temp <= 60; temp += 7.5 {
		main, err := th.Main(temp, refs.Ref1, refs.Ref2)
		require.NoError(t, err)

		got, err := th.Temperature(rs41.Triple{Main: main, Ref1: refs.Ref1, Ref2: refs.Ref2})
		require.NoError(t, err)
		assert.InDelta(t, temp, got, 0.01, "temperature %.1f", temp)
	}
}

// TestThermistorCounts tests the empirical full triple model
func TestThermistorCounts(t *testing.T) {
	th := testThermistor()
	c, err := th.Counts(-40)
	require.NoError(t, err)
	assert.Equal(t, int(169.5*750+3160), c.Ref1)
	assert.Equal(t, int(169.5*1100+3160), c.Ref2)

	got, err := th.Temperature(c)
	require.NoError(t, err)
	assert.InDelta(t, -40, got, 0.01)

	heater := th
	heater.CountOffset = 0
	hc, err := heater.Counts(-40)
	require.NoError(t, err)
	assert.Equal(t, int(169.5*750), hc.Ref1)
	got, err = heater.Temperature(hc)
	require.NoError(t, err)
	assert.InDelta(t, -40, got, 0.01)
}

// TestThermistorDegenerate tests rejection of unusable inputs
func TestThermistorDegenerate(t *testing.T) {
	th := testThermistor()
	_, err := th.Temperature(rs41.Triple{Main: 1, Ref1: 5, Ref2: 5})
	assert.ErrorIs(t, err, ErrDegenerate)

	_, err = th.Main(-1e6, 100, 200)
	assert.ErrorIs(t, err, ErrDegenerate)

	var zero Thermistor
	_, err = zero.Counts(10)
	assert.ErrorIs(t, err, ErrDegenerate)
}

// TestPressureRoundTrip tests the secant inversion of the pressure model
func TestPressureRoundTrip(t *testing.T) {
	p := testPressureSensor()
	start := DefaultPressureCounts

	for _, target := range []float64{1013.25, 850, 500, 300, 120} {
		sol, err := p.Main(target, start, 21.5)
		require.NoError(t, err, "target %.1f", target)
		assert.True(t, sol.Converged)
		assert.LessOrEqual(t, sol.Iterations, DefaultMaxIterations)

		got, err := p.Pressure(rs41.Triple{Main: sol.Counts, Ref1: start.Ref1, Ref2: start.Ref2}, 21.5)
		require.NoError(t, err)
		assert.InEpsilon(t, target, got, 2e-4)
		assert.InDelta(t, got, sol.Value, 1e-9)
	}
}

// TestPressureNotConverged tests that the iteration cap is honored
func TestPressureNotConverged(t *testing.T) {
	p := testPressureSensor()
	p.MaxIterations = 1

	sol, err := p.Main(5, DefaultPressureCounts, 20)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotConverged))
	assert.False(t, sol.Converged)
	assert.NotZero(t, sol.Counts)
}

// TestAltitudeToPressure tests the standard atmosphere bands
func TestAltitudeToPressure(t *testing.T) {
	tests := []struct {
		altitude float64
		want     float64
	}{
		{altitude: 0, want: 1013.25},
		{altitude: 11000, want: 226.321},
		{altitude: 20000, want: 54.7489},
		{altitude: 32000, want: 8.6802},
		{altitude: 5000, want: 540.2},
	}
	for _, tt := range tests {
		assert.InDelta(t, tt.want, AltitudeToPressure(tt.altitude), 0.2, "altitude %.0f", tt.altitude)
	}

	// continuous across band edges
	for _, edge := range []float64{11000, 20000, 32000} {
		below := AltitudeToPressure(edge)
		above := AltitudeToPressure(edge + 1e-6)
		assert.InDelta(t, below, above, 0.05, "edge %.0f", edge)
	}
}

// TestVaporSaturationPressure tests known saturation pressures
func TestVaporSaturationPressure(t *testing.T) {
	assert.InDelta(t, 611.2, VaporSaturationPressure(0), 1)
	assert.InDelta(t, 2339, VaporSaturationPressure(20), 2)
	assert.Less(t, VaporSaturationPressure(-40), VaporSaturationPressure(-20))
}

// TestHumidityRoundTrip tests the secant inversion of the humidity model
func TestHumidityRoundTrip(t *testing.T) {
	h := testHumiditySensor()
	env := Conditions{Altitude: 3000, Temperature: -5, HeaterTemperature: -5}
	start := DefaultHumidityCounts

	for _, target := range []float64{5, 25, 50, 75, 95} {
		sol, err := h.Main(target, start, env)
		require.NoError(t, err, "target %.0f", target)

		got, err := h.Humidity(rs41.Triple{Main: sol.Counts, Ref1: start.Ref1, Ref2: start.Ref2}, env)
		require.NoError(t, err)
		assert.InDelta(t, target, got, 0.01)
	}
}

// TestHumidityClamp tests limiting to the physical range
func TestHumidityClamp(t *testing.T) {
	h := testHumiditySensor()
	env := Conditions{Temperature: 10, HeaterTemperature: 10}

	low, err := h.Humidity(rs41.Triple{Main: -10000000, Ref1: 479750, Ref2: 547300}, env)
	require.NoError(t, err)
	assert.Zero(t, low)

	high, err := h.Humidity(rs41.Triple{Main: 10000000, Ref1: 479750, Ref2: 547300}, env)
	require.NoError(t, err)
	assert.Equal(t, 100.0, high)
}

// TestHumidityPressureSource tests measured versus altitude derived pressure
func TestHumidityPressureSource(t *testing.T) {
	measured := Conditions{HasPressureSensor: true, Pressure: 700, Altitude: 0}
	assert.InDelta(t, 0.7, measured.pressureBar(), 1e-12)

	estimated := Conditions{Altitude: 0, Pressure: 700}
	assert.InDelta(t, 1.01325, estimated.pressureBar(), 1e-9)
}

func testTable() *rs41.SubframeTable {
	table := rs41.NewSubframeTable()
	th := testThermistor()
	table.SetFloats(rs41.SFTempRefRes, th.RefRes[:])
	table.SetFloats(rs41.SFTempCalCoeff, th.Cal[:])
	table.SetFloats(rs41.SFTempPolCoeff, th.Pol[:])
	table.SetFloats(rs41.SFHeaterTempCalCoeff, th.Cal[:])
	table.SetFloats(rs41.SFHeaterTempPolCoeff, th.Pol[:])
	table.SetPressureCalCoeff(testPressureSensor().Coeff)

	h := testHumiditySensor()
	table.SetFloats(rs41.SFRHCapCoeff, h.CapCoeff[:])
	table.SetFloats(rs41.SFHumidCalCoeff, h.CalCoeff[:])
	table.SetFloats(rs41.SFHumHeaterTempCalCoeff, h.HeaterTempCoeff[:])
	table.SetText(rs41.SFModel, rs41.ModelWithPressureSensor)
	return table
}

// TestCalibratorFrame tests frame level get and set of physical values
func TestCalibratorFrame(t *testing.T) {
	c := New(testTable())
	require.True(t, c.HasPressureSensor)

	f := new(rs41.Frame)
	f.SetFloat(rs41.MeasPressureSensorTmp, 18.25)

	require.NoError(t, c.SetTemperature(f, -21.5))
	require.NoError(t, c.SetMainTemperature(f, -22.75))
	temp, err := c.Temperature(f)
	require.NoError(t, err)
	assert.InDelta(t, -22.75, temp, 0.01)

	require.NoError(t, c.SetHeaterTemperature(f, -18))
	require.NoError(t, c.SetMainHeaterTemperature(f, -17))
	heater, err := c.HeaterTemperature(f)
	require.NoError(t, err)
	assert.InDelta(t, -17, heater, 0.01)

	_, err = c.SetPressure(f, 640)
	require.NoError(t, err)
	_, err = c.SetMainPressure(f, 610)
	require.NoError(t, err)
	p, err := c.PressureValue(f)
	require.NoError(t, err)
	assert.InEpsilon(t, 610, p, 2e-4)
	assert.Equal(t, DefaultPressureCounts.Ref1, f.Triple(rs41.MeasPressure).Ref1)

	env, err := c.Conditions(f, 4000)
	require.NoError(t, err)
	assert.InEpsilon(t, 610, env.Pressure, 2e-4)

	_, err = c.SetHumidity(f, 40, env)
	require.NoError(t, err)
	_, err = c.SetMainHumidity(f, 60, env)
	require.NoError(t, err)
	rh, err := c.HumidityValue(f, env)
	require.NoError(t, err)
	assert.InDelta(t, 60, rh, 0.01)
	assert.False(t, math.IsNaN(rh))
}
