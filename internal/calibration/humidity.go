package calibration

import (
	"fmt"

	"rs41sim/internal/rs41"
)

// Humidity counts written when a frame carries no usable humidity
// measurement to start from.
var DefaultHumidityCounts = rs41.Triple{Main: 551851, Ref1: 479750, Ref2: 547300}

// HumiditySensor is the capacitive humidity model with pressure and
// heater temperature corrections.
type HumiditySensor struct {
	CapCoeff          [2]float64
	CalCoeff          [2]float64
	PressureCoeff     [3]float64
	PressureTempCoeff [12]float64
	HeaterTempCoeff   [42]float64
	MaxIterations     int
}

// Conditions are the environmental inputs of the humidity model.
// Pressure (hPa) is used when HasPressureSensor is set, otherwise it is
// estimated from Altitude (m).
type Conditions struct {
	Pressure          float64
	HasPressureSensor bool
	Altitude          float64
	Temperature       float64
	HeaterTemperature float64
}

func (c Conditions) pressureBar() float64 {
	if c.HasPressureSensor {
		return c.Pressure / 1000
	}
	return AltitudeToPressure(c.Altitude) / 1000
}

// NewHumiditySensor reads the humidity coefficients from the table.
func NewHumiditySensor(t *rs41.SubframeTable) HumiditySensor {
	var h HumiditySensor
	copy(h.CapCoeff[:], t.Floats(rs41.SFRHCapCoeff))
	copy(h.CalCoeff[:], t.Floats(rs41.SFHumidCalCoeff))
	copy(h.PressureCoeff[:], t.Floats(rs41.SFHumCPressureCalCoeff))
	copy(h.PressureTempCoeff[:], t.Floats(rs41.SFHumCPressureTempCalCoef))
	copy(h.HeaterTempCoeff[:], t.Floats(rs41.SFHumHeaterTempCalCoeff))
	return h
}

func (h HumiditySensor) eval(main, ref1, ref2 float64, env Conditions) float64 {
	p := env.pressureBar()

	cfh := (main - ref1) / (ref2 - ref1)
	capacitance := h.CapCoeff[0] + (h.CapCoeff[1]-h.CapCoeff[0])*cfh
	cp := (capacitance/h.CalCoeff[0] - 1) * h.CalCoeff[1]

	var bp [3]float64
	cpj := 1.0
	for j := range bp {
		k := h.PressureCoeff[j]
		bp[j] = k * (p/(1+k*p) - cpj/(1+k))
		cpj *= cp
	}

	var b [6]float64
	tn := (env.HeaterTemperature - 20) / 180
	bk := 1.0
	for k := range b {
		b[k] = bk
		bk *= tn
	}

	var corr float64
	for j := range bp {
		var bt float64
		for k := 0; k < 4; k++ {
			bt += h.PressureTempCoeff[4*j+k] * b[k]
		}
		corr += bp[j] * bt
	}
	cp -= corr

	var rh float64
	aj := 1.0
	for j := 0; j < 7; j++ {
		for k := range b {
			rh += aj * b[k] * h.HeaterTempCoeff[6*j+k]
		}
		aj *= cp
	}

	rh *= VaporSaturationPressure(env.HeaterTemperature) / VaporSaturationPressure(env.Temperature)
	return min(max(rh, 0), 100)
}

// Humidity converts counts to relative humidity in percent, clamped to
// 0..100.
func (h HumiditySensor) Humidity(c rs41.Triple, env Conditions) (float64, error) {
	if c.Ref1 == c.Ref2 || h.CalCoeff[0] == 0 {
		return 0, fmt.Errorf("%w: humidity references %+v", ErrDegenerate, c)
	}
	return h.eval(float64(c.Main), float64(c.Ref1), float64(c.Ref2), env), nil
}

// Main finds the main count that reads as target percent, starting the
// search at the current main count.
func (h HumiditySensor) Main(target float64, c rs41.Triple, env Conditions) (Solution, error) {
	if c.Ref1 == c.Ref2 || h.CalCoeff[0] == 0 {
		return Solution{}, fmt.Errorf("%w: humidity references %+v", ErrDegenerate, c)
	}
	ref1, ref2 := float64(c.Ref1), float64(c.Ref2)
	return secant(target, float64(c.Main), h.MaxIterations, func(main float64) float64 {
		return h.eval(main, ref1, ref2, env)
	})
}
