package calibration

import (
	"fmt"

	"rs41sim/internal/rs41"
)

// Pressure counts written when a frame carries no usable pressure
// measurement to start from.
var DefaultPressureCounts = rs41.Triple{Main: 363743, Ref1: 294608, Ref2: 423151}

// PressureSensor is the 6x4 polynomial pressure model.
type PressureSensor struct {
	Coeff         [rs41.PressureCoeffCount]float64
	MaxIterations int
}

// NewPressureSensor reads the pressure coefficients from the table.
func NewPressureSensor(t *rs41.SubframeTable) PressureSensor {
	return PressureSensor{Coeff: t.PressureCalCoeff()}
}

func (p PressureSensor) eval(main, ref1, ref2, sensorTemp float64) float64 {
	a0 := p.Coeff[24] / ((main - ref1) / (ref2 - ref1))
	a1 := sensorTemp

	var sum float64
	a0j := 1.0
	for j := 0; j < 6; j++ {
		a1k := 1.0
		for k := 0; k < 4; k++ {
			sum += a0j * a1k * p.Coeff[4*j+k]
			a1k *= a1
		}
		a0j *= a0
	}
	return sum
}

// Pressure converts counts and the sensor temperature to hPa.
func (p PressureSensor) Pressure(c rs41.Triple, sensorTemp float64) (float64, error) {
	if c.Ref1 == c.Ref2 || c.Main == c.Ref1 {
		return 0, fmt.Errorf("%w: pressure counts %+v", ErrDegenerate, c)
	}
	return p.eval(float64(c.Main), float64(c.Ref1), float64(c.Ref2), sensorTemp), nil
}

// Main finds the main count that reads as target hPa, starting the search at
// the current main count.
func (p PressureSensor) Main(target float64, c rs41.Triple, sensorTemp float64) (Solution, error) {
	if c.Ref1 == c.Ref2 {
		return Solution{}, fmt.Errorf("%w: equal pressure references", ErrDegenerate)
	}
	ref1, ref2 := float64(c.Ref1), float64(c.Ref2)
	return secant(target, float64(c.Main), p.MaxIterations, func(main float64) float64 {
		return p.eval(main, ref1, ref2, sensorTemp)
	})
}
