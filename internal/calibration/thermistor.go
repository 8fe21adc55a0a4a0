package calibration

import (
	"fmt"
	"math"

	"rs41sim/internal/rs41"
)

// Empirical count model used when a frame's reference counts are replaced
// as well as the main count.
const (
	countsPerOhm         = 169.5
	ambientCountOffset   = 3160
	nominalThermistorOhm = 1000
)

// Thermistor models a platinum resistance sensor measured against two
// reference resistors.
type Thermistor struct {
	RefRes      [2]float64
	Cal         [3]float64
	Pol         [3]float64
	CountOffset float64
}

// AmbientThermistor reads the air temperature sensor coefficients.
func AmbientThermistor(t *rs41.SubframeTable) Thermistor {
	th := Thermistor{CountOffset: ambientCountOffset}
	copy(th.RefRes[:], t.Floats(rs41.SFTempRefRes))
	copy(th.Cal[:], t.Floats(rs41.SFTempCalCoeff))
	copy(th.Pol[:], t.Floats(rs41.SFTempPolCoeff))
	return th
}

// HeaterThermistor reads the humidity sensor heater coefficients. The
// heater shares the reference resistors of the air sensor.
func HeaterThermistor(t *rs41.SubframeTable) Thermistor {
	var th Thermistor
	copy(th.RefRes[:], t.Floats(rs41.SFTempRefRes))
	copy(th.Cal[:], t.Floats(rs41.SFHeaterTempCalCoeff))
	copy(th.Pol[:], t.Floats(rs41.SFHeaterTempPolCoeff))
	return th
}

// scale returns counts per ohm and the count-domain resistance offset
// derived from the two reference measurements.
func (th Thermistor) scale(ref1, ref2 float64) (ratio, offset float64, err error) {
	if ref2 == ref1 || th.RefRes[1] == th.RefRes[0] {
		return 0, 0, fmt.Errorf("%w: equal temperature references", ErrDegenerate)
	}
	ratio = (ref2 - ref1) / (th.RefRes[1] - th.RefRes[0])
	offset = (ref1*th.RefRes[1] - ref2*th.RefRes[0]) / (ref2 - ref1)
	return ratio, offset, nil
}

// Temperature converts counts to degrees Celsius.
func (th Thermistor) Temperature(c rs41.Triple) (float64, error) {
	ratio, rb, err := th.scale(float64(c.Ref1), float64(c.Ref2))
	if err != nil {
		return 0, err
	}
	rc := float64(c.Main)/ratio - rb
	r := rc * th.Cal[0]
	return (th.Pol[0] + th.Pol[1]*r + th.Pol[2]*r*r + th.Cal[1]) * (1 + th.Cal[2]), nil
}

// resistance returns the sensor resistance that reads as temp, picking the
// quadratic root closest to the nominal 1000 ohm.
func (th Thermistor) resistance(temp float64) (float64, error) {
	if th.Cal[0] == 0 {
		return 0, fmt.Errorf("%w: zero resistance calibration", ErrDegenerate)
	}
	c := th.Pol[0] + th.Cal[1] - temp/(1+th.Cal[2])
	if th.Pol[2] == 0 {
		if th.Pol[1] == 0 {
			return 0, fmt.Errorf("%w: constant temperature polynomial", ErrDegenerate)
		}
		return -c / th.Pol[1] / th.Cal[0], nil
	}
	disc := th.Pol[1]*th.Pol[1] - 4*th.Pol[2]*c
	if disc < 0 {
		return 0, fmt.Errorf("%w: %.2f C has no real resistance", ErrDegenerate, temp)
	}
	sq := math.Sqrt(disc)
	rc1 := (-th.Pol[1] + sq) / (2 * th.Pol[2]) / th.Cal[0]
	rc2 := (-th.Pol[1] - sq) / (2 * th.Pol[2]) / th.Cal[0]
	if math.Abs(rc1-nominalThermistorOhm) < math.Abs(rc2-nominalThermistorOhm) {
		return rc1, nil
	}
	return rc2, nil
}

// Main returns the main count that reads as temp with the given reference
// counts.
func (th Thermistor) Main(temp float64, ref1, ref2 int) (int, error) {
	rc, err := th.resistance(temp)
	if err != nil {
		return 0, err
	}
	ratio, rb, err := th.scale(float64(ref1), float64(ref2))
	if err != nil {
		return 0, err
	}
	return int((rc + rb) * ratio), nil
}

// Counts synthesizes a full count triple for temp from the empirical
// counts-per-ohm model.
func (th Thermistor) Counts(temp float64) (rs41.Triple, error) {
	rc, err := th.resistance(temp)
	if err != nil {
		return rs41.Triple{}, err
	}
	return rs41.Triple{
		Main: int(countsPerOhm*rc + th.CountOffset),
		Ref1: int(countsPerOhm*th.RefRes[0] + th.CountOffset),
		Ref2: int(countsPerOhm*th.RefRes[1] + th.CountOffset),
	}, nil
}
