package calibration

import "math"

// g*M/R for dry air
const gMR = 9.80665 * 0.0289644 / 8.31446

type atmosphereLayer struct {
	base     float64 // m
	pressure float64 // hPa at base
	temp     float64 // K at base
	lapse    float64 // K/m
}

// Standard atmosphere layers, highest first.
var atmosphereLayers = []atmosphereLayer{
	{base: 32000, pressure: 8.6802, temp: 228.65, lapse: 0.0028},
	{base: 20000, pressure: 54.7489, temp: 216.65, lapse: 0.001},
	{base: 11000, pressure: 226.321, temp: 216.65, lapse: 0},
}

var seaLevel = atmosphereLayer{base: 0, pressure: 1013.25, temp: 288.15, lapse: -0.0065}

// AltitudeToPressure estimates ambient pressure in hPa from altitude in
// metres.
func AltitudeToPressure(altitude float64) float64 {
	l := seaLevel
	for _, layer := range atmosphereLayers {
		if altitude > layer.base {
			l = layer
			break
		}
	}
	if l.lapse == 0 {
		return l.pressure * math.Exp(-gMR*(altitude-l.base)/l.temp)
	}
	return l.pressure * math.Pow(1+l.lapse*(altitude-l.base)/l.temp, -gMR/l.lapse)
}

// VaporSaturationPressure returns the saturation pressure of water vapor
// over water in Pa (Hyland and Wexler).
func VaporSaturationPressure(celsius float64) float64 {
	t := celsius + 273.15
	return math.Exp(-5800.2206/t + 1.3914993 + 6.5459673*math.Log(t) -
		4.8640239e-2*t + 4.1764768e-5*t*t - 1.4452093e-8*t*t*t)
}
