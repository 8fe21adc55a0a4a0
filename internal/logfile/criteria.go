package logfile

import (
	"fmt"
	"strings"

	"rs41sim/internal/gps"
	"rs41sim/internal/rs41"
)

// CriteriaKind selects what a Criteria tests.
type CriteriaKind int

// Criteria kinds
const (
	AltitudeAbove CriteriaKind = iota
	AltitudeBelow
	UponDescent
)

// Criteria is a trigger condition evaluated against single frames.
type Criteria struct {
	Kind  CriteriaKind
	Value float64 // metres, altitude kinds only
}

// ParseCriteria accepts "GPSAltitude>", "GPSAltitude<" and "UponDescent",
// case insensitive.
func ParseCriteria(name string, value float64) (Criteria, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	switch {
	case strings.HasPrefix(upper, "GPSALTITUDE") && strings.HasSuffix(upper, ">"):
		return Criteria{Kind: AltitudeAbove, Value: value}, nil
	case strings.HasPrefix(upper, "GPSALTITUDE") && strings.HasSuffix(upper, "<"):
		return Criteria{Kind: AltitudeBelow, Value: value}, nil
	case upper == "UPONDESCENT":
		return Criteria{Kind: UponDescent}, nil
	}
	return Criteria{}, fmt.Errorf("unknown criteria %q", name)
}

func (c Criteria) String() string {
	switch c.Kind {
	case AltitudeAbove:
		return fmt.Sprintf("GPSAltitude>%g", c.Value)
	case AltitudeBelow:
		return fmt.Sprintf("GPSAltitude<%g", c.Value)
	default:
		return "UponDescent"
	}
}

// Match reports whether f meets the criteria. Altitude criteria need a valid
// GPSPOS block, descent needs a valid STATUS block.
func (c Criteria) Match(f *rs41.Frame) bool {
	switch c.Kind {
	case AltitudeAbove, AltitudeBelow:
		if !f.CheckCRC(rs41.BlockGPSPos) {
			return false
		}
		alt := Altitude(f)
		if c.Kind == AltitudeAbove {
			return alt > c.Value
		}
		return alt < c.Value
	case UponDescent:
		if !f.CheckCRC(rs41.BlockStatus) {
			return false
		}
		return rs41.ReadStatus(f).Descent
	}
	return false
}

// Altitude returns the geodetic altitude of the GPSPOS position of f.
func Altitude(f *rs41.Frame) float64 {
	p := rs41.ReadGPSPos(f)
	return gps.ECEFToGeodetic(gps.ECEF{X: p.X, Y: p.Y, Z: p.Z}).Alt
}
