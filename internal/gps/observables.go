package gps

import (
	"errors"
	"fmt"
	"math"
	"time"

	"rs41sim/internal/rs41"
)

// ErrSingularGeometry is returned when the satellite geometry does not
// allow a dilution of precision to be computed.
var ErrSingularGeometry = errors.New("gps: singular satellite geometry")

// ElevationMask is the lowest elevation in degrees a satellite may have to be
// reported.
const ElevationMask = -0.5

// losRows is the number of satellites contributing to PDOP.
const losRows = 6

// Satellite is one tracked satellite as seen from the receiver.
type Satellite struct {
	PRN         byte
	Pseudorange float64 // m
	RangeRate   float64 // m/s, relative to the moving receiver
	CNo         int     // dBHz
	Elevation   float64 // deg
	Azimuth     float64 // deg
}

// Observation is what a Provider reports for one epoch. A positive PDOP is
// used as is, otherwise it is derived from the satellite geometry.
type Observation struct {
	Satellites []Satellite
	PDOP       float64
}

// Provider produces satellite observables for a receiver at pos moving with
// vel at the given instant.
type Provider interface {
	Observe(at time.Time, pos Geodetic, vel ENU) (Observation, error)
}

// Fix is the packed content of the three GPS blocks. SAcc is left for the
// caller.
type Fix struct {
	Satellites [rs41.GPSSlots]rs41.SatInfo
	Raw        rs41.GPSRaw
	Pos        rs41.GPSPos
}

// QualityByte packs c/n0 into the GPSINFO reception quality byte
// (mesQI << 5 | cno').
func QualityByte(cno int) byte {
	var tag int
	switch {
	case cno < 20:
		tag = 0
	case cno > 50:
		tag = 31
	default:
		tag = cno - 20
	}

	mesQI := 7
	switch {
	case cno < 34:
		mesQI = 4
	case cno < 39:
		mesQI = 6
	}
	return byte(mesQI<<5 | tag)
}

// visible returns up to GPSSlots satellites above the elevation mask, in
// provider order.
func visible(sats []Satellite) []Satellite {
	out := make([]Satellite, 0, rs41.GPSSlots)
	for _, s := range sats {
		if s.Elevation <= ElevationMask {
			continue
		}
		out = append(out, s)
		if len(out) == rs41.GPSSlots {
			break
		}
	}
	return out
}

// Pack builds the GPS block content for a receiver at pos moving with vel.
// When the geometry is singular the Fix is still returned, with zero PDOP,
// together with ErrSingularGeometry.
func Pack(obs Observation, pos Geodetic, vel ENU) (Fix, error) {
	sats := visible(obs.Satellites)

	var fix Fix
	for i := range fix.Satellites {
		fix.Satellites[i] = rs41.SatInfo{PRN: 0xFF}
	}
	for i, s := range sats {
		fix.Satellites[i] = rs41.SatInfo{PRN: s.PRN, Quality: QualityByte(s.CNo)}
	}

	if len(sats) > 0 {
		minPR := sats[0].Pseudorange
		for _, s := range sats[1:] {
			minPR = min(minPR, s.Pseudorange)
		}
		fix.Raw.MinPR = uint32(minPR)
		for i, s := range sats {
			fix.Raw.SetObservation(i, rs41.RawObservation{
				DeltaPR:  int32((s.Pseudorange - float64(fix.Raw.MinPR)) * 100),
				Velocity: int32(s.RangeRate * 100),
			})
		}
	}
	if len(sats) < rs41.GPSSlots {
		fix.Raw.Records[len(sats)*rs41.GPSRawRecordSize] = 0xFF
	}

	p := GeodeticToECEF(pos)
	v := ENUToECEFVelocity(vel, pos)
	fix.Pos = rs41.GPSPos{
		X: p.X, Y: p.Y, Z: p.Z,
		VX: v.X, VY: v.Y, VZ: v.Z,
		Satellites: len(sats),
		PDOP:       obs.PDOP,
	}

	if obs.PDOP > 0 {
		return fix, nil
	}
	pdop, err := PDOP(sats)
	if err != nil {
		return fix, err
	}
	fix.Pos.PDOP = pdop
	return fix, nil
}

// PDOP computes the position dilution of precision from the line of sight
// of the first six satellites.
func PDOP(sats []Satellite) (float64, error) {
	n := min(len(sats), losRows)
	if n < 4 {
		return 0, fmt.Errorf("%w: %d satellites", ErrSingularGeometry, n)
	}

	// normal matrix A^T A of rows [sinAz cosEl, cosAz cosEl, sinEl, 1]
	var ata [4][4]float64
	for _, s := range sats[:n] {
		sinAz, cosAz := math.Sincos(rad(s.Azimuth))
		sinEl, cosEl := math.Sincos(rad(s.Elevation))
		row := [4]float64{sinAz * cosEl, cosAz * cosEl, sinEl, 1}
		for i := range row {
			for j := range row {
				ata[i][j] += row[i] * row[j]
			}
		}
	}

	inv, ok := invert4(ata)
	if !ok {
		return 0, ErrSingularGeometry
	}
	trace := inv[0][0] + inv[1][1] + inv[2][2]
	if trace < 0 {
		return 0, ErrSingularGeometry
	}
	return math.Sqrt(trace), nil
}

// invert4 inverts m by Gauss-Jordan elimination with partial pivoting.
func invert4(m [4][4]float64) ([4][4]float64, bool) {
	var inv [4][4]float64
	for i := range inv {
		inv[i][i] = 1
	}
	for col := 0; col < 4; col++ {
		pivot := col
		for r := col + 1; r < 4; r++ {
			if math.Abs(m[r][col]) > math.Abs(m[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(m[pivot][col]) < 1e-12 {
			return inv, false
		}
		m[col], m[pivot] = m[pivot], m[col]
		inv[col], inv[pivot] = inv[pivot], inv[col]

		d := m[col][col]
		for j := 0; j < 4; j++ {
			m[col][j] /= d
			inv[col][j] /= d
		}
		for r := 0; r < 4; r++ {
			if r == col {
				continue
			}
			k := m[r][col]
			for j := 0; j < 4; j++ {
				m[r][j] -= k * m[col][j]
				inv[r][j] -= k * inv[col][j]
			}
		}
	}
	return inv, true
}
