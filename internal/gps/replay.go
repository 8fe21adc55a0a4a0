package gps

import (
	"errors"
	"time"

	"rs41sim/internal/rs41"
)

// ErrNoObservation is returned by ReplayProvider before any frame with valid
// GPS blocks has been seen.
var ErrNoObservation = errors.New("gps: no observation available")

// ReplayProvider reports the observables carried by the most recent frame
// of a recorded flight. Replayed satellites carry no geometry, so the
// recorded PDOP is passed through. It is not safe for concurrent use.
type ReplayProvider struct {
	obs   Observation
	valid bool
}

// NewReplayProvider creates an empty replay provider.
func NewReplayProvider() *ReplayProvider {
	return &ReplayProvider{}
}

// Update takes the observables of f when its GPSINFO, GPSRAW and GPSPOS
// blocks are intact. It reports whether f was used.
func (r *ReplayProvider) Update(f *rs41.Frame) bool {
	if !f.CheckCRC(rs41.BlockGPSInfo) || !f.CheckCRC(rs41.BlockGPSRaw) || !f.CheckCRC(rs41.BlockGPSPos) {
		return false
	}
	info := rs41.ReadGPSInfo(f)
	raw := rs41.ReadGPSRaw(f)
	pos := rs41.ReadGPSPos(f)

	sats := make([]Satellite, 0, rs41.GPSSlots)
	for i, s := range info.Satellites {
		if s.PRN == 0xFF || s.PRN == 0 {
			break
		}
		o := raw.Observation(i)
		sats = append(sats, Satellite{
			PRN:         s.PRN,
			Pseudorange: float64(raw.MinPR) + float64(o.DeltaPR)/100,
			RangeRate:   float64(o.Velocity) / 100,
			CNo:         s.CNo(),
			Elevation:   90,
		})
	}

	pdop := pos.PDOP
	if pdop == 0 {
		pdop = rs41.GPSPosPDOP.Max()
	}
	r.obs = Observation{Satellites: sats, PDOP: pdop}
	r.valid = true
	return true
}

// Observe returns the last recorded observation. The receiver state is
// ignored.
func (r *ReplayProvider) Observe(_ time.Time, _ Geodetic, _ ENU) (Observation, error) {
	if !r.valid {
		return Observation{}, ErrNoObservation
	}
	obs := r.obs
	obs.Satellites = append([]Satellite(nil), r.obs.Satellites...)
	return obs, nil
}
