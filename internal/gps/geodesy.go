package gps

import "math"

// WGS84 ellipsoid
const (
	wgs84A  = 6378137.0
	wgs84F  = 1 / 298.257223563
	wgs84B  = wgs84A * (1 - wgs84F)
	wgs84E2 = wgs84F * (2 - wgs84F)
)

// Geodetic is a WGS84 position in degrees and metres above the ellipsoid.
type Geodetic struct {
	Lat, Lon, Alt float64
}

// ECEF is an earth-centered earth-fixed vector in metres or metres per
// second.
type ECEF struct {
	X, Y, Z float64
}

// ENU is a local east/north/up vector.
type ENU struct {
	East, North, Up float64
}

// Sub returns e - o.
func (e ECEF) Sub(o ECEF) ECEF { return ECEF{e.X - o.X, e.Y - o.Y, e.Z - o.Z} }

// Add returns e + o.
func (e ECEF) Add(o ECEF) ECEF { return ECEF{e.X + o.X, e.Y + o.Y, e.Z + o.Z} }

func rad(deg float64) float64 { return deg * math.Pi / 180 }
func deg(rad float64) float64 { return rad * 180 / math.Pi }

// GeodeticToECEF converts a WGS84 position to ECEF.
func GeodeticToECEF(g Geodetic) ECEF {
	lat, lon := rad(g.Lat), rad(g.Lon)
	sinLat, cosLat := math.Sincos(lat)
	sinLon, cosLon := math.Sincos(lon)
	n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
	return ECEF{
		X: (n + g.Alt) * cosLat * cosLon,
		Y: (n + g.Alt) * cosLat * sinLon,
		Z: (n*(1-wgs84E2) + g.Alt) * sinLat,
	}
}

// ECEFToGeodetic converts ECEF to a WGS84 position. Latitude is refined
// iteratively until it moves by less than 1e-12 rad.
func ECEFToGeodetic(e ECEF) Geodetic {
	lon := math.Atan2(e.Y, e.X)
	p := math.Hypot(e.X, e.Y)
	if p < 1e-6 {
		lat := math.Copysign(90, e.Z)
		return Geodetic{Lat: lat, Lon: deg(lon), Alt: math.Abs(e.Z) - wgs84B}
	}

	lat := math.Atan2(e.Z, p*(1-wgs84E2))
	var h float64
	for i := 0; i < 10; i++ {
		sinLat := math.Sin(lat)
		n := wgs84A / math.Sqrt(1-wgs84E2*sinLat*sinLat)
		h = p/math.Cos(lat) - n
		next := math.Atan2(e.Z, p*(1-wgs84E2*n/(n+h)))
		if math.Abs(next-lat) < 1e-12 {
			lat = next
			break
		}
		lat = next
	}
	return Geodetic{Lat: deg(lat), Lon: deg(lon), Alt: h}
}

// ECEFToENUVelocity rotates an ECEF velocity into the local frame at g.
func ECEFToENUVelocity(v ECEF, g Geodetic) ENU {
	sinLat, cosLat := math.Sincos(rad(g.Lat))
	sinLon, cosLon := math.Sincos(rad(g.Lon))
	return ENU{
		East:  -sinLon*v.X + cosLon*v.Y,
		North: -sinLat*cosLon*v.X - sinLat*sinLon*v.Y + cosLat*v.Z,
		Up:    cosLat*cosLon*v.X + cosLat*sinLon*v.Y + sinLat*v.Z,
	}
}

// ENUToECEFVelocity rotates a local velocity at g into ECEF.
func ENUToECEFVelocity(v ENU, g Geodetic) ECEF {
	sinLat, cosLat := math.Sincos(rad(g.Lat))
	sinLon, cosLon := math.Sincos(rad(g.Lon))
	return ECEF{
		X: -v.North*sinLat*cosLon - v.East*sinLon + v.Up*cosLat*cosLon,
		Y: -v.North*sinLat*sinLon + v.East*cosLon + v.Up*cosLat*sinLon,
		Z: v.North*cosLat + v.Up*sinLat,
	}
}
