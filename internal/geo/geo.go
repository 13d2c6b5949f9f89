// Package geo computes great-circle distances and geofence verdicts.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMiles is the mean Earth radius used by Distance.
const EarthRadiusMiles = 3958.8

// ErrInvalidCoordinate indicates a latitude or longitude outside its range.
var ErrInvalidCoordinate = errors.New("geo: invalid coordinate")

// Coordinate is a WGS84 point in decimal degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude" yaml:"latitude"`
	Longitude float64 `json:"longitude" yaml:"longitude"`
}

// Validate checks the coordinate ranges. Distance itself never validates.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return fmt.Errorf("%w: latitude %v out of range", ErrInvalidCoordinate, c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return fmt.Errorf("%w: longitude %v out of range", ErrInvalidCoordinate, c.Longitude)
	}
	return nil
}

// Distance returns the haversine great-circle distance in miles.
func Distance(a, b Coordinate) float64 {
	lat1 := radians(a.Latitude)
	lat2 := radians(b.Latitude)
	dLat := lat2 - lat1
	dLon := radians(b.Longitude - a.Longitude)

	sinLat := math.Sin(dLat / 2)
	sinLon := math.Sin(dLon / 2)
	h := sinLat*sinLat + math.Cos(lat1)*math.Cos(lat2)*sinLon*sinLon
	// Rounding can push h marginally past 1 for antipodal points.
	h = math.Min(1, math.Max(0, h))

	return 2 * EarthRadiusMiles * math.Asin(math.Sqrt(h))
}

// Verdict is the outcome of a geofence check.
type Verdict struct {
	Allowed       bool    `json:"allowed"`
	DistanceMiles float64 `json:"distance_miles"`
	RadiusMiles   float64 `json:"radius_miles"`
}

// Evaluate reports whether worker lies within radiusMiles of site.
// A distance exactly equal to the radius is allowed.
func Evaluate(worker, site Coordinate, radiusMiles float64) Verdict {
	distance := Distance(worker, site)
	return Verdict{
		Allowed:       distance <= radiusMiles,
		DistanceMiles: distance,
		RadiusMiles:   radiusMiles,
	}
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
