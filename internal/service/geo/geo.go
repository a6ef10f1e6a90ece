// Package geo verifies check-in locations against event venues.
package geo

import (
	"errors"
	"fmt"
	"math"
)

// EarthRadiusMeters is the mean Earth radius used by the haversine formula.
const EarthRadiusMeters = 6371000.0

// DefaultRadiusMeters is the default accepted distance from the venue.
const DefaultRadiusMeters = 100.0

// RadiusToleranceMeters is added to the radius so distances compare at whole-meter
// precision: 100.49 m verifies against a 100 m radius, 100.5 m does not.
const RadiusToleranceMeters = 0.5

// ErrInvalidCoordinates is returned for coordinates outside the valid WGS84 range or non-finite.
var ErrInvalidCoordinates = errors.New("invalid coordinates")

// Point is a latitude/longitude pair in decimal degrees.
type Point struct {
	Lat float64
	Lon float64
}

// Distance returns the great-circle distance between a and b in meters.
func Distance(a, b Point) float64 {
	lat1 := toRadians(a.Lat)
	lat2 := toRadians(b.Lat)
	dLat := toRadians(b.Lat - a.Lat)
	dLon := toRadians(b.Lon - a.Lon)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(lat1)*math.Cos(lat2)*math.Sin(dLon/2)*math.Sin(dLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return EarthRadiusMeters * c
}

func toRadians(deg float64) float64 {
	return deg * math.Pi / 180
}

// ValidateCoordinates rejects NaN, infinities and out-of-range values.
func ValidateCoordinates(lat, lon float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) || math.IsNaN(lon) || math.IsInf(lon, 0) {
		return fmt.Errorf("%w: coordinates must be finite", ErrInvalidCoordinates)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude %v out of range [-90, 90]", ErrInvalidCoordinates, lat)
	}
	if lon < -180 || lon > 180 {
		return fmt.Errorf("%w: longitude %v out of range [-180, 180]", ErrInvalidCoordinates, lon)
	}
	return nil
}

// Verifier checks that a reported position lies within a radius of the venue.
type Verifier struct {
	radius float64
}

// NewVerifier creates a verifier. A non-positive radius falls back to DefaultRadiusMeters.
func NewVerifier(radiusMeters float64) *Verifier {
	if radiusMeters <= 0 {
		radiusMeters = DefaultRadiusMeters
	}
	return &Verifier{radius: radiusMeters}
}

// Radius returns the accepted distance in meters.
func (v *Verifier) Radius() float64 {
	return v.radius
}

// Verify reports whether the user position is within the radius of the event,
// allowing RadiusToleranceMeters. Events without coordinates cannot be checked
// and always verify.
func (v *Verifier) Verify(eventLat, eventLon *float64, userLat, userLon float64) bool {
	if eventLat == nil || eventLon == nil {
		return true
	}
	d := Distance(Point{Lat: *eventLat, Lon: *eventLon}, Point{Lat: userLat, Lon: userLon})
	return d < v.radius+RadiusToleranceMeters
}
