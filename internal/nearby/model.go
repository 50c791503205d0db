// Package nearby finds notable places around a device and reuses the answer
// while the device stays within a kilometre of where it was last asked.
package nearby

import (
	"math"

	errors "github.com/Laisky/errors/v2"
)

// ReuseRadiusKm is how far a session may move before places are looked up again.
const ReuseRadiusKm = 1.0

const earthRadiusKm = 6371.0

// Coordinate is a WGS84 position in degrees.
type Coordinate struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Validate checks the coordinate is on the globe.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Latitude) || c.Latitude < -90 || c.Latitude > 90 {
		return errors.Errorf("latitude %v out of range", c.Latitude)
	}
	if math.IsNaN(c.Longitude) || c.Longitude < -180 || c.Longitude > 180 {
		return errors.Errorf("longitude %v out of range", c.Longitude)
	}
	return nil
}

// Place is one nearby point of interest.
type Place struct {
	LocationName string `json:"locationName"`
	ImageURL     string `json:"imageUrl"`
}

// Distance returns the great-circle distance between a and b in kilometres.
func Distance(a, b Coordinate) float64 {
	dLat := radians(b.Latitude - a.Latitude)
	dLon := radians(b.Longitude - a.Longitude)

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Latitude))*math.Cos(radians(b.Latitude))*
			math.Sin(dLon/2)*math.Sin(dLon/2)
	return earthRadiusKm * 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))
}

func radians(deg float64) float64 {
	return deg * math.Pi / 180
}
