package geo

import "math"

// EarthRadius is the mean Earth radius in meters.
const EarthRadius = 6371000.0

const threshold = 1e-6

// Coordinates is a point on the Earth surface in degrees.
type Coordinates struct {
	Lat float64 `json:"latitude"`
	Lng float64 `json:"longitude"`
}

// Equal compares coordinates with a fixed tolerance.
func (c Coordinates) Equal(other Coordinates) bool {
	return math.Abs(c.Lat-other.Lat) < threshold && math.Abs(c.Lng-other.Lng) < threshold
}

// ComputeDistance returns the great-circle distance between two points in meters.
func ComputeDistance(from, to Coordinates) float64 {
	if from.Equal(to) {
		return 0
	}

	const dr = math.Pi / 180.0
	cos := math.Sin(from.Lat*dr)*math.Sin(to.Lat*dr) +
		math.Cos(from.Lat*dr)*math.Cos(to.Lat*dr)*math.Cos(math.Abs(from.Lng-to.Lng)*dr)

	// rounding can push nearly identical points just outside acos' domain
	cos = math.Max(-1, math.Min(1, cos))

	return math.Acos(cos) * EarthRadius
}
