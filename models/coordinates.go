package models

import "math"

// Coordinates - a point in map (domain) space
type Coordinates struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z"`
}

// NewCoordinates - build Coordinates from an [x, y] or [x, y, z] slice
func NewCoordinates(v []float64) (Coordinates, bool) {
	switch len(v) {
	case 2:
		return Coordinates{X: v[0], Y: v[1]}, true
	case 3:
		return Coordinates{X: v[0], Y: v[1], Z: v[2]}, true
	default:
		return Coordinates{}, false
	}
}

// Array - [x, y, z]
func (c Coordinates) Array() []float64 {
	return []float64{c.X, c.Y, c.Z}
}

// Distance - component-wise delta a - b
func Distance(a, b Coordinates) Coordinates {
	return Coordinates{X: a.X - b.X, Y: a.Y - b.Y, Z: a.Z - b.Z}
}

// Bearing - angle of the vector a -> b in radians
func Bearing(a, b Coordinates) float64 {
	return math.Atan2(b.Y-a.Y, b.X-a.X)
}
