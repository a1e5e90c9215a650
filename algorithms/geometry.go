package algorithms

import "math"

// Point - 2D point in view space
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// PointInPolygon - even-odd rule; the polygon is closed implicitly
func PointInPolygon(p Point, polygon []Point) bool {
	n := len(polygon)
	if n < 3 {
		return false
	}
	inside := false
	for i, j := 0, n-1; i < n; j, i = i, i+1 {
		a, b := polygon[i], polygon[j]
		if (a.Y > p.Y) != (b.Y > p.Y) {
			x := (b.X-a.X)*(p.Y-a.Y)/(b.Y-a.Y) + a.X
			if p.X < x {
				inside = !inside
			}
		}
	}
	return inside
}

// DistanceToSegment - shortest distance from p to the segment a-b
func DistanceToSegment(p, a, b Point) float64 {
	dx := b.X - a.X
	dy := b.Y - a.Y

	if dx == 0 && dy == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}

	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / (dx*dx + dy*dy)
	t = math.Max(0, math.Min(1, t))

	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

// InCircle - true if p lies inside or on the circle
func InCircle(p, center Point, radius float64) bool {
	return math.Hypot(p.X-center.X, p.Y-center.Y) <= radius
}

// NormalizeDegrees - fold an angle into [0, 360)
func NormalizeDegrees(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg == 0 || deg == 360 {
		return 0
	}
	return deg
}

// Degrees - radians to degrees
func Degrees(rad float64) float64 {
	return rad * 180 / math.Pi
}
