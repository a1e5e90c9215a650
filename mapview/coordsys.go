package mapview

import (
	"math"

	"patro-map/models"
)

// ViewPoint is a point in view (scene) space. Z is carried through untouched so that
// ToDomain(ToView(p)) round-trips.
type ViewPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	Z float64 `json:"z,omitempty"`
}

// CoordinateSystem maps domain coordinates to view space: a per-axis scale, an optional Y
// inversion and a view-space origin offset.
//
// Domain Y grows upwards and view Y grows downwards, so InvertY is on by default. Every
// entity kind is drawn through ToView, never through its own arithmetic.
type CoordinateSystem struct {
	ScaleX  float64 `yaml:"scale_x" json:"scale_x"`
	ScaleY  float64 `yaml:"scale_y" json:"scale_y"`
	OriginX float64 `yaml:"origin_x" json:"origin_x"`
	OriginY float64 `yaml:"origin_y" json:"origin_y"`
	InvertY bool    `yaml:"invert_y" json:"invert_y"`
}

// NewCoordinateSystem returns a system with the given scale and Y inverted.
func NewCoordinateSystem(scaleX, scaleY float64) CoordinateSystem {
	return CoordinateSystem{ScaleX: scaleX, ScaleY: scaleY, InvertY: true}
}

func (cs CoordinateSystem) sx() float64 {
	if cs.ScaleX == 0 {
		return 1
	}
	return cs.ScaleX
}

func (cs CoordinateSystem) sy() float64 {
	s := cs.ScaleY
	if s == 0 {
		s = 1
	}
	if cs.InvertY {
		return -s
	}
	return s
}

// ToView converts a domain point to view space.
func (cs CoordinateSystem) ToView(c models.Coordinates) ViewPoint {
	return ViewPoint{
		X: c.X*cs.sx() + cs.OriginX,
		Y: c.Y*cs.sy() + cs.OriginY,
		Z: c.Z,
	}
}

// ToDomain is the exact inverse of ToView.
func (cs CoordinateSystem) ToDomain(v ViewPoint) models.Coordinates {
	return models.Coordinates{
		X: (v.X - cs.OriginX) / cs.sx(),
		Y: (v.Y - cs.OriginY) / cs.sy(),
		Z: v.Z,
	}
}

// ViewAngle converts a domain heading (degrees, counter-clockwise from +X) into a
// clockwise screen rotation.
func (cs CoordinateSystem) ViewAngle(deg float64) float64 {
	if cs.InvertY {
		return -deg
	}
	return deg
}

// MarkerRotation is the rotation for a marker whose tip points to screen-up at 0 degrees.
func (cs CoordinateSystem) MarkerRotation(deg float64) float64 {
	return cs.ViewAngle(deg) + 90
}

// Bounds is an axis-aligned box in domain space.
type Bounds struct {
	MinX float64 `json:"min_x"`
	MaxX float64 `json:"max_x"`
	MinY float64 `json:"min_y"`
	MaxY float64 `json:"max_y"`
	MinZ float64 `json:"min_z"`
	MaxZ float64 `json:"max_z"`
}

// ComputeBounds returns the bounding box of points. ok is false for an empty input.
func ComputeBounds(points []models.Coordinates) (b Bounds, ok bool) {
	if len(points) == 0 {
		return Bounds{}, false
	}
	b = Bounds{
		MinX: math.Inf(1), MaxX: math.Inf(-1),
		MinY: math.Inf(1), MaxY: math.Inf(-1),
		MinZ: math.Inf(1), MaxZ: math.Inf(-1),
	}
	for _, p := range points {
		b.MinX = math.Min(b.MinX, p.X)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxY = math.Max(b.MaxY, p.Y)
		b.MinZ = math.Min(b.MinZ, p.Z)
		b.MaxZ = math.Max(b.MaxZ, p.Z)
	}
	return b, true
}

// Center is the midpoint per axis.
func (b Bounds) Center() models.Coordinates {
	return models.Coordinates{
		X: (b.MinX + b.MaxX) / 2,
		Y: (b.MinY + b.MaxY) / 2,
		Z: (b.MinZ + b.MaxZ) / 2,
	}
}
