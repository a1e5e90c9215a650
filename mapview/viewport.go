package mapview

import "math"

// Zoom limits applied to every zoom change.
const (
	MinZoom = 0.01
	MaxZoom = 20.0
)

// ScreenPoint is a pointer position in canvas pixels.
type ScreenPoint struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Viewport maps view space onto the screen: screen = view*Zoom + Pan.
type Viewport struct {
	Zoom float64 `json:"zoom"`
	PanX float64 `json:"pan_x"`
	PanY float64 `json:"pan_y"`
}

// DefaultViewport has unit zoom and no pan.
func DefaultViewport() Viewport {
	return Viewport{Zoom: 1}
}

func (v Viewport) zoom() float64 {
	if v.Zoom == 0 {
		return 1
	}
	return v.Zoom
}

// ToScreen projects a view point onto the screen.
func (v Viewport) ToScreen(p ViewPoint) ScreenPoint {
	return ScreenPoint{X: p.X*v.zoom() + v.PanX, Y: p.Y*v.zoom() + v.PanY}
}

// ToScene is the inverse of ToScreen.
func (v Viewport) ToScene(s ScreenPoint) ViewPoint {
	return ViewPoint{X: (s.X - v.PanX) / v.zoom(), Y: (s.Y - v.PanY) / v.zoom()}
}

// Pan translates the view by a screen delta.
func (v Viewport) Pan(dx, dy float64) Viewport {
	v.PanX += dx
	v.PanY += dy
	return v
}

// ZoomToPoint sets the zoom while keeping the scene point under at fixed on screen.
func (v Viewport) ZoomToPoint(at ScreenPoint, zoom float64) Viewport {
	scene := v.ToScene(at)
	zoom = ClampZoom(zoom)
	return Viewport{
		Zoom: zoom,
		PanX: at.X - scene.X*zoom,
		PanY: at.Y - scene.Y*zoom,
	}
}

// ClampZoom folds z into [MinZoom, MaxZoom].
func ClampZoom(z float64) float64 {
	return math.Max(MinZoom, math.Min(MaxZoom, z))
}
