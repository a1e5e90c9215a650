package mapview

import "patro-map/models"

// Style is a bag of rendering attributes (stroke, fill, radius, strokeWidth, zIndex, ...).
type Style map[string]any

// Merge layers styles left to right; later layers win key by key. Nil layers are skipped.
func Merge(layers ...Style) Style {
	out := Style{}
	for _, l := range layers {
		for k, v := range l {
			out[k] = v
		}
	}
	return out
}

// Float reads a numeric attribute, falling back to def when absent or not a number.
func (s Style) Float(key string, def float64) float64 {
	switch v := s[key].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	default:
		return def
	}
}

// Attribute sets handed to the per-kind style functions.
type (
	RoadAttrs struct {
		Key   models.Key
		Mode  models.RoadMode
		Speed float64
		Gait  models.RoadGait
		Radar string
	}
	WayPointAttrs struct {
		Key  models.Key
		Type models.WayPointType
	}
	RobotAttrs struct {
		Key models.Key
	}
	FenceAttrs struct {
		Key  models.Key
		Type models.FenceType
	}
)

// StyleConfig is supplied by the embedding application: one pure function per kind,
// called on every draw. Hover is the override applied to a hovered waypoint.
type StyleConfig struct {
	Road     func(RoadAttrs) Style
	WayPoint func(WayPointAttrs) Style
	Robot    func(RobotAttrs) Style
	Fence    func(FenceAttrs) Style
	Hover    Style
}

// DefaultHoverStyle enlarges and recolours a hovered waypoint.
var DefaultHoverStyle = Style{"fill": "#099268", "stroke": "#099268", "radius": 20.0}

// Built-in defaults, the lowest layer.
var (
	defaultRoadStyle     = Style{"stroke": "#1c7ed6", "strokeWidth": 1.0}
	defaultWayPointStyle = Style{"radius": 5.0, "strokeWidth": 1.0, "stroke": "#000000"}
	defaultFenceStyle    = Style{"fill": "rgba(255, 255, 255, 0.1)", "zIndex": -100.0}
	defaultRobotStyle    = Style{"width": 10.0, "height": 10.0, "zIndex": 20.0}
	navigationStyle      = Style{"stroke": "red", "strokeWidth": 4.0, "fill": "red", "zIndex": 30.0}
)

// resolveStyle is the layered resolver:
//
//	final = defaults < config callback < dynamic (highlight) < hover
func resolveStyle(defaults, base, dynamic, hover Style) Style {
	return Merge(defaults, base, dynamic, hover)
}

func (c StyleConfig) road(a RoadAttrs) Style {
	if c.Road == nil {
		return nil
	}
	return c.Road(a)
}

func (c StyleConfig) waypoint(a WayPointAttrs) Style {
	if c.WayPoint == nil {
		return nil
	}
	return c.WayPoint(a)
}

func (c StyleConfig) robot(a RobotAttrs) Style {
	if c.Robot == nil {
		return nil
	}
	return c.Robot(a)
}

func (c StyleConfig) fence(a FenceAttrs) Style {
	if c.Fence == nil {
		return nil
	}
	return c.Fence(a)
}

func (c StyleConfig) hover() Style {
	if c.Hover == nil {
		return DefaultHoverStyle
	}
	return c.Hover
}
