package mapview

import "patro-map/models"

// HighlightSet is a revertible style override for a subset of roads, waypoints and
// robots. Keys without a matching entity are ignored.
type HighlightSet struct {
	RoadKeys      []models.Key `json:"road_keys"`
	WayPointKeys  []models.Key `json:"waypoint_keys"`
	RobotKeys     []models.Key `json:"robot_keys"`
	RoadStyle     Style        `json:"road_style"`
	WayPointStyle Style        `json:"waypoint_style"`
	RobotStyle    Style        `json:"robot_style"`
}

// DefaultHighlight returns a set over the given keys with the stock path colours.
func DefaultHighlight(roads, waypoints, robots []models.Key) HighlightSet {
	return HighlightSet{
		RoadKeys:      roads,
		WayPointKeys:  waypoints,
		RobotKeys:     robots,
		RoadStyle:     Style{"stroke": "#f08c00", "strokeWidth": 3.0},
		WayPointStyle: Style{"fill": "#f08c00", "stroke": "#f08c00"},
		RobotStyle:    Style{"fill": "#f08c00"},
	}
}

func (h *HighlightSet) apply(reg *Registry, dc *DrawContext) {
	h.set(reg, dc, h.RoadStyle, h.WayPointStyle, h.RobotStyle)
}

func (h *HighlightSet) revert(reg *Registry, dc *DrawContext) {
	h.set(reg, dc, Style{}, Style{}, Style{})
}

func (h *HighlightSet) set(reg *Registry, dc *DrawContext, road, waypoint, robot Style) {
	for _, k := range h.RoadKeys {
		if r, ok := reg.Road(k); ok {
			r.setDynamic(dc, road)
		}
	}
	for _, k := range h.WayPointKeys {
		if w, ok := reg.WayPoint(k); ok {
			w.setDynamic(dc, waypoint)
		}
	}
	for _, k := range h.RobotKeys {
		if r, ok := reg.Robot(k); ok {
			r.setDynamic(dc, robot)
		}
	}
}
