package mapview

import "patro-map/models"

// Navigation is a keyed path overlay. Points are resolved at draw time like road
// endpoints.
type Navigation struct {
	drawing

	Key    models.Key
	Points []models.PointRef
}

// NewNavigation builds an overlay.
func NewNavigation(key models.Key, points []models.PointRef) *Navigation {
	return &Navigation{Key: key, Points: points}
}

// Resolved returns the coordinate for each point, nil where the reference is unresolved.
func (n *Navigation) Resolved(res Resolver) []*models.Coordinates {
	out := make([]*models.Coordinates, len(n.Points))
	for i, ref := range n.Points {
		if c, ok := res.Resolve(ref); ok {
			out[i] = &c
		}
	}
	return out
}

// draw puts one marker per resolved point and one line per adjacent resolved pair.
// An unresolved point only breaks the two segments that touch it.
func (n *Navigation) draw(dc *DrawContext) {
	owner := Owner{Kind: EntityNavigation, Key: n.Key}
	z := zIndex(navigationStyle, 30)
	resolved := n.Resolved(dc.Resolver)

	var objs []*Object
	for i, c := range resolved {
		if c == nil {
			dc.Log.Warn().
				Str("navigation", string(n.Key)).
				Int("index", i).
				Str("ref", n.Points[i].String()).
				Msg("unresolved navigation point")
			continue
		}
		at := dc.Coords.ToView(*c)
		if i > 0 && resolved[i-1] != nil {
			line := newObject(KindLine, owner, dc.Coords.ToView(*resolved[i-1]), at)
			line.Style = Merge(navigationStyle)
			line.Z = z
			objs = append(objs, line)
		}
		marker := newObject(KindCircle, owner, at)
		marker.Radius = 4
		marker.Style = Merge(navigationStyle)
		marker.Z = z
		objs = append(objs, marker)
	}
	n.show(dc, EntityNavigation, objs...)
}

// clear removes exactly the objects this overlay created.
func (n *Navigation) clear(dc *DrawContext) {
	n.hide(dc)
}
