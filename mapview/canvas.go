package mapview

import (
	"github.com/google/uuid"

	"patro-map/models"
)

// ObjectKind names a drawing primitive.
type ObjectKind string

const (
	KindLine     ObjectKind = "line"
	KindCircle   ObjectKind = "circle"
	KindPolygon  ObjectKind = "polygon"
	KindText     ObjectKind = "text"
	KindTriangle ObjectKind = "triangle"
	KindRobot    ObjectKind = "robot"
)

// EntityKind names what created an object.
type EntityKind string

const (
	EntityWayPoint   EntityKind = "waypoint"
	EntityRoad       EntityKind = "road"
	EntityFence      EntityKind = "fence"
	EntityRobot      EntityKind = "robot"
	EntityNavigation EntityKind = "navigation"
	EntityIndicator  EntityKind = "indicator"
	EntityMarker     EntityKind = "marker"
)

// Owner ties a drawn object back to its entity. Hit-test results are mapped back to
// waypoints through it.
type Owner struct {
	Kind EntityKind `json:"kind"`
	Key  models.Key `json:"key,omitempty"`
}

// Object is one primitive on the display list. Points are in view space: two for a line,
// the vertices for a polygon, a single anchor for everything else.
type Object struct {
	ID      string      `json:"id"`
	Kind    ObjectKind  `json:"kind"`
	Owner   Owner       `json:"owner"`
	Points  []ViewPoint `json:"points"`
	Radius  float64     `json:"radius,omitempty"`
	Width   float64     `json:"width,omitempty"`
	Height  float64     `json:"height,omitempty"`
	Text    string      `json:"text,omitempty"`
	Angle   float64     `json:"angle,omitempty"` // clockwise degrees
	Style   Style       `json:"style,omitempty"`
	Evented bool        `json:"evented"`
	Z       int         `json:"z"`
}

func newObject(kind ObjectKind, owner Owner, points ...ViewPoint) *Object {
	return &Object{
		ID:     uuid.NewString(),
		Kind:   kind,
		Owner:  owner,
		Points: points,
	}
}

// Anchor is the first point, or the zero point for an empty object.
func (o *Object) Anchor() ViewPoint {
	if len(o.Points) == 0 {
		return ViewPoint{}
	}
	return o.Points[0]
}

// Canvas is the rendering-primitive layer the map draws into.
type Canvas interface {
	Add(objs ...*Object)
	Remove(objs ...*Object)
	// HitTest returns the topmost evented object under a view-space point, or nil.
	HitTest(p ViewPoint) *Object
	Viewport() Viewport
	SetViewport(v Viewport)
	Size() (width, height float64)
}
