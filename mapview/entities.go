package mapview

import (
	"fmt"

	"github.com/rs/zerolog"

	"patro-map/models"
)

// Resolver turns a point reference into coordinates at draw time.
type Resolver interface {
	Resolve(ref models.PointRef) (models.Coordinates, bool)
}

// DrawContext is everything a draw needs. It is passed in explicitly on every draw instead
// of entities holding a pointer to the map.
type DrawContext struct {
	Canvas   Canvas
	Coords   CoordinateSystem
	Styles   StyleConfig
	Resolver Resolver
	Debug    bool
	Log      zerolog.Logger
	OnDraw   func(kind EntityKind)
}

func (dc *DrawContext) drew(kind EntityKind) {
	if dc.OnDraw != nil {
		dc.OnDraw(kind)
	}
}

// drawing is the visual state shared by all entity kinds.
type drawing struct {
	objects []*Object
	drawn   bool
}

func (d *drawing) show(dc *DrawContext, kind EntityKind, objs ...*Object) {
	d.objects = objs
	d.drawn = true
	dc.Canvas.Add(objs...)
	dc.drew(kind)
}

func (d *drawing) hide(dc *DrawContext) {
	if len(d.objects) > 0 {
		dc.Canvas.Remove(d.objects...)
	}
	d.objects = nil
	d.drawn = false
}

// Objects returns the primitives currently on the canvas for this entity.
func (d *drawing) Objects() []*Object {
	out := make([]*Object, len(d.objects))
	copy(out, d.objects)
	return out
}

// Drawn reports whether the entity is part of the rendered scene.
func (d *drawing) Drawn() bool {
	return d.drawn
}

func zIndex(s Style, def float64) int {
	return int(s.Float("zIndex", def))
}

func textObject(owner Owner, at ViewPoint, text string, size float64, z int) *Object {
	o := newObject(KindText, owner, at)
	o.Text = text
	o.Style = Style{"fontSize": size}
	o.Z = z
	return o
}

// ========================================
// WayPoint
// ========================================

// WayPoint is a fixed, typed location. Its center never changes after construction.
type WayPoint struct {
	drawing

	Key    models.Key
	Type   models.WayPointType
	Center models.Coordinates

	hovering bool
	dynamic  Style
}

// NewWayPoint builds a waypoint.
func NewWayPoint(key models.Key, typ models.WayPointType, center models.Coordinates) *WayPoint {
	return &WayPoint{Key: key, Type: typ, Center: center}
}

// Hovering reports the hover flag.
func (w *WayPoint) Hovering() bool { return w.hovering }

// DynamicStyle is the highlight override currently applied.
func (w *WayPoint) DynamicStyle() Style { return w.dynamic }

func (w *WayPoint) owner() Owner { return Owner{Kind: EntityWayPoint, Key: w.Key} }

func (w *WayPoint) draw(dc *DrawContext) {
	var hover Style
	if w.hovering {
		hover = dc.Styles.hover()
	}
	style := resolveStyle(
		defaultWayPointStyle,
		dc.Styles.waypoint(WayPointAttrs{Key: w.Key, Type: w.Type}),
		w.dynamic,
		hover,
	)

	at := dc.Coords.ToView(w.Center)
	circle := newObject(KindCircle, w.owner(), at)
	circle.Radius = style.Float("radius", 5)
	circle.Style = style
	circle.Evented = true
	circle.Z = zIndex(style, 10)

	title := textObject(w.owner(), at, string(w.Key), 8, circle.Z)
	title.Style["stroke"] = "#fff"

	objs := []*Object{circle, title}
	if dc.Debug {
		below := ViewPoint{X: at.X, Y: at.Y + 12}
		objs = append(objs, textObject(w.owner(), below, fmt.Sprintf("(%g, %g)", w.Center.X, w.Center.Y), 8, circle.Z))
	}
	w.show(dc, EntityWayPoint, objs...)
}

func (w *WayPoint) redraw(dc *DrawContext) {
	w.hide(dc)
	w.draw(dc)
}

func (w *WayPoint) setDynamic(dc *DrawContext, s Style) {
	w.dynamic = s
	if w.drawn {
		w.redraw(dc)
	}
}

func (w *WayPoint) setHover(dc *DrawContext, hovering bool) {
	w.hovering = hovering
	if w.drawn {
		w.redraw(dc)
	}
}

// ========================================
// Road
// ========================================

// Road connects two endpoints, each a coordinate or a waypoint key resolved at draw time.
type Road struct {
	drawing

	Key   models.Key
	Mode  models.RoadMode
	Speed float64
	Gait  models.RoadGait
	Radar string
	Begin models.PointRef
	End   models.PointRef

	dynamic Style
}

// BeginCoordinates resolves the begin endpoint. It is never cached.
func (r *Road) BeginCoordinates(res Resolver) (models.Coordinates, bool) {
	return res.Resolve(r.Begin)
}

// EndCoordinates resolves the end endpoint.
func (r *Road) EndCoordinates(res Resolver) (models.Coordinates, bool) {
	return res.Resolve(r.End)
}

// Diff is the component-wise delta begin - end.
func (r *Road) Diff(res Resolver) (models.Coordinates, bool) {
	b, ok1 := r.BeginCoordinates(res)
	e, ok2 := r.EndCoordinates(res)
	if !ok1 || !ok2 {
		return models.Coordinates{}, false
	}
	return models.Distance(b, e), true
}

// Bearing is the angle of begin -> end in radians.
func (r *Road) Bearing(res Resolver) (float64, bool) {
	b, ok1 := r.BeginCoordinates(res)
	e, ok2 := r.EndCoordinates(res)
	if !ok1 || !ok2 {
		return 0, false
	}
	return models.Bearing(b, e), true
}

// DynamicStyle is the highlight override currently applied.
func (r *Road) DynamicStyle() Style { return r.dynamic }

func (r *Road) draw(dc *DrawContext) {
	begin, ok1 := r.BeginCoordinates(dc.Resolver)
	end, ok2 := r.EndCoordinates(dc.Resolver)
	if !ok1 || !ok2 {
		dc.Log.Warn().
			Str("road", string(r.Key)).
			Str("begin", r.Begin.String()).
			Str("end", r.End.String()).
			Msg("unresolved road endpoint, skipping draw")
		r.drawn = true
		return
	}

	style := resolveStyle(
		defaultRoadStyle,
		dc.Styles.road(RoadAttrs{Key: r.Key, Mode: r.Mode, Speed: r.Speed, Gait: r.Gait, Radar: r.Radar}),
		r.dynamic,
		nil,
	)

	owner := Owner{Kind: EntityRoad, Key: r.Key}
	b, e := dc.Coords.ToView(begin), dc.Coords.ToView(end)
	line := newObject(KindLine, owner, b, e)
	line.Style = style
	line.Z = zIndex(style, 0)

	objs := []*Object{line}
	if dc.Debug {
		mid := ViewPoint{X: (b.X + e.X) / 2, Y: (b.Y + e.Y) / 2}
		objs = append(objs, textObject(owner, mid, string(r.Key), 12, line.Z))
		for i, c := range []models.Coordinates{begin, end} {
			v := []ViewPoint{b, e}[i]
			objs = append(objs, textObject(owner, ViewPoint{X: v.X, Y: v.Y + 12}, fmt.Sprintf("(%.4f,%.4f)", c.X, c.Y), 8, line.Z))
		}
	}
	r.show(dc, EntityRoad, objs...)
}

func (r *Road) redraw(dc *DrawContext) {
	r.hide(dc)
	r.draw(dc)
}

func (r *Road) setDynamic(dc *DrawContext, s Style) {
	r.dynamic = s
	if r.drawn {
		r.redraw(dc)
	}
}

// ========================================
// Fence
// ========================================

// Fence is a closed polygon, static once created.
type Fence struct {
	drawing

	Key     models.Key
	Type    models.FenceType
	Polygon []models.Coordinates
}

// NewFence builds a fence; the polygon needs at least three vertices.
func NewFence(key models.Key, typ models.FenceType, polygon []models.Coordinates) (*Fence, error) {
	if len(polygon) < 3 {
		return nil, fmt.Errorf("fence %s: %d vertices: %w", key, len(polygon), ErrInvalidGeometry)
	}
	return &Fence{Key: key, Type: typ, Polygon: polygon}, nil
}

func (f *Fence) draw(dc *DrawContext) {
	style := resolveStyle(defaultFenceStyle, dc.Styles.fence(FenceAttrs{Key: f.Key, Type: f.Type}), nil, nil)

	owner := Owner{Kind: EntityFence, Key: f.Key}
	points := make([]ViewPoint, len(f.Polygon))
	for i, c := range f.Polygon {
		points[i] = dc.Coords.ToView(c)
	}
	shape := newObject(KindPolygon, owner, points...)
	shape.Style = style
	shape.Z = zIndex(style, -100)

	objs := []*Object{shape}
	if dc.Debug {
		for i, c := range f.Polygon {
			dot := newObject(KindCircle, owner, points[i])
			dot.Radius = 2
			dot.Style = Style{"fill": "red"}
			dot.Z = shape.Z
			label := textObject(owner, ViewPoint{X: points[i].X, Y: points[i].Y + 12}, fmt.Sprintf("%d(%.4f,%.4f)", i, c.X, c.Y), 8, shape.Z)
			objs = append(objs, dot, label)
		}
	}
	f.show(dc, EntityFence, objs...)
}

func (f *Fence) redraw(dc *DrawContext) {
	f.hide(dc)
	f.draw(dc)
}

// ========================================
// Robot
// ========================================

// Robot is a moving agent. Only its visual is replaced on every update; the registry
// entry persists.
type Robot struct {
	drawing

	Key models.Key

	center  models.Coordinates
	heading float64
	dynamic Style
}

// NewRobot builds a robot at center facing heading (degrees).
func NewRobot(key models.Key, center models.Coordinates, heading float64) *Robot {
	return &Robot{Key: key, center: center, heading: heading}
}

// Center is the current position.
func (r *Robot) Center() models.Coordinates { return r.center }

// Heading is the current heading in degrees.
func (r *Robot) Heading() float64 { return r.heading }

// DynamicStyle is the highlight override currently applied.
func (r *Robot) DynamicStyle() Style { return r.dynamic }

func (r *Robot) draw(dc *DrawContext) {
	style := resolveStyle(defaultRobotStyle, dc.Styles.robot(RobotAttrs{Key: r.Key}), r.dynamic, nil)

	o := newObject(KindRobot, Owner{Kind: EntityRobot, Key: r.Key}, dc.Coords.ToView(r.center))
	o.Width = style.Float("width", 10)
	o.Height = style.Float("height", 10)
	o.Angle = dc.Coords.ViewAngle(r.heading)
	o.Style = style
	o.Evented = false
	o.Z = zIndex(style, 20)
	r.show(dc, EntityRobot, o)
}

func (r *Robot) redraw(dc *DrawContext) {
	r.hide(dc)
	r.draw(dc)
}

// moveTo updates position and, when given, heading; then redraws if on the canvas.
func (r *Robot) moveTo(dc *DrawContext, center models.Coordinates, heading *float64) {
	r.center = center
	if heading != nil {
		r.heading = *heading
	}
	if r.drawn {
		r.redraw(dc)
	}
}

func (r *Robot) setDynamic(dc *DrawContext, s Style) {
	r.dynamic = s
	if r.drawn {
		r.redraw(dc)
	}
}
