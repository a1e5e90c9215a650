package mapview

import (
	"fmt"
	"math"

	"patro-map/algorithms"
	"patro-map/models"
)

// IndicatorResult is what a finished heading gesture reports. WaypointKey is set when
// the pointer was released over a waypoint.
type IndicatorResult struct {
	X           float64     `json:"x"`
	Y           float64     `json:"y"`
	Angle       float64     `json:"angle"`
	WaypointKey *models.Key `json:"waypoint_key,omitempty"`
}

// Indicator is the transient heading picker. It listens to pointer-move and pointer-up
// on the bus while active and detaches both handlers before reporting.
type Indicator struct {
	drawing

	anchor models.Coordinates
	angle  float64

	bus    *EventBus
	subID  SubscriberID
	ctx    func() *DrawContext
	lookup func(*Object) (*WayPoint, bool)
	done   func(IndicatorResult)
	active bool
}

func newIndicator(
	anchor models.Coordinates,
	bus *EventBus,
	ctx func() *DrawContext,
	lookup func(*Object) (*WayPoint, bool),
	done func(IndicatorResult),
) *Indicator {
	ind := &Indicator{
		anchor: anchor,
		bus:    bus,
		ctx:    ctx,
		lookup: lookup,
		done:   done,
		active: true,
	}
	ind.subID = bus.SubscribeTypes(ind.handle, EventPointerMove, EventPointerUp)
	ind.render()
	return ind
}

// Anchor is the point the gesture started from.
func (i *Indicator) Anchor() models.Coordinates { return i.anchor }

// Angle is the current heading in degrees, in [0, 360).
func (i *Indicator) Angle() float64 { return i.angle }

// Active reports whether the gesture is still running.
func (i *Indicator) Active() bool { return i.active }

func (i *Indicator) handle(evt Event) {
	pe, ok := evt.Payload.(PointerEvent)
	if !ok || !i.active {
		return
	}
	switch evt.Type {
	case EventPointerMove:
		i.aim(pe.Domain)
	case EventPointerUp:
		i.finish(pe)
	}
}

func (i *Indicator) aim(p models.Coordinates) {
	rad := math.Atan2(p.Y-i.anchor.Y, p.X-i.anchor.X)
	i.angle = algorithms.NormalizeDegrees(math.Round(algorithms.Degrees(rad)))
	i.render()
}

func (i *Indicator) render() {
	dc := i.ctx()
	i.hide(dc)

	owner := Owner{Kind: EntityIndicator}
	at := dc.Coords.ToView(i.anchor)

	ring := newObject(KindCircle, owner, at)
	ring.Radius = 20
	ring.Style = Style{"stroke": "#e03131", "strokeWidth": 2.0, "fill": "transparent"}
	ring.Z = 40

	arrow := newObject(KindTriangle, owner, at)
	arrow.Width, arrow.Height = 10, 14
	arrow.Angle = dc.Coords.MarkerRotation(i.angle)
	arrow.Style = Style{"fill": "#e03131"}
	arrow.Z = 40

	label := textObject(owner, ViewPoint{X: at.X, Y: at.Y - 28}, fmt.Sprintf("%g°", i.angle), 12, 40)

	i.show(dc, EntityIndicator, ring, arrow, label)
}

func (i *Indicator) finish(pe PointerEvent) {
	i.hide(i.ctx())
	result := IndicatorResult{X: i.anchor.X, Y: i.anchor.Y, Angle: i.angle}
	if w, ok := i.lookup(pe.Target); ok {
		key := w.Key
		result.WaypointKey = &key
	}
	i.detach()
	i.done(result)
}

// cancel removes the visuals and handlers without reporting.
func (i *Indicator) cancel() {
	if !i.active {
		return
	}
	i.hide(i.ctx())
	i.detach()
}

func (i *Indicator) detach() {
	i.active = false
	i.bus.Unsubscribe(i.subID)
}
