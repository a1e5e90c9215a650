package mapview

import (
	"time"

	"patro-map/models"
)

// Mode is the coarse interaction mode exposed to callers.
type Mode string

const (
	ModeDefault Mode = "default"
	ModeAssign  Mode = "assign"
)

// Interaction states. Only GestureController moves between them.
type (
	gestureState interface{ mode() Mode }

	idleState     struct{}
	panningState  struct{ press, last ScreenPoint }
	assignState   struct{}
	indicateState struct{ indicator *Indicator }
)

func (idleState) mode() Mode { return ModeDefault }
func (panningState) mode() Mode { return ModeDefault }
func (assignState) mode() Mode { return ModeAssign }
func (indicateState) mode() Mode { return ModeAssign }

// gestureHost is the part of the Map the controller drives.
type gestureHost interface {
	viewport() Viewport
	setViewport(v Viewport)
	locate(at ScreenPoint) PointerEvent
	emit(t EventType, payload any)
	startIndicator(anchor models.Coordinates, done func(IndicatorResult)) *Indicator
	setHover(key *models.Key)
	now() time.Time
}

type lastClick struct {
	at   ScreenPoint
	when time.Time
}

// GestureController turns raw pointer input into pan, zoom, hover, click and heading
// gestures.
type GestureController struct {
	host        gestureHost
	state       gestureState
	hover       *Debouncer
	hoverOwner  Owner
	click       *lastClick
	doubleClick time.Duration
}

func newGestureController(host gestureHost, sched Scheduler, hoverDelay, doubleClick time.Duration) *GestureController {
	return &GestureController{
		host:        host,
		state:       idleState{},
		hover:       NewDebouncer(sched, hoverDelay),
		doubleClick: doubleClick,
	}
}

// Mode reports default or assign.
func (g *GestureController) Mode() Mode {
	return g.state.mode()
}

// Indicating reports whether a heading gesture is in progress.
func (g *GestureController) Indicating() bool {
	_, ok := g.state.(indicateState)
	return ok
}

// EnterAssignMode arms the next press to start a heading gesture. A pan in progress is
// abandoned. It is a no-op while already in assign mode.
func (g *GestureController) EnterAssignMode() {
	switch g.state.(type) {
	case idleState, panningState:
		g.state = assignState{}
	}
}

// CancelAssign returns to default mode, tearing down a running indicator without
// reporting a result.
func (g *GestureController) CancelAssign() {
	switch s := g.state.(type) {
	case assignState:
		g.state = idleState{}
	case indicateState:
		s.indicator.cancel()
		g.state = idleState{}
	}
}

// PointerDown records the press in default mode or starts the indicator in assign mode.
func (g *GestureController) PointerDown(at ScreenPoint) {
	switch g.state.(type) {
	case idleState:
		g.state = panningState{press: at, last: at}
	case assignState:
		ev := g.host.locate(at)
		ind := g.host.startIndicator(ev.Domain, g.finishIndicator)
		g.state = indicateState{indicator: ind}
	}
}

// PointerMove pans while pressed, feeds the cursor readout, and tracks hover.
func (g *GestureController) PointerMove(at ScreenPoint) {
	if s, ok := g.state.(panningState); ok {
		g.host.setViewport(g.host.viewport().Pan(at.X-s.last.X, at.Y-s.last.Y))
		s.last = at
		g.state = s
	}
	ev := g.host.locate(at)
	g.host.emit(EventCursor, ev)
	g.host.emit(EventPointerMove, ev)
	g.track(ev.Target)
}

// PointerUp ends a press. Releasing at exactly the press position is a click.
func (g *GestureController) PointerUp(at ScreenPoint) {
	ev := g.host.locate(at)
	if s, ok := g.state.(panningState); ok {
		g.state = idleState{}
		if s.press == at {
			g.emitClick(ev)
		}
	}
	g.host.emit(EventPointerUp, ev)
}

// Wheel zooms by delta/2000 around the pointer, in any state.
func (g *GestureController) Wheel(delta float64, at ScreenPoint) {
	vp := g.host.viewport()
	g.host.setViewport(vp.ZoomToPoint(at, vp.zoom()+delta/2000))
}

// PointerOver reports the pointer entering an object.
func (g *GestureController) PointerOver(o *Object) {
	g.track(o)
}

// PointerOut reports the pointer leaving the canvas or an object.
func (g *GestureController) PointerOut() {
	g.track(nil)
}

func (g *GestureController) emitClick(ev PointerEvent) {
	g.host.emit(EventClick, ev)
	now := g.host.now()
	if g.click != nil && g.click.at == ev.Screen && now.Sub(g.click.when) <= g.doubleClick {
		g.host.emit(EventDoubleClick, ev)
		g.click = nil
		return
	}
	g.click = &lastClick{at: ev.Screen, when: now}
}

// track debounces hover changes. Only waypoints hover; redraws keep the owner stable so
// the same waypoint under a fresh object is not a change.
func (g *GestureController) track(target *Object) {
	var owner Owner
	if target != nil && target.Owner.Kind == EntityWayPoint {
		owner = target.Owner
	}
	if owner == g.hoverOwner {
		return
	}
	g.hoverOwner = owner
	g.hover.Trigger(func() {
		if owner.Kind != EntityWayPoint {
			g.host.setHover(nil)
			return
		}
		key := owner.Key
		g.host.setHover(&key)
	})
}

func (g *GestureController) finishIndicator(res IndicatorResult) {
	g.state = idleState{}
	g.host.emit(EventIndicate, res)
}
