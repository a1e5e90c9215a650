package mapview

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patro-map/models"
)

// newGestureMap frames scenario A at zoom 1: waypoint 0 sits at screen (350, 300) and
// waypoint 1 at (450, 300).
func newGestureMap(t *testing.T) *testMap {
	t.Helper()
	tm := newTestMap(t, func(o *Options) { o.InitialZoom = 1 })
	addScenarioA(t, tm.Map)
	require.NoError(t, tm.Initiate())
	require.Equal(t, ScreenPoint{X: 350, Y: 300}, tm.screenOf(models.Coordinates{}))
	return tm
}

func TestClickIsPixelExact(t *testing.T) {
	tm := newGestureMap(t)
	clicks := collect(tm.Bus(), EventClick)

	at := ScreenPoint{X: 100, Y: 100}
	tm.PointerDown(at)
	tm.PointerUp(at)

	require.Len(t, *clicks, 1)
	ev := (*clicks)[0].Payload.(PointerEvent)
	assert.Equal(t, at, ev.Screen)
	assert.Equal(t, ViewPoint{X: -250, Y: -200}, ev.Scene)
	assert.Equal(t, models.Coordinates{X: -250, Y: 200}, ev.Domain)
	assert.Equal(t, tm.Coordinates(at), ev.Domain)

	tm.PointerDown(at)
	tm.PointerUp(ScreenPoint{X: 101, Y: 100})
	assert.Len(t, *clicks, 1)
}

func TestDragPansWithoutClick(t *testing.T) {
	tm := newGestureMap(t)
	clicks := collect(tm.Bus(), EventClick)
	cursors := collect(tm.Bus(), EventCursor)
	before := tm.dl.Viewport()

	tm.PointerDown(ScreenPoint{X: 100, Y: 100})
	tm.PointerMove(ScreenPoint{X: 110, Y: 105})
	tm.PointerMove(ScreenPoint{X: 130, Y: 90})
	tm.PointerUp(ScreenPoint{X: 130, Y: 90})

	after := tm.dl.Viewport()
	assert.Equal(t, before.PanX+30, after.PanX)
	assert.Equal(t, before.PanY-10, after.PanY)
	assert.Equal(t, before.Zoom, after.Zoom)
	assert.Empty(t, *clicks)
	assert.Len(t, *cursors, 2)

	// Moving without a press does not pan.
	tm.PointerMove(ScreenPoint{X: 0, Y: 0})
	assert.Equal(t, after, tm.dl.Viewport())
}

func TestDoubleClickWindow(t *testing.T) {
	tm := newGestureMap(t)
	doubles := collect(tm.Bus(), EventDoubleClick)
	at := ScreenPoint{X: 10, Y: 20}
	click := func() {
		tm.PointerDown(at)
		tm.PointerUp(at)
	}

	click()
	tm.sched.Advance(100 * time.Millisecond)
	click()
	assert.Len(t, *doubles, 1)

	click()
	tm.sched.Advance(400 * time.Millisecond)
	click()
	assert.Len(t, *doubles, 1)
}

func TestWheelZoomsAroundPointer(t *testing.T) {
	tm := newGestureMap(t)
	at := ScreenPoint{X: 200, Y: 150}
	scene := tm.dl.Viewport().ToScene(at)

	tm.Wheel(2000, at)
	vp := tm.dl.Viewport()
	assert.InDelta(t, 2.0, vp.Zoom, 1e-9)
	after := vp.ToScene(at)
	assert.InDelta(t, scene.X, after.X, 1e-9)
	assert.InDelta(t, scene.Y, after.Y, 1e-9)

	tm.Wheel(1e9, at)
	assert.Equal(t, MaxZoom, tm.dl.Viewport().Zoom)
	tm.Wheel(-1e9, at)
	assert.Equal(t, MinZoom, tm.dl.Viewport().Zoom)
}

func TestHoverIsDebounced(t *testing.T) {
	tm := newGestureMap(t)
	hovers := collect(tm.Bus(), EventHover)
	w, _ := tm.Registry().WayPoint("0")
	over := ScreenPoint{X: 350, Y: 300}
	away := ScreenPoint{X: 350, Y: 450}

	tm.PointerMove(over)
	tm.sched.Advance(30 * time.Millisecond)
	tm.PointerMove(away)
	tm.sched.Advance(30 * time.Millisecond)
	tm.PointerMove(over)
	assert.Empty(t, *hovers)
	assert.False(t, w.Hovering())

	tm.sched.Advance(DefaultHoverDelay)
	require.Len(t, *hovers, 1)
	assert.Equal(t, HoverEvent{Key: "0", Hovering: true}, (*hovers)[0].Payload)
	assert.True(t, w.Hovering())
	key, ok := tm.Hovered()
	require.True(t, ok)
	assert.Equal(t, models.Key("0"), key)

	circles := tm.objectsOf(Owner{Kind: EntityWayPoint, Key: "0"}, KindCircle)
	require.Len(t, circles, 1)
	assert.Equal(t, 20.0, circles[0].Radius)

	// The redrawn circle is a new object with the same owner: no change.
	tm.PointerMove(ScreenPoint{X: 352, Y: 300})
	assert.Zero(t, tm.sched.Pending())

	tm.PointerMove(away)
	tm.sched.Advance(10 * time.Millisecond)
	tm.PointerMove(over)
	tm.sched.Advance(10 * time.Millisecond)
	tm.PointerOut()
	tm.sched.Advance(DefaultHoverDelay)

	require.Len(t, *hovers, 2)
	assert.Equal(t, HoverEvent{Key: "0", Hovering: false}, (*hovers)[1].Payload)
	assert.False(t, w.Hovering())
}

func TestHoverSwitchesBetweenWayPoints(t *testing.T) {
	tm := newGestureMap(t)
	w0, _ := tm.Registry().WayPoint("0")
	w1, _ := tm.Registry().WayPoint("1")

	tm.PointerMove(ScreenPoint{X: 350, Y: 300})
	tm.sched.Advance(DefaultHoverDelay)
	tm.PointerMove(ScreenPoint{X: 450, Y: 300})
	tm.sched.Advance(DefaultHoverDelay)

	assert.False(t, w0.Hovering())
	assert.True(t, w1.Hovering())
}

func TestIndicatorReportsHeadingAndWayPoint(t *testing.T) {
	tm := newGestureMap(t)
	indicates := collect(tm.Bus(), EventIndicate)
	clicks := collect(tm.Bus(), EventClick)
	baseline := tm.Bus().Count()

	tm.EnterAssignMode()
	assert.Equal(t, ModeAssign, tm.Mode())

	tm.PointerDown(ScreenPoint{X: 350, Y: 400})
	assert.Equal(t, baseline+1, tm.Bus().Count())
	assert.Len(t, tm.objects(EntityIndicator, KindCircle), 1)
	assert.Len(t, tm.objects(EntityIndicator, KindTriangle), 1)

	tm.PointerMove(ScreenPoint{X: 350, Y: 300})
	labels := tm.objects(EntityIndicator, KindText)
	require.Len(t, labels, 1)
	assert.Equal(t, "90°", labels[0].Text)
	arrows := tm.objects(EntityIndicator, KindTriangle)
	require.Len(t, arrows, 1)
	assert.Equal(t, 0.0, arrows[0].Angle)

	tm.PointerUp(ScreenPoint{X: 350, Y: 300})

	require.Len(t, *indicates, 1)
	res := (*indicates)[0].Payload.(IndicatorResult)
	assert.Equal(t, 0.0, res.X)
	assert.Equal(t, -100.0, res.Y)
	assert.Equal(t, 90.0, res.Angle)
	require.NotNil(t, res.WaypointKey)
	assert.Equal(t, models.Key("0"), *res.WaypointKey)

	assert.Empty(t, tm.dl.Find(func(o *Object) bool { return o.Owner.Kind == EntityIndicator }))
	assert.Equal(t, baseline, tm.Bus().Count())
	assert.Equal(t, ModeDefault, tm.Mode())
	assert.Empty(t, *clicks)
}

func TestRobotParkedOnWayPointDoesNotHideIt(t *testing.T) {
	tm := newGestureMap(t)
	require.NoError(t, tm.AddRobot(NewRobot("R1", models.Coordinates{X: 100}, 0)))
	indicates := collect(tm.Bus(), EventIndicate)
	w1, _ := tm.Registry().WayPoint("1")

	tm.PointerMove(ScreenPoint{X: 450, Y: 300})
	tm.sched.Advance(DefaultHoverDelay)
	assert.True(t, w1.Hovering())

	tm.EnterAssignMode()
	tm.PointerDown(ScreenPoint{X: 450, Y: 400})
	tm.PointerMove(ScreenPoint{X: 450, Y: 300})
	tm.PointerUp(ScreenPoint{X: 450, Y: 300})

	require.Len(t, *indicates, 1)
	res := (*indicates)[0].Payload.(IndicatorResult)
	require.NotNil(t, res.WaypointKey)
	assert.Equal(t, models.Key("1"), *res.WaypointKey)
}

func TestIndicatorWithoutWayPoint(t *testing.T) {
	tm := newGestureMap(t)
	indicates := collect(tm.Bus(), EventIndicate)

	tm.EnterAssignMode()
	tm.PointerDown(ScreenPoint{X: 450, Y: 400})
	tm.PointerMove(ScreenPoint{X: 450, Y: 500})
	tm.PointerUp(ScreenPoint{X: 450, Y: 500})

	require.Len(t, *indicates, 1)
	res := (*indicates)[0].Payload.(IndicatorResult)
	assert.Equal(t, 100.0, res.X)
	assert.Equal(t, -100.0, res.Y)
	assert.Equal(t, 270.0, res.Angle)
	assert.Nil(t, res.WaypointKey)
}

func TestCancelAssignTearsDownIndicator(t *testing.T) {
	tm := newGestureMap(t)
	indicates := collect(tm.Bus(), EventIndicate)
	baseline := tm.Bus().Count()

	tm.EnterAssignMode()
	tm.CancelAssign()
	assert.Equal(t, ModeDefault, tm.Mode())

	tm.EnterAssignMode()
	tm.PointerDown(ScreenPoint{X: 350, Y: 400})
	tm.CancelAssign()

	assert.Equal(t, ModeDefault, tm.Mode())
	assert.Equal(t, baseline, tm.Bus().Count())
	assert.Empty(t, tm.dl.Find(func(o *Object) bool { return o.Owner.Kind == EntityIndicator }))

	tm.PointerUp(ScreenPoint{X: 350, Y: 400})
	assert.Empty(t, *indicates)
}
