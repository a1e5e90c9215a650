package mapview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patro-map/models"
)

func TestInitiateRunsOnce(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)

	require.NoError(t, tm.Initiate())
	assert.True(t, tm.Initiated())
	assert.ErrorIs(t, tm.Initiate(), ErrAlreadyInitiated)
}

func TestInitiateDrawsEverythingAndFrames(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)
	fence, err := NewFence("f", models.FenceBoundary, []models.Coordinates{{X: 0, Y: 0}, {X: 100, Y: 0}, {X: 50, Y: 0}})
	require.NoError(t, err)
	require.NoError(t, tm.AddFences(fence))
	require.NoError(t, tm.AddRobot(NewRobot("R1", models.Coordinates{X: 10}, 0)))

	assert.Zero(t, tm.dl.Len())
	require.NoError(t, tm.Initiate())

	assert.Len(t, tm.objects(EntityMarker, KindCircle), 1)
	assert.Len(t, tm.objects(EntityFence, KindPolygon), 1)
	assert.Len(t, tm.objects(EntityRoad, KindLine), 1)
	assert.Len(t, tm.objects(EntityWayPoint, KindCircle), 2)
	assert.Len(t, tm.objects(EntityRobot, KindRobot), 1)

	// Bounds are 100 wide and flat; the width fits 90% of 800 pixels.
	vp := tm.dl.Viewport()
	assert.InDelta(t, 7.2, vp.Zoom, 1e-9)
	center := tm.screenOf(models.Coordinates{X: 50})
	assert.InDelta(t, 400, center.X, 1e-9)
	assert.InDelta(t, 300, center.Y, 1e-9)
}

func TestRecenterRestoresFrame(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)
	assert.ErrorIs(t, tm.Recenter(), ErrNotInitiated)

	require.NoError(t, tm.Initiate())
	framed := tm.dl.Viewport()
	tm.Wheel(500, ScreenPoint{X: 10, Y: 10})
	require.NotEqual(t, framed, tm.dl.Viewport())

	require.NoError(t, tm.Recenter())
	assert.Equal(t, framed, tm.dl.Viewport())
}

func TestInitiateHonoursZoomAndOffset(t *testing.T) {
	tm := newTestMap(t, func(o *Options) {
		o.InitialZoom = 2
		o.InitOffset = [2]float64{10, -5}
	})
	addScenarioA(t, tm.Map)
	require.NoError(t, tm.Initiate())

	vp := tm.dl.Viewport()
	assert.Equal(t, 2.0, vp.Zoom)
	center := tm.screenOf(models.Coordinates{X: 50})
	assert.InDelta(t, 410, center.X, 1e-9)
	assert.InDelta(t, 295, center.Y, 1e-9)
}

func TestInitiateWithEmptyScene(t *testing.T) {
	tm := newTestMap(t)
	require.NoError(t, tm.Initiate())
	assert.Equal(t, Viewport{Zoom: 1, PanX: 400, PanY: 300}, tm.dl.Viewport())
}

func TestNavigationOverlayResolvesMixedPoints(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)
	require.NoError(t, tm.Initiate())

	n := tm.Navigate("R1", []models.PointRef{
		models.Ref("0"),
		models.At(models.Coordinates{X: 50, Y: 50, Z: 0}),
		models.Ref("1"),
	})

	resolved := n.Resolved(tm.Registry())
	require.Len(t, resolved, 3)
	assert.Equal(t, models.Coordinates{X: 0, Y: 0}, *resolved[0])
	assert.Equal(t, models.Coordinates{X: 50, Y: 50}, *resolved[1])
	assert.Equal(t, models.Coordinates{X: 100, Y: 0}, *resolved[2])

	assert.Len(t, tm.objects(EntityNavigation, KindCircle), 3)
	lines := tm.objects(EntityNavigation, KindLine)
	require.Len(t, lines, 2)
	assert.Equal(t, tm.coords.ToView(models.Coordinates{}), lines[0].Points[0])
	assert.Equal(t, tm.coords.ToView(models.Coordinates{X: 50, Y: 50}), lines[0].Points[1])
	assert.Equal(t, tm.coords.ToView(models.Coordinates{X: 100}), lines[1].Points[1])
}

func TestNavigationUnresolvedPointBreaksOnlyItsSegments(t *testing.T) {
	tests := []struct {
		name    string
		points  []models.PointRef
		markers int
		lines   int
	}{
		{"middle", []models.PointRef{models.Ref("0"), models.Ref("x"), models.Ref("1")}, 2, 0},
		{"last", []models.PointRef{models.Ref("0"), models.Ref("1"), models.Ref("x")}, 2, 1},
		{"first", []models.PointRef{models.Ref("x"), models.Ref("0"), models.Ref("1"), models.Ref("0")}, 3, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tm := newTestMap(t)
			addScenarioA(t, tm.Map)
			tm.Navigate("n", tt.points)
			assert.Len(t, tm.objects(EntityNavigation, KindCircle), tt.markers)
			assert.Len(t, tm.objects(EntityNavigation, KindLine), tt.lines)
		})
	}
}

func TestNavigationReplaceAndClear(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)

	tm.Navigate("a", []models.PointRef{models.Ref("0"), models.Ref("1")})
	tm.Navigate("b", []models.PointRef{models.Ref("1"), models.Ref("0")})
	tm.Navigate("a", []models.PointRef{models.Ref("0"), models.Ref("1"), models.Ref("0")})

	assert.Equal(t, 2, tm.Registry().Counts().Navigations)
	assert.Len(t, tm.objectsOf(Owner{Kind: EntityNavigation, Key: "a"}, KindCircle), 3)
	assert.Len(t, tm.objectsOf(Owner{Kind: EntityNavigation, Key: "b"}, KindCircle), 2)

	assert.True(t, tm.ClearNavigation("a"))
	assert.Empty(t, tm.objectsOf(Owner{Kind: EntityNavigation, Key: "a"}, KindCircle))
	assert.Len(t, tm.objectsOf(Owner{Kind: EntityNavigation, Key: "b"}, KindLine), 1)
	assert.False(t, tm.ClearNavigation("a"))
	assert.Equal(t, 1, tm.Registry().Counts().Navigations)
}

func TestHighlightIsIdempotent(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)
	require.NoError(t, tm.Initiate())

	h := DefaultHighlight([]models.Key{"r1"}, []models.Key{"0", "nope"}, nil)
	roadStyle := func() Style {
		lines := tm.objects(EntityRoad, KindLine)
		require.Len(t, lines, 1)
		return lines[0].Style
	}
	wayStyle := func() Style {
		circles := tm.objectsOf(Owner{Kind: EntityWayPoint, Key: "0"}, KindCircle)
		require.Len(t, circles, 1)
		return circles[0].Style
	}

	tm.Highlight(h)
	tm.Highlight(h)
	twiceRoad, twiceWay := roadStyle(), wayStyle()

	tm.ClearHighlight()
	assert.Equal(t, "#1c7ed6", roadStyle()["stroke"])
	tm.Highlight(h)

	assert.Equal(t, twiceRoad, roadStyle())
	assert.Equal(t, twiceWay, wayStyle())
	assert.Equal(t, "#f08c00", roadStyle()["stroke"])
}

func TestHighlightRevertsPreviousSet(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)
	require.NoError(t, tm.Initiate())

	tm.Highlight(DefaultHighlight([]models.Key{"r1"}, nil, nil))
	tm.Highlight(DefaultHighlight(nil, []models.Key{"1"}, nil))

	r, _ := tm.Registry().Road("r1")
	assert.Empty(t, r.DynamicStyle())
	w, _ := tm.Registry().WayPoint("1")
	assert.Equal(t, "#f08c00", w.DynamicStyle()["fill"])

	active, ok := tm.ActiveHighlight()
	require.True(t, ok)
	assert.Equal(t, []models.Key{"1"}, active.WayPointKeys)
}

func TestStyleLayering(t *testing.T) {
	tm := newTestMap(t, func(o *Options) {
		o.Styles = StyleConfig{
			WayPoint: func(a WayPointAttrs) Style {
				if a.Type == models.WayPointCharge {
					return Style{"fill": "blue", "radius": 8.0}
				}
				return nil
			},
		}
	})
	addScenarioA(t, tm.Map)
	require.NoError(t, tm.Initiate())

	circle := func() *Object {
		c := tm.objectsOf(Owner{Kind: EntityWayPoint, Key: "1"}, KindCircle)
		require.Len(t, c, 1)
		return c[0]
	}
	assert.Equal(t, 8.0, circle().Radius)
	assert.Equal(t, "blue", circle().Style["fill"])
	assert.Equal(t, "#000000", circle().Style["stroke"])

	tm.Highlight(HighlightSet{WayPointKeys: []models.Key{"1"}, WayPointStyle: Style{"fill": "orange"}})
	assert.Equal(t, "orange", circle().Style["fill"])
	assert.Equal(t, 8.0, circle().Radius)

	tm.setHover(keyPtr("1"))
	assert.Equal(t, "#099268", circle().Style["fill"])
	assert.Equal(t, 20.0, circle().Radius)
}

func TestRobotUpdatesQueueUntilInitiate(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)

	heading := 30.0
	added, err := tm.ApplyRobotUpdate("R1", models.Coordinates{X: 1, Y: 2}, &heading)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 1, tm.Pending())
	assert.Zero(t, tm.Registry().Counts().Robots)

	require.NoError(t, tm.Initiate())
	assert.Zero(t, tm.Pending())
	r, ok := tm.Registry().Robot("R1")
	require.True(t, ok)
	assert.Equal(t, models.Coordinates{X: 1, Y: 2}, r.Center())
	assert.Equal(t, 30.0, r.Heading())
	assert.Len(t, tm.objects(EntityRobot, KindRobot), 1)

	added, err = tm.ApplyRobotUpdate("R2", models.Coordinates{}, nil)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = tm.ApplyRobotUpdate("R2", models.Coordinates{X: 5}, nil)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Equal(t, 2, tm.Registry().Counts().Robots)
}

func TestPendingQueueDropsOldest(t *testing.T) {
	tm := newTestMap(t, func(o *Options) { o.PendingLimit = 2 })
	for _, k := range []models.Key{"a", "b", "c"} {
		_, err := tm.ApplyRobotUpdate(k, models.Coordinates{}, nil)
		require.NoError(t, err)
	}
	assert.Equal(t, 2, tm.Pending())

	require.NoError(t, tm.Initiate())
	_, ok := tm.Registry().Robot("a")
	assert.False(t, ok)
	_, ok = tm.Registry().Robot("c")
	assert.True(t, ok)
}

func TestMoveRobotRedrawsOnlyItsVisual(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)
	require.NoError(t, tm.AddRobot(NewRobot("R1", models.Coordinates{}, 90)))
	require.NoError(t, tm.Initiate())
	moved := collect(tm.Bus(), EventRobotMoved)

	before := tm.objects(EntityRobot, KindRobot)
	require.Len(t, before, 1)
	others := tm.dl.Len()

	require.NoError(t, tm.MoveRobot("R1", models.Coordinates{X: 40, Y: 10}, nil))

	after := tm.objects(EntityRobot, KindRobot)
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0].ID, after[0].ID)
	assert.Equal(t, tm.coords.ToView(models.Coordinates{X: 40, Y: 10}), after[0].Anchor())
	assert.Equal(t, -90.0, after[0].Angle)
	assert.Equal(t, others, tm.dl.Len())

	require.Len(t, *moved, 1)
	assert.Equal(t, 90.0, (*moved)[0].Payload.(RobotEvent).Heading)

	err := tm.MoveRobot("ghost", models.Coordinates{}, nil)
	assert.ErrorIs(t, err, ErrRobotNotFound)
}

func TestAddRobotAfterInitiateDrawsAtOnce(t *testing.T) {
	tm := newTestMap(t)
	require.NoError(t, tm.Initiate())
	added := collect(tm.Bus(), EventRobotAdded)

	require.NoError(t, tm.AddRobot(NewRobot("R9", models.Coordinates{X: 3}, 0)))
	assert.Len(t, tm.objects(EntityRobot, KindRobot), 1)
	assert.Len(t, *added, 1)
}

func TestLateWayPointCompletesRoad(t *testing.T) {
	tm := newTestMap(t)
	require.NoError(t, tm.AddWayPoints(NewWayPoint("a", models.WayPointTask, models.Coordinates{})))
	require.NoError(t, tm.AddRoads(&Road{Key: "r", Begin: models.Ref("a"), End: models.Ref("b")}))
	require.NoError(t, tm.Initiate())
	assert.Empty(t, tm.objects(EntityRoad, KindLine))

	require.NoError(t, tm.AddWayPoints(NewWayPoint("b", models.WayPointTask, models.Coordinates{X: 10})))
	assert.Len(t, tm.objects(EntityRoad, KindLine), 1)
}

func TestDebugLabels(t *testing.T) {
	tm := newTestMap(t)
	addScenarioA(t, tm.Map)
	require.NoError(t, tm.Initiate())
	plain := len(tm.objects(EntityRoad, KindText))

	tm.SetDebug(true)
	assert.Equal(t, plain+3, len(tm.objects(EntityRoad, KindText)))
	texts := tm.objectsOf(Owner{Kind: EntityWayPoint, Key: "1"}, KindText)
	require.Len(t, texts, 2)
	assert.Equal(t, "(100, 0)", texts[1].Text)

	tm.SetDebug(false)
	assert.Equal(t, plain, len(tm.objects(EntityRoad, KindText)))
}

func keyPtr(k models.Key) *models.Key { return &k }
