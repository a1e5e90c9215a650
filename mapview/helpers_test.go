package mapview

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"patro-map/models"
)

type testMap struct {
	*Map
	dl    *DisplayList
	sched *ManualScheduler
}

func newTestMap(t *testing.T, mutate ...func(*Options)) *testMap {
	t.Helper()
	dl := NewDisplayList(800, 600)
	sched := NewManualScheduler(time.Unix(1700000000, 0))
	opts := Options{
		Canvas:    dl,
		Coords:    NewCoordinateSystem(1, 1),
		Scheduler: sched,
		Logger:    zerolog.Nop(),
	}
	for _, fn := range mutate {
		fn(&opts)
	}
	return &testMap{Map: New(opts), dl: dl, sched: sched}
}

// addScenarioA registers waypoints 0:(0,0), 1:(100,0) and road r1 between them.
func addScenarioA(t *testing.T, m *Map) {
	t.Helper()
	require.NoError(t, m.AddWayPoints(
		NewWayPoint("0", models.WayPointTask, models.Coordinates{X: 0, Y: 0}),
		NewWayPoint("1", models.WayPointCharge, models.Coordinates{X: 100, Y: 0}),
	))
	require.NoError(t, m.AddRoads(&Road{
		Key:   "r1",
		Mode:  models.RoadTwoWay,
		Gait:  models.GaitFlat,
		Begin: models.Ref("0"),
		End:   models.Ref("1"),
	}))
}

func (tm *testMap) objects(owner EntityKind, kind ObjectKind) []*Object {
	return tm.dl.Find(func(o *Object) bool {
		return o.Owner.Kind == owner && o.Kind == kind
	})
}

func (tm *testMap) objectsOf(owner Owner, kind ObjectKind) []*Object {
	return tm.dl.Find(func(o *Object) bool {
		return o.Owner == owner && o.Kind == kind
	})
}

// screenOf is where a domain point appears under the current viewport.
func (tm *testMap) screenOf(c models.Coordinates) ScreenPoint {
	return tm.dl.Viewport().ToScreen(tm.coords.ToView(c))
}

func collect(bus *EventBus, types ...EventType) *[]Event {
	var out []Event
	bus.SubscribeTypes(func(e Event) { out = append(out, e) }, types...)
	return &out
}
