package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"patro-map/mapview"
	"patro-map/models"
	"patro-map/services"
)

type fakeDispatcher struct {
	planResp *models.PlanResponse
	planErr  error
	stopErr  error
	planned  []string
	stopped  []string
}

func (f *fakeDispatcher) Plan(ctx context.Context, robot string, target models.PointRef, angle float64) (*models.PlanResponse, error) {
	f.planned = append(f.planned, robot+"->"+target.String())
	return f.planResp, f.planErr
}

func (f *fakeDispatcher) Stop(ctx context.Context, robot string) error {
	f.stopped = append(f.stopped, robot)
	return f.stopErr
}

type testServer struct {
	*Server
	app        *fiber.App
	dispatcher *fakeDispatcher
	ctx        context.Context
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	log := zerolog.Nop()
	loop := mapview.NewLoop(log)
	dl := mapview.NewDisplayList(800, 600)
	m := mapview.New(mapview.Options{
		Canvas:    dl,
		Coords:    mapview.NewCoordinateSystem(1, 1),
		Scheduler: loop.Scheduler(),
		Logger:    log,
	})
	metrics := services.NewMetrics()
	manager := NewClientManager(metrics, log)
	manager.AttachMap(loop, m, dl)
	dispatcher := &fakeDispatcher{}

	go loop.Run(ctx)

	var initErr error
	require.NoError(t, loop.Do(ctx, func() {
		if initErr = m.AddWayPoints(
			mapview.NewWayPoint("0", models.WayPointTask, models.Coordinates{X: 0, Y: 0}),
			mapview.NewWayPoint("1", models.WayPointCharge, models.Coordinates{X: 100, Y: 0}),
		); initErr != nil {
			return
		}
		if initErr = m.AddRoads(&mapview.Road{
			Key: "r1", Mode: models.RoadTwoWay, Gait: models.GaitFlat,
			Begin: models.Ref("0"), End: models.Ref("1"),
		}); initErr != nil {
			return
		}
		initErr = m.Initiate()
	}))
	require.NoError(t, initErr)

	s := NewServer(Dependencies{
		Loop:       loop,
		Map:        m,
		Display:    dl,
		Manager:    manager,
		Robots:     NewRobotManager(time.Minute, log),
		Dispatcher: dispatcher,
		Ingestor:   services.NewIngestor(loop, m, metrics, log),
		Metrics:    metrics,
		Logger:     log,
		Timeout:    time.Second,
	})
	app := fiber.New()
	RegisterRoutes(app, s)

	return &testServer{Server: s, app: app, dispatcher: dispatcher, ctx: ctx}
}

func (ts *testServer) do(t *testing.T, method, path string, body any) (int, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	resp, err := ts.app.Test(req, 2000)
	require.NoError(t, err)
	defer resp.Body.Close()

	out := map[string]any{}
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(data) > 0 && data[0] == '{' {
		require.NoError(t, json.Unmarshal(data, &out))
	}
	return resp.StatusCode, out
}

// read - inspect map state from the test goroutine
func (ts *testServer) read(t *testing.T, fn func(m *mapview.Map)) {
	t.Helper()
	require.NoError(t, ts.loop.Do(ts.ctx, func() { fn(ts.m) }))
}

// nextMessage - first queued broadcast of the given type
func (ts *testServer) nextMessage(t *testing.T, typ string) models.WebSocketMessage {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev := <-ts.manager.broadcast:
			if ev.join == nil && ev.msg.Type == typ {
				return ev.msg
			}
		case <-deadline:
			t.Fatalf("no %s message broadcast", typ)
		}
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, "GET", "/api/health", nil)
	assert.Equal(t, 200, code)
	assert.Equal(t, "OK", body["status"])
	assert.Equal(t, true, body["initiated"])
	entities := body["entities"].(map[string]any)
	assert.Equal(t, 2.0, entities["waypoints"])
}

func TestGetMapAndEntities(t *testing.T) {
	ts := newTestServer(t)

	code, snap := ts.do(t, "GET", "/api/map", nil)
	assert.Equal(t, 200, code)
	assert.Equal(t, 800.0, snap["width"])
	assert.NotEmpty(t, snap["objects"])

	code, ent := ts.do(t, "GET", "/api/map/entities", nil)
	assert.Equal(t, 200, code)
	assert.Equal(t, []any{"0", "1"}, ent["waypoints"])
	assert.Equal(t, []any{"r1"}, ent["roads"])
	assert.Equal(t, "default", ent["mode"])
}

func TestSetMode(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, "POST", "/api/mode", map[string]string{"mode": "assign"})
	assert.Equal(t, 200, code)
	assert.Equal(t, "assign", body["mode"])

	code, body = ts.do(t, "POST", "/api/mode", map[string]string{"mode": "default"})
	assert.Equal(t, 200, code)
	assert.Equal(t, "default", body["mode"])

	code, body = ts.do(t, "POST", "/api/mode", map[string]string{"mode": "fly"})
	assert.Equal(t, 400, code)
	assert.Equal(t, false, body["success"])
}

func TestHighlight(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, "POST", "/api/highlight", map[string]any{"road_keys": []string{"r1", "missing"}})
	assert.Equal(t, 200, code)

	var style mapview.Style
	ts.read(t, func(m *mapview.Map) {
		r, _ := m.Registry().Road("r1")
		style = r.DynamicStyle()
	})
	assert.NotEmpty(t, style)

	code, _ = ts.do(t, "DELETE", "/api/highlight", nil)
	assert.Equal(t, 200, code)
	ts.read(t, func(m *mapview.Map) {
		r, _ := m.Registry().Road("r1")
		style = r.DynamicStyle()
	})
	assert.Empty(t, style)
}

func TestNavigation(t *testing.T) {
	ts := newTestServer(t)

	code, body := ts.do(t, "POST", "/api/navigation", map[string]any{
		"key":    "nav",
		"points": []any{0, []float64{50, 50}, "nope", 1},
	})
	assert.Equal(t, 200, code)
	assert.Equal(t, 4.0, body["points"])
	assert.Equal(t, 3.0, body["resolved"])

	code, _ = ts.do(t, "POST", "/api/navigation", map[string]any{"points": []any{0}})
	assert.Equal(t, 400, code)

	code, _ = ts.do(t, "DELETE", "/api/navigation/nav", nil)
	assert.Equal(t, 200, code)
	code, _ = ts.do(t, "DELETE", "/api/navigation/nav", nil)
	assert.Equal(t, 404, code)
}

func TestPlanSuccessDrawsOverlay(t *testing.T) {
	ts := newTestServer(t)
	ts.dispatcher.planResp = &models.PlanResponse{
		Code: 0,
		Path: []models.PointRef{models.Ref("0"), models.Ref("1")},
	}

	code, body := ts.do(t, "POST", "/api/dispatch/plan", map[string]any{"robot": "robot-1", "waypoint": "1", "angle": 90})
	assert.Equal(t, 200, code)
	assert.Equal(t, true, body["success"])
	assert.Equal(t, []string{"robot-1->1"}, ts.dispatcher.planned)

	var found bool
	ts.read(t, func(m *mapview.Map) { _, found = m.Registry().Navigation("robot-1") })
	assert.True(t, found)

	note := ts.nextMessage(t, models.MessageTypeNotification).Data.(models.NotificationData)
	assert.Equal(t, models.LevelSuccess, note.Level)

	code, _ = ts.do(t, "POST", "/api/dispatch/stop", map[string]any{"robot": "robot-1"})
	assert.Equal(t, 200, code)
	ts.read(t, func(m *mapview.Map) { _, found = m.Registry().Navigation("robot-1") })
	assert.False(t, found)
}

func TestPlanByCoordinates(t *testing.T) {
	ts := newTestServer(t)
	ts.dispatcher.planResp = &models.PlanResponse{}

	code, _ := ts.do(t, "POST", "/api/dispatch/plan", map[string]any{"robot": "robot-1", "x": 1.5, "y": 2})
	assert.Equal(t, 200, code)
	assert.Equal(t, []string{"robot-1->(1.5,2,0)"}, ts.dispatcher.planned)
}

func TestPlanRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.dispatcher.planResp = &models.PlanResponse{Code: 7}
	ts.dispatcher.planErr = &services.DispatchError{Op: "plan", Code: 7}

	code, body := ts.do(t, "POST", "/api/dispatch/plan", map[string]any{"robot": "robot-1", "waypoint": "1"})
	assert.Equal(t, 502, code)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, 7.0, body["code"])

	note := ts.nextMessage(t, models.MessageTypeNotification).Data.(models.NotificationData)
	assert.Equal(t, models.LevelError, note.Level)
	assert.Equal(t, 7, note.Code)

	var found bool
	ts.read(t, func(m *mapview.Map) { _, found = m.Registry().Navigation("robot-1") })
	assert.False(t, found)
}

func TestStopRejected(t *testing.T) {
	ts := newTestServer(t)
	ts.dispatcher.stopErr = &services.DispatchError{Op: "stop", Code: 3}

	code, body := ts.do(t, "POST", "/api/dispatch/stop", map[string]any{"robot": "robot-1"})
	assert.Equal(t, 502, code)
	assert.Equal(t, 3.0, body["code"])
}

func TestPlanBadRequest(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, "POST", "/api/dispatch/plan", map[string]any{"waypoint": "1"})
	assert.Equal(t, 400, code)
	code, _ = ts.do(t, "POST", "/api/dispatch/plan", map[string]any{"robot": "robot-1", "x": 1})
	assert.Equal(t, 400, code)
	assert.Empty(t, ts.dispatcher.planned)
}

func TestLogsWithoutDatabase(t *testing.T) {
	ts := newTestServer(t)

	code, _ := ts.do(t, "GET", "/api/logs/recent", nil)
	assert.Equal(t, 503, code)
	code, _ = ts.do(t, "GET", "/api/logs/type", nil)
	assert.Equal(t, 400, code)
	code, _ = ts.do(t, "GET", "/api/logs/range?start=yesterday", nil)
	assert.Equal(t, 400, code)
}

func TestMetricsRoute(t *testing.T) {
	ts := newTestServer(t)

	resp, err := ts.app.Test(httptest.NewRequest("GET", "/metrics", nil))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Contains(t, string(data), "patro_entity_draws_total")
}

func TestWebInputClick(t *testing.T) {
	ts := newTestServer(t)

	down, _ := json.Marshal(models.PointerData{Action: models.PointerDown, X: 10, Y: 10})
	up, _ := json.Marshal(models.PointerData{Action: models.PointerUp, X: 10, Y: 10})
	ts.handleWebInput(models.MessageTypePointer, down)
	ts.handleWebInput(models.MessageTypePointer, up)

	msg := ts.nextMessage(t, models.MessageTypeClick)
	pe := msg.Data.(mapview.PointerEvent)
	assert.Equal(t, mapview.ScreenPoint{X: 10, Y: 10}, pe.Screen)
}

func TestWebInputModeAndWheel(t *testing.T) {
	ts := newTestServer(t)

	var before mapview.Viewport
	ts.read(t, func(m *mapview.Map) { before = m.Canvas().Viewport() })

	wheel, _ := json.Marshal(models.PointerData{Action: models.PointerWheel, X: 400, Y: 300, Delta: 200})
	ts.handleWebInput(models.MessageTypePointer, wheel)
	mode, _ := json.Marshal(models.ModeData{Mode: "assign"})
	ts.handleWebInput(models.MessageTypeMode, mode)

	var (
		after mapview.Viewport
		m     mapview.Mode
	)
	ts.read(t, func(mp *mapview.Map) {
		after = mp.Canvas().Viewport()
		m = mp.Mode()
	})
	assert.InDelta(t, before.Zoom+0.1, after.Zoom, 1e-9)
	assert.Equal(t, mapview.ModeAssign, m)

	// viewport change reached clients as scene ops
	ops := ts.nextMessage(t, models.MessageTypeSceneOps).Data.([]mapview.Op)
	assert.NotEmpty(t, ops)
}

func TestRecenter(t *testing.T) {
	ts := newTestServer(t)
	ts.read(t, func(m *mapview.Map) {
		m.Canvas().SetViewport(mapview.Viewport{Zoom: 1, PanX: -500})
	})

	status, body := ts.do(t, fiber.MethodPost, "/api/map/recenter", nil)
	require.Equal(t, fiber.StatusOK, status)
	view, ok := body["viewport"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 7.2, view["zoom"], 1e-9)

	var zoom float64
	ts.read(t, func(m *mapview.Map) { zoom = m.Canvas().Viewport().Zoom })
	assert.InDelta(t, 7.2, zoom, 1e-9)
}
