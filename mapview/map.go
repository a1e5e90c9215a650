package mapview

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog"

	"patro-map/models"
)

// Defaults applied by New for zero options.
const (
	DefaultHoverDelay        = 100 * time.Millisecond
	DefaultDoubleClickWindow = 300 * time.Millisecond
	DefaultPendingLimit      = 1024

	fitPadding = 0.9
)

// Options configures a Map.
type Options struct {
	Canvas Canvas
	Coords CoordinateSystem
	Styles StyleConfig
	// Scheduler runs hover debounce callbacks. Use Loop.Scheduler when the map is driven
	// from a Loop; the default fires on timer goroutines.
	Scheduler Scheduler
	Logger    zerolog.Logger

	// InitialZoom overrides the fit-to-bounds zoom when positive.
	InitialZoom float64
	// InitOffset is added to the centring pan, in screen pixels.
	InitOffset [2]float64

	HoverDelay        time.Duration
	DoubleClickWindow time.Duration
	// PendingLimit bounds robot updates queued before Initiate.
	PendingLimit int
	Debug        bool

	// OnRedraw is called once per entity draw.
	OnRedraw func(kind EntityKind)
}

type robotUpdate struct {
	key     models.Key
	center  models.Coordinates
	heading *float64
}

// Map is the scene facade. It is not safe for concurrent use; drive it from one
// goroutine, normally a Loop.
type Map struct {
	canvas  Canvas
	coords  CoordinateSystem
	styles  StyleConfig
	log     zerolog.Logger
	opts    Options
	debug   bool
	reg     *Registry
	bus     *EventBus
	gesture *GestureController
	sched   Scheduler

	initiated bool
	origin    []*Object
	highlight *HighlightSet
	hovered   *models.Key
	pending   []robotUpdate
}

// New creates a map. Entities may be added right away; nothing is drawn until Initiate.
func New(opts Options) *Map {
	if opts.Canvas == nil {
		opts.Canvas = NewDisplayList(800, 600)
	}
	if opts.Scheduler == nil {
		opts.Scheduler = timerScheduler{}
	}
	if opts.HoverDelay <= 0 {
		opts.HoverDelay = DefaultHoverDelay
	}
	if opts.DoubleClickWindow <= 0 {
		opts.DoubleClickWindow = DefaultDoubleClickWindow
	}
	if opts.PendingLimit <= 0 {
		opts.PendingLimit = DefaultPendingLimit
	}
	m := &Map{
		canvas: opts.Canvas,
		coords: opts.Coords,
		styles: opts.Styles,
		log:    opts.Logger,
		opts:   opts,
		debug:  opts.Debug,
		reg:    NewRegistry(),
		bus:    NewEventBus(),
		sched:  opts.Scheduler,
	}
	m.gesture = newGestureController(m, opts.Scheduler, opts.HoverDelay, opts.DoubleClickWindow)
	return m
}

// Bus is the event bus all map events are emitted on.
func (m *Map) Bus() *EventBus { return m.bus }

// Registry exposes the entity collections for lookups.
func (m *Map) Registry() *Registry { return m.reg }

// Canvas is the canvas the map draws into.
func (m *Map) Canvas() Canvas { return m.canvas }

// Initiated reports whether Initiate has run.
func (m *Map) Initiated() bool { return m.initiated }

// Mode is the gesture controller's coarse mode.
func (m *Map) Mode() Mode { return m.gesture.Mode() }

// Pending is the number of robot updates queued before Initiate.
func (m *Map) Pending() int { return len(m.pending) }

// Hovered returns the key of the hovered waypoint.
func (m *Map) Hovered() (models.Key, bool) {
	if m.hovered == nil {
		return "", false
	}
	return *m.hovered, true
}

func (m *Map) drawContext() *DrawContext {
	return &DrawContext{
		Canvas:   m.canvas,
		Coords:   m.coords,
		Styles:   m.styles,
		Resolver: m.reg,
		Debug:    m.debug,
		Log:      m.log,
		OnDraw:   m.opts.OnRedraw,
	}
}

// ========================================
// Topology
// ========================================

// AddFences registers fences, drawing them at once if the map is initiated.
func (m *Map) AddFences(list ...*Fence) error {
	if err := m.reg.AddFences(list...); err != nil {
		return err
	}
	if m.initiated {
		dc := m.drawContext()
		for _, f := range list {
			f.draw(dc)
		}
	}
	return nil
}

// AddRoads registers roads, drawing them at once if the map is initiated.
func (m *Map) AddRoads(list ...*Road) error {
	if err := m.reg.AddRoads(list...); err != nil {
		return err
	}
	if m.initiated {
		dc := m.drawContext()
		for _, r := range list {
			r.draw(dc)
		}
	}
	return nil
}

// AddWayPoints registers waypoints. After Initiate they are drawn at once, and roads that
// could not be drawn for want of an endpoint are retried.
func (m *Map) AddWayPoints(list ...*WayPoint) error {
	if err := m.reg.AddWayPoints(list...); err != nil {
		return err
	}
	if !m.initiated {
		return nil
	}
	dc := m.drawContext()
	for _, w := range list {
		w.draw(dc)
	}
	for _, r := range m.reg.roads.items {
		if r.drawn && len(r.objects) == 0 {
			r.redraw(dc)
		}
	}
	return nil
}

// ========================================
// Robots
// ========================================

// AddRobot registers a robot and draws it if the map is initiated. A duplicate key is an
// error and leaves the registry untouched.
func (m *Map) AddRobot(r *Robot) error {
	if err := m.reg.AddRobot(r); err != nil {
		return err
	}
	if m.initiated {
		r.draw(m.drawContext())
	}
	m.emit(EventRobotAdded, RobotEvent{Key: r.Key, Center: r.center, Heading: r.heading})
	return nil
}

// MoveRobot updates a registered robot. A nil heading keeps the previous one.
func (m *Map) MoveRobot(key models.Key, center models.Coordinates, heading *float64) error {
	r, ok := m.reg.Robot(key)
	if !ok {
		return fmt.Errorf("move %q: %w", key, ErrRobotNotFound)
	}
	r.moveTo(m.drawContext(), center, heading)
	m.emit(EventRobotMoved, RobotEvent{Key: key, Center: r.center, Heading: r.heading})
	return nil
}

// ApplyRobotUpdate is the streaming entry point: before Initiate the update is queued,
// afterwards an unseen key is added and a known one moved. added reports a new robot.
func (m *Map) ApplyRobotUpdate(key models.Key, center models.Coordinates, heading *float64) (added bool, err error) {
	if !m.initiated {
		m.enqueue(robotUpdate{key: key, center: center, heading: heading})
		return false, nil
	}
	return m.upsertRobot(key, center, heading)
}

func (m *Map) enqueue(u robotUpdate) {
	if len(m.pending) >= m.opts.PendingLimit {
		dropped := m.pending[0]
		m.pending = m.pending[1:]
		m.log.Warn().
			Str("robot", string(dropped.key)).
			Int("limit", m.opts.PendingLimit).
			Msg("pending robot queue full, dropping oldest update")
	}
	m.pending = append(m.pending, u)
}

func (m *Map) upsertRobot(key models.Key, center models.Coordinates, heading *float64) (bool, error) {
	if _, ok := m.reg.Robot(key); ok {
		return false, m.MoveRobot(key, center, heading)
	}
	var h float64
	if heading != nil {
		h = *heading
	}
	return true, m.AddRobot(NewRobot(key, center, h))
}

func (m *Map) flushPending() {
	pending := m.pending
	m.pending = nil
	for _, u := range pending {
		if _, err := m.upsertRobot(u.key, u.center, u.heading); err != nil {
			m.log.Warn().Err(err).Str("robot", string(u.key)).Msg("queued robot update failed")
		}
	}
}

// ========================================
// Initiate
// ========================================

// Bounds is the bounding box of all registered topology.
func (m *Map) Bounds() (Bounds, bool) {
	return ComputeBounds(m.reg.Points())
}

// Initiate draws the whole scene once and frames the view around it, then applies any
// robot updates that arrived early. It runs at most once.
func (m *Map) Initiate() error {
	if m.initiated {
		return ErrAlreadyInitiated
	}
	m.initiated = true

	dc := m.drawContext()
	m.drawOrigin(dc)
	for _, f := range m.reg.fences.items {
		f.draw(dc)
	}
	for _, r := range m.reg.roads.items {
		r.draw(dc)
	}
	for _, w := range m.reg.waypoints.items {
		w.draw(dc)
	}
	for _, r := range m.reg.robots.items {
		r.draw(dc)
	}

	bounds, ok := m.Bounds()
	m.canvas.SetViewport(m.frame(bounds, ok))

	m.log.Info().
		Int("fences", len(m.reg.fences.items)).
		Int("roads", len(m.reg.roads.items)).
		Int("waypoints", len(m.reg.waypoints.items)).
		Int("pending", len(m.pending)).
		Msg("map initiated")

	m.flushPending()
	return nil
}

// Recenter frames the view around the current topology again, discarding any pan or zoom.
func (m *Map) Recenter() error {
	if !m.initiated {
		return ErrNotInitiated
	}
	bounds, ok := m.Bounds()
	m.canvas.SetViewport(m.frame(bounds, ok))
	return nil
}

// frame centres the bounds on the canvas, fitting them unless a zoom is configured.
func (m *Map) frame(b Bounds, ok bool) Viewport {
	w, h := m.canvas.Size()
	zoom := m.opts.InitialZoom
	center := m.coords.ToView(models.Coordinates{})
	if ok {
		center = m.coords.ToView(b.Center())
		if zoom <= 0 {
			lo := m.coords.ToView(models.Coordinates{X: b.MinX, Y: b.MinY})
			hi := m.coords.ToView(models.Coordinates{X: b.MaxX, Y: b.MaxY})
			zoom = fitZoom(math.Abs(hi.X-lo.X), math.Abs(hi.Y-lo.Y), w, h)
		}
	}
	if zoom <= 0 {
		zoom = 1
	}
	zoom = ClampZoom(zoom)
	return Viewport{
		Zoom: zoom,
		PanX: w/2 - center.X*zoom + m.opts.InitOffset[0],
		PanY: h/2 - center.Y*zoom + m.opts.InitOffset[1],
	}
}

func fitZoom(bw, bh, w, h float64) float64 {
	zoom := math.Inf(1)
	if bw > 0 {
		zoom = math.Min(zoom, w*fitPadding/bw)
	}
	if bh > 0 {
		zoom = math.Min(zoom, h*fitPadding/bh)
	}
	if math.IsInf(zoom, 1) {
		return 1
	}
	return zoom
}

func (m *Map) drawOrigin(dc *DrawContext) {
	owner := Owner{Kind: EntityMarker, Key: "origin"}
	at := dc.Coords.ToView(models.Coordinates{})
	dot := newObject(KindCircle, owner, at)
	dot.Radius = 3
	dot.Style = Style{"fill": "#000000"}
	dot.Z = -50
	label := textObject(owner, ViewPoint{X: at.X + 6, Y: at.Y + 12}, "(0,0)", 8, -50)
	m.origin = []*Object{dot, label}
	dc.Canvas.Add(m.origin...)
	dc.drew(EntityMarker)
}

// ========================================
// Highlight and navigation
// ========================================

// Highlight reverts the active highlight set, if any, then applies h.
func (m *Map) Highlight(h HighlightSet) {
	dc := m.drawContext()
	if m.highlight != nil {
		m.highlight.revert(m.reg, dc)
	}
	m.highlight = &h
	m.highlight.apply(m.reg, dc)
}

// ClearHighlight reverts the active highlight set.
func (m *Map) ClearHighlight() {
	if m.highlight == nil {
		return
	}
	m.highlight.revert(m.reg, m.drawContext())
	m.highlight = nil
}

// ActiveHighlight returns the active highlight set.
func (m *Map) ActiveHighlight() (HighlightSet, bool) {
	if m.highlight == nil {
		return HighlightSet{}, false
	}
	return *m.highlight, true
}

// Navigate draws a path overlay under key, replacing any overlay with the same key.
func (m *Map) Navigate(key models.Key, points []models.PointRef) *Navigation {
	dc := m.drawContext()
	if old, ok := m.reg.Navigation(key); ok {
		old.clear(dc)
	}
	n := NewNavigation(key, points)
	m.reg.putNavigation(n)
	n.draw(dc)
	return n
}

// ClearNavigation removes one overlay. It reports false if no overlay has that key.
func (m *Map) ClearNavigation(key models.Key) bool {
	n, ok := m.reg.Navigation(key)
	if !ok {
		return false
	}
	n.clear(m.drawContext())
	m.reg.dropNavigation(key)
	return true
}

// SetDebug toggles coordinate labels and redraws everything on the canvas.
func (m *Map) SetDebug(on bool) {
	if m.debug == on {
		return
	}
	m.debug = on
	dc := m.drawContext()
	for _, f := range m.reg.fences.items {
		if f.drawn {
			f.redraw(dc)
		}
	}
	for _, r := range m.reg.roads.items {
		if r.drawn {
			r.redraw(dc)
		}
	}
	for _, w := range m.reg.waypoints.items {
		if w.drawn {
			w.redraw(dc)
		}
	}
}

// ========================================
// Pointer input
// ========================================

// EnterAssignMode arms the next press to start a heading gesture.
func (m *Map) EnterAssignMode() { m.gesture.EnterAssignMode() }

// CancelAssign returns to default mode.
func (m *Map) CancelAssign() { m.gesture.CancelAssign() }

func (m *Map) PointerDown(at ScreenPoint) { m.gesture.PointerDown(at) }
func (m *Map) PointerMove(at ScreenPoint) { m.gesture.PointerMove(at) }
func (m *Map) PointerUp(at ScreenPoint) { m.gesture.PointerUp(at) }
func (m *Map) PointerOut() { m.gesture.PointerOut() }
func (m *Map) PointerOver(o *Object) { m.gesture.PointerOver(o) }
func (m *Map) Wheel(delta float64, at ScreenPoint) { m.gesture.Wheel(delta, at) }

// Coordinates converts a screen position to domain coordinates.
func (m *Map) Coordinates(at ScreenPoint) models.Coordinates {
	return m.locate(at).Domain
}

// gestureHost

func (m *Map) viewport() Viewport { return m.canvas.Viewport() }

func (m *Map) setViewport(v Viewport) { m.canvas.SetViewport(v) }

func (m *Map) now() time.Time { return m.sched.Now() }

func (m *Map) locate(at ScreenPoint) PointerEvent {
	scene := m.canvas.Viewport().ToScene(at)
	return PointerEvent{
		Screen: at,
		Scene:  scene,
		Domain: m.coords.ToDomain(scene),
		Target: m.canvas.HitTest(scene),
	}
}

func (m *Map) emit(t EventType, payload any) {
	m.bus.Emit(Event{Type: t, Timestamp: m.sched.Now(), Payload: payload})
}

func (m *Map) startIndicator(anchor models.Coordinates, done func(IndicatorResult)) *Indicator {
	return newIndicator(anchor, m.bus, m.drawContext, m.reg.WayPointByObject, done)
}

// setHover moves the hover flag to key, or clears it for nil. Both waypoints redraw.
func (m *Map) setHover(key *models.Key) {
	if key == nil && m.hovered == nil {
		return
	}
	if key != nil && m.hovered != nil && *key == *m.hovered {
		return
	}
	dc := m.drawContext()
	if m.hovered != nil {
		if w, ok := m.reg.WayPoint(*m.hovered); ok {
			w.setHover(dc, false)
		}
		m.emit(EventHover, HoverEvent{Key: *m.hovered, Hovering: false})
	}
	m.hovered = key
	if key != nil {
		if w, ok := m.reg.WayPoint(*key); ok {
			w.setHover(dc, true)
		}
		m.emit(EventHover, HoverEvent{Key: *key, Hovering: true})
	}
}
