package mapview

import (
	"fmt"

	"patro-map/models"
)

type keyed interface {
	key() models.Key
}

func (w *WayPoint) key() models.Key { return w.Key }
func (r *Road) key() models.Key { return r.Key }
func (f *Fence) key() models.Key { return f.Key }
func (r *Robot) key() models.Key { return r.Key }
func (n *Navigation) key() models.Key { return n.Key }

// ordered keeps insertion order with a key index on the side.
type ordered[T keyed] struct {
	items []T
	byKey map[models.Key]T
}

func newOrdered[T keyed]() ordered[T] {
	return ordered[T]{byKey: make(map[models.Key]T)}
}

func (o *ordered[T]) get(k models.Key) (T, bool) {
	v, ok := o.byKey[k]
	return v, ok
}

func (o *ordered[T]) add(v T) {
	o.items = append(o.items, v)
	o.byKey[v.key()] = v
}

func (o *ordered[T]) remove(k models.Key) bool {
	if _, ok := o.byKey[k]; !ok {
		return false
	}
	delete(o.byKey, k)
	for i, v := range o.items {
		if v.key() == k {
			o.items = append(o.items[:i], o.items[i+1:]...)
			break
		}
	}
	return true
}

func (o *ordered[T]) all() []T {
	out := make([]T, len(o.items))
	copy(out, o.items)
	return out
}

// checkBatch rejects keys already registered or repeated inside the batch.
func checkBatch[T keyed](kind EntityKind, existing *ordered[T], batch []T) error {
	seen := make(map[models.Key]struct{}, len(batch))
	for _, v := range batch {
		k := v.key()
		if _, ok := existing.byKey[k]; ok {
			return fmt.Errorf("%s %q: %w", kind, k, ErrDuplicateKey)
		}
		if _, ok := seen[k]; ok {
			return fmt.Errorf("%s %q repeated in batch: %w", kind, k, ErrDuplicateKey)
		}
		seen[k] = struct{}{}
	}
	return nil
}

// Counts reports collection sizes.
type Counts struct {
	WayPoints   int `json:"waypoints"`
	Roads       int `json:"roads"`
	Fences      int `json:"fences"`
	Robots      int `json:"robots"`
	Navigations int `json:"navigations"`
}

// Registry owns every entity collection. Keys are unique per kind; the same key may be
// used by entities of different kinds.
type Registry struct {
	waypoints   ordered[*WayPoint]
	roads       ordered[*Road]
	fences      ordered[*Fence]
	robots      ordered[*Robot]
	navigations ordered[*Navigation]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		waypoints:   newOrdered[*WayPoint](),
		roads:       newOrdered[*Road](),
		fences:      newOrdered[*Fence](),
		robots:      newOrdered[*Robot](),
		navigations: newOrdered[*Navigation](),
	}
}

// AddWayPoints appends a batch. Nothing is added if any key collides.
func (r *Registry) AddWayPoints(list ...*WayPoint) error {
	if err := checkBatch(EntityWayPoint, &r.waypoints, list); err != nil {
		return err
	}
	for _, w := range list {
		r.waypoints.add(w)
	}
	return nil
}

// AddRoads appends a batch. Nothing is added if any key collides.
func (r *Registry) AddRoads(list ...*Road) error {
	if err := checkBatch(EntityRoad, &r.roads, list); err != nil {
		return err
	}
	for _, road := range list {
		r.roads.add(road)
	}
	return nil
}

// AddFences appends a batch. Nothing is added if any key collides.
func (r *Registry) AddFences(list ...*Fence) error {
	if err := checkBatch(EntityFence, &r.fences, list); err != nil {
		return err
	}
	for _, f := range list {
		r.fences.add(f)
	}
	return nil
}

// AddRobot appends one robot.
func (r *Registry) AddRobot(robot *Robot) error {
	if _, ok := r.robots.get(robot.Key); ok {
		return fmt.Errorf("%s %q: %w", EntityRobot, robot.Key, ErrDuplicateKey)
	}
	r.robots.add(robot)
	return nil
}

func (r *Registry) putNavigation(n *Navigation) {
	r.navigations.remove(n.Key)
	r.navigations.add(n)
}

func (r *Registry) dropNavigation(key models.Key) bool {
	return r.navigations.remove(key)
}

func (r *Registry) WayPoint(key models.Key) (*WayPoint, bool) { return r.waypoints.get(key) }
func (r *Registry) Road(key models.Key) (*Road, bool) { return r.roads.get(key) }
func (r *Registry) Fence(key models.Key) (*Fence, bool) { return r.fences.get(key) }
func (r *Registry) Robot(key models.Key) (*Robot, bool) { return r.robots.get(key) }
func (r *Registry) Navigation(key models.Key) (*Navigation, bool) { return r.navigations.get(key) }

func (r *Registry) WayPoints() []*WayPoint { return r.waypoints.all() }
func (r *Registry) Roads() []*Road { return r.roads.all() }
func (r *Registry) Fences() []*Fence { return r.fences.all() }
func (r *Registry) Robots() []*Robot { return r.robots.all() }
func (r *Registry) Navigations() []*Navigation { return r.navigations.all() }

// WayPointByObject maps a drawn object back to the waypoint that created it.
func (r *Registry) WayPointByObject(o *Object) (*WayPoint, bool) {
	if o == nil || o.Owner.Kind != EntityWayPoint {
		return nil, false
	}
	return r.waypoints.get(o.Owner.Key)
}

// Resolve returns a literal coordinate as is, or the center of the referenced waypoint.
// It is evaluated on every call, so a reference can be satisfied by a later registration.
func (r *Registry) Resolve(ref models.PointRef) (models.Coordinates, bool) {
	if ref.Coords != nil {
		return *ref.Coords, true
	}
	w, ok := r.waypoints.get(ref.Ref)
	if !ok {
		return models.Coordinates{}, false
	}
	return w.Center, true
}

// Points is every coordinate that contributes to the scene bounds: waypoint centers,
// resolvable road endpoints and fence vertices. Robots and overlays are not included.
func (r *Registry) Points() []models.Coordinates {
	var out []models.Coordinates
	for _, w := range r.waypoints.items {
		out = append(out, w.Center)
	}
	for _, road := range r.roads.items {
		for _, ref := range []models.PointRef{road.Begin, road.End} {
			if c, ok := r.Resolve(ref); ok {
				out = append(out, c)
			}
		}
	}
	for _, f := range r.fences.items {
		out = append(out, f.Polygon...)
	}
	return out
}

// Counts reports collection sizes.
func (r *Registry) Counts() Counts {
	return Counts{
		WayPoints:   len(r.waypoints.items),
		Roads:       len(r.roads.items),
		Fences:      len(r.fences.items),
		Robots:      len(r.robots.items),
		Navigations: len(r.navigations.items),
	}
}
