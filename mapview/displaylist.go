package mapview

import (
	"sort"

	"patro-map/algorithms"
)

// OpType is the kind of a display-list change.
type OpType string

const (
	OpAdd      OpType = "add"
	OpRemove   OpType = "remove"
	OpViewport OpType = "viewport"
)

// Op is one journal entry. Clients replay ops to mirror the display list.
type Op struct {
	Op       OpType    `json:"op"`
	Object   *Object   `json:"object,omitempty"`
	ID       string    `json:"id,omitempty"`
	Viewport *Viewport `json:"viewport,omitempty"`
}

// SceneSnapshot is the complete display list.
type SceneSnapshot struct {
	Width    float64   `json:"width"`
	Height   float64   `json:"height"`
	Viewport Viewport  `json:"viewport"`
	Objects  []*Object `json:"objects"`
}

// DisplayList is an in-memory Canvas. It keeps objects in insertion order and journals
// every change until Drain is called.
type DisplayList struct {
	width, height float64
	objects       []*Object
	live          map[string]*Object
	viewport      Viewport
	ops           []Op
}

// NewDisplayList creates an empty display list of the given pixel size.
func NewDisplayList(width, height float64) *DisplayList {
	return &DisplayList{
		width:    width,
		height:   height,
		live:     make(map[string]*Object),
		viewport: DefaultViewport(),
	}
}

func (d *DisplayList) Add(objs ...*Object) {
	for _, o := range objs {
		if o == nil {
			continue
		}
		if _, ok := d.live[o.ID]; ok {
			continue
		}
		d.live[o.ID] = o
		d.objects = append(d.objects, o)
		d.ops = append(d.ops, Op{Op: OpAdd, Object: o})
	}
}

func (d *DisplayList) Remove(objs ...*Object) {
	removed := 0
	for _, o := range objs {
		if o == nil {
			continue
		}
		if _, ok := d.live[o.ID]; !ok {
			continue
		}
		delete(d.live, o.ID)
		d.ops = append(d.ops, Op{Op: OpRemove, ID: o.ID})
		removed++
	}
	if removed == 0 {
		return
	}
	kept := d.objects[:0]
	for _, o := range d.objects {
		if _, ok := d.live[o.ID]; ok {
			kept = append(kept, o)
		}
	}
	for i := len(kept); i < len(d.objects); i++ {
		d.objects[i] = nil
	}
	d.objects = kept
}

// HitTest walks the list from the top (highest Z, latest added) down.
func (d *DisplayList) HitTest(p ViewPoint) *Object {
	ordered := d.ordered()
	pt := algorithms.Point{X: p.X, Y: p.Y}
	for i := len(ordered) - 1; i >= 0; i-- {
		o := ordered[i]
		if o.Evented && contains(o, pt) {
			return o
		}
	}
	return nil
}

func contains(o *Object, p algorithms.Point) bool {
	switch o.Kind {
	case KindCircle:
		a := o.Anchor()
		return algorithms.InCircle(p, algorithms.Point{X: a.X, Y: a.Y}, o.Radius)
	case KindPolygon:
		poly := make([]algorithms.Point, len(o.Points))
		for i, v := range o.Points {
			poly[i] = algorithms.Point{X: v.X, Y: v.Y}
		}
		return algorithms.PointInPolygon(p, poly)
	case KindLine:
		if len(o.Points) < 2 {
			return false
		}
		tolerance := o.Style.Float("strokeWidth", 1)/2 + 1
		a, b := o.Points[0], o.Points[1]
		return algorithms.DistanceToSegment(p, algorithms.Point{X: a.X, Y: a.Y}, algorithms.Point{X: b.X, Y: b.Y}) <= tolerance
	case KindRobot, KindTriangle:
		a := o.Anchor()
		r := o.Width
		if o.Height > r {
			r = o.Height
		}
		return algorithms.InCircle(p, algorithms.Point{X: a.X, Y: a.Y}, r/2)
	default:
		return false
	}
}

func (d *DisplayList) Viewport() Viewport {
	return d.viewport
}

func (d *DisplayList) SetViewport(v Viewport) {
	d.viewport = v
	d.ops = append(d.ops, Op{Op: OpViewport, Viewport: &v})
}

func (d *DisplayList) Size() (float64, float64) {
	return d.width, d.height
}

// Resize changes the pixel size reported to the map.
func (d *DisplayList) Resize(width, height float64) {
	d.width, d.height = width, height
}

// Len is the number of live objects.
func (d *DisplayList) Len() int {
	return len(d.objects)
}

// Objects returns live objects in draw order.
func (d *DisplayList) Objects() []*Object {
	return d.ordered()
}

// Find returns live objects matching the filter, in draw order.
func (d *DisplayList) Find(match func(*Object) bool) []*Object {
	var out []*Object
	for _, o := range d.ordered() {
		if match(o) {
			out = append(out, o)
		}
	}
	return out
}

// Snapshot copies the current state for a newly connected client.
func (d *DisplayList) Snapshot() SceneSnapshot {
	return SceneSnapshot{
		Width:    d.width,
		Height:   d.height,
		Viewport: d.viewport,
		Objects:  d.ordered(),
	}
}

// Drain returns and clears the journal.
func (d *DisplayList) Drain() []Op {
	ops := d.ops
	d.ops = nil
	return ops
}

// ordered sorts by Z, keeping insertion order within a layer.
func (d *DisplayList) ordered() []*Object {
	out := make([]*Object, len(d.objects))
	copy(out, d.objects)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Z < out[j].Z })
	return out
}
