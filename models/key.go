package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Key - entity key. Upstream sends numbers or strings; both end up here as text.
type Key string

// UnmarshalJSON accepts a JSON number or string.
func (k *Key) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return fmt.Errorf("key: empty value")
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*k = Key(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("key: %w", err)
	}
	// 1.0 and 1e0 name the same waypoint as 1
	if i, err := n.Int64(); err == nil {
		*k = Key(strconv.FormatInt(i, 10))
	} else if f, err := n.Float64(); err == nil && f == math.Trunc(f) && math.Abs(f) < 1<<53 {
		*k = Key(strconv.FormatInt(int64(f), 10))
	} else {
		*k = Key(n.String())
	}
	return nil
}

// MarshalJSON writes integral keys back as numbers so the planner sees what it sent.
func (k Key) MarshalJSON() ([]byte, error) {
	if n, err := strconv.ParseInt(string(k), 10, 64); err == nil && strconv.FormatInt(n, 10) == string(k) {
		return []byte(k), nil
	}
	return json.Marshal(string(k))
}

// IntKey - Key from an integer id
func IntKey(id int) Key {
	return Key(strconv.Itoa(id))
}

// PointRef - either a literal coordinate or the key of a waypoint
type PointRef struct {
	Coords *Coordinates
	Ref    Key
}

// At - PointRef for a literal coordinate
func At(c Coordinates) PointRef {
	return PointRef{Coords: &c}
}

// Ref - PointRef for a waypoint key
func Ref(k Key) PointRef {
	return PointRef{Ref: k}
}

// IsCoordinates - true when the reference carries its own coordinate
func (p PointRef) IsCoordinates() bool {
	return p.Coords != nil
}

func (p PointRef) String() string {
	if p.Coords != nil {
		return fmt.Sprintf("(%g,%g,%g)", p.Coords.X, p.Coords.Y, p.Coords.Z)
	}
	return string(p.Ref)
}

// UnmarshalJSON accepts a number or string (waypoint key) or an [x, y(, z)] array.
func (p *PointRef) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var v []float64
		if err := json.Unmarshal(data, &v); err != nil {
			return fmt.Errorf("point ref: %w", err)
		}
		c, ok := NewCoordinates(v)
		if !ok {
			return fmt.Errorf("point ref: want 2 or 3 components, got %d", len(v))
		}
		*p = PointRef{Coords: &c}
		return nil
	}
	var k Key
	if err := k.UnmarshalJSON(data); err != nil {
		return fmt.Errorf("point ref: %w", err)
	}
	*p = PointRef{Ref: k}
	return nil
}

// MarshalJSON mirrors UnmarshalJSON.
func (p PointRef) MarshalJSON() ([]byte, error) {
	if p.Coords != nil {
		return json.Marshal(p.Coords.Array())
	}
	return p.Ref.MarshalJSON()
}
