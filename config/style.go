package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"patro-map/mapview"
	"patro-map/models"
)

// StyleFile - view and styling settings, loaded from YAML
type StyleFile struct {
	Coords            mapview.CoordinateSystem `yaml:"coords"`
	Canvas            CanvasConfig             `yaml:"canvas"`
	InitialZoom       float64                  `yaml:"initial_zoom"`
	InitOffset        [2]float64               `yaml:"init_offset"`
	HoverDelay        time.Duration            `yaml:"hover_delay"`
	DoubleClickWindow time.Duration            `yaml:"double_click_window"`
	Debug             bool                     `yaml:"debug"`
	Mapping           Mapping                  `yaml:"mapping"`
	Styles            Styles                   `yaml:"styles"`
}

// CanvasConfig - pixel size of the shared display list
type CanvasConfig struct {
	Width  float64 `yaml:"width"`
	Height float64 `yaml:"height"`
}

// Mapping - integer/tag codes from the topology service to domain enums
type Mapping struct {
	WayPointTypes    map[int]models.WayPointType `yaml:"waypoint_types"`
	WayPointDefault  models.WayPointType         `yaml:"waypoint_default"`
	FenceTypes       map[int]models.FenceType    `yaml:"fence_types"`
	FenceDefault     models.FenceType            `yaml:"fence_default"`
	Directions       map[int]models.RoadMode     `yaml:"directions"`
	DirectionDefault models.RoadMode             `yaml:"direction_default"`
	Gaits            map[int]models.RoadGait     `yaml:"gaits"`
	GaitDefault      models.RoadGait             `yaml:"gait_default"`
	Radar            map[string]string           `yaml:"radar"`
	RadarDefault     string                      `yaml:"radar_default"`
}

// Styles - per-enum style tables. For roads the layers apply mode, then speed, then gait,
// then radar, so gait wins over speed and speed over mode.
type Styles struct {
	WayPoint  map[models.WayPointType]mapview.Style `yaml:"waypoint"`
	RoadMode  map[models.RoadMode]mapview.Style     `yaml:"road_mode"`
	RoadSpeed map[int]mapview.Style                 `yaml:"road_speed"`
	RoadGait  map[models.RoadGait]mapview.Style     `yaml:"road_gait"`
	Radar     map[string]mapview.Style              `yaml:"radar"`
	Fence     map[models.FenceType]mapview.Style    `yaml:"fence"`
	Robot     mapview.Style                         `yaml:"robot"`
	Hover     mapview.Style                         `yaml:"hover"`
}

// DefaultStyleFile - settings used when no style file exists
func DefaultStyleFile() *StyleFile {
	return &StyleFile{
		Coords:            mapview.NewCoordinateSystem(1, 1),
		Canvas:            CanvasConfig{Width: 1600, Height: 900},
		HoverDelay:        mapview.DefaultHoverDelay,
		DoubleClickWindow: mapview.DefaultDoubleClickWindow,
		Mapping: Mapping{
			WayPointTypes: map[int]models.WayPointType{
				3: models.WayPointCharge,
				2: models.WayPointChargePrepare,
				1: models.WayPointTask,
			},
			WayPointDefault:  models.WayPointReturn,
			FenceTypes:       map[int]models.FenceType{0: models.FenceBoundary},
			FenceDefault:     models.FenceObstacle,
			Directions:       map[int]models.RoadMode{1: models.RoadTwoWay},
			DirectionDefault: models.RoadOneWay,
			Gaits: map[int]models.RoadGait{
				1: models.GaitStairs,
				2: models.GaitSlope,
			},
			GaitDefault:  models.GaitFlat,
			Radar:        map[string]string{"红": "red", "黄": "yellow"},
			RadarDefault: "white",
		},
		Styles: Styles{
			WayPoint: map[models.WayPointType]mapview.Style{
				models.WayPointCharge:        {"radius": 6.0, "stroke": "black", "fill": "black", "strokeWidth": 5.0},
				models.WayPointChargePrepare: {"radius": 6.0, "stroke": "black", "fill": "black", "strokeWidth": 5.0},
				models.WayPointTask:          {"radius": 6.0, "stroke": "black", "fill": "black", "strokeWidth": 5.0},
				models.WayPointReturn:        {"radius": 6.0, "stroke": "black", "fill": "black", "strokeWidth": 1.0},
			},
			RoadMode: map[models.RoadMode]mapview.Style{
				models.RoadOneWay: {"stroke": "#1c7ed6", "strokeWidth": 1.0},
				models.RoadTwoWay: {"stroke": "#1c7ed6", "strokeWidth": 2.0},
			},
			RoadGait: map[models.RoadGait]mapview.Style{
				models.GaitSlope:  {"strokeDashArray": []any{1.0, 1.0}},
				models.GaitStairs: {"strokeDashArray": []any{5.0, 5.0}},
			},
			Fence: map[models.FenceType]mapview.Style{
				models.FenceBoundary: {"zIndex": -100.0, "fill": "#a5d8ff"},
				models.FenceObstacle: {"zIndex": -100.0, "fill": "#f0f0f0"},
			},
			Robot: mapview.Style{"width": 10.0, "height": 10.0},
			Hover: mapview.Merge(mapview.DefaultHoverStyle),
		},
	}
}

// LoadStyleFile - read a YAML style file. If the file doesn't exist, defaults are used.
// Table entries in the file override the defaults key by key.
func LoadStyleFile(path string) (*StyleFile, error) {
	sf := DefaultStyleFile()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return sf, nil
		}
		return nil, err
	}
	if err := yaml.Unmarshal(data, sf); err != nil {
		return nil, err
	}
	return sf, nil
}

// ========================================
// Enum mapping
// ========================================

// WayPointType - map a topology type code
func (m Mapping) WayPointType(code int) models.WayPointType {
	if t, ok := m.WayPointTypes[code]; ok {
		return t
	}
	return m.WayPointDefault
}

// FenceType - map a topology fence code
func (m Mapping) FenceType(code int) models.FenceType {
	if t, ok := m.FenceTypes[code]; ok {
		return t
	}
	return m.FenceDefault
}

// RoadMode - map a topology direction code
func (m Mapping) RoadMode(code int) models.RoadMode {
	if t, ok := m.Directions[code]; ok {
		return t
	}
	return m.DirectionDefault
}

// RoadGait - map a topology gait code
func (m Mapping) RoadGait(code int) models.RoadGait {
	if t, ok := m.Gaits[code]; ok {
		return t
	}
	return m.GaitDefault
}

// RadarTag - map a radar tag
func (m Mapping) RadarTag(tag string) string {
	if t, ok := m.Radar[tag]; ok {
		return t
	}
	return m.RadarDefault
}

// ========================================
// mapview wiring
// ========================================

// StyleConfig - build the per-kind style functions from the tables
func (sf *StyleFile) StyleConfig() mapview.StyleConfig {
	s := sf.Styles
	return mapview.StyleConfig{
		WayPoint: func(a mapview.WayPointAttrs) mapview.Style {
			return s.WayPoint[a.Type]
		},
		Road: func(a mapview.RoadAttrs) mapview.Style {
			return mapview.Merge(
				s.RoadMode[a.Mode],
				s.RoadSpeed[int(a.Speed)],
				s.RoadGait[a.Gait],
				s.Radar[a.Radar],
			)
		},
		Fence: func(a mapview.FenceAttrs) mapview.Style {
			return s.Fence[a.Type]
		},
		Robot: func(mapview.RobotAttrs) mapview.Style {
			return s.Robot
		},
		Hover: s.Hover,
	}
}

// MapOptions - mapview options derived from the file; canvas, scheduler and logger are
// left for the caller
func (sf *StyleFile) MapOptions() mapview.Options {
	return mapview.Options{
		Coords:            sf.Coords,
		Styles:            sf.StyleConfig(),
		InitialZoom:       sf.InitialZoom,
		InitOffset:        sf.InitOffset,
		HoverDelay:        sf.HoverDelay,
		DoubleClickWindow: sf.DoubleClickWindow,
		Debug:             sf.Debug,
	}
}
