package models

// ========================================
// Enumerations
// ========================================

// WayPointType - role of a waypoint
type WayPointType string

const (
	WayPointCharge        WayPointType = "charge"        // charging spot
	WayPointChargePrepare WayPointType = "chargePrepare" // charge staging
	WayPointReturn        WayPointType = "return"        // turn-around point
	WayPointTask          WayPointType = "task"          // task spot
)

// RoadMode - traversal direction
type RoadMode string

const (
	RoadOneWay RoadMode = "one-way"
	RoadTwoWay RoadMode = "two-way"
)

// RoadGait - surface classification
type RoadGait string

const (
	GaitFlat   RoadGait = "flat"
	GaitSlope  RoadGait = "slope"
	GaitStairs RoadGait = "stairs"
)

// FenceType - boundary or obstacle polygon
type FenceType string

const (
	FenceBoundary FenceType = "boundary"
	FenceObstacle FenceType = "obstacle"
)

// ========================================
// Upstream topology payloads
// ========================================

// FenceData - one entry of GET /patro/map/fence
type FenceData struct {
	ID     Key         `json:"id"`
	Points [][]float64 `json:"points"`
	Type   int         `json:"type"` // 0: boundary, 1: obstacle
}

// PointData - one entry of GET /patro/map/point
type PointData struct {
	ID   Key       `json:"id"`
	Name string    `json:"name,omitempty"`
	Pos  []float64 `json:"pos"`
	Type int       `json:"type"`
	Turn bool      `json:"turn,omitempty"`
}

// LineData - one entry of GET /patro/map/line
type LineData struct {
	ID        Key        `json:"id"`
	Point     []PointRef `json:"point"` // [begin, end]
	Direction int        `json:"direction"`
	Speed     float64    `json:"speed"`
	Gait      int        `json:"gait"`
	Radar     string     `json:"radar"`
}

// FenceResponse - body of the fence endpoint
type FenceResponse struct {
	Fence []FenceData `json:"fence"`
}

// PointResponse - body of the point endpoint
type PointResponse struct {
	Point []PointData `json:"point"`
}

// LineResponse - body of the line endpoint
type LineResponse struct {
	Line []LineData `json:"line"`
}

// ========================================
// Planner payloads
// ========================================

// PlanRequest - POST /patro/navigation/plan
type PlanRequest struct {
	TID    string   `json:"tid"`
	PeriID string   `json:"peri_id"`
	Point  PointRef `json:"point"`
	Angle  float64  `json:"angle"`
}

// PlanResponse - planner answer; Code 0 means success
type PlanResponse struct {
	Code   int        `json:"code"`
	PeriID string     `json:"peri_id"`
	Point  *PointRef  `json:"point,omitempty"`
	Path   []PointRef `json:"path"`
}

// StopRequest - POST /patro/navigation/stop
type StopRequest struct {
	TID    string `json:"tid"`
	PeriID string `json:"peri_id"`
}

// StopResponse - planner answer to a stop
type StopResponse struct {
	Code int `json:"code"`
}
