package models

import "time"

// ========================================
// Message type constants
// ========================================
const (
	// Robot -> Server
	MessageTypeRobotStatus = "robot_status" // position / heading update

	// Server -> Web
	MessageTypeScene        = "scene"        // full display-list snapshot
	MessageTypeSceneOps     = "scene_ops"    // incremental display-list changes
	MessageTypeClick        = "click"        // single click on the map
	MessageTypeDoubleClick  = "double_click" // double click on the map
	MessageTypeCursor       = "cursor"       // pointer position in map coordinates
	MessageTypeIndicate     = "indicate"     // heading indication finished
	MessageTypeNotification = "notification" // operator-visible notice
	MessageTypeSystemInfo   = "system_info"  // connection info

	// Web -> Server
	MessageTypePointer = "pointer" // raw pointer input
	MessageTypeMode    = "mode"    // interaction mode change
)

// Pointer actions carried by MessageTypePointer
const (
	PointerDown     = "down"
	PointerMove     = "move"
	PointerUp       = "up"
	PointerWheel    = "wheel"
	PointerOut      = "out"
)

// Notification levels
const (
	LevelInfo    = "info"
	LevelSuccess = "success"
	LevelError   = "error"
)

// ========================================
// Common WebSocket envelope
// ========================================
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp int64       `json:"timestamp"` // Unix timestamp (ms)
}

// NewMessage - envelope stamped with the current time
func NewMessage(typ string, data interface{}) WebSocketMessage {
	return WebSocketMessage{Type: typ, Data: data, Timestamp: time.Now().UnixMilli()}
}

// ========================================
// Robot status stream
// ========================================

// RobotStatusMessage - inbound robot update.
// Two shapes are seen in the field: the planner's {peri_id, status:{pos, yaw}} with yaw in
// radians, and the compact {agentKey, position, heading} with heading in degrees.
type RobotStatusMessage struct {
	Msg    string       `json:"msg,omitempty"`
	PeriID string       `json:"peri_id,omitempty"`
	Status *RobotStatus `json:"status,omitempty"`

	AgentKey string    `json:"agentKey,omitempty"`
	Position []float64 `json:"position,omitempty"`
	Heading  *float64  `json:"heading,omitempty"`
}

// RobotStatus - nested status block
type RobotStatus struct {
	Pos []float64 `json:"pos"`
	Yaw *float64  `json:"yaw"`
}

// ========================================
// Web client input
// ========================================

// PointerData - one pointer event in screen coordinates
type PointerData struct {
	Action string  `json:"action"`
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Delta  float64 `json:"delta,omitempty"`
}

// ModeData - requested interaction mode
type ModeData struct {
	Mode string `json:"mode"` // "assign" | "default"
}

// NotificationData - message shown to the operator
type NotificationData struct {
	Level   string `json:"level"`
	Message string `json:"message"`
	Code    int    `json:"code,omitempty"`
}
