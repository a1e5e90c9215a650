package models

import (
	"time"
)

// Robot log event types
const (
	EventPosition     = "position_update"
	EventRobotAdded   = "robot_added"
	EventDropped      = "message_dropped"
	EventDispatchPlan = "dispatch_plan"
	EventDispatchStop = "dispatch_stop"
)

// RobotLog - robot telemetry and dispatch log row
type RobotLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	EventType string    `gorm:"index;size:32" json:"event_type"`

	// robot state
	RobotKey string  `gorm:"index;size:64" json:"robot_key"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Z        float64 `json:"z"`
	Heading  float64 `json:"heading"`

	// dispatch
	Target string `gorm:"size:128" json:"target"`
	Code   int    `json:"code"`

	// metadata
	Detail string `gorm:"type:text" json:"detail"` // raw payload or error text
}
