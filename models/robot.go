package models

import "time"

// RobotInfo - robot as reported by GET /api/robots
type RobotInfo struct {
	Key      Key         `json:"key"`
	Center   Coordinates `json:"center"`
	Heading  float64     `json:"heading"` // degrees
	LastSeen time.Time   `json:"last_seen"`
	Online   bool        `json:"online"`
}
