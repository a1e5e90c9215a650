package mapview

import "errors"

var (
	// ErrDuplicateKey is returned when an entity key is already registered for its kind.
	ErrDuplicateKey = errors.New("duplicate key")
	// ErrRobotNotFound is returned when a robot update names an unregistered key.
	ErrRobotNotFound = errors.New("robot not found")
	// ErrAlreadyInitiated is returned by a second Initiate.
	ErrAlreadyInitiated = errors.New("map already initiated")
	// ErrNotInitiated is returned by operations that need a framed view.
	ErrNotInitiated = errors.New("map not initiated")
	// ErrInvalidGeometry is returned for a fence with fewer than three vertices.
	ErrInvalidGeometry = errors.New("invalid geometry")
)
