package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/rs/zerolog"

	"patro-map/mapview"
	"patro-map/models"
)

var (
	// ErrMalformed - payload is not a robot status object
	ErrMalformed = errors.New("malformed robot status")
	// ErrMissingKey - neither peri_id nor agentKey present
	ErrMissingKey = errors.New("robot status without key")
	// ErrBadPosition - position is not [x, y] or [x, y, z]
	ErrBadPosition = errors.New("robot status with bad position")
)

// RobotUpdate - one decoded status message; Heading is in degrees, nil when absent
type RobotUpdate struct {
	Key     models.Key
	Center  models.Coordinates
	Heading *float64
}

// DecodeRobotStatus - accept the planner shape (yaw in radians) or the compact shape
// (heading in degrees)
func DecodeRobotStatus(payload []byte) (RobotUpdate, error) {
	var msg models.RobotStatusMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return RobotUpdate{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var (
		key     string
		pos     []float64
		heading *float64
	)
	switch {
	case msg.PeriID != "" || msg.Status != nil:
		key = msg.PeriID
		if msg.Status != nil {
			pos = msg.Status.Pos
			if msg.Status.Yaw != nil {
				deg := *msg.Status.Yaw * 180 / math.Pi
				heading = &deg
			}
		}
	default:
		key = msg.AgentKey
		pos = msg.Position
		heading = msg.Heading
	}

	if key == "" {
		return RobotUpdate{}, ErrMissingKey
	}
	center, ok := models.NewCoordinates(pos)
	if !ok {
		return RobotUpdate{}, fmt.Errorf("%w: robot %s, %d components", ErrBadPosition, key, len(pos))
	}
	return RobotUpdate{Key: models.Key(key), Center: center, Heading: heading}, nil
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, ErrMissingKey):
		return "missing_key"
	case errors.Is(err, ErrBadPosition):
		return "bad_position"
	default:
		return "malformed"
	}
}

// Ingestor - feeds robot status payloads from any source into the map's loop
type Ingestor struct {
	loop    *mapview.Loop
	m       *mapview.Map
	metrics *Metrics
	log     zerolog.Logger

	// OnApplied runs on the loop after an update reached the map.
	OnApplied func(u RobotUpdate, added bool)
}

// NewIngestor - ingestor posting to loop, which owns m
func NewIngestor(loop *mapview.Loop, m *mapview.Map, metrics *Metrics, log zerolog.Logger) *Ingestor {
	return &Ingestor{loop: loop, m: m, metrics: metrics, log: log}
}

// Handle - decode one payload and post it to the loop. Malformed payloads are dropped
// and reported; the error is returned for the caller's information only.
func (in *Ingestor) Handle(payload []byte) error {
	u, err := DecodeRobotStatus(payload)
	if err != nil {
		reason := dropReason(err)
		in.log.Warn().Err(err).Str("reason", reason).Msg("dropping robot status")
		in.metrics.Dropped(reason)
		LogDropped(reason, string(payload))
		return err
	}
	in.loop.Post(func() { in.apply(u) })
	return nil
}

// apply runs on the loop: one lookup-mutate-redraw per message.
func (in *Ingestor) apply(u RobotUpdate) {
	queued := !in.m.Initiated()
	added, err := in.m.ApplyRobotUpdate(u.Key, u.Center, u.Heading)
	switch {
	case err != nil:
		in.log.Error().Err(err).Str("robot", string(u.Key)).Msg("robot update failed")
		in.metrics.RobotUpdate("error")
		return
	case queued:
		in.metrics.RobotUpdate("queued")
	case added:
		in.log.Info().Str("robot", string(u.Key)).Msg("robot added")
		in.metrics.RobotUpdate("added")
	default:
		in.metrics.RobotUpdate("moved")
	}
	if in.OnApplied != nil {
		in.OnApplied(u, added)
	}
}
