package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"patro-map/models"
)

// Planner codes answered by the simulator
const (
	SimCodeUnknownRobot  = 404
	SimCodeUnknownTarget = 2
)

// leg - one straight segment of a simulated route; key is set when the leg ends on a
// waypoint
type leg struct {
	to  models.Coordinates
	key models.Key
}

type simRobot struct {
	key        string
	pos        models.Coordinates
	yaw        float64 // radians
	at         models.Key
	route      []leg
	finalYaw   *float64
	dispatched bool
	stopped    bool
}

// Simulator - demo robots wandering the generated roads. It is a Source: every tick
// emits one planner-shaped status message per robot. It also answers plan and stop
// requests in place of the external planner.
type Simulator struct {
	mu       sync.Mutex
	demo     *DemoMap
	robots   map[string]*simRobot
	order    []string
	interval time.Duration
	speed    float64 // metres per second
	rng      *rand.Rand
	log      zerolog.Logger
}

// NewSimulator - count robots spread over the demo waypoints
func NewSimulator(demo *DemoMap, count int, log zerolog.Logger) (*Simulator, error) {
	if count < 1 || count > len(demo.Points) {
		return nil, fmt.Errorf("simulator: %d robots for %d waypoints", count, len(demo.Points))
	}
	s := &Simulator{
		demo:     demo,
		robots:   make(map[string]*simRobot, count),
		interval: 100 * time.Millisecond,
		speed:    1.0,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
		log:      log,
	}
	stride := len(demo.Points) / count
	for i := 0; i < count; i++ {
		p := demo.Points[i*stride]
		pos, _ := demo.Position(p.ID)
		key := fmt.Sprintf("robot-%d", i+1)
		s.robots[key] = &simRobot{key: key, pos: pos, at: p.ID}
		s.order = append(s.order, key)
	}
	return s, nil
}

// Robots - simulated robot keys in creation order
func (s *Simulator) Robots() []string {
	return append([]string(nil), s.order...)
}

// Run - emit status messages until ctx is cancelled
func (s *Simulator) Run(ctx context.Context, handle func([]byte)) error {
	s.log.Info().Int("robots", len(s.order)).Dur("interval", s.interval).Msg("robot simulator started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("robot simulator stopped")
			return nil
		case <-ticker.C:
			for _, payload := range s.Tick(s.interval) {
				handle(payload)
			}
		}
	}
}

// Tick - advance every robot by dt and return their status payloads
func (s *Simulator) Tick(dt time.Duration) [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([][]byte, 0, len(s.order))
	for _, key := range s.order {
		r := s.robots[key]
		s.step(r, dt.Seconds())

		yaw := r.yaw
		payload, err := json.Marshal(models.RobotStatusMessage{
			Msg:    "status",
			PeriID: r.key,
			Status: &models.RobotStatus{Pos: r.pos.Array(), Yaw: &yaw},
		})
		if err != nil {
			s.log.Error().Err(err).Str("robot", key).Msg("simulator encode failed")
			continue
		}
		out = append(out, payload)
	}
	return out
}

func (s *Simulator) step(r *simRobot, seconds float64) {
	if len(r.route) == 0 {
		if r.stopped || r.dispatched {
			return
		}
		s.wander(r)
		if len(r.route) == 0 {
			return
		}
	}

	budget := s.speed * seconds
	for budget > 0 && len(r.route) > 0 {
		next := r.route[0]
		dx := next.to.X - r.pos.X
		dy := next.to.Y - r.pos.Y
		dist := math.Hypot(dx, dy)
		if dist > 0 {
			r.yaw = math.Atan2(dy, dx)
		}
		if dist > budget {
			r.pos.X += dx / dist * budget
			r.pos.Y += dy / dist * budget
			return
		}
		budget -= dist
		r.pos = next.to
		if next.key != "" {
			r.at = next.key
		}
		r.route = r.route[1:]
	}

	if len(r.route) == 0 && r.dispatched {
		if r.finalYaw != nil {
			r.yaw = *r.finalYaw
			r.finalYaw = nil
		}
		// hold at the target until the next plan
		r.dispatched = false
		r.stopped = true
	}
}

// wander - pick a random road out of the current waypoint
func (s *Simulator) wander(r *simRobot) {
	next := s.demo.Neighbors(r.at)
	if len(next) == 0 {
		return
	}
	k := next[s.rng.Intn(len(next))]
	pos, _ := s.demo.Position(k)
	r.route = []leg{{to: pos, key: k}}
}

// Plan - route robot to target along the roads when target is a waypoint, straight
// otherwise. angle is the final heading in degrees.
func (s *Simulator) Plan(ctx context.Context, robot string, target models.PointRef, angle float64) (*models.PlanResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.robots[robot]
	if !ok {
		return &models.PlanResponse{Code: SimCodeUnknownRobot, PeriID: robot}, &DispatchError{Op: "plan", Code: SimCodeUnknownRobot}
	}

	var route []leg
	if target.IsCoordinates() {
		route = []leg{{to: *target.Coords}}
	} else {
		keys, found := s.shortestPath(r.at, target.Ref)
		if !found {
			return &models.PlanResponse{Code: SimCodeUnknownTarget, PeriID: robot}, &DispatchError{Op: "plan", Code: SimCodeUnknownTarget}
		}
		for _, k := range keys {
			pos, _ := s.demo.Position(k)
			route = append(route, leg{to: pos, key: k})
		}
	}

	path := []models.PointRef{models.At(r.pos)}
	for _, l := range route {
		if l.key != "" {
			path = append(path, models.Ref(l.key))
		} else {
			path = append(path, models.At(l.to))
		}
	}

	yaw := angle * math.Pi / 180
	r.route = route
	r.finalYaw = &yaw
	r.dispatched = true
	r.stopped = false

	s.log.Info().Str("robot", robot).Str("target", target.String()).Int("legs", len(route)).Msg("simulated plan")
	return &models.PlanResponse{Code: 0, PeriID: robot, Point: &target, Path: path}, nil
}

// Stop - halt the robot where it is; it stays put until the next plan
func (s *Simulator) Stop(ctx context.Context, robot string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	r, ok := s.robots[robot]
	if !ok {
		return &DispatchError{Op: "stop", Code: SimCodeUnknownRobot}
	}
	r.route = nil
	r.finalYaw = nil
	r.dispatched = false
	r.stopped = true
	return nil
}

// shortestPath - breadth-first over the demo roads; the start is not included
func (s *Simulator) shortestPath(from, to models.Key) ([]models.Key, bool) {
	if _, ok := s.demo.Position(to); !ok {
		return nil, false
	}
	if from == to {
		return []models.Key{to}, true
	}
	prev := map[models.Key]models.Key{from: from}
	queue := []models.Key{from}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, n := range s.demo.Neighbors(cur) {
			if _, seen := prev[n]; seen {
				continue
			}
			prev[n] = cur
			if n == to {
				var path []models.Key
				for k := to; k != from; k = prev[k] {
					path = append([]models.Key{k}, path...)
				}
				return path, true
			}
			queue = append(queue, n)
		}
	}
	return nil, false
}
