package handlers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"patro-map/mapview"
	"patro-map/models"
)

// onLoop - run fn on the map loop bounded by the request timeout
func (s *Server) onLoop(fn func()) error {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()
	return s.loop.Do(ctx, fn)
}

// HandleHealth - liveness plus a few counters
func (s *Server) HandleHealth(c *fiber.Ctx) error {
	var (
		initiated bool
		counts    mapview.Counts
	)
	if err := s.onLoop(func() {
		initiated = s.m.Initiated()
		counts = s.m.Registry().Counts()
	}); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{
		"status":    "OK",
		"initiated": initiated,
		"entities":  counts,
		"clients":   s.manager.GetClientCount(),
		"robots":    s.robots.GetStatistics(),
		"uptime":    time.Since(s.started).Round(time.Second).String(),
		"time":      time.Now().Format(time.RFC3339),
	})
}

// HandleGetMap - full display-list snapshot
func (s *Server) HandleGetMap(c *fiber.Ctx) error {
	var snap mapview.SceneSnapshot
	if err := s.onLoop(func() { snap = s.dl.Snapshot() }); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(snap)
}

// HandleRecenter - reframe the view around the topology
func (s *Server) HandleRecenter(c *fiber.Ctx) error {
	var (
		err  error
		view mapview.Viewport
	)
	if loopErr := s.onLoop(func() {
		if err = s.m.Recenter(); err == nil {
			view = s.m.Canvas().Viewport()
		}
	}); loopErr != nil {
		return fail(c, fiber.StatusServiceUnavailable, loopErr.Error())
	}
	if errors.Is(err, mapview.ErrNotInitiated) {
		return fail(c, fiber.StatusConflict, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "viewport": view})
}

// EntitiesResponse - collection sizes and keys in insertion order
type EntitiesResponse struct {
	Counts      mapview.Counts `json:"counts"`
	WayPoints   []models.Key   `json:"waypoints"`
	Roads       []models.Key   `json:"roads"`
	Fences      []models.Key   `json:"fences"`
	Robots      []models.Key   `json:"robots"`
	Navigations []models.Key   `json:"navigations"`
	Mode        mapview.Mode   `json:"mode"`
	Pending     int            `json:"pending"`
}

// HandleGetEntities - what the registry holds
func (s *Server) HandleGetEntities(c *fiber.Ctx) error {
	var out EntitiesResponse
	if err := s.onLoop(func() {
		reg := s.m.Registry()
		out.Counts = reg.Counts()
		for _, w := range reg.WayPoints() {
			out.WayPoints = append(out.WayPoints, w.Key)
		}
		for _, r := range reg.Roads() {
			out.Roads = append(out.Roads, r.Key)
		}
		for _, f := range reg.Fences() {
			out.Fences = append(out.Fences, f.Key)
		}
		for _, r := range reg.Robots() {
			out.Robots = append(out.Robots, r.Key)
		}
		for _, n := range reg.Navigations() {
			out.Navigations = append(out.Navigations, n.Key)
		}
		out.Mode = s.m.Mode()
		out.Pending = s.m.Pending()
	}); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(out)
}

// HandleGetRobots - robots with liveness
func (s *Server) HandleGetRobots(c *fiber.Ctx) error {
	robots := s.robots.GetAllStatuses()
	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(robots),
		"robots":  robots,
	})
}

// HandleSetDebug - toggle coordinate labels
func (s *Server) HandleSetDebug(c *fiber.Ctx) error {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.onLoop(func() { s.m.SetDebug(req.Enabled) }); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "debug": req.Enabled})
}

var errUnknownMode = errors.New("unknown mode")

// setMode - post a mode change to the loop
func (s *Server) setMode(mode string) error {
	switch mapview.Mode(mode) {
	case mapview.ModeAssign:
		s.loop.Post(s.m.EnterAssignMode)
	case mapview.ModeDefault:
		s.loop.Post(s.m.CancelAssign)
	default:
		return fmt.Errorf("%w %q", errUnknownMode, mode)
	}
	return nil
}

// HandleSetMode - POST /api/mode {mode: assign|default}
func (s *Server) HandleSetMode(c *fiber.Ctx) error {
	var req models.ModeData
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if err := s.setMode(req.Mode); err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}
	var mode mapview.Mode
	if err := s.onLoop(func() { mode = s.m.Mode() }); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "mode": mode})
}

// HandleHighlight - apply a highlight set, reverting the previous one
func (s *Server) HandleHighlight(c *fiber.Ctx) error {
	var h mapview.HighlightSet
	if err := c.BodyParser(&h); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid highlight set")
	}
	if h.RoadStyle == nil && h.WayPointStyle == nil && h.RobotStyle == nil {
		h = mapview.DefaultHighlight(h.RoadKeys, h.WayPointKeys, h.RobotKeys)
	}
	if err := s.onLoop(func() { s.m.Highlight(h) }); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{"success": true, "highlight": h})
}

// HandleClearHighlight - revert the active highlight set
func (s *Server) HandleClearHighlight(c *fiber.Ctx) error {
	if err := s.onLoop(s.m.ClearHighlight); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{"success": true})
}

// NavigationRequest - POST /api/navigation
type NavigationRequest struct {
	Key    models.Key        `json:"key"`
	Points []models.PointRef `json:"points"`
}

// HandleNavigate - draw or replace a path overlay
func (s *Server) HandleNavigate(c *fiber.Ctx) error {
	var req NavigationRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid navigation request")
	}
	if req.Key == "" {
		return fail(c, fiber.StatusBadRequest, "key is required")
	}
	var resolved int
	if err := s.onLoop(func() {
		n := s.m.Navigate(req.Key, req.Points)
		for _, p := range n.Resolved(s.m.Registry()) {
			if p != nil {
				resolved++
			}
		}
	}); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"key":      req.Key,
		"points":   len(req.Points),
		"resolved": resolved,
	})
}

// HandleClearNavigation - remove one overlay
func (s *Server) HandleClearNavigation(c *fiber.Ctx) error {
	key := models.Key(c.Params("key"))
	var found bool
	if err := s.onLoop(func() { found = s.m.ClearNavigation(key) }); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}
	if !found {
		return fail(c, fiber.StatusNotFound, fmt.Sprintf("navigation %s not found", key))
	}
	return c.JSON(fiber.Map{"success": true})
}
