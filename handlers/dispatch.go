package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"patro-map/models"
	"patro-map/services"
)

// PlanRequest - POST /api/dispatch/plan. Either Waypoint or X and Y name the target.
type PlanRequest struct {
	Robot    string      `json:"robot"`
	Waypoint *models.Key `json:"waypoint,omitempty"`
	X        *float64    `json:"x,omitempty"`
	Y        *float64    `json:"y,omitempty"`
	Angle    float64     `json:"angle"`
}

// Target - the planner's point field
func (r PlanRequest) Target() (models.PointRef, error) {
	switch {
	case r.Waypoint != nil && *r.Waypoint != "":
		return models.Ref(*r.Waypoint), nil
	case r.X != nil && r.Y != nil:
		return models.At(models.Coordinates{X: *r.X, Y: *r.Y}), nil
	default:
		return models.PointRef{}, errors.New("waypoint or x and y are required")
	}
}

// StopRequest - POST /api/dispatch/stop
type StopRequest struct {
	Robot string `json:"robot"`
}

// HandlePlan - ask the planner for a route; on success the robot's overlay shows it
func (s *Server) HandlePlan(c *fiber.Ctx) error {
	var req PlanRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Robot == "" {
		return fail(c, fiber.StatusBadRequest, "robot is required")
	}
	target, err := req.Target()
	if err != nil {
		return fail(c, fiber.StatusBadRequest, err.Error())
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()

	resp, err := s.dispatcher.Plan(ctx, req.Robot, target, req.Angle)
	if err != nil {
		return s.dispatchFailed(c, "plan", models.EventDispatchPlan, req.Robot, target.String(), err)
	}

	if err := s.onLoop(func() {
		s.m.Navigate(models.Key(req.Robot), resp.Path)
	}); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}

	s.metrics.Dispatch("plan", "ok")
	services.LogDispatch(models.EventDispatchPlan, req.Robot, target.String(), 0, "")
	s.manager.Notify(models.LevelSuccess, fmt.Sprintf("%s dispatched to %s", req.Robot, target), 0)
	s.log.Info().Str("robot", req.Robot).Str("target", target.String()).Int("path", len(resp.Path)).Msg("plan accepted")

	return c.JSON(fiber.Map{
		"success": true,
		"robot":   req.Robot,
		"target":  target,
		"path":    resp.Path,
	})
}

// HandleStop - cancel the robot's task and clear its overlay
func (s *Server) HandleStop(c *fiber.Ctx) error {
	var req StopRequest
	if err := c.BodyParser(&req); err != nil {
		return fail(c, fiber.StatusBadRequest, "invalid request body")
	}
	if req.Robot == "" {
		return fail(c, fiber.StatusBadRequest, "robot is required")
	}

	ctx, cancel := context.WithTimeout(c.UserContext(), s.timeout)
	defer cancel()

	if err := s.dispatcher.Stop(ctx, req.Robot); err != nil {
		return s.dispatchFailed(c, "stop", models.EventDispatchStop, req.Robot, "", err)
	}

	if err := s.onLoop(func() {
		s.m.ClearNavigation(models.Key(req.Robot))
	}); err != nil {
		return fail(c, fiber.StatusServiceUnavailable, err.Error())
	}

	s.metrics.Dispatch("stop", "ok")
	services.LogDispatch(models.EventDispatchStop, req.Robot, "", 0, "")
	s.manager.Notify(models.LevelSuccess, fmt.Sprintf("%s stopped", req.Robot), 0)
	s.log.Info().Str("robot", req.Robot).Msg("stop accepted")

	return c.JSON(fiber.Map{"success": true, "robot": req.Robot})
}

// dispatchFailed - notify operators, record, and answer 502. No retry.
func (s *Server) dispatchFailed(c *fiber.Ctx, op, eventType, robot, target string, err error) error {
	code := -1
	outcome := "error"
	var de *services.DispatchError
	if errors.As(err, &de) {
		code = de.Code
		outcome = "rejected"
	}

	s.metrics.Dispatch(op, outcome)
	services.LogDispatch(eventType, robot, target, code, err.Error())
	s.manager.Notify(models.LevelError, fmt.Sprintf("%s %s failed: %v", op, robot, err), code)
	s.log.Error().Err(err).Str("robot", robot).Str("op", op).Int("code", code).Msg("dispatch failed")

	return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
		"success": false,
		"message": err.Error(),
		"code":    code,
	})
}
