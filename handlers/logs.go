package handlers

import (
	"errors"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"

	"patro-map/services"
)

// queryFailed - 503 when no store is configured, 500 otherwise
func queryFailed(c *fiber.Ctx, err error) error {
	if errors.Is(err, services.ErrNoDatabase) {
		return fail(c, fiber.StatusServiceUnavailable, "robot log store is not configured")
	}
	return fail(c, fiber.StatusInternalServerError, "failed to fetch logs")
}

func queryLimit(c *fiber.Ctx) int {
	limit, err := strconv.Atoi(c.Query("limit", "100"))
	if err != nil || limit <= 0 {
		limit = 100
	}
	return limit
}

// HandleGetRecentLogs - newest log rows, optionally for one robot
func HandleGetRecentLogs(c *fiber.Ctx) error {
	robot := c.Query("robot")

	logs, err := services.GetRecentLogs(robot, queryLimit(c))
	if err != nil {
		return queryFailed(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(logs),
		"logs":    logs,
	})
}

// HandleGetLogsByTimeRange - rows between start and end (RFC3339, default last 24h)
func HandleGetLogsByTimeRange(c *fiber.Ctx) error {
	robot := c.Query("robot")

	start := time.Now().Add(-24 * time.Hour)
	if startStr := c.Query("start"); startStr != "" {
		parsed, err := time.Parse(time.RFC3339, startStr)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid start time format (use RFC3339)")
		}
		start = parsed
	}

	end := time.Now()
	if endStr := c.Query("end"); endStr != "" {
		parsed, err := time.Parse(time.RFC3339, endStr)
		if err != nil {
			return fail(c, fiber.StatusBadRequest, "invalid end time format (use RFC3339)")
		}
		end = parsed
	}

	logs, err := services.GetLogsByTimeRange(robot, start, end, queryLimit(c))
	if err != nil {
		return queryFailed(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"count":   len(logs),
		"time_range": fiber.Map{
			"start": start.Format(time.RFC3339),
			"end":   end.Format(time.RFC3339),
		},
		"logs": logs,
	})
}

// HandleGetLogsByEventType - rows of one event type
func HandleGetLogsByEventType(c *fiber.Ctx) error {
	robot := c.Query("robot")
	eventType := c.Query("event_type")

	if eventType == "" {
		return fail(c, fiber.StatusBadRequest, "event_type parameter is required")
	}

	logs, err := services.GetLogsByEventType(robot, eventType, queryLimit(c))
	if err != nil {
		return queryFailed(c, err)
	}

	return c.JSON(fiber.Map{
		"success":    true,
		"count":      len(logs),
		"event_type": eventType,
		"logs":       logs,
	})
}

// HandleGetLogStats - counts per event type over the last hours
func HandleGetLogStats(c *fiber.Ctx) error {
	robot := c.Query("robot")

	hours, err := strconv.Atoi(c.Query("hours", "24"))
	if err != nil || hours <= 0 {
		hours = 24
	}

	stats, err := services.GetLogStats(robot, hours)
	if err != nil {
		return queryFailed(c, err)
	}

	return c.JSON(fiber.Map{
		"success": true,
		"stats":   stats,
	})
}
