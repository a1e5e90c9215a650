// routes.go - server dependencies and route registration
package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"patro-map/mapview"
	"patro-map/services"
)

// Dependencies holds everything the handlers touch
type Dependencies struct {
	Loop       *mapview.Loop
	Map        *mapview.Map
	Display    *mapview.DisplayList
	Manager    *ClientManager
	Robots     *RobotManager
	Dispatcher services.Dispatcher
	Ingestor   *services.Ingestor
	Metrics    *services.Metrics
	Logger     zerolog.Logger
	// Timeout bounds loop round-trips and planner calls per request
	Timeout time.Duration
}

// Server - HTTP and WebSocket surface over one map
type Server struct {
	loop       *mapview.Loop
	m          *mapview.Map
	dl         *mapview.DisplayList
	manager    *ClientManager
	robots     *RobotManager
	dispatcher services.Dispatcher
	ingestor   *services.Ingestor
	metrics    *services.Metrics
	log        zerolog.Logger
	timeout    time.Duration
	started    time.Time
}

// NewServer wires the handlers to their dependencies
func NewServer(deps Dependencies) *Server {
	if deps.Timeout <= 0 {
		deps.Timeout = 5 * time.Second
	}
	return &Server{
		loop:       deps.Loop,
		m:          deps.Map,
		dl:         deps.Display,
		manager:    deps.Manager,
		robots:     deps.Robots,
		dispatcher: deps.Dispatcher,
		ingestor:   deps.Ingestor,
		metrics:    deps.Metrics,
		log:        deps.Logger,
		timeout:    deps.Timeout,
		started:    time.Now(),
	}
}

// RegisterRoutes registers every route on app
func RegisterRoutes(app *fiber.App, s *Server) {
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString("patro-map server is running")
	})
	app.Get("/metrics", adaptor.HTTPHandler(s.metrics.Handler()))

	api := app.Group("/api")
	api.Get("/health", s.HandleHealth)

	// scene
	api.Get("/map", s.HandleGetMap)
	api.Get("/map/entities", s.HandleGetEntities)
	api.Post("/map/debug", s.HandleSetDebug)
	api.Post("/map/recenter", s.HandleRecenter)
	api.Get("/robots", s.HandleGetRobots)
	api.Post("/mode", s.HandleSetMode)
	api.Post("/highlight", s.HandleHighlight)
	api.Delete("/highlight", s.HandleClearHighlight)
	api.Post("/navigation", s.HandleNavigate)
	api.Delete("/navigation/:key", s.HandleClearNavigation)

	// planner
	dispatch := api.Group("/dispatch")
	dispatch.Post("/plan", s.HandlePlan)
	dispatch.Post("/stop", s.HandleStop)

	// robot log queries
	logsAPI := api.Group("/logs")
	logsAPI.Get("/recent", HandleGetRecentLogs)
	logsAPI.Get("/range", HandleGetLogsByTimeRange)
	logsAPI.Get("/type", HandleGetLogsByEventType)
	logsAPI.Get("/stats", HandleGetLogStats)

	// WebSocket
	app.Use("/websocket", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/websocket/agv", websocket.New(s.HandleAGVWebSocket))
	app.Get("/websocket/web", websocket.New(s.HandleWebClientWebSocket))
}

// fail - error body shared by every handler
func fail(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{
		"success": false,
		"message": message,
	})
}
