package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"patro-map/config"
	"patro-map/handlers"
	"patro-map/mapview"
	"patro-map/services"
)

func main() {
	// .env is optional
	envErr := godotenv.Load()

	cfg := config.FromEnv()
	log := services.NewLogger(cfg.LogLevel)
	if envErr != nil {
		log.Debug().Msg(".env not found, using process environment")
	}

	sf, err := config.LoadStyleFile(cfg.StyleFile)
	if err != nil {
		log.Fatal().Err(err).Str("file", cfg.StyleFile).Msg("style file")
	}

	metrics := services.NewMetrics()

	// robot telemetry store
	if cfg.MySQL.Enabled() {
		if err := services.InitDatabase(cfg.MySQL, log); err != nil {
			log.Fatal().Err(err).Msg("database init failed")
		}
	} else {
		log.Warn().Msg("MYSQL_* not set, robot logs are not persisted")
	}
	// flush every 50 rows or 10 seconds
	services.InitLogging(50, 10*time.Second, log)
	defer services.StopLogging()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// map engine, owned by the loop goroutine
	loop := mapview.NewLoop(log.With().Str("component", "loop").Logger())
	dl := mapview.NewDisplayList(sf.Canvas.Width, sf.Canvas.Height)
	opts := sf.MapOptions()
	opts.Canvas = dl
	opts.Scheduler = loop.Scheduler()
	opts.Logger = log.With().Str("component", "map").Logger()
	opts.OnRedraw = metrics.Redraw
	m := mapview.New(opts)

	manager := handlers.NewClientManager(metrics, log.With().Str("component", "hub").Logger())
	manager.AttachMap(loop, m, dl)
	robots := handlers.NewRobotManager(30*time.Second, log)

	ingestor := services.NewIngestor(loop, m, metrics, log.With().Str("component", "ingest").Logger())
	ingestor.OnApplied = func(u services.RobotUpdate, added bool) {
		robots.Observe(u.Key, u.Center, u.Heading)
		r, ok := m.Registry().Robot(u.Key)
		if !ok {
			return
		}
		if added {
			services.LogRobotAdded(r.Key, r.Center(), r.Heading())
		} else {
			services.LogRobotPosition(r.Key, r.Center(), r.Heading())
		}
	}

	var sources []services.Source
	var dispatcher services.Dispatcher
	var topo *services.Topology

	if cfg.Demo {
		demo, err := services.NewMapGenerator().GenerateMap(4, 6, 10)
		if err != nil {
			log.Fatal().Err(err).Msg("demo map")
		}
		topo = services.BuildTopology(demo.Fences, demo.Points, demo.Lines, sf.Mapping, log)
		sim, err := services.NewSimulator(demo, 3, log.With().Str("component", "simulator").Logger())
		if err != nil {
			log.Fatal().Err(err).Msg("demo simulator")
		}
		dispatcher = sim
		sources = append(sources, sim)
		log.Info().Str("map", demo.ID).Msg("demo mode")
	} else {
		if cfg.TopologyURL == "" {
			log.Fatal().Msg("TOPOLOGY_URL is required unless DEMO is set")
		}
		client := services.NewTopologyClient(cfg.TopologyURL, cfg.TopologyTID, 10*time.Second, sf.Mapping, log.With().Str("component", "topology").Logger())
		loadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		topo, err = client.LoadTopology(loadCtx)
		cancel()
		if err != nil {
			log.Fatal().Err(err).Str("url", cfg.TopologyURL).Msg("topology fetch failed")
		}
		dispatcher = client
	}

	if cfg.RobotWSURL != "" {
		sources = append(sources, services.NewWSSource(cfg.RobotWSURL, log.With().Str("component", "ws-source").Logger()))
	}
	if cfg.MQTTBroker != "" {
		sources = append(sources, &services.MQTTSource{
			Broker:   cfg.MQTTBroker,
			Topic:    cfg.MQTTTopic,
			ClientID: "patro-map-" + uuid.NewString()[:8],
			Log:      log.With().Str("component", "mqtt-source").Logger(),
		})
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		loop.Run(gctx)
		return nil
	})
	g.Go(func() error {
		manager.Start(gctx)
		return nil
	})

	var initErr error
	if err := loop.Do(ctx, func() { initErr = initiate(m, topo, log) }); err != nil {
		log.Fatal().Err(err).Msg("map loop")
	}
	if initErr != nil {
		log.Fatal().Err(initErr).Msg("map initiate failed")
	}

	for _, src := range sources {
		src := src
		g.Go(func() error {
			return src.Run(gctx, func(payload []byte) { _ = ingestor.Handle(payload) })
		})
	}

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	app.Use(logger.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: "*",
		AllowHeaders: "Origin, Content-Type, Accept",
		AllowMethods: "GET, POST, PUT, DELETE, OPTIONS",
	}))

	server := handlers.NewServer(handlers.Dependencies{
		Loop:       loop,
		Map:        m,
		Display:    dl,
		Manager:    manager,
		Robots:     robots,
		Dispatcher: dispatcher,
		Ingestor:   ingestor,
		Metrics:    metrics,
		Logger:     log.With().Str("component", "http").Logger(),
	})
	handlers.RegisterRoutes(app, server)

	g.Go(func() error {
		<-gctx.Done()
		return app.ShutdownWithTimeout(5 * time.Second)
	})

	log.Info().Str("addr", cfg.HTTPAddr).Msg("server started")
	log.Info().Msg("WebSocket: /websocket/web (operators), /websocket/agv (robots)")
	if err := app.Listen(cfg.HTTPAddr); err != nil {
		log.Error().Err(err).Msg("http server stopped")
		stop()
	}

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
	log.Info().Msg("bye")
}

// initiate - hand the topology to the map and draw it; runs on the loop
func initiate(m *mapview.Map, topo *services.Topology, log zerolog.Logger) error {
	if err := m.AddFences(topo.Fences...); err != nil {
		return err
	}
	if err := m.AddWayPoints(topo.WayPoints...); err != nil {
		return err
	}
	if err := m.AddRoads(topo.Roads...); err != nil {
		return err
	}
	if err := m.Initiate(); err != nil {
		return err
	}
	log.Info().
		Int("fences", len(topo.Fences)).
		Int("waypoints", len(topo.WayPoints)).
		Int("roads", len(topo.Roads)).
		Msg("map initiated")
	return nil
}
