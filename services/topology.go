package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"patro-map/config"
	"patro-map/mapview"
	"patro-map/models"
)

// DispatchError - planner answered with a non-zero code
type DispatchError struct {
	Op   string
	Code int
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("planner %s failed with code %d", e.Op, e.Code)
}

// TopologyClient - HTTP client for the topology service and the external planner
type TopologyClient struct {
	baseURL    string
	tid        string
	httpClient *http.Client
	mapping    config.Mapping
	log        zerolog.Logger
}

// NewTopologyClient - client for baseURL; tid selects the site map
func NewTopologyClient(baseURL, tid string, timeout time.Duration, mapping config.Mapping, log zerolog.Logger) *TopologyClient {
	return &TopologyClient{
		baseURL:    baseURL,
		tid:        tid,
		httpClient: &http.Client{Timeout: timeout},
		mapping:    mapping,
		log:        log,
	}
}

func (c *TopologyClient) get(ctx context.Context, path string, result any) error {
	u := c.baseURL + path + "?tid=" + url.QueryEscape(c.tid)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("topology GET %s: %w", path, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("topology GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, result)
}

func (c *TopologyClient) post(ctx context.Context, path string, body any, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("topology marshal: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("topology POST %s: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("topology POST %s: %w", path, err)
	}
	defer resp.Body.Close()
	return c.decode(resp, result)
}

func (c *TopologyClient) decode(resp *http.Response, result any) error {
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("topology read body: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("topology HTTP %d: %s", resp.StatusCode, string(data))
	}
	if err := json.Unmarshal(data, result); err != nil {
		return fmt.Errorf("topology decode: %w", err)
	}
	return nil
}

// ========================================
// Topology
// ========================================

// Fences - GET /patro/map/fence
func (c *TopologyClient) Fences(ctx context.Context) ([]models.FenceData, error) {
	var resp models.FenceResponse
	if err := c.get(ctx, "/patro/map/fence", &resp); err != nil {
		return nil, err
	}
	return resp.Fence, nil
}

// WayPoints - GET /patro/map/point
func (c *TopologyClient) WayPoints(ctx context.Context) ([]models.PointData, error) {
	var resp models.PointResponse
	if err := c.get(ctx, "/patro/map/point", &resp); err != nil {
		return nil, err
	}
	return resp.Point, nil
}

// Roads - GET /patro/map/line
func (c *TopologyClient) Roads(ctx context.Context) ([]models.LineData, error) {
	var resp models.LineResponse
	if err := c.get(ctx, "/patro/map/line", &resp); err != nil {
		return nil, err
	}
	return resp.Line, nil
}

// Topology - converted entities ready for the map
type Topology struct {
	Fences    []*mapview.Fence
	WayPoints []*mapview.WayPoint
	Roads     []*mapview.Road
}

// LoadTopology - fetch the three lists concurrently and convert them
func (c *TopologyClient) LoadTopology(ctx context.Context) (*Topology, error) {
	var (
		fences []models.FenceData
		points []models.PointData
		lines  []models.LineData
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		fences, err = c.Fences(gctx)
		return err
	})
	g.Go(func() (err error) {
		points, err = c.WayPoints(gctx)
		return err
	})
	g.Go(func() (err error) {
		lines, err = c.Roads(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return BuildTopology(fences, points, lines, c.mapping, c.log), nil
}

// BuildTopology - convert topology DTOs to entities. Entries without usable geometry are
// logged and skipped.
func BuildTopology(fences []models.FenceData, points []models.PointData, lines []models.LineData, m config.Mapping, log zerolog.Logger) *Topology {
	t := &Topology{}
	for _, f := range fences {
		polygon := make([]models.Coordinates, 0, len(f.Points))
		for _, p := range f.Points {
			if c, ok := models.NewCoordinates(p); ok {
				polygon = append(polygon, c)
			}
		}
		fence, err := mapview.NewFence(f.ID, m.FenceType(f.Type), polygon)
		if err != nil {
			log.Warn().Err(err).Msg("skipping fence")
			continue
		}
		t.Fences = append(t.Fences, fence)
	}
	for _, p := range points {
		c, ok := models.NewCoordinates(p.Pos)
		if !ok {
			log.Warn().Str("waypoint", string(p.ID)).Int("len", len(p.Pos)).Msg("skipping waypoint with bad pos")
			continue
		}
		t.WayPoints = append(t.WayPoints, mapview.NewWayPoint(p.ID, m.WayPointType(p.Type), c))
	}
	for _, l := range lines {
		if len(l.Point) != 2 {
			log.Warn().Str("road", string(l.ID)).Int("len", len(l.Point)).Msg("skipping road without two endpoints")
			continue
		}
		t.Roads = append(t.Roads, &mapview.Road{
			Key:   l.ID,
			Mode:  m.RoadMode(l.Direction),
			Speed: l.Speed,
			Gait:  m.RoadGait(l.Gait),
			Radar: m.RadarTag(l.Radar),
			Begin: l.Point[0],
			End:   l.Point[1],
		})
	}
	return t
}

// ========================================
// Planner
// ========================================

// Dispatcher - plans and stops robot tasks. TopologyClient talks to the external planner;
// Simulator answers in demo mode.
type Dispatcher interface {
	Plan(ctx context.Context, robot string, target models.PointRef, angle float64) (*models.PlanResponse, error)
	Stop(ctx context.Context, robot string) error
}

// Plan - ask the planner for a route for robot to target at heading angle (degrees)
func (c *TopologyClient) Plan(ctx context.Context, robot string, target models.PointRef, angle float64) (*models.PlanResponse, error) {
	var resp models.PlanResponse
	req := models.PlanRequest{TID: c.tid, PeriID: robot, Point: target, Angle: angle}
	if err := c.post(ctx, "/patro/navigation/plan", req, &resp); err != nil {
		return nil, err
	}
	if resp.Code != 0 {
		return &resp, &DispatchError{Op: "plan", Code: resp.Code}
	}
	return &resp, nil
}

// Stop - cancel the robot's current task
func (c *TopologyClient) Stop(ctx context.Context, robot string) error {
	var resp models.StopResponse
	if err := c.post(ctx, "/patro/navigation/stop", models.StopRequest{TID: c.tid, PeriID: robot}, &resp); err != nil {
		return err
	}
	if resp.Code != 0 {
		return &DispatchError{Op: "stop", Code: resp.Code}
	}
	return nil
}
