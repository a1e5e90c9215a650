package services

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"patro-map/models"
)

// DemoMap - generated topology in the upstream wire shape
type DemoMap struct {
	ID     string
	Fences []models.FenceData
	Points []models.PointData
	Lines  []models.LineData

	neighbors map[models.Key][]models.Key
	positions map[models.Key]models.Coordinates
}

// Position - coordinates of a generated waypoint
func (dm *DemoMap) Position(key models.Key) (models.Coordinates, bool) {
	c, ok := dm.positions[key]
	return c, ok
}

// Neighbors - waypoints one road away from key
func (dm *DemoMap) Neighbors(key models.Key) []models.Key {
	return dm.neighbors[key]
}

// MapGenerator - builds grid-shaped demo sites
type MapGenerator struct {
	mu           sync.RWMutex
	activeMap    *DemoMap
	generationMu sync.Mutex
	rng          *rand.Rand
}

// NewMapGenerator - generator seeded from the clock
func NewMapGenerator() *MapGenerator {
	return NewSeededMapGenerator(time.Now().UnixNano())
}

// NewSeededMapGenerator - deterministic generator for tests
func NewSeededMapGenerator(seed int64) *MapGenerator {
	return &MapGenerator{rng: rand.New(rand.NewSource(seed))}
}

// GenerateMap - rows x cols waypoints spaced by spacing metres, connected to their grid
// neighbours, inside a boundary fence with one obstacle
func (mg *MapGenerator) GenerateMap(rows, cols int, spacing float64) (*DemoMap, error) {
	if rows < 2 || cols < 2 || spacing <= 0 {
		return nil, fmt.Errorf("demo map needs at least 2x2 waypoints and positive spacing, got %dx%d spacing %g", rows, cols, spacing)
	}
	mg.generationMu.Lock()
	defer mg.generationMu.Unlock()

	dm := &DemoMap{
		ID:        uuid.NewString(),
		neighbors: make(map[models.Key][]models.Key),
		positions: make(map[models.Key]models.Coordinates),
	}

	id := func(r, c int) int { return r*cols + c }

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			key := models.IntKey(id(r, c))
			pos := models.Coordinates{X: float64(c) * spacing, Y: float64(r) * spacing}
			dm.positions[key] = pos
			dm.Points = append(dm.Points, models.PointData{
				ID:   key,
				Name: fmt.Sprintf("P%d", id(r, c)),
				Pos:  []float64{pos.X, pos.Y},
				Type: mg.pointType(r, c, rows, cols),
			})
		}
	}

	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if c+1 < cols {
				mg.connect(dm, id(r, c), id(r, c+1))
			}
			if r+1 < rows {
				mg.connect(dm, id(r, c), id(r+1, c))
			}
		}
	}

	// boundary with a one-spacing margin
	w := float64(cols-1) * spacing
	h := float64(rows-1) * spacing
	dm.Fences = append(dm.Fences, models.FenceData{
		ID:     models.Key(uuid.NewString()),
		Points: [][]float64{{-spacing, -spacing}, {w + spacing, -spacing}, {w + spacing, h + spacing}, {-spacing, h + spacing}},
		Type:   0,
	})
	// obstacle inside the first cell
	q := spacing / 4
	dm.Fences = append(dm.Fences, models.FenceData{
		ID:     models.Key(uuid.NewString()),
		Points: [][]float64{{q, q}, {3 * q, q}, {3 * q, 3 * q}, {q, 3 * q}},
		Type:   1,
	})

	mg.mu.Lock()
	mg.activeMap = dm
	mg.mu.Unlock()

	return dm, nil
}

// pointType - upstream type code: charger at the origin corner, staging next to it,
// turn-around at the far corner, tasks elsewhere
func (mg *MapGenerator) pointType(r, c, rows, cols int) int {
	switch {
	case r == 0 && c == 0:
		return 3
	case r == 0 && c == 1:
		return 2
	case r == rows-1 && c == cols-1:
		return 0
	default:
		return 1
	}
}

func (mg *MapGenerator) connect(dm *DemoMap, a, b int) {
	radar := []string{"", "红", "黄"}
	ka, kb := models.IntKey(a), models.IntKey(b)
	dm.Lines = append(dm.Lines, models.LineData{
		ID:        models.Key(uuid.NewString()),
		Point:     []models.PointRef{models.Ref(ka), models.Ref(kb)},
		Direction: 1,
		Speed:     0.5 + float64(mg.rng.Intn(3))*0.5,
		Gait:      mg.rng.Intn(3),
		Radar:     radar[mg.rng.Intn(len(radar))],
	})
	dm.neighbors[ka] = append(dm.neighbors[ka], kb)
	dm.neighbors[kb] = append(dm.neighbors[kb], ka)
}

// GetActiveMap - last generated map, nil before the first GenerateMap
func (mg *MapGenerator) GetActiveMap() *DemoMap {
	mg.mu.RLock()
	defer mg.mu.RUnlock()
	return mg.activeMap
}

// ClearMap removes the current active map
func (mg *MapGenerator) ClearMap() {
	mg.mu.Lock()
	defer mg.mu.Unlock()
	mg.activeMap = nil
}
