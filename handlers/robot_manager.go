package handlers

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"patro-map/models"
)

// RobotManager - liveness of robots seen on the status stream. The map keeps drawing a
// robot after it goes quiet; this is what tells the operator it is offline.
type RobotManager struct {
	mu       sync.RWMutex
	robots   map[models.Key]*models.RobotInfo
	lastPing map[models.Key]time.Time
	timeout  time.Duration
	now      func() time.Time
	log      zerolog.Logger
}

// NewRobotManager - manager treating robots silent for longer than timeout as offline
func NewRobotManager(timeout time.Duration, log zerolog.Logger) *RobotManager {
	return &RobotManager{
		robots:   make(map[models.Key]*models.RobotInfo),
		lastPing: make(map[models.Key]time.Time),
		timeout:  timeout,
		now:      time.Now,
		log:      log,
	}
}

// Observe - record a status update
func (m *RobotManager) Observe(key models.Key, center models.Coordinates, heading *float64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	info, exists := m.robots[key]
	if !exists {
		info = &models.RobotInfo{Key: key}
		m.robots[key] = info
		m.log.Info().Str("robot", string(key)).Msg("robot registered")
	}
	info.Center = center
	if heading != nil {
		info.Heading = *heading
	}
	info.LastSeen = now
	m.lastPing[key] = now
}

// GetStatus - one robot with its liveness
func (m *RobotManager) GetStatus(key models.Key) (models.RobotInfo, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	info, exists := m.robots[key]
	if !exists {
		return models.RobotInfo{}, fmt.Errorf("robot not found: %s", key)
	}
	out := *info
	out.Online = m.alive(key)
	return out, nil
}

// GetAllStatuses - every robot ordered by key
func (m *RobotManager) GetAllStatuses() []models.RobotInfo {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]models.RobotInfo, 0, len(m.robots))
	for key, info := range m.robots {
		out := *info
		out.Online = m.alive(key)
		result = append(result, out)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Key < result[j].Key })
	return result
}

// IsAlive - seen within the timeout
func (m *RobotManager) IsAlive(key models.Key) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.alive(key)
}

func (m *RobotManager) alive(key models.Key) bool {
	lastPing, exists := m.lastPing[key]
	if !exists {
		return false
	}
	return m.now().Sub(lastPing) < m.timeout
}

// Count - robots ever seen
func (m *RobotManager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.robots)
}

// GetStatistics - totals for the health endpoint
func (m *RobotManager) GetStatistics() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	online := 0
	for key := range m.robots {
		if m.alive(key) {
			online++
		}
	}
	return map[string]interface{}{
		"total_robots":  len(m.robots),
		"online_robots": online,
	}
}
