package services

import (
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"patro-map/models"
)

// LogBuffer - batches robot log rows and writes them asynchronously
type LogBuffer struct {
	logs      []models.RobotLog
	mu        sync.Mutex
	flushSize int           // rows per batch write
	flushTime time.Duration // periodic flush
	stopChan  chan struct{}
	done      chan struct{}
	log       zerolog.Logger
}

var logBuffer *LogBuffer

// InitLogging - start the buffered log writer
func InitLogging(flushSize int, flushInterval time.Duration, log zerolog.Logger) {
	logBuffer = &LogBuffer{
		logs:      make([]models.RobotLog, 0, flushSize*2),
		flushSize: flushSize,
		flushTime: flushInterval,
		stopChan:  make(chan struct{}),
		done:      make(chan struct{}),
		log:       log,
	}

	go logBuffer.autoFlush()

	log.Info().Int("flush_size", flushSize).Dur("flush_interval", flushInterval).Msg("robot log buffer started")
}

// autoFlush - periodic flush until stopped
func (lb *LogBuffer) autoFlush() {
	defer close(lb.done)
	ticker := time.NewTicker(lb.flushTime)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			lb.Flush()
		case <-lb.stopChan:
			lb.Flush()
			return
		}
	}
}

// AddLog - queue one row; a full buffer flushes in the background
func AddLog(entry models.RobotLog) {
	lb := logBuffer
	if lb == nil {
		return
	}

	lb.mu.Lock()
	lb.logs = append(lb.logs, entry)
	size := len(lb.logs)
	lb.mu.Unlock()

	if size >= lb.flushSize {
		go lb.Flush()
	}
}

// Flush - write every buffered row to the database
func (lb *LogBuffer) Flush() {
	lb.mu.Lock()
	if len(lb.logs) == 0 {
		lb.mu.Unlock()
		return
	}
	toSave := make([]models.RobotLog, len(lb.logs))
	copy(toSave, lb.logs)
	lb.logs = lb.logs[:0]
	lb.mu.Unlock()

	if db == nil {
		return
	}
	if err := db.CreateInBatches(toSave, 100).Error; err != nil {
		lb.log.Error().Err(err).Int("rows", len(toSave)).Msg("robot log write failed")
		return
	}
	lb.log.Debug().Int("rows", len(toSave)).Msg("robot logs saved")
}

// StopLogging - flush what is left and stop the writer
func StopLogging() {
	lb := logBuffer
	if lb == nil {
		return
	}
	close(lb.stopChan)
	<-lb.done
	logBuffer = nil
	lb.log.Info().Msg("robot log buffer stopped")
}

// ========================================
// Writers
// ========================================

// LogRobotPosition - position update
func LogRobotPosition(key models.Key, c models.Coordinates, heading float64) {
	AddLog(models.RobotLog{
		CreatedAt: time.Now(),
		EventType: models.EventPosition,
		RobotKey:  string(key),
		X:         c.X,
		Y:         c.Y,
		Z:         c.Z,
		Heading:   heading,
	})
}

// LogRobotAdded - first sighting of a robot
func LogRobotAdded(key models.Key, c models.Coordinates, heading float64) {
	AddLog(models.RobotLog{
		CreatedAt: time.Now(),
		EventType: models.EventRobotAdded,
		RobotKey:  string(key),
		X:         c.X,
		Y:         c.Y,
		Z:         c.Z,
		Heading:   heading,
	})
}

// LogDropped - status message that never reached the map
func LogDropped(reason, payload string) {
	AddLog(models.RobotLog{
		CreatedAt: time.Now(),
		EventType: models.EventDropped,
		Target:    reason,
		Detail:    payload,
	})
}

// LogDispatch - planner plan/stop result
func LogDispatch(eventType, robot, target string, code int, detail string) {
	AddLog(models.RobotLog{
		CreatedAt: time.Now(),
		EventType: eventType,
		RobotKey:  robot,
		Target:    target,
		Code:      code,
		Detail:    detail,
	})
}

// ========================================
// Queries
// ========================================

// forRobot - narrow to one robot when key is set
func forRobot(key string) func(*gorm.DB) *gorm.DB {
	return func(q *gorm.DB) *gorm.DB {
		if key == "" {
			return q
		}
		return q.Where("robot_key = ?", key)
	}
}

// GetRecentLogs - newest rows first
func GetRecentLogs(robot string, limit int) ([]models.RobotLog, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}
	var logs []models.RobotLog
	err := db.Scopes(forRobot(robot)).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetLogsByTimeRange - rows between start and end
func GetLogsByTimeRange(robot string, start, end time.Time, limit int) ([]models.RobotLog, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}
	var logs []models.RobotLog
	query := db.Scopes(forRobot(robot)).Where("created_at BETWEEN ? AND ?", start, end)
	if limit > 0 {
		query = query.Limit(limit)
	}
	err := query.Order("created_at DESC").Find(&logs).Error
	return logs, err
}

// GetLogsByEventType - rows of one event type
func GetLogsByEventType(robot, eventType string, limit int) ([]models.RobotLog, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}
	var logs []models.RobotLog
	err := db.Scopes(forRobot(robot)).
		Where("event_type = ?", eventType).
		Order("created_at DESC").
		Limit(limit).
		Find(&logs).Error
	return logs, err
}

// GetLogStats - row counts over the last hours, per event type
func GetLogStats(robot string, hours int) (map[string]interface{}, error) {
	if db == nil {
		return nil, ErrNoDatabase
	}
	since := time.Now().Add(-time.Duration(hours) * time.Hour)

	var total int64
	if err := db.Model(&models.RobotLog{}).
		Scopes(forRobot(robot)).
		Where("created_at >= ?", since).
		Count(&total).Error; err != nil {
		return nil, err
	}

	var eventCounts []struct {
		EventType string
		Count     int64
	}
	if err := db.Model(&models.RobotLog{}).
		Scopes(forRobot(robot)).
		Select("event_type, COUNT(*) as count").
		Where("created_at >= ?", since).
		Group("event_type").
		Scan(&eventCounts).Error; err != nil {
		return nil, err
	}

	eventMap := make(map[string]int64)
	for _, ec := range eventCounts {
		eventMap[ec.EventType] = ec.Count
	}

	return map[string]interface{}{
		"total_logs":   total,
		"event_counts": eventMap,
		"time_range":   fmt.Sprintf("Last %d hours", hours),
	}, nil
}
