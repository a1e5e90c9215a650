package services

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"patro-map/config"
	"patro-map/models"
)

// ErrNoDatabase - telemetry store not configured
var ErrNoDatabase = errors.New("database not initialised")

// DB instance
var db *gorm.DB

// InitDatabase - connect to MySQL from config
func InitDatabase(cfg config.MySQLConfig, log zerolog.Logger) error {
	if !cfg.Enabled() {
		return fmt.Errorf("MySQL settings incomplete: MYSQL_HOST, MYSQL_USER and MYSQL_DATABASE are required")
	}

	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Database)

	if err := OpenDatabase(mysql.Open(dsn)); err != nil {
		return err
	}
	log.Info().
		Str("host", cfg.Host).
		Int("port", cfg.Port).
		Str("database", cfg.Database).
		Msg("MySQL connected and migrated")
	return nil
}

// OpenDatabase - open any gorm dialector and migrate the log table
func OpenDatabase(dialector gorm.Dialector) error {
	conn, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	if err := conn.AutoMigrate(&models.RobotLog{}); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	db = conn
	return nil
}

// GetDB - GORM instance, nil when not connected
func GetDB() *gorm.DB {
	return db
}
