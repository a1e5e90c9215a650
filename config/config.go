package config

import (
	"os"
	"strconv"
	"strings"
)

// Config - process settings read from the environment (.env is loaded by main)
type Config struct {
	HTTPAddr    string
	LogLevel    string
	TopologyURL string
	TopologyTID string
	RobotWSURL  string
	MQTTBroker  string
	MQTTTopic   string
	StyleFile   string
	Demo        bool
	MySQL       MySQLConfig
}

// MySQLConfig - telemetry store connection
type MySQLConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
}

// Enabled - true when enough is set to open a connection
func (m MySQLConfig) Enabled() bool {
	return m.Host != "" && m.User != "" && m.Database != ""
}

// FromEnv - read Config from environment variables, falling back to defaults
func FromEnv() Config {
	port, err := strconv.Atoi(os.Getenv("MYSQL_PORT"))
	if err != nil || port == 0 {
		port = 3306
	}
	return Config{
		HTTPAddr:    getenv("HTTP_ADDR", ":3000"),
		LogLevel:    getenv("LOG_LEVEL", "info"),
		TopologyURL: strings.TrimRight(os.Getenv("TOPOLOGY_URL"), "/"),
		TopologyTID: getenv("TOPOLOGY_TID", "1"),
		RobotWSURL:  os.Getenv("ROBOT_WS_URL"),
		MQTTBroker:  os.Getenv("MQTT_BROKER"),
		MQTTTopic:   getenv("MQTT_TOPIC", "patro/robot/status"),
		StyleFile:   getenv("STYLE_FILE", "style.yaml"),
		Demo:        truthy(os.Getenv("DEMO")),
		MySQL: MySQLConfig{
			Host:     os.Getenv("MYSQL_HOST"),
			Port:     port,
			User:     os.Getenv("MYSQL_USER"),
			Password: os.Getenv("MYSQL_PASSWORD"),
			Database: os.Getenv("MYSQL_DATABASE"),
		},
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
