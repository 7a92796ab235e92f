package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Config holds the psyche-api runtime configuration, loaded from environment
// variables with local-dev defaults.
type Config struct {
	HTTP struct {
		Addr string
	}

	Database DatabaseConfig

	Redis struct {
		Addr     string
		Password string
		DB       int
	}

	// Session selects the session-store backend: "file" or "postgres".
	Session struct {
		Backend string
		Dir     string // spool directory for the file backend
	}

	Reconcile struct {
		Interval        time.Duration
		LowBatteryLevel int    // alert threshold, percent
		AlertWebhookURL string // empty disables alerting
	}

	MQTT MQTTConfig

	SMTP struct {
		Host     string
		Port     int
		User     string
		Password string
	}

	Log struct {
		Level  string
		Format string
	}
}

// DatabaseConfig is the PostgreSQL connection configuration.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MaxIdle  int
}

// DSN renders the lib/pq connection string.
func (c *DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode)
}

// MQTTConfig is the optional MQTT ingestion transport configuration.
type MQTTConfig struct {
	Enabled  bool
	Broker   string
	ClientID string
	Username string
	Password string
	Topic    string // topic carrying the raw CSV telemetry lines
	QoS      int
}

func Load() *Config {
	cfg := &Config{}
	cfg.HTTP.Addr = getEnv("HTTP_ADDR", ":8001")

	cfg.Database.Host = getEnv("DB_HOST", "localhost")
	cfg.Database.Port = parseInt(getEnv("DB_PORT", "5432"), 5432)
	cfg.Database.User = getEnv("DB_USER", "postgres")
	cfg.Database.Password = getEnv("DB_PASSWORD", "postgres")
	cfg.Database.Database = getEnv("DB_NAME", "psyche")
	cfg.Database.SSLMode = getEnv("DB_SSLMODE", "disable")
	cfg.Database.MaxConns = parseInt(getEnv("DB_MAX_CONNS", "10"), 10)
	cfg.Database.MaxIdle = parseInt(getEnv("DB_MAX_IDLE", "5"), 5)

	cfg.Redis.Addr = getEnv("REDIS_ADDR", "localhost:6379")
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", "")
	cfg.Redis.DB = parseInt(getEnv("REDIS_DB", "0"), 0)

	cfg.Session.Backend = getEnv("SESSION_BACKEND", "file")
	cfg.Session.Dir = getEnv("SESSION_DIR", "CurrentPatientCSVs")

	cfg.Reconcile.Interval = parseDuration(getEnv("RECONCILE_INTERVAL", "1m"), time.Minute)
	cfg.Reconcile.LowBatteryLevel = parseInt(getEnv("LOW_BATTERY_LEVEL", "15"), 15)
	cfg.Reconcile.AlertWebhookURL = getEnv("BATTERY_ALERT_WEBHOOK", "")

	cfg.MQTT.Enabled = getEnv("MQTT_ENABLED", "false") == "true"
	cfg.MQTT.Broker = getEnv("MQTT_BROKER", "tcp://localhost:1883")
	cfg.MQTT.ClientID = getEnv("MQTT_CLIENT_ID", "psyche-api")
	cfg.MQTT.Username = getEnv("MQTT_USERNAME", "")
	cfg.MQTT.Password = getEnv("MQTT_PASSWORD", "")
	cfg.MQTT.Topic = getEnv("MQTT_TOPIC", "psyche/telemetry")
	cfg.MQTT.QoS = parseInt(getEnv("MQTT_QOS", "1"), 1)

	cfg.SMTP.Host = getEnv("SMTP_HOST", "")
	cfg.SMTP.Port = parseInt(getEnv("SMTP_PORT", "587"), 587)
	cfg.SMTP.User = getEnv("SMTP_USER", "")
	cfg.SMTP.Password = getEnv("SMTP_PASSWORD", "")

	cfg.Log.Level = getEnv("LOG_LEVEL", "info")
	cfg.Log.Format = getEnv("LOG_FORMAT", "json")

	return cfg
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func parseInt(s string, def int) int {
	i, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return i
}

func parseDuration(s string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
