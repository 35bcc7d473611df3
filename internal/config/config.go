// Package config provides worker configuration loaded from environment variables.
package config

import (
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

const logPrefix = "config:LoadConfig"

// Config holds chat-worker configuration.
type Config struct {
	// COMMS: connect to standalone NATS at COMMSURL.
	COMMSURL  string `envconfig:"COMMS_URL" default:"nats://127.0.0.1:4222"`
	COMMSName string `envconfig:"SERVICE_NAME" default:"chat-worker"`

	// Worker subjects
	WorkerSubject string `envconfig:"WORKER_SUBJECT" default:"chat.worker.v1"`
	QueueGroup    string `envconfig:"WORKER_QUEUE_GROUP" default:"chat-worker"`
	EventSubject  string `envconfig:"WORKER_EVENT_SUBJECT" default:"chat.worker.events"`

	RequestTimeout time.Duration `envconfig:"WORKER_REQUEST_TIMEOUT" default:"25s"`
	BufferSize     int           `envconfig:"WORKER_BUFFER_SIZE" default:"64"`

	// Database (empty URL disables the dispatch journal)
	DatabaseURL      string        `envconfig:"DATABASE_URL"`
	RunMigrations    bool          `envconfig:"RUN_MIGRATIONS" default:"false"`
	MigrationPath    string        `envconfig:"MIGRATION_PATH" default:"migrations"`
	JournalRetention time.Duration `envconfig:"JOURNAL_RETENTION" default:"168h"`

	// HTTP (WORKER_HTTP_ADDR preferred, e.g. "0.0.0.0:8080")
	HTTPAddr           string        `envconfig:"WORKER_HTTP_ADDR"`
	HTTPPort           int           `envconfig:"HTTP_PORT" default:"8080"`
	HealthCheckTimeout time.Duration `envconfig:"HEALTH_CHECK_TIMEOUT" default:"5s"`
	WSReadLimit        int64         `envconfig:"WS_READ_LIMIT" default:"4194304"`

	// Logging
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	var c Config
	if err := envconfig.Process("", &c); err != nil {
		return nil, fmt.Errorf("%s - %w", logPrefix, err)
	}
	return &c, nil
}

// JournalEnabled reports whether dispatches are recorded in the database.
func (c *Config) JournalEnabled() bool {
	return c.DatabaseURL != ""
}

// ListenAddr returns the HTTP listen address.
func (c *Config) ListenAddr() string {
	if c.HTTPAddr != "" {
		return c.HTTPAddr
	}
	return fmt.Sprintf(":%d", c.HTTPPort)
}

// SlogLevel maps LOG_LEVEL to a slog level; unknown values mean info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(strings.TrimSpace(c.LogLevel)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// ValidateForServe checks required config when running the worker server.
func (c *Config) ValidateForServe() error {
	if c.COMMSURL == "" {
		return fmt.Errorf("%s - COMMS_URL is required for serve", logPrefix)
	}
	if c.WorkerSubject == "" {
		return fmt.Errorf("%s - WORKER_SUBJECT is required for serve", logPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("%s - WORKER_REQUEST_TIMEOUT must be positive", logPrefix)
	}
	if c.BufferSize <= 0 {
		return fmt.Errorf("%s - WORKER_BUFFER_SIZE must be positive", logPrefix)
	}
	if c.HealthCheckTimeout <= 0 {
		return fmt.Errorf("%s - HEALTH_CHECK_TIMEOUT must be positive", logPrefix)
	}
	if c.WSReadLimit <= 0 {
		return fmt.Errorf("%s - WS_READ_LIMIT must be positive", logPrefix)
	}
	return nil
}

// ValidateForDB checks required config for the database commands (migrate, journal).
func (c *Config) ValidateForDB() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("%s - DATABASE_URL is required", logPrefix)
	}
	return nil
}
