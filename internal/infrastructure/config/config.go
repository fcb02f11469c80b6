package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server     ServerConfig
	Downstream DownstreamConfig
	Telemetry  TelemetryConfig
	Logging    LogConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT"`
	Host string `envconfig:"HOST" default:"0.0.0.0"`
}

// DownstreamConfig holds settings for calls to the user service.
type DownstreamConfig struct {
	UserServiceURL string        `envconfig:"USER_SERVICE_URL" default:"http://localhost:8001"`
	CallTimeout    time.Duration `envconfig:"USER_SERVICE_TIMEOUT" default:"5s"`
}

// TelemetryConfig holds settings for the telemetry pipeline and its
// OTLP collector connection.
type TelemetryConfig struct {
	CollectorEndpoint string        `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4317"`
	FlushInterval     time.Duration `envconfig:"TELEMETRY_FLUSH_INTERVAL" default:"5s"`
	BatchSize         int           `envconfig:"TELEMETRY_BATCH_SIZE" default:"128"`
	QueueSize         int           `envconfig:"TELEMETRY_QUEUE_SIZE" default:"1024"`
	ExportTimeout     time.Duration `envconfig:"TELEMETRY_EXPORT_TIMEOUT" default:"10s"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// Load loads configuration from environment variables. The gateway and
// the user service listen on different ports, so the caller supplies
// the port used when PORT is unset.
func Load(defaultPort string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if cfg.Server.Port == "" {
		cfg.Server.Port = defaultPort
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault(defaultPort string) *Config {
	cfg, err := Load(defaultPort)
	if err != nil {
		return Default(defaultPort)
	}
	return cfg
}

// Default returns default configuration.
func Default(defaultPort string) *Config {
	return &Config{
		Server: ServerConfig{
			Port: defaultPort,
			Host: "0.0.0.0",
		},
		Downstream: DownstreamConfig{
			UserServiceURL: "http://localhost:8001",
			CallTimeout:    5 * time.Second,
		},
		Telemetry: TelemetryConfig{
			CollectorEndpoint: "localhost:4317",
			FlushInterval:     5 * time.Second,
			BatchSize:         128,
			QueueSize:         1024,
			ExportTimeout:     10 * time.Second,
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
	}
}
