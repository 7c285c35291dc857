package config

import (
	"fmt"
	"log"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all configuration for the Mirage server
type Config struct {
	Server    ServerConfig
	World     WorldConfig
	Database  DatabaseConfig
	Auth      AuthConfig
	Cache     CacheConfig
	Stream    StreamConfig
	Telemetry TelemetryConfig
	Logging   LoggingConfig
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Host         string        `env:"SERVER_HOST" envDefault:"0.0.0.0"`
	Port         string        `env:"SERVER_PORT" envDefault:"8080"`
	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" envDefault:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" envDefault:"15s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" envDefault:"60s"`
	Environment  string        `env:"ENVIRONMENT" envDefault:"development"`
	// AllowedOrigins is the CORS and websocket origin allow-list
	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"http://localhost:3000,http://127.0.0.1:3000"`
}

// WorldConfig holds the generation parameters shared by every world.
// Seed is fixed for the lifetime of the process.
type WorldConfig struct {
	Seed        string `env:"WORLD_SEED"`
	DefaultSize int    `env:"WORLD_DEFAULT_SIZE" envDefault:"240"`
	WorldsFile  string `env:"WORLDS_FILE"`
}

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	Driver          string        `env:"DB_DRIVER" envDefault:"sqlite"`
	Path            string        `env:"DB_PATH" envDefault:"mirage.db"`
	Host            string        `env:"DB_HOST" envDefault:"localhost"`
	Port            int           `env:"DB_PORT" envDefault:"5432"`
	User            string        `env:"DB_USER" envDefault:"postgres"`
	Password        string        `env:"DB_PASSWORD"`
	Database        string        `env:"DB_NAME" envDefault:"mirage_dev"`
	SSLMode         string        `env:"DB_SSLMODE" envDefault:"disable"`
	MaxConnections  int           `env:"DB_MAX_CONNECTIONS" envDefault:"25"`
	MaxIdleConns    int           `env:"DB_MAX_IDLE_CONNS" envDefault:"5"`
	ConnMaxLifetime time.Duration `env:"DB_CONN_MAX_LIFETIME" envDefault:"5m"`
}

// AuthConfig holds guest session token configuration
type AuthConfig struct {
	JWTSecret     string        `env:"JWT_SECRET"`
	JWTExpiration time.Duration `env:"JWT_EXPIRATION" envDefault:"24h"`
}

// CacheConfig holds chunk cache configuration
type CacheConfig struct {
	Size int `env:"CHUNK_CACHE_SIZE" envDefault:"16384"`
}

// StreamConfig holds websocket streaming configuration
type StreamConfig struct {
	DefaultRadius int  `env:"STREAM_DEFAULT_RADIUS" envDefault:"8"`
	MaxRadius     int  `env:"STREAM_MAX_RADIUS" envDefault:"16"`
	Compress      bool `env:"STREAM_COMPRESS" envDefault:"false"`
}

// TelemetryConfig holds OpenTelemetry exporter configuration
type TelemetryConfig struct {
	Enabled     bool   `env:"OTEL_ENABLED" envDefault:"false"`
	Endpoint    string `env:"OTEL_ENDPOINT"`
	ServiceName string `env:"OTEL_SERVICE_NAME" envDefault:"mirage-server"`
	ProfilerOn  bool   `env:"PROFILER_ENABLED" envDefault:"true"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level string `env:"LOG_LEVEL" envDefault:"info"`
}

// Load reads configuration from environment variables and .env file
// The .env file is loaded from the current working directory
func Load() (*Config, error) {
	// godotenv never overrides variables that are already set
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found (this is OK if using environment variables): %v", err)
	}

	config := &Config{}
	if err := env.Parse(config); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks that all required configuration values are set
func (c *Config) Validate() error {
	if c.World.Seed == "" {
		return fmt.Errorf("WORLD_SEED is required")
	}
	if c.World.DefaultSize <= 0 {
		return fmt.Errorf("WORLD_DEFAULT_SIZE must be positive, got %d", c.World.DefaultSize)
	}
	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET is required")
	}
	switch c.Database.Driver {
	case DriverSQLite:
	case DriverPostgres:
		if c.Database.Password == "" {
			return fmt.Errorf("DB_PASSWORD is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q (expected %s or %s)", c.Database.Driver, DriverSQLite, DriverPostgres)
	}
	if c.Stream.MaxRadius <= 0 || c.Stream.DefaultRadius <= 0 {
		return fmt.Errorf("stream radii must be positive")
	}
	if c.Stream.DefaultRadius > c.Stream.MaxRadius {
		return fmt.Errorf("STREAM_DEFAULT_RADIUS (%d) exceeds STREAM_MAX_RADIUS (%d)", c.Stream.DefaultRadius, c.Stream.MaxRadius)
	}
	return nil
}

// Database drivers understood by the server
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// DatabaseURL returns the data source name for the configured driver
func (c *DatabaseConfig) DatabaseURL() string {
	if c.Driver == DriverSQLite {
		return fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)", c.Path)
	}
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User,
		c.Password,
		c.Host,
		c.Port,
		c.Database,
		c.SSLMode,
	)
}

// IsDevelopment returns true if running in development mode
func (c *ServerConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

// IsProduction returns true if running in production mode
func (c *ServerConfig) IsProduction() bool {
	return c.Environment == "production"
}

// Address returns the host:port the HTTP server listens on
func (c *ServerConfig) Address() string {
	return c.Host + ":" + c.Port
}

// Debug reports whether verbose streaming logs are enabled
func (c *LoggingConfig) Debug() bool {
	return c.Level == "debug"
}
