package testutil

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"
)

// TestDBConfig holds test database configuration
type TestDBConfig struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
}

// DefaultTestDBConfig returns a default test database configuration.
// Tests run against a throwaway sqlite file unless TEST_DB_DRIVER=postgres.
func DefaultTestDBConfig() TestDBConfig {
	return TestDBConfig{
		Driver:   getEnv("TEST_DB_DRIVER", "sqlite"),
		Host:     getEnv("TEST_DB_HOST", "localhost"),
		Port:     getIntEnv("TEST_DB_PORT", 5432),
		User:     getEnv("TEST_DB_USER", "postgres"),
		Password: getEnv("TEST_DB_PASSWORD", "postgres"),
		Database: getEnv("TEST_DB_NAME", "mirage_test"),
		SSLMode:  getEnv("TEST_DB_SSLMODE", "disable"),
	}
}

// DatabaseURL returns a PostgreSQL connection string
func (c TestDBConfig) DatabaseURL() string {
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

// SetupTestDB opens a test database and returns it with its driver name.
// The connection is closed automatically when the test finishes.
func SetupTestDB(t *testing.T) (*sql.DB, string) {
	t.Helper()
	cfg := DefaultTestDBConfig()

	var db *sql.DB
	var err error
	switch cfg.Driver {
	case "sqlite":
		path := filepath.Join(t.TempDir(), "test.db")
		db, err = sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(5000)")
		if err == nil {
			db.SetMaxOpenConns(1)
		}
	case "postgres":
		db, err = sql.Open("postgres", cfg.DatabaseURL())
	default:
		t.Fatalf("Unsupported TEST_DB_DRIVER %q", cfg.Driver)
	}
	if err != nil {
		t.Fatalf("Failed to open test database: %v", err)
	}

	// Verify connection
	if err := db.Ping(); err != nil {
		_ = db.Close()
		if cfg.Driver == "postgres" {
			t.Skipf("PostgreSQL not available: %v", err)
		}
		t.Fatalf("Failed to ping test database: %v", err)
	}

	t.Cleanup(func() {
		if cfg.Driver == "postgres" {
			CleanupTestDB(t, db)
		}
		_ = db.Close()
	})
	return db, cfg.Driver
}

// CleanupTestDB drops all tables in the test database
// Useful for integration tests that need a clean slate
func CleanupTestDB(t *testing.T, db *sql.DB) {
	tables := []string{
		"worlds",
	}

	for _, table := range tables {
		_, err := db.Exec(fmt.Sprintf("DROP TABLE IF EXISTS %s", table))
		if err != nil {
			t.Logf("Warning: Failed to drop table %s: %v", table, err)
		}
	}
}

// getEnv gets an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getIntEnv gets an integer environment variable or returns a default value
func getIntEnv(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var intValue int
	if _, err := fmt.Sscanf(value, "%d", &intValue); err != nil {
		return defaultValue
	}
	return intValue
}
