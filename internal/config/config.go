package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
)

type Config struct {
	// HTTP server
	Port string

	// Database backend selection
	DBBackend string

	// PostgreSQL
	DBHost     string
	DBPort     string
	DBName     string
	DBUser     string
	DBPassword string

	// SQLite
	SQLiteDBPath string

	// Connection pool bounds
	PoolMinConns int
	PoolMaxConns int

	// AMQP (optional; empty URL disables event publishing)
	AMQPURL      string
	AMQPExchange string
	AMQPQueue    string

	// Static category taxonomy served as a read-only resource
	CategoriesPath string

	// Directory for CSV export artifacts
	ExportDir string
}

func Load() *Config {
	return &Config{
		Port: getEnv("PORT", "8081"),

		DBBackend: getEnv("DB_BACKEND", "sqlite"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBName:     getEnv("DB_NAME", "expenses"),
		DBUser:     getEnv("DB_USER", ""),
		DBPassword: getEnv("DB_PASSWORD", ""),

		SQLiteDBPath: getEnv("SQLITE_DB_PATH", "./data/expensed.db"),

		PoolMinConns: getEnvInt("POOL_MIN_CONNS", 1),
		PoolMaxConns: getEnvInt("POOL_MAX_CONNS", 10),

		AMQPURL:      getEnv("AMQP_URL", ""),
		AMQPExchange: getEnv("AMQP_EXCHANGE", "expensed"),
		AMQPQueue:    getEnv("AMQP_QUEUE", "expense_events"),

		CategoriesPath: getEnv("CATEGORIES_PATH", "./categories.json"),

		ExportDir: getEnv("EXPORT_DIR", "./data"),
	}
}

// BackendIdentity names the configured store for the health probe.
func (c *Config) BackendIdentity() string {
	if c.DBBackend == "postgres" {
		return c.DBName
	}
	return c.SQLiteDBPath
}

// Validate checks the configuration and returns an error listing every
// problem found.
func (c *Config) Validate() error {
	var errors []string

	if port, err := strconv.Atoi(c.Port); err != nil {
		errors = append(errors, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errors = append(errors, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	switch c.DBBackend {
	case "sqlite":
		if c.SQLiteDBPath == "" {
			errors = append(errors, "SQLite database path cannot be empty when using sqlite backend")
		}
	case "postgres":
		if c.DBHost == "" {
			errors = append(errors, "DB_HOST is required when using postgres backend")
		}
		if c.DBName == "" {
			errors = append(errors, "DB_NAME is required when using postgres backend")
		}
		if c.DBUser == "" {
			errors = append(errors, "DB_USER is required when using postgres backend")
		}
		if _, err := strconv.Atoi(c.DBPort); err != nil {
			errors = append(errors, fmt.Sprintf("invalid DB_PORT '%s': must be a number", c.DBPort))
		}
	default:
		errors = append(errors, fmt.Sprintf("invalid database backend '%s': must be one of [sqlite postgres]", c.DBBackend))
	}

	if c.PoolMinConns < 1 {
		errors = append(errors, fmt.Sprintf("invalid pool min conns %d: must be at least 1", c.PoolMinConns))
	}
	if c.PoolMaxConns < 1 {
		errors = append(errors, fmt.Sprintf("invalid pool max conns %d: must be at least 1", c.PoolMaxConns))
	}
	if c.PoolMinConns >= 1 && c.PoolMaxConns >= 1 && c.PoolMinConns > c.PoolMaxConns {
		errors = append(errors, fmt.Sprintf("pool min conns %d cannot exceed pool max conns %d", c.PoolMinConns, c.PoolMaxConns))
	}

	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL '%s': %v", c.AMQPURL, err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errors = append(errors, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errors = append(errors, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errors = append(errors, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.ExportDir == "" {
		errors = append(errors, "export directory cannot be empty")
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errors, "\n- "))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}
