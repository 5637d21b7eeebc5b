package common

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Google        GoogleConfig
	Database      DatabaseConfig
	Server        ServerConfig
	Extract       ExtractConfig
	RunTimeout    time.Duration
	WatchDebounce time.Duration
	LogLevel      slog.Level
}

// GoogleConfig holds credential settings for the Sheets/Docs/Drive clients
type GoogleConfig struct {
	CredentialsFile string
}

// DatabaseConfig holds run-history database configuration.
// An empty DSN selects SQLite at SQLitePath.
type DatabaseConfig struct {
	DSN              string
	SQLitePath       string
	MaxConns         int32
	MinConns         int32
	MaxConnLifetime  time.Duration
	MaxConnIdleTime  time.Duration
	DialTimeout      time.Duration
	StatementTimeout time.Duration
}

// ServerConfig holds server-related configuration
type ServerConfig struct {
	GRPCAddr string
}

// ExtractConfig holds text-source settings
type ExtractConfig struct {
	PatternsFile  string
	PDFTextMethod string // "native" | "pdftotext"
	Pdftotext     string
}

// LoadConfig loads configuration from environment variables
func LoadConfig() *Config {
	return &Config{
		Google: GoogleConfig{
			CredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", "credentials.json"),
		},
		Database: DatabaseConfig{
			DSN:              getEnv("DB_URL", ""),
			SQLitePath:       getEnv("SQLITE_PATH", "sheetsync.db"),
			MaxConns:         getEnvAsInt32("DB_MAX_CONNS", 4),
			MinConns:         getEnvAsInt32("DB_MIN_CONNS", 1),
			MaxConnLifetime:  getEnvAsDuration("DB_MAX_CONN_LIFETIME", 30*time.Minute),
			MaxConnIdleTime:  getEnvAsDuration("DB_MAX_CONN_IDLE_TIME", 5*time.Minute),
			DialTimeout:      getEnvAsDuration("DB_DIAL_TIMEOUT", 3*time.Second),
			StatementTimeout: getEnvAsDuration("DB_STATEMENT_TIMEOUT", 0),
		},
		Server: ServerConfig{
			GRPCAddr: getEnv("GRPC_ADDR", ":8080"),
		},
		Extract: ExtractConfig{
			PatternsFile:  getEnv("PATTERNS_FILE", ""),
			PDFTextMethod: getEnv("PDF_TEXT_METHOD", "native"),
			Pdftotext:     getEnv("PDFTOTEXT_BIN", "pdftotext"),
		},
		RunTimeout:    getEnvAsDuration("RUN_TIMEOUT", 2*time.Minute),
		WatchDebounce: getEnvAsDuration("WATCH_DEBOUNCE", 500*time.Millisecond),
		LogLevel:      getEnvAsLevel("LOG_LEVEL", slog.LevelInfo),
	}
}

// Helper functions for environment variable parsing
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt32(key string, defaultValue int32) int32 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 32); err == nil {
			return int32(intVal)
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvAsLevel(key string, defaultValue slog.Level) slog.Level {
	if value := os.Getenv(key); value != "" {
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(strings.ToUpper(value))); err == nil {
			return lvl
		}
	}
	return defaultValue
}

// UsesPostgres reports whether run history goes to PostgreSQL.
func (c *Config) UsesPostgres() bool {
	dsn := strings.ToLower(c.Database.DSN)
	return strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://")
}

// Validate validates the loaded configuration
func (c *Config) Validate() error {
	if c.Google.CredentialsFile == "" {
		return configError("GOOGLE_APPLICATION_CREDENTIALS is required")
	}
	if c.Database.DSN != "" && !c.UsesPostgres() {
		return configError("DB_URL must be a postgres:// URL")
	}
	switch c.Extract.PDFTextMethod {
	case "native", "pdftotext":
	default:
		return configError("PDF_TEXT_METHOD must be native or pdftotext")
	}
	if c.Server.GRPCAddr == "" {
		return configError("GRPC_ADDR is required")
	}
	if c.RunTimeout <= 0 {
		return configError("RUN_TIMEOUT must be positive")
	}
	return nil
}
