package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	// Database Configuration
	Database DatabaseConfig

	// Data Source Configuration
	Sources SourcesConfig

	// Ingestion Configuration
	Ingestion IngestionConfig

	// GeoIP Configuration
	GeoIP GeoIPConfig

	// Server Configuration
	Server ServerConfig

	// Log configuration
	LogLevel string
}

// DatabaseConfig contains database-related settings
type DatabaseConfig struct {
	Path            string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLife     time.Duration
	RetentionDays   int           // Days to retain events (0 = unlimited)
	CleanupInterval time.Duration // How often to check for cleanup
	CleanupTime     string        // Time of day to run cleanup (24-hour format)
	VacuumEnabled   bool          // Run VACUUM after cleanup to reclaim space
}

// SourcesConfig contains data source paths
type SourcesConfig struct {
	DataDir             string // Directory scanned by discovery when paths are unset
	DeviceInventoryPath string
	EventLogPath        string
	Delimiter           string
	AutoDiscover        bool
	WatchEnabled        bool // Re-run ingestion when a source file changes
}

// IngestionConfig contains pipeline tuning settings
type IngestionConfig struct {
	BatchSize    int
	MaxEventRows int // Cap on event rows per run (0 = unlimited)
}

// GeoIPConfig contains the GeoIP database path
type GeoIPConfig struct {
	CityDBPath string
	Enabled    bool
}

// ServerConfig contains web server settings
type ServerConfig struct {
	Host       string
	Port       int
	Production bool
}

// Load reads configuration from .env file and environment variables
func Load() (*Config, error) {
	// Try to load .env file (ignore error if file doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Database: DatabaseConfig{
			Path:            getEnv("DB_PATH", "finwatch.db"),
			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 3),
			ConnMaxLife:     getEnvAsDuration("DB_CONN_MAX_LIFE", time.Hour),
			RetentionDays:   getEnvAsInt("DB_RETENTION_DAYS", 0),
			CleanupInterval: getEnvAsDuration("DB_CLEANUP_INTERVAL", 1*time.Hour),
			CleanupTime:     getEnv("DB_CLEANUP_TIME", "02:00"),
			VacuumEnabled:   getEnvAsBool("DB_VACUUM_ENABLED", true),
		},
		Sources: SourcesConfig{
			DataDir:             getEnv("DATA_DIR", "data"),
			DeviceInventoryPath: getEnv("DEVICE_INVENTORY_PATH", ""),
			EventLogPath:        getEnv("EVENT_LOG_PATH", ""),
			Delimiter:           getEnv("SOURCE_DELIMITER", ","),
			AutoDiscover:        getEnvAsBool("SOURCE_AUTO_DISCOVER", true),
			WatchEnabled:        getEnvAsBool("SOURCE_WATCH_ENABLED", true),
		},
		Ingestion: IngestionConfig{
			BatchSize:    getEnvAsInt("BATCH_SIZE", 500),
			MaxEventRows: getEnvAsInt("MAX_EVENT_ROWS", 0),
		},
		GeoIP: GeoIPConfig{
			CityDBPath: getEnv("GEOIP_CITY_DB", "geoip/GeoLite2-City.mmdb"),
			Enabled:    getEnvAsBool("GEOIP_ENABLED", true),
		},
		Server: ServerConfig{
			Host:       getEnv("SERVER_HOST", "0.0.0.0"),
			Port:       getEnvAsInt("SERVER_PORT", 8080),
			Production: getEnvAsBool("SERVER_PRODUCTION", false),
		},
		LogLevel: getEnv("LOG_LEVEL", "info"),
	}

	return cfg, nil
}

// Delimiter returns the configured source delimiter as a rune
func (s SourcesConfig) DelimiterRune() rune {
	if s.Delimiter == "" {
		return ','
	}
	return []rune(s.Delimiter)[0]
}

// Helper functions to read environment variables with defaults

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
