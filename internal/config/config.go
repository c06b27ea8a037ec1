package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig
	Okta      OktaConfig
	Storage   StorageConfig
	Scan      ScanConfig
	Detection DetectionConfig
	GeoIP     GeoIPConfig
	Log       LogConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host      string
	Port      string
	APIPrefix string
}

// OktaConfig holds Okta API configuration
type OktaConfig struct {
	OrgURL   string
	APIToken string
}

// StorageConfig selects and configures the document store backend.
type StorageConfig struct {
	Backend       string
	FilePath      string
	DatabaseURL   string
	RedisAddr     string
	RedisPassword string
	RedisDB       int
}

// ScanConfig holds the background scan loop configuration
type ScanConfig struct {
	IntervalSeconds int
}

// DetectionConfig holds detection rules configuration
type DetectionConfig struct {
	BruteForceThreshold int
	BruteForceWindowMin int
	WorkHourStart       int
	WorkHourEnd         int
	WorkHoursTZ         string
	SuspendOnHighRisk   bool
}

// GeoIPConfig holds the optional country enrichment configuration
type GeoIPConfig struct {
	Enabled bool
	DBPath  string
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string
	Format string
}

// Storage backend names accepted by STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Load loads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists (ignore error if not found)
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:      getEnv("SERVER_HOST", "0.0.0.0"),
			Port:      getEnv("SERVER_PORT", "3000"),
			APIPrefix: getEnv("API_PREFIX", "/api"),
		},
		Okta: OktaConfig{
			OrgURL:   getEnv("OKTA_ORG_URL", ""),
			APIToken: getEnv("OKTA_API_TOKEN", ""),
		},
		Storage: StorageConfig{
			Backend:       getEnv("STORE_BACKEND", BackendFile),
			FilePath:      getEnv("ALERTS_DB_FILE", "./data/db.json"),
			DatabaseURL:   getEnv("DB_URL", ""),
			RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
			RedisPassword: getEnv("REDIS_PASSWORD", ""),
			RedisDB:       getEnvAsInt("REDIS_DB", 0),
		},
		Scan: ScanConfig{
			IntervalSeconds: getEnvAsInt("SCAN_INTERVAL_SECONDS", 60),
		},
		Detection: DetectionConfig{
			BruteForceThreshold: getEnvAsInt("BRUTE_FORCE_THRESHOLD", 5),
			BruteForceWindowMin: getEnvAsInt("BRUTE_FORCE_WINDOW_MIN", 5),
			WorkHourStart:       getEnvAsInt("WORK_HOUR_START", 9),
			WorkHourEnd:         getEnvAsInt("WORK_HOUR_END", 18),
			WorkHoursTZ:         getEnv("WORK_HOURS_TZ", "Local"),
			SuspendOnHighRisk:   getEnvAsBool("SUSPEND_ON_HIGH_RISK", true),
		},
		GeoIP: GeoIPConfig{
			Enabled: getEnvAsBool("GEOIP_ENABLED", false),
			DBPath:  getEnv("GEOIP_DB_PATH", "./data/GeoLite2-Country.mmdb"),
		},
		Log: LogConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}

	if cfg.Okta.OrgURL == "" || cfg.Okta.APIToken == "" {
		return nil, fmt.Errorf("OKTA_ORG_URL and OKTA_API_TOKEN must be provided in env")
	}

	switch cfg.Storage.Backend {
	case BackendFile, BackendPostgres, BackendRedis:
	default:
		return nil, fmt.Errorf("unknown STORE_BACKEND %q", cfg.Storage.Backend)
	}

	if cfg.Storage.Backend == BackendPostgres && cfg.Storage.DatabaseURL == "" {
		return nil, fmt.Errorf("DB_URL is required when STORE_BACKEND=postgres")
	}

	return cfg, nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseBool(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
