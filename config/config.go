package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

// Cache backends.
const (
	CacheBackendFile     = "file"
	CacheBackendPostgres = "postgres"
)

// Config holds process configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	CacheBackend string
	CachePath    string
	StoreResults bool

	RedisURL         string
	ResponseCacheTTL time.Duration

	MaxConcurrency      int
	RateLimitMs         int
	MaxRetries          int
	RotationRetryFactor int
	ReferenceTimezone   string
	ReportLimit         int
	RunTimeout          time.Duration

	ZooplaBaseURL string
	ChromeBin     string
	MetricsPath   string
	Debug         bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "finder"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "finder123"),
		PostgresDB:       getEnv("POSTGRES_DB", "house_finder"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		CacheBackend: strings.ToLower(getEnv("CACHE_BACKEND", CacheBackendFile)),
		CachePath:    getEnv("CACHE_PATH", "./cache.json"),
		StoreResults: getEnvBool("STORE_RESULTS", false),

		RedisURL:         getEnv("REDIS_URL", ""),
		ResponseCacheTTL: time.Duration(getEnvInt("RESPONSE_CACHE_TTL_SECONDS", 3600)) * time.Second,

		MaxConcurrency:      getEnvInt("MAX_CONCURRENCY", 1),
		RateLimitMs:         getEnvInt("RATE_LIMIT_MS", 0),
		MaxRetries:          getEnvInt("MAX_RETRIES", 3),
		RotationRetryFactor: getEnvInt("ROTATION_RETRY_FACTOR", 2),
		ReferenceTimezone:   getEnv("REFERENCE_TIMEZONE", "UTC"),
		ReportLimit:         getEnvInt("REPORT_LIMIT", 100),
		RunTimeout:          time.Duration(getEnvInt("RUN_TIMEOUT_SECONDS", 0)) * time.Second,

		ZooplaBaseURL: getEnv("ZOOPLA_BASE_URL", "https://api.zoopla.co.uk/api/v1"),
		ChromeBin:     getEnv("CHROME_BIN", ""),
		MetricsPath:   getEnv("METRICS_PATH", ""),
		Debug:         getEnvBool("DEBUG", false),
	}
}

// DSN returns the PostgreSQL connection string.
func (c *Config) DSN() string {
	return "host=" + c.PostgresHost +
		" port=" + c.PostgresPort +
		" user=" + c.PostgresUser +
		" password=" + c.PostgresPassword +
		" dbname=" + c.PostgresDB +
		" sslmode=" + c.PostgresSSLMode
}

// Location resolves ReferenceTimezone, falling back to UTC.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.ReferenceTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if val := os.Getenv(key); val != "" {
		n, err := strconv.Atoi(val)
		if err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	switch strings.ToLower(os.Getenv(key)) {
	case "true", "1", "yes", "on":
		return true
	case "false", "0", "no", "off":
		return false
	}
	return fallback
}
