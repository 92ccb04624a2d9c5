package config

import (
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	DataDir  string
	LogLevel string
	LogFile  string

	RakutenAppID    string
	GenreID         int
	PagesToFetch    int
	RateLimitMs     int
	MaxRetries      int
	FetchTimeoutSec int
	ChromeBin       string

	MaxConcurrency    int
	ImageTimeoutMs    int
	ImageMaxBytes     int64
	MaxImages         int
	ImageMaxDimension int
	ImageMaxPixels    int
	ColorClusters     int
	TopColors         int
	ClusterSeed       int64

	RankThreshold     int
	PriceThresholdPct float64
	CriticalCap       int
	ImportantCap      int
	NotableCap        int
	SortTiersByScore  bool

	CatalogPath string

	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	NATSURL     string
	NATSSubject string
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DataDir:  getEnv("DATA_DIR", "data"),
		LogLevel: getEnv("LOG_LEVEL", "info"),
		LogFile:  getEnv("LOG_FILE", ""),

		RakutenAppID:    strings.TrimSpace(getEnv("APP_ID", "")),
		GenreID:         getEnvInt("GENRE_ID", 301577),
		PagesToFetch:    getEnvInt("PAGES_TO_FETCH", 10),
		RateLimitMs:     getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:      getEnvInt("MAX_RETRIES", 1),
		FetchTimeoutSec: getEnvInt("FETCH_TIMEOUT_SEC", 15),
		ChromeBin:       getEnv("CHROME_BIN", ""),

		MaxConcurrency:    getEnvInt("MAX_CONCURRENCY", 5),
		ImageTimeoutMs:    getEnvInt("IMAGE_TIMEOUT_MS", 10000),
		ImageMaxBytes:     int64(getEnvInt("IMAGE_MAX_BYTES", 5*1024*1024)),
		MaxImages:         getEnvInt("MAX_IMAGES", 100),
		ImageMaxDimension: getEnvInt("IMAGE_MAX_DIMENSION", 150),
		ImageMaxPixels:    getEnvInt("IMAGE_MAX_PIXELS", 25000000),
		ColorClusters:     getEnvInt("COLOR_CLUSTERS", 5),
		TopColors:         getEnvInt("TOP_COLORS", 3),
		ClusterSeed:       int64(getEnvInt("CLUSTER_SEED", 42)),

		RankThreshold:     getEnvInt("RANK_THRESHOLD", 5),
		PriceThresholdPct: getEnvFloat("PRICE_THRESHOLD_PCT", 5),
		CriticalCap:       getEnvInt("CRITICAL_CAP", 20),
		ImportantCap:      getEnvInt("IMPORTANT_CAP", 30),
		NotableCap:        getEnvInt("NOTABLE_CAP", 20),
		SortTiersByScore:  getEnvBool("SORT_TIERS_BY_SCORE", false),

		CatalogPath: getEnv("CATALOG_PATH", ""),

		PostgresHost:     getEnv("POSTGRES_HOST", ""),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "rankwatch"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", ""),
		PostgresDB:       getEnv("POSTGRES_DB", "rankwatch"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		NATSURL:     getEnv("NATS_URL", ""),
		NATSSubject: getEnv("NATS_SUBJECT", "rankwatch.changes"),
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

// PostgresEnabled reports whether a Postgres host is configured.
func (c *Config) PostgresEnabled() bool {
	return c.PostgresHost != ""
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

func getEnvFloat(key string, fallback float64) float64 {
	if val := os.Getenv(key); val != "" {
		f, err := strconv.ParseFloat(val, 64)
		if err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
