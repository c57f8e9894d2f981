package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	PostgresHost     string
	PostgresPort     string
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	PortalURL string
	OutputDir string

	MaxTenders     int
	MaxConcurrency int
	RateLimitMs    int
	MaxRetries     int
	MaxScrollIters int

	ExpandTimeoutSec   int
	DownloadTimeoutSec int

	// Comma-separated keywords used to classify a link as a deliverable/
	// service document. Empty keeps every document link.
	DocKeywords string

	Headless  bool
	ChromeBin string
	Debug     bool
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		PostgresHost:     getEnv("POSTGRES_HOST", "localhost"),
		PostgresPort:     getEnv("POSTGRES_PORT", "5432"),
		PostgresUser:     getEnv("POSTGRES_USER", "scraper"),
		PostgresPassword: getEnv("POSTGRES_PASSWORD", "scraper123"),
		PostgresDB:       getEnv("POSTGRES_DB", "tender_db"),
		PostgresSSLMode:  getEnv("POSTGRES_SSLMODE", "disable"),

		PortalURL: getEnv("PORTAL_URL", "https://www.meinauftrag.rib.de/public/publications"),
		OutputDir: getEnv("OUTPUT_DIR", "./rib_ausschreibungen"),

		MaxTenders:     getEnvInt("MAX_TENDERS", 0),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 3),
		RateLimitMs:    getEnvInt("RATE_LIMIT_MS", 1000),
		MaxRetries:     getEnvInt("MAX_RETRIES", 3),
		MaxScrollIters: getEnvInt("MAX_SCROLL_ITERS", 20),

		ExpandTimeoutSec:   getEnvInt("EXPAND_TIMEOUT_S", 15),
		DownloadTimeoutSec: getEnvInt("DOWNLOAD_TIMEOUT_S", 30),

		DocKeywords: getEnv("DOC_KEYWORDS", "leistung,service,specification"),

		Headless:  getEnvBool("HEADLESS", true),
		ChromeBin: getEnv("CHROME_BIN", ""),
		Debug:     getEnvBool("DEBUG", false),
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

// ExpandTimeout is how long the extractor waits for an opened detail region
// to become visible before degrading to summary-only extraction.
func (c *Config) ExpandTimeout() time.Duration {
	return time.Duration(c.ExpandTimeoutSec) * time.Second
}

// DownloadTimeout bounds a single document fetch.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.DownloadTimeoutSec) * time.Second
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
	if val := os.Getenv(key); val != "" {
		b, err := strconv.ParseBool(val)
		if err == nil {
			return b
		}
	}
	return fallback
}
