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
	DatabaseURL string
	Port        string

	// External scoring provider
	ScoringProvider string
	ScoringURL      string
	ScoringAPIKey   string
	ScoringModel    string
	ScoringTimeout  time.Duration
	ScoreCacheTTL   time.Duration
	RerankTopK      int

	// Scraping-API provider (aggregator adapter)
	ScraperAPIURL   string
	ScraperAPIToken string
	ChromeBin       string

	// Background loops
	DispatchInterval time.Duration
	DecayInterval    time.Duration
	SweepInterval    time.Duration
	JobTimeout       time.Duration
}

// Load reads the .env file and returns a populated Config struct.
func Load() *Config {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] No .env file found, falling back to system env vars")
	}

	return &Config{
		DatabaseURL: os.Getenv("DATABASE_URL"),
		Port:        getEnv("PORT", "8080"),

		ScoringProvider: getEnv("SCORING_PROVIDER", "none"),
		ScoringURL:      getEnv("SCORING_URL", ""),
		ScoringAPIKey:   getEnv("SCORING_API_KEY", ""),
		ScoringModel:    getEnv("SCORING_MODEL", "claude-sonnet-4-5"),
		ScoringTimeout:  getEnvDuration("SCORING_TIMEOUT", 30*time.Second),
		ScoreCacheTTL:   getEnvDuration("SCORE_CACHE_TTL", 24*time.Hour),
		RerankTopK:      getEnvInt("RERANK_TOP_K", 20),

		ScraperAPIURL:   getEnv("SCRAPER_API_URL", ""),
		ScraperAPIToken: getEnv("SCRAPER_API_TOKEN", ""),
		ChromeBin:       getEnv("CHROME_BIN", ""),

		DispatchInterval: getEnvDuration("DISPATCH_INTERVAL", time.Hour),
		DecayInterval:    getEnvDuration("DECAY_INTERVAL", time.Hour),
		SweepInterval:    getEnvDuration("SWEEP_INTERVAL", 24*time.Hour),
		JobTimeout:       getEnvDuration("JOB_TIMEOUT", 30*time.Minute),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] Invalid %s=%q, using default %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[config] Invalid %s=%q, using default %s", key, v, fallback)
		return fallback
	}
	return d
}
