// Package config provides application configuration.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Config holds all application configuration.
type Config struct {
	Port                string
	DBPath              string
	CaptureAddr         string
	RecognizerAddr      string
	FrontendURL         string
	SimilarityThreshold float64
	DedupeLookback      int
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		Port:                getEnv("PORT", "8090"),
		DBPath:              getEnv("DB_PATH", "./data/chatglass.db"),
		CaptureAddr:         getEnv("CAPTURE_ADDR", "http://localhost:9410"),
		RecognizerAddr:      getEnv("RECOGNIZER_ADDR", "http://localhost:9420"),
		FrontendURL:         getEnv("FRONTEND_URL", ""),
		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", 0.9),
		DedupeLookback:      getEnvInt("DEDUPE_LOOKBACK", 10),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks that all required configuration fields are set.
func (c *Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("PORT cannot be empty")
	}
	if c.DBPath == "" {
		return fmt.Errorf("DB_PATH cannot be empty")
	}
	if c.CaptureAddr == "" {
		return fmt.Errorf("CAPTURE_ADDR cannot be empty")
	}
	if c.RecognizerAddr == "" {
		return fmt.Errorf("RECOGNIZER_ADDR cannot be empty")
	}
	if c.SimilarityThreshold <= 0 || c.SimilarityThreshold > 1 {
		return fmt.Errorf("SIMILARITY_THRESHOLD must be in (0, 1]")
	}
	if c.DedupeLookback <= 0 {
		return fmt.Errorf("DEDUPE_LOOKBACK must be > 0")
	}
	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.FrontendURL == "" ||
		strings.Contains(c.FrontendURL, "localhost") ||
		strings.Contains(c.FrontendURL, "127.0.0.1")
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	value, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}
