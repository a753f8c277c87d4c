package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Default Piston endpoints, tried in order.
var defaultPistonEndpoints = []string{
	"https://emkc.org/api/v2/piston/execute",
	"https://piston.rs/execute",
}

// Config holds all server settings. Loaded once from the environment at
// startup and treated as immutable afterwards.
type Config struct {
	Addr            string
	SessionTTL      time.Duration
	SessionSweep    time.Duration
	RateLimitPerMin int
	RateBurst       int
	GitHubTimeout   time.Duration
	PistonTimeout   time.Duration
	PistonEndpoints []string
	LogLevel        string
}

// Load reads the configuration from environment variables. Every setting has
// a default, so Load never fails; a missing .env is fine.
func Load() *Config {
	return &Config{
		Addr:            getEnvString("GITSMART_ADDR", ":8080"),
		SessionTTL:      getEnvDuration("GITSMART_SESSION_TTL", 24*time.Hour),
		SessionSweep:    getEnvDuration("GITSMART_SESSION_SWEEP", 10*time.Minute),
		RateLimitPerMin: getEnvInt("GITSMART_RATE_LIMIT", 120),
		RateBurst:       getEnvInt("GITSMART_RATE_BURST", 30),
		GitHubTimeout:   getEnvDuration("GITSMART_GITHUB_TIMEOUT", 10*time.Second),
		PistonTimeout:   getEnvDuration("GITSMART_PISTON_TIMEOUT", 30*time.Second),
		PistonEndpoints: getEnvList("GITSMART_PISTON_ENDPOINTS", defaultPistonEndpoints),
		LogLevel:        getEnvString("GITSMART_LOG_LEVEL", "info"),
	}
}

func getEnvString(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
