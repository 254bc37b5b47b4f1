package config

import (
	"log"
	"os"
	"strconv"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// Stream
	StreamURL string
	Symbol    string
	Timeframe string

	// Snapshot seeding: "rest", "redis", "sqlite", or "none".
	SnapshotSource string
	SnapshotURL    string

	// Infrastructure
	RedisAddr     string
	RedisPassword string
	SQLitePath    string
	MetricsAddr   string
	APIAddr       string

	// Store
	SignalCap int

	// ZigZag parameters
	ZZDepth     int
	ZZDeviation int
	ZZBackstep  int
	ZZMinTick   float64
	ZZPruneRate float64

	LogLevel string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		StreamURL: getEnv("STREAM_URL", "ws://localhost:8090/stream"),
		Symbol:    getEnv("SYMBOL", "BTCUSDT"),
		Timeframe: getEnv("TIMEFRAME", "15m"),

		SnapshotSource: getEnv("SNAPSHOT_SOURCE", "none"),
		SnapshotURL:    getEnv("SNAPSHOT_URL", "http://localhost:8090"),

		RedisAddr:     getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		SQLitePath:    getEnv("SQLITE_PATH", "data/board.db"),
		MetricsAddr:   getEnv("METRICS_ADDR", ":9090"),
		APIAddr:       getEnv("API_ADDR", ":8080"),

		SignalCap: getEnvInt("SIGNAL_CAP", 1000),

		ZZDepth:     getEnvInt("ZZ_DEPTH", 12),
		ZZDeviation: getEnvInt("ZZ_DEVIATION", 5),
		ZZBackstep:  getEnvInt("ZZ_BACKSTEP", 2),
		ZZMinTick:   getEnvFloat("ZZ_MINTICK", 0.01),
		ZZPruneRate: getEnvFloat("ZZ_PRUNE_RATE", 0),

		LogLevel: getEnv("LOG_LEVEL", "info"),
	}
}

func getEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[config] invalid int for %s: %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("[config] invalid float for %s: %q, using %g", key, v, fallback)
		return fallback
	}
	return f
}
