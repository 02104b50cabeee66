package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load reads the env file named by CITADEL_ENV (.env by default) and its
// .secret sidecar. Missing files are ignored; every setting is a flat
// environment variable read by the getters below.
func Load() error {
	envFile := os.Getenv("CITADEL_ENV")
	if envFile == "" {
		envFile = ".env"
	}
	_ = godotenv.Load(envFile)
	_ = godotenv.Load(envFile + ".secret")
	return nil
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(os.Getenv(key))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

func ServerPort() int {
	return getInt("SERVER_PORT", 8080)
}

func ServerAddr() string {
	return fmt.Sprintf(":%d", ServerPort())
}

func DatabaseURL() string {
	return os.Getenv("DATABASE_URL")
}

// StoreBackend is "memory" or "postgres". Defaults to memory.
func StoreBackend() string {
	return strings.ToLower(getString("STORE_BACKEND", "memory"))
}

func StoreTimeout() time.Duration {
	return getDuration("STORE_TIMEOUT", 5*time.Second)
}

// StoreReadRetries allows 0 to disable retries.
func StoreReadRetries() int {
	v, err := strconv.Atoi(os.Getenv("STORE_READ_RETRIES"))
	if err != nil || v < 0 {
		return 3
	}
	return v
}

// ScoreCache is "none", "memory" or "redis". Defaults to memory.
func ScoreCache() string {
	return strings.ToLower(getString("SCORE_CACHE", "memory"))
}

func ScoreCacheTTL() time.Duration {
	return getDuration("SCORE_CACHE_TTL", 30*time.Second)
}

func RedisURL() string {
	return getString("REDIS_URL", "redis://localhost:6379/0")
}

// ArchivePath is the badger directory. Empty keeps the archive in memory.
func ArchivePath() string {
	return os.Getenv("ARCHIVE_PATH")
}

// PolicyPath points at an optional YAML file overriding trust and scoring
// constants.
func PolicyPath() string {
	return os.Getenv("POLICY_PATH")
}

func TrustRefreshInterval() time.Duration {
	return getDuration("TRUST_REFRESH_INTERVAL", 15*time.Minute)
}

func MaxTraversalDepth() int {
	return getInt("MAX_TRAVERSAL_DEPTH", 4)
}

func MaxPathHops() int {
	return getInt("MAX_PATH_HOPS", 10)
}

// RateLimitRPS returns the per-IP requests per second limit.
// Defaults to 100 if not set.
func RateLimitRPS() float64 {
	rps, err := strconv.ParseFloat(os.Getenv("RATE_LIMIT_RPS"), 64)
	if err != nil || rps <= 0 {
		return 100
	}
	return rps
}

func RateLimitBurst() int {
	return getInt("RATE_LIMIT_BURST", 20)
}

// LogLevel returns the log level (debug, info, warn, error).
func LogLevel() string {
	return getString("LOG_LEVEL", "info")
}
