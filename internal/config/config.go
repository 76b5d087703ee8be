package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config contains runtime configuration required by the service.
type Config struct {
	DBURL     string
	RedisURL  string
	JWTSecret string
	Port      string

	// Batch writer tuning.
	BatchSize     int
	BatchInterval time.Duration

	// Cache TTL bounds. The attendance TTL caps how long a stale entry can
	// survive a missed invalidation; the tasks TTL bounds the write-through hash.
	AttendanceTTL time.Duration
	TasksTTL      time.Duration
}

// Load reads required values from environment variables.
func Load() (Config, error) {
	dbURL := strings.TrimSpace(os.Getenv("DB_URL"))
	if dbURL == "" {
		return Config{}, errors.New("DB_URL required")
	}

	redisURL := strings.TrimSpace(os.Getenv("REDIS_URL"))
	if redisURL == "" {
		return Config{}, errors.New("REDIS_URL required")
	}

	// Only the API process needs the JWT secret; the worker runs without it,
	// so its presence is enforced by cmd/api rather than here.
	jwtSecret := strings.TrimSpace(os.Getenv("JWT_SECRET"))

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	batchSize, err := envInt("BATCH_SIZE", 200)
	if err != nil {
		return Config{}, err
	}
	if batchSize <= 0 {
		return Config{}, errors.New("BATCH_SIZE must be positive")
	}

	batchInterval, err := envDuration("BATCH_INTERVAL", 500*time.Millisecond)
	if err != nil {
		return Config{}, err
	}

	attendanceTTL, err := envDuration("ATTENDANCE_CACHE_TTL", 2*time.Hour)
	if err != nil {
		return Config{}, err
	}

	tasksTTL, err := envDuration("TASKS_CACHE_TTL", 6*time.Hour)
	if err != nil {
		return Config{}, err
	}

	return Config{
		DBURL:         dbURL,
		RedisURL:      redisURL,
		JWTSecret:     jwtSecret,
		Port:          port,
		BatchSize:     batchSize,
		BatchInterval: batchInterval,
		AttendanceTTL: attendanceTTL,
		TasksTTL:      tasksTTL,
	}, nil
}

func envInt(name string, def int) (int, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", name, err)
	}
	return v, nil
}

func envDuration(name string, def time.Duration) (time.Duration, error) {
	raw := strings.TrimSpace(os.Getenv(name))
	if raw == "" {
		return def, nil
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("%s must be a duration (e.g. 500ms, 2h): %w", name, err)
	}
	return v, nil
}
