package config

import (
	"errors"
	"os"
	"strconv"
	"time"
)

// Config is the full runtime configuration, read from environment variables.
// The hub itself keeps no durable state; everything here points at external
// collaborators or tunes in-memory behavior.
type Config struct {
	Port string

	// External collaborators.
	RedisAddr          string
	RunServiceURL      string
	RunClientID        string
	RunClientSecret    string
	IdentityServiceURL string

	// Optional room-access token validation at the websocket boundary.
	JWTSecret string

	// In-memory lifecycle tuning.
	RoomIdleEviction time.Duration
	ProfileCacheTTL  time.Duration
}

func Load() (*Config, error) {
	cfg := &Config{
		Port:               getEnvOrDefault("PORT", "3001"),
		RedisAddr:          getEnvOrDefault("REDIS_ADDR", "redis:6379"),
		RunServiceURL:      getEnvOrDefault("RUN_SERVICE_URL", "https://api.jdoodle.com/v1/execute"),
		RunClientID:        os.Getenv("RUN_CLIENT_ID"),
		RunClientSecret:    os.Getenv("RUN_CLIENT_SECRET"),
		IdentityServiceURL: getEnvOrDefault("IDENTITY_SERVICE_URL", "http://user-service:8080"),
		JWTSecret:          os.Getenv("JWT_SECRET"),
		RoomIdleEviction:   getEnvDuration("ROOM_IDLE_EVICTION", 10*time.Minute),
		ProfileCacheTTL:    getEnvDuration("PROFILE_CACHE_TTL", 5*time.Minute),
	}
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validate(cfg *Config) error {
	if _, err := strconv.Atoi(cfg.Port); err != nil {
		return errors.New("PORT must be numeric: " + cfg.Port)
	}
	if cfg.RoomIdleEviction <= 0 {
		return errors.New("ROOM_IDLE_EVICTION must be positive")
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
