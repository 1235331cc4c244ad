package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// lookup treats a variable set to whitespace as unset, as docker-compose
// files often export empty placeholders.
func lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(value) == "" {
		return "", false
	}
	return value, true
}

// GetString retrieves an environment variable or returns a fallback when unset.
func GetString(key, fallback string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return fallback
}

// GetInt retrieves an environment variable as integer or returns fallback.
func GetInt(key string, fallback int) int {
	if value, ok := lookup(key); ok {
		parsed, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			slog.Warn("invalid integer setting, using default", "key", key, "default", fallback, "error", err)
			return fallback
		}
		return parsed
	}
	return fallback
}

// GetSeconds retrieves a whole number of seconds as a duration.
func GetSeconds(key string, fallback time.Duration) time.Duration {
	return time.Duration(GetInt(key, int(fallback/time.Second))) * time.Second
}
