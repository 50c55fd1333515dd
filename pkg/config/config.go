package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

// GetString returns the value of key, or fallback when it is unset or blank.
func GetString(key, fallback string) string {
	if value, ok := lookup(key); ok {
		return value
	}
	return fallback
}

// GetInt parses key as a base-10 integer.
func GetInt(key string, fallback int) int {
	return parse(key, fallback, strconv.Atoi)
}

func GetBool(key string, fallback bool) bool {
	return parse(key, fallback, strconv.ParseBool)
}

// GetDuration accepts Go duration strings ("90s", "5m"). A bare integer is
// read in units of unit so older *_SECONDS style values keep working.
func GetDuration(key string, unit, fallback time.Duration) time.Duration {
	return parse(key, fallback, func(raw string) (time.Duration, error) {
		if n, err := strconv.Atoi(raw); err == nil {
			return time.Duration(n) * unit, nil
		}
		return time.ParseDuration(raw)
	})
}

func lookup(key string) (string, bool) {
	value, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	value = strings.TrimSpace(value)
	return value, value != ""
}

func parse[T any](key string, fallback T, fn func(string) (T, error)) T {
	raw, ok := lookup(key)
	if !ok {
		return fallback
	}
	parsed, err := fn(raw)
	if err != nil {
		slog.Warn("invalid config value, using default", "key", key, "error", err)
		return fallback
	}
	return parsed
}
