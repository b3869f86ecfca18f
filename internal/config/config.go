// Package config loads runtime settings from environment variables.
//
// Every setting has a default, so `go run ./cmd/server` works with no
// environment at all: an in-memory database, uploads under ./uploads and
// the admin/123 account. Bad values are logged and replaced by the
// default rather than stopping the server.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"time"
)

// Config holds the runtime configuration.
type Config struct {
	Port           int
	UploadDir      string
	DBPath         string // ":memory:" keeps everything in RAM
	AuthUsername   string
	AuthPassword   string
	BcryptCost     int
	JWTSecret      string // empty disables /api/token and bearer auth
	TokenTTL       time.Duration
	MaxUploadBytes int64
	LogLevel       slog.Level
}

// Load returns the configuration populated from the environment.
func Load() Config {
	return Config{
		Port:           intEnv("PORT", 8000),
		UploadDir:      getEnv("UPLOAD_DIR", "uploads"),
		DBPath:         getEnv("DB_PATH", ":memory:"),
		AuthUsername:   getEnv("AUTH_USERNAME", "admin"),
		AuthPassword:   getEnv("AUTH_PASSWORD", "123"),
		BcryptCost:     intEnv("BCRYPT_COST", 10),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		TokenTTL:       durationEnv("TOKEN_TTL", 15*time.Minute),
		MaxUploadBytes: int64(intEnv("MAX_UPLOAD_BYTES", 10<<20)),
		LogLevel:       levelEnv("LOG_LEVEL", slog.LevelDebug),
	}
}

// TokensEnabled reports whether bearer tokens are configured.
func (c Config) TokensEnabled() bool {
	return c.JWTSecret != ""
}

func getEnv(key, fallback string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return fallback
}

func intEnv(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		slog.Warn("invalid integer, using default",
			slog.String("key", key),
			slog.String("value", val),
			slog.Int("default", fallback),
		)
		return fallback
	}
	return n
}

func durationEnv(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		slog.Warn("invalid duration, using default",
			slog.String("key", key),
			slog.String("value", val),
			slog.Duration("default", fallback),
		)
		return fallback
	}
	return d
}

// levelEnv accepts debug, info, warn and error (any case).
func levelEnv(key string, fallback slog.Level) slog.Level {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(val)); err != nil {
		slog.Warn("invalid log level, using default",
			slog.String("key", key),
			slog.String("value", val),
			slog.String("default", fallback.String()),
		)
		return fallback
	}
	return lvl
}
