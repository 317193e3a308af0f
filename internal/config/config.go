package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	LogLevel        slog.Level
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration

	// SnapshotPath wins over BasePath when both are set.
	SnapshotPath string
	BasePath     string

	RedisEnabled     bool
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	CacheTTL         time.Duration
	CacheWarmOnStart bool

	RateLimitPerWindow int
	RateLimitWindow    time.Duration
	RateLimitWhitelist []string
}

// Load reads the configuration from the environment. Malformed values are
// reported together rather than silently replaced by defaults.
func Load() (*Config, error) {
	env := &envReader{}

	cfg := &Config{
		LogLevel:        env.getLogLevelEnv("LOG_LEVEL", slog.LevelInfo),
		HTTPAddr:        env.getEnv("HTTP_ADDR", ":8080"),
		ReadTimeout:     env.getDurationEnv("READ_TIMEOUT", 10*time.Second),
		WriteTimeout:    env.getDurationEnv("WRITE_TIMEOUT", 10*time.Second),
		ShutdownTimeout: env.getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),

		SnapshotPath: env.getEnv("SNAPSHOT_PATH", ""),
		BasePath:     env.getEnv("BASE_PATH", ""),

		RedisEnabled:     env.getBoolEnv("REDIS_ENABLED", false),
		RedisAddr:        env.getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:    env.getEnv("REDIS_PASSWORD", ""),
		RedisDB:          env.getIntEnv("REDIS_DB", 0),
		CacheTTL:         env.getDurationEnv("CACHE_TTL", 24*time.Hour),
		CacheWarmOnStart: env.getBoolEnv("CACHE_WARM_ON_START", true),

		RateLimitPerWindow: env.getIntEnv("RATE_LIMIT_PER_WINDOW", 120),
		RateLimitWindow:    env.getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),
		RateLimitWhitelist: getCSVEnv("RATE_LIMIT_WHITELIST"),
	}

	if cfg.SnapshotPath == "" && cfg.BasePath == "" {
		env.errs = append(env.errs, errors.New("one of SNAPSHOT_PATH or BASE_PATH is required"))
	}
	if cfg.RateLimitPerWindow < 0 {
		env.errs = append(env.errs, fmt.Errorf("RATE_LIMIT_PER_WINDOW must not be negative, got %d", cfg.RateLimitPerWindow))
	}

	if err := errors.Join(env.errs...); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

type envReader struct {
	errs []error
}

func (e *envReader) invalid(key, value string, err error) {
	e.errs = append(e.errs, fmt.Errorf("%s=%q: %w", key, value, err))
}

func (e *envReader) getEnv(key, defaultVal string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return defaultVal
}

func (e *envReader) getDurationEnv(key string, defaultVal time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		e.invalid(key, v, err)
		return defaultVal
	}
	return d
}

func (e *envReader) getIntEnv(key string, defaultVal int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		e.invalid(key, v, err)
		return defaultVal
	}
	return i
}

func (e *envReader) getBoolEnv(key string, defaultVal bool) bool {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		e.invalid(key, v, err)
		return defaultVal
	}
	return b
}

func (e *envReader) getLogLevelEnv(key string, defaultVal slog.Level) slog.Level {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return defaultVal
	}

	switch strings.ToLower(v) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		e.invalid(key, v, errors.New("unknown log level"))
		return defaultVal
	}
}

func getCSVEnv(key string) []string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}

	parts := strings.Split(v, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			result = append(result, t)
		}
	}
	return result
}

// LogLevel reads LOG_LEVEL alone, for commands that need no other settings.
func LogLevel() (slog.Level, error) {
	env := &envReader{}
	level := env.getLogLevelEnv("LOG_LEVEL", slog.LevelInfo)
	return level, errors.Join(env.errs...)
}
