package config

import (
	"log/slog"
	"slices"
	"strings"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("SNAPSHOT_PATH", "catalogue.db")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.HTTPAddr != ":8080" || cfg.LogLevel != slog.LevelInfo {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.CacheTTL != 24*time.Hour || !cfg.CacheWarmOnStart || cfg.RedisEnabled {
		t.Errorf("cache defaults = %+v", cfg)
	}
	if cfg.RateLimitPerWindow != 120 || cfg.RateLimitWindow != time.Minute || cfg.RateLimitWhitelist != nil {
		t.Errorf("rate limit defaults = %+v", cfg)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("BASE_PATH", "base.yaml")
	t.Setenv("LOG_LEVEL", "Debug")
	t.Setenv("HTTP_ADDR", ":9000")
	t.Setenv("READ_TIMEOUT", "3s")
	t.Setenv("REDIS_ENABLED", "true")
	t.Setenv("REDIS_DB", "2")
	t.Setenv("RATE_LIMIT_WHITELIST", " 10.0.0.1, ,127.0.0.1 ")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.BasePath != "base.yaml" || cfg.SnapshotPath != "" {
		t.Errorf("paths = %q %q", cfg.BasePath, cfg.SnapshotPath)
	}
	if cfg.LogLevel != slog.LevelDebug || cfg.HTTPAddr != ":9000" || cfg.ReadTimeout != 3*time.Second {
		t.Errorf("cfg = %+v", cfg)
	}
	if !cfg.RedisEnabled || cfg.RedisDB != 2 {
		t.Errorf("redis = %+v", cfg)
	}
	if !slices.Equal(cfg.RateLimitWhitelist, []string{"10.0.0.1", "127.0.0.1"}) {
		t.Errorf("whitelist = %v", cfg.RateLimitWhitelist)
	}
}

func TestLoadErrors(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantMsg []string
	}{
		{
			name:    "no data source",
			env:     map[string]string{},
			wantMsg: []string{"SNAPSHOT_PATH or BASE_PATH"},
		},
		{
			name: "malformed values reported together",
			env: map[string]string{
				"SNAPSHOT_PATH": "x.db",
				"READ_TIMEOUT":  "soon",
				"REDIS_DB":      "one",
				"LOG_LEVEL":     "loud",
			},
			wantMsg: []string{"READ_TIMEOUT", "REDIS_DB", "LOG_LEVEL"},
		},
		{
			name:    "negative rate",
			env:     map[string]string{"SNAPSHOT_PATH": "x.db", "RATE_LIMIT_PER_WINDOW": "-1"},
			wantMsg: []string{"RATE_LIMIT_PER_WINDOW"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("SNAPSHOT_PATH", "")
			t.Setenv("BASE_PATH", "")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			if err == nil {
				t.Fatal("expected error")
			}
			for _, msg := range tt.wantMsg {
				if !strings.Contains(err.Error(), msg) {
					t.Errorf("error %q does not mention %q", err, msg)
				}
			}
		})
	}
}

func TestLogLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "warn")
	if level, err := LogLevel(); err != nil || level != slog.LevelWarn {
		t.Errorf("LogLevel = %v, %v", level, err)
	}

	t.Setenv("LOG_LEVEL", "chatty")
	if level, err := LogLevel(); err == nil || level != slog.LevelInfo {
		t.Errorf("LogLevel = %v, %v; want default and error", level, err)
	}
}
