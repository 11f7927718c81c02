package config

import (
	"os"
	"testing"
)

var envKeys = []string{
	"APP_PORT", "APP_ENV", "DATABASE_DRIVER", "DATABASE_DSN", "REDIS_URL", "CACHE_KEY_PREFIX",
	"JWT_SECRET", "ACCESS_TOKEN_TTL_MINUTES", "REFRESH_TOKEN_TTL_DAYS",
	"HISTORY_WINDOW", "CACHE_CAPACITY", "TYPING_TTL_SECONDS", "ANNOUNCE_ROOM_SWITCH",
	"HTTP_RATE_PER_SECOND", "HTTP_RATE_BURST", "CORS_ALLOWED_ORIGINS",
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range envKeys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoad_Defaults(t *testing.T) {
	clearEnv(t)

	cfg := Load()

	if cfg.Port != "8080" {
		t.Errorf("Load() Port = %v, want 8080", cfg.Port)
	}
	if cfg.Env != "dev" {
		t.Errorf("Load() Env = %v, want dev", cfg.Env)
	}
	if cfg.DatabaseDriver != "postgres" {
		t.Errorf("Load() DatabaseDriver = %v, want postgres", cfg.DatabaseDriver)
	}
	if cfg.RedisURL != "" {
		t.Errorf("Load() RedisURL = %v, want empty", cfg.RedisURL)
	}
	if cfg.AccessTokenTTLMinutes != 15 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 15", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 7 {
		t.Errorf("Load() RefreshTokenTTLDays = %v, want 7", cfg.RefreshTokenTTLDays)
	}
	if cfg.HistoryWindow != 50 {
		t.Errorf("Load() HistoryWindow = %v, want 50", cfg.HistoryWindow)
	}
	if cfg.CacheCapacity != 101 {
		t.Errorf("Load() CacheCapacity = %v, want 101", cfg.CacheCapacity)
	}
	if cfg.TypingTTLSeconds != 0 {
		t.Errorf("Load() TypingTTLSeconds = %v, want 0", cfg.TypingTTLSeconds)
	}
	if cfg.AnnounceRoomSwitch {
		t.Error("Load() AnnounceRoomSwitch = true, want false")
	}
	if cfg.HTTPRatePerSecond != 20 || cfg.HTTPRateBurst != 40 {
		t.Errorf("Load() rate = %v/%v, want 20/40", cfg.HTTPRatePerSecond, cfg.HTTPRateBurst)
	}
	if len(cfg.CORSOrigins) != 0 {
		t.Errorf("Load() CORSOrigins = %v, want empty", cfg.CORSOrigins)
	}
}

func TestLoad_FromEnv(t *testing.T) {
	clearEnv(t)
	t.Setenv("APP_PORT", "9090")
	t.Setenv("DATABASE_DRIVER", "sqlite")
	t.Setenv("DATABASE_DSN", "chat.db")
	t.Setenv("REDIS_URL", "redis://localhost:6379/1")
	t.Setenv("JWT_SECRET", "my-secret")
	t.Setenv("APP_ENV", "prod")
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "30")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "14")
	t.Setenv("HISTORY_WINDOW", "20")
	t.Setenv("CACHE_CAPACITY", "40")
	t.Setenv("TYPING_TTL_SECONDS", "5")
	t.Setenv("ANNOUNCE_ROOM_SWITCH", "true")
	t.Setenv("HTTP_RATE_PER_SECOND", "5")
	t.Setenv("HTTP_RATE_BURST", "10")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example, ,https://b.example")

	cfg := Load()

	if cfg.Port != "9090" {
		t.Errorf("Load() Port = %v, want 9090", cfg.Port)
	}
	if cfg.DatabaseDriver != "sqlite" || cfg.DatabaseDSN != "chat.db" {
		t.Errorf("Load() database = %v %v, want sqlite chat.db", cfg.DatabaseDriver, cfg.DatabaseDSN)
	}
	if cfg.RedisURL != "redis://localhost:6379/1" {
		t.Errorf("Load() RedisURL = %v", cfg.RedisURL)
	}
	if cfg.JWTSecret != "my-secret" {
		t.Errorf("Load() JWTSecret = %v, want my-secret", cfg.JWTSecret)
	}
	if cfg.Env != "prod" {
		t.Errorf("Load() Env = %v, want prod", cfg.Env)
	}
	if cfg.AccessTokenTTLMinutes != 30 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 30", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 14 {
		t.Errorf("Load() RefreshTokenTTLDays = %v, want 14", cfg.RefreshTokenTTLDays)
	}
	if cfg.HistoryWindow != 20 || cfg.CacheCapacity != 40 {
		t.Errorf("Load() window/capacity = %v/%v, want 20/40", cfg.HistoryWindow, cfg.CacheCapacity)
	}
	if cfg.TypingTTLSeconds != 5 {
		t.Errorf("Load() TypingTTLSeconds = %v, want 5", cfg.TypingTTLSeconds)
	}
	if !cfg.AnnounceRoomSwitch {
		t.Error("Load() AnnounceRoomSwitch = false, want true")
	}
	if cfg.HTTPRatePerSecond != 5 || cfg.HTTPRateBurst != 10 {
		t.Errorf("Load() rate = %v/%v, want 5/10", cfg.HTTPRatePerSecond, cfg.HTTPRateBurst)
	}
	if len(cfg.CORSOrigins) != 2 || cfg.CORSOrigins[0] != "https://a.example" || cfg.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Load() CORSOrigins = %v", cfg.CORSOrigins)
	}
}

func TestLoad_InvalidNumbers(t *testing.T) {
	clearEnv(t)
	t.Setenv("ACCESS_TOKEN_TTL_MINUTES", "invalid")
	t.Setenv("REFRESH_TOKEN_TTL_DAYS", "-5")
	t.Setenv("CACHE_CAPACITY", "0")
	t.Setenv("TYPING_TTL_SECONDS", "-1")

	cfg := Load()

	if cfg.AccessTokenTTLMinutes != 15 {
		t.Errorf("Load() AccessTokenTTLMinutes = %v, want 15 (default)", cfg.AccessTokenTTLMinutes)
	}
	if cfg.RefreshTokenTTLDays != 7 {
		t.Errorf("Load() RefreshTokenTTLDays = %v, want 7 (default)", cfg.RefreshTokenTTLDays)
	}
	if cfg.CacheCapacity != 101 {
		t.Errorf("Load() CacheCapacity = %v, want 101 (default)", cfg.CacheCapacity)
	}
	if cfg.TypingTTLSeconds != 0 {
		t.Errorf("Load() TypingTTLSeconds = %v, want 0 (default)", cfg.TypingTTLSeconds)
	}
}

func TestValidate(t *testing.T) {
	base := func() Config {
		return Config{
			Port:           "8080",
			DatabaseDriver: "postgres",
			DatabaseDSN:    "postgres://localhost/test",
			JWTSecret:      defaultJWTSecret,
			Env:            "dev",
			HistoryWindow:  50,
			CacheCapacity:  101,
		}
	}
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"valid dev config", func(*Config) {}, false},
		{"valid prod config", func(c *Config) { c.Env = "prod"; c.JWTSecret = "production-secret-key" }, false},
		{"sqlite driver", func(c *Config) { c.DatabaseDriver = "sqlite" }, false},
		{"empty port", func(c *Config) { c.Port = "" }, true},
		{"empty dsn", func(c *Config) { c.DatabaseDSN = "" }, true},
		{"unknown driver", func(c *Config) { c.DatabaseDriver = "mysql" }, true},
		{"default secret in prod", func(c *Config) { c.Env = "prod" }, true},
		{"default secret in test env", func(c *Config) { c.Env = "test" }, true},
		{"window larger than capacity", func(c *Config) { c.HistoryWindow = 102 }, true},
		{"window equals capacity", func(c *Config) { c.HistoryWindow = 101 }, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base()
			tt.mutate(&cfg)
			err := Validate(cfg)
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
