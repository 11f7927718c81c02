package config

import (
	"errors"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

const defaultJWTSecret = "dev-secret-change-me"

type Config struct {
	Port                  string
	Env                   string
	DatabaseDriver        string
	DatabaseDSN           string
	RedisURL              string
	CacheKeyPrefix        string
	JWTSecret             string
	AccessTokenTTLMinutes int
	RefreshTokenTTLDays   int

	// HistoryWindow is how many messages recentHistory returns; CacheCapacity
	// bounds each room's recency cache. Window must not exceed capacity.
	HistoryWindow      int
	CacheCapacity      int
	TypingTTLSeconds   int
	AnnounceRoomSwitch bool

	// HTTP 限速（每 IP+路由）与跨域白名单
	HTTPRatePerSecond int
	HTTPRateBurst     int
	CORSOrigins       []string
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getenvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// getenvInt falls back to def when the value is missing, malformed or below min.
func getenvInt(key string, def, min int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil || v < min {
		return def
	}
	return v
}

func Load() Config {
	// .env is optional, real environment wins.
	_ = godotenv.Load()

	return Config{
		Port:                  getenv("APP_PORT", "8080"),
		Env:                   getenv("APP_ENV", "dev"),
		DatabaseDriver:        getenv("DATABASE_DRIVER", "postgres"),
		DatabaseDSN:           getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=chatroom port=5432 sslmode=disable TimeZone=UTC"),
		RedisURL:              os.Getenv("REDIS_URL"),
		CacheKeyPrefix:        getenv("CACHE_KEY_PREFIX", "chat:"),
		JWTSecret:             getenv("JWT_SECRET", defaultJWTSecret),
		AccessTokenTTLMinutes: getenvInt("ACCESS_TOKEN_TTL_MINUTES", 15, 1),
		RefreshTokenTTLDays:   getenvInt("REFRESH_TOKEN_TTL_DAYS", 7, 1),
		HistoryWindow:         getenvInt("HISTORY_WINDOW", 50, 1),
		CacheCapacity:         getenvInt("CACHE_CAPACITY", 101, 1),
		TypingTTLSeconds:      getenvInt("TYPING_TTL_SECONDS", 0, 0),
		AnnounceRoomSwitch:    getenv("ANNOUNCE_ROOM_SWITCH", "false") == "true",
		HTTPRatePerSecond:     getenvInt("HTTP_RATE_PER_SECOND", 20, 1),
		HTTPRateBurst:         getenvInt("HTTP_RATE_BURST", 40, 1),
		CORSOrigins:           getenvList("CORS_ALLOWED_ORIGINS"),
	}
}

// Validate reports configuration that must not reach a running server.
func Validate(cfg Config) error {
	if cfg.Port == "" {
		return errors.New("APP_PORT is required")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	switch cfg.DatabaseDriver {
	case "", "postgres", "sqlite":
	default:
		return errors.New("DATABASE_DRIVER must be postgres or sqlite")
	}
	if cfg.Env != "dev" && cfg.JWTSecret == defaultJWTSecret {
		return errors.New("JWT_SECRET must be set outside dev")
	}
	if cfg.HistoryWindow > cfg.CacheCapacity {
		return errors.New("HISTORY_WINDOW must not exceed CACHE_CAPACITY")
	}
	return nil
}
