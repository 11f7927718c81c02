package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/asmorodws/chatapp-nextjs/internal/cache"
	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/asmorodws/chatapp-nextjs/internal/config"
	"github.com/asmorodws/chatapp-nextjs/internal/db"
	clog "github.com/asmorodws/chatapp-nextjs/internal/log"
	"github.com/asmorodws/chatapp-nextjs/internal/server"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库与缓存并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("invalid config")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	gdb, err := db.Connect(cfg.DatabaseDriver, cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	var recency chat.RecencyCache
	if cfg.RedisURL != "" {
		client, err := cache.Connect(ctx, cfg.RedisURL)
		if err != nil {
			log.Fatal().Err(err).Msg("redis connect")
		}
		defer client.Close()
		recency = cache.NewRedis(client, cfg.CacheKeyPrefix, cfg.CacheCapacity)
		log.Info().Msg("recency cache: redis")
	} else {
		recency = cache.NewMemory(cfg.CacheCapacity)
		log.Info().Msg("recency cache: in-process")
	}

	app := server.NewApp(cfg, gdb, recency)
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           server.SetupRouter(cfg, gdb, app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server run")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown")
	}
	// WebSocket 连接已被 hijack，Shutdown 不会关闭它们。
	app.Close()
	log.Info().Msg("server stopped")
}
