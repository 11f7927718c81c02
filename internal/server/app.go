package server

import (
	"time"

	"github.com/asmorodws/chatapp-nextjs/internal/chat"
	"github.com/asmorodws/chatapp-nextjs/internal/config"
	"github.com/asmorodws/chatapp-nextjs/internal/mw"
	"github.com/asmorodws/chatapp-nextjs/internal/service"
	"github.com/asmorodws/chatapp-nextjs/internal/store"
	"github.com/asmorodws/chatapp-nextjs/internal/ws"

	"gorm.io/gorm"
)

// App 持有一次进程生命周期内的全部组件。
type App struct {
	Core    *chat.Core
	Gateway *ws.Gateway
	Handler *Handler
	Limiter *mw.Limiter
}

// NewApp 组装聊天核心、连接网关与 REST 所需的 service。
func NewApp(cfg config.Config, db *gorm.DB, cache chat.RecencyCache) *App {
	registry := chat.NewRegistry()
	messages := store.NewMessages(db)
	rooms := service.NewRoomService(db, registry)
	gw := ws.NewGateway()

	core := chat.New(registry, chat.NewMessageLog(messages, cache, cfg.HistoryWindow), gw, chat.Options{
		AnnounceRoomSwitch: cfg.AnnounceRoomSwitch,
		TypingTTL:          time.Duration(cfg.TypingTTLSeconds) * time.Second,
		Rooms:              rooms,
	})
	h := NewHandler(
		service.NewUserService(db, cfg),
		rooms,
		service.NewMessageService(core, messages),
	)
	// /ws 由连接内的限速器负责，探活与指标不限速。
	lim := mw.NewLimiter(float64(cfg.HTTPRatePerSecond), cfg.HTTPRateBurst, 2*time.Minute, "/ws", "/healthz", "/metrics")
	return &App{Core: core, Gateway: gw, Handler: h, Limiter: lim}
}

// Close 断开所有连接并停止后台定时器与限速回收。
func (a *App) Close() {
	a.Gateway.Close()
	a.Core.Close()
	a.Limiter.Stop()
}
