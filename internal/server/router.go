package server

import (
	"net/http"

	"github.com/asmorodws/chatapp-nextjs/internal/auth"
	"github.com/asmorodws/chatapp-nextjs/internal/config"
	"github.com/asmorodws/chatapp-nextjs/internal/metrics"
	"github.com/asmorodws/chatapp-nextjs/internal/mw"
	"github.com/asmorodws/chatapp-nextjs/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, db *gorm.DB, app *App) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.Logger())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSOrigins))
	r.Use(app.Limiter.Middleware())

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	h := app.Handler
	api := r.Group("/api/v1")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, db))
	authed.POST("/rooms", h.CreateRoom)
	authed.GET("/me", h.Me)
	authed.GET("/rooms", h.ListRooms)
	authed.POST("/rooms/:id/members", h.AddMember)
	authed.GET("/rooms/:id/members", h.ListMembers)
	authed.GET("/rooms/:id/messages", h.ListMessages)

	r.GET("/ws", ws.Serve(app.Gateway, app.Core, db, cfg))
	return r
}
