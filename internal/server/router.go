package server

import (
	"net/http"
	"time"

	"khadamat/internal/auth"
	"khadamat/internal/config"
	"khadamat/internal/metrics"
	"khadamat/internal/mw"
	"khadamat/internal/service"
	"khadamat/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

// SetupRouter 统一初始化 Gin 中间件、REST API 以及 WebSocket 端点。
func SetupRouter(cfg config.Config, gdb *gorm.DB, hub *ws.Hub, tracker *ws.PresenceTracker) *gin.Engine {
	userSvc := service.NewUserService(gdb, cfg)
	msgSvc := service.NewMessageService(gdb)
	convSvc := service.NewConversationService(gdb, hub)
	h := NewHandler(userSvc, msgSvc, convSvc)
	verifier := &auth.Verifier{DB: gdb, Secret: cfg.JWTSecret}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(metrics.GinMiddleware())
	r.Use(mw.CORS(cfg.Env, cfg.CORSAllowedOrigins))
	// 控制单个 IP+路由的速率，避免被刷爆
	r.Use(mw.RateLimit(rate.Every(time.Second/20), 40))

	r.GET("/healthz", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"status": "ok"}) })
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	api := r.Group("/api/v1")
	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.POST("/auth/refresh", h.RefreshToken)

	// 需要 Bearer Token 的业务接口。
	authed := api.Group("")
	authed.Use(auth.AuthMiddleware(cfg, gdb))
	authed.GET("/conversations", h.ListConversations)
	authed.GET("/conversations/:peer/messages", h.ListMessages)

	r.GET("/ws", ws.Serve(hub, msgSvc, tracker, verifier, cfg))

	return r
}
