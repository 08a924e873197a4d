package main

import (
	"khadamat/internal/config"
	"khadamat/internal/db"
	clog "khadamat/internal/log"
	"khadamat/internal/server"
	"khadamat/internal/service"
	"khadamat/internal/ws"

	"github.com/rs/zerolog/log"
)

func main() {
	// main 函数负责加载配置、初始化日志、连接数据库并启动 Gin 服务。
	cfg := config.Load()
	clog.Init(cfg.Env)
	if err := config.Validate(cfg); err != nil {
		log.Fatal().Err(err).Msg("config validate")
	}

	gdb, err := db.Connect(cfg.DatabaseDSN)
	if err != nil {
		log.Fatal().Err(err).Msg("db connect")
	}
	if err := db.Migrate(gdb); err != nil {
		log.Fatal().Err(err).Msg("db migrate")
	}

	msgSvc := service.NewMessageService(gdb)
	userSvc := service.NewUserService(gdb, cfg)

	hub := ws.NewHub(msgSvc)
	tracker := ws.NewPresenceTracker(userSvc)
	go tracker.Run()

	r := server.SetupRouter(cfg, gdb, hub, tracker)
	if err := r.Run(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server run")
	}
}
