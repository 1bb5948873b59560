package main

import (
	"log"
	"strconv"

	"github.com/beego/beego/v2/server/web"
	"go.uber.org/zap"

	"github.com/vectorhub/backend-go/app/bootstrap"
	"github.com/vectorhub/backend-go/app/router"
	"github.com/vectorhub/backend-go/internal/config"
	"github.com/vectorhub/backend-go/internal/logger"
)

func main() {
	app, err := bootstrap.Init()
	if err != nil {
		log.Fatalf("failed to bootstrap application: %v", err)
	}
	defer app.Shutdown()
	bootstrap.SetGlobalApp(app)

	router.Init()

	// 配置Beego全局设置
	web.BConfig.AppName = "VectorHub"
	web.BConfig.CopyRequestBody = true
	if port, err := strconv.Atoi(config.GetAppConfig().Server.Port); err == nil {
		web.BConfig.Listen.HTTPPort = port
	}

	logger.Info("🚀 Starting VectorHub", zap.Int("port", web.BConfig.Listen.HTTPPort))
	web.Run()
}
