package controllers

import (
	"github.com/vectorhub/backend-go/app/bootstrap"
	"github.com/vectorhub/backend-go/internal/config"
	"github.com/vectorhub/backend-go/internal/embedding"
)

// RootController 服务入口
type RootController struct {
	BaseController
}

// Index 返回服务标识
func (c *RootController) Index() {
	c.JSONSuccess(map[string]interface{}{
		"service": "vectorhub",
		"status":  "running",
	})
}

// HealthController 健康检查控制器
type HealthController struct {
	BaseController
}

// Health 返回各组件就绪状态
func (c *HealthController) Health() {
	cfg := config.GetAppConfig()

	embedderReady := false
	if cfg != nil {
		embedderReady = embedding.Default(cfg.Embedding).Ready()
	}

	status := map[string]interface{}{
		"status":   "healthy",
		"embedder": embedderReady,
	}
	if app := bootstrap.GetApp(); app != nil && app.Index != nil {
		status["vector_store"] = app.Index.Ready()
	}
	c.JSONSuccess(status)
}
