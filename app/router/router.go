package router

import (
	"github.com/beego/beego/v2/server/web"

	"github.com/vectorhub/backend-go/app/controllers"
	"github.com/vectorhub/backend-go/app/middleware"
	"github.com/vectorhub/backend-go/internal/config"
)

// Init registers all routes. Must be called after config is loaded.
func Init() {
	web.Router("/", &controllers.RootController{}, "get:Index")
	web.Router("/health", &controllers.HealthController{}, "get:Health")

	web.InsertFilter("/*", web.BeforeRouter, middleware.CORSMiddleware)
	web.InsertFilter("/*", web.BeforeRouter, middleware.AccessLogBefore)
	web.InsertFilter("/*", web.AfterExec, middleware.AccessLogAfter, web.WithReturnOnOutput(false))

	// 集合管理路由
	collectionController := &controllers.CollectionController{}
	web.Router("/api/collections", collectionController, "get:List;post:Create")
	web.Router("/api/collections/:name", collectionController, "get:Describe;delete:Delete")

	// 向量操作路由
	// 注意：具体路由必须在参数路由之前注册
	vectorController := &controllers.VectorController{}
	web.Router("/api/collections/:name/vectors", vectorController, "get:Fetch;post:Insert")
	web.Router("/api/collections/:name/vectors/delete", vectorController, "post:Delete")
	web.Router("/api/collections/:name/vectors/reset-ids", vectorController, "post:ResetIDs")
	web.Router("/api/collections/:name/search", vectorController, "post:Search")

	// Prometheus指标路由
	if cfg := config.GetAppConfig(); cfg == nil || cfg.Metrics.Enabled {
		web.Router("/metrics", &controllers.MetricsController{}, "get:Metrics")
	}
}
