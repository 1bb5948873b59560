package controllers

import (
	"net/http"
	"sync"

	"github.com/beego/beego/v2/server/web"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsController 指标控制器
type MetricsController struct {
	web.Controller
}

var (
	metricsHandler     http.Handler
	metricsHandlerOnce sync.Once
)

// Metrics 返回Prometheus格式的指标
func (c *MetricsController) Metrics() {
	metricsHandlerOnce.Do(func() {
		metricsHandler = promhttp.Handler()
	})
	metricsHandler.ServeHTTP(c.Ctx.ResponseWriter, c.Ctx.Request)
}
