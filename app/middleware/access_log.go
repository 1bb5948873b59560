package middleware

import (
	"strings"
	"time"

	"github.com/beego/beego/v2/server/web/context"
	"go.uber.org/zap"

	"github.com/vectorhub/backend-go/internal/logger"
)

const startTimeKey = "access_log_start"

// AccessLogBefore 记录请求开始时间
func AccessLogBefore(ctx *context.Context) {
	ctx.Input.SetData(startTimeKey, time.Now())
}

// AccessLogAfter 输出访问日志
// 这是服务日志，与用户行为审计日志分开，不混用同一输出
func AccessLogAfter(ctx *context.Context) {
	fields := []zap.Field{
		zap.String("method", ctx.Input.Method()),
		zap.String("path", ctx.Input.URL()),
		zap.String("ip", clientIP(ctx)),
		zap.Int("status", ctx.ResponseWriter.Status),
	}
	if start, ok := ctx.Input.GetData(startTimeKey).(time.Time); ok {
		fields = append(fields, zap.Duration("latency", time.Since(start)))
	}
	logger.Info("http request", fields...)
}

// clientIP 获取客户端真实IP地址
// X-Forwarded-For可能包含多个IP，取第一个
func clientIP(ctx *context.Context) string {
	if forwarded := ctx.Input.Header("X-Forwarded-For"); forwarded != "" {
		return strings.TrimSpace(strings.Split(forwarded, ",")[0])
	}
	if realIP := ctx.Input.Header("X-Real-IP"); realIP != "" {
		return realIP
	}
	return ctx.Input.IP()
}
