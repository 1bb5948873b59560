package activity

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vectorhub/backend-go/internal/config"
	"github.com/vectorhub/backend-go/internal/logger"
)

// Outcome 操作结果标签
type Outcome string

const (
	OutcomeAction  Outcome = "ACTION"
	OutcomeSuccess Outcome = "SUCCESS"
	OutcomeFailure Outcome = "FAILURE"
	OutcomePartial Outcome = "PARTIAL"
)

// Recorder 用户行为审计记录器
// 每个对外操作在结果确定时追加一条记录；记录只追加、不修改；
// 记录失败绝不影响业务结果
type Recorder struct {
	log *zap.Logger
	loc *time.Location
}

// NewRecorder 创建审计记录器
// 时间戳固定使用配置的时区（默认Asia/Seoul），与宿主机时区无关，
// 保证跨部署日志可比对
func NewRecorder(cfg config.ActivityConfig) (*Recorder, error) {
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid activity timezone '%s': %w", cfg.Timezone, err)
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "time"
	encoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
		enc.AppendString(t.In(loc).Format("2006-01-02 15:04:05 MST"))
	}
	encoder := zapcore.NewJSONEncoder(encoderConfig)

	cores := make([]zapcore.Core, 0, 2)
	if cfg.LogPath != "" {
		if dir := filepath.Dir(cfg.LogPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create activity log dir: %w", err)
			}
		}
		file, err := os.OpenFile(cfg.LogPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return nil, fmt.Errorf("failed to open activity log: %w", err)
		}
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(file), zapcore.InfoLevel))
	}
	if cfg.Console || len(cores) == 0 {
		cores = append(cores, zapcore.NewCore(encoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel))
	}

	log := zap.New(zapcore.NewTee(cores...)).Named("UserActivity")
	return &Recorder{log: log, loc: loc}, nil
}

// NewNopRecorder 创建丢弃输出的记录器，供测试使用
func NewNopRecorder() *Recorder {
	return &Recorder{log: zap.NewNop(), loc: time.UTC}
}

// Record 追加一条行为记录
// 必须在操作结果确定后调用且每个操作恰好调用一次；
// 任何内部失败都被吞掉，绝不向调用方抛出
func (r *Recorder) Record(action string, outcome Outcome, fields ...zap.Field) {
	defer func() {
		if rec := recover(); rec != nil {
			logger.Warn("activity record failed", zap.Any("panic", rec))
		}
	}()
	all := make([]zap.Field, 0, len(fields)+1)
	all = append(all, zap.String("outcome", string(outcome)))
	all = append(all, fields...)
	r.log.Info(action, all...)
}

// Sync 刷新审计日志缓冲区
func (r *Recorder) Sync() {
	if r.log != nil {
		_ = r.log.Sync()
	}
}

// QueryExcerpt 截断查询文本用于日志关联字段
func QueryExcerpt(query string) string {
	const maxLen = 80
	runes := []rune(query)
	if len(runes) <= maxLen {
		return query
	}
	return string(runes[:maxLen]) + "..."
}
