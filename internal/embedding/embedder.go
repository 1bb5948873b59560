package embedding

import (
	"context"
	"sync"

	"github.com/vectorhub/backend-go/internal/config"
)

// Embedder 定义文本向量化接口
// 实现必须是无状态的只读对象，可在并发请求间共享
type Embedder interface {
	// Embed 将文本转换为定长向量；文本为空或编码失败时返回错误，
	// 绝不返回部分向量
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch 批量向量化，保持输入顺序
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions 返回模型固定的输出维度D
	Dimensions() int
	// Ready 检查编码后端是否可用
	Ready() bool
}

var (
	defaultEmbedder Embedder
	defaultOnce     sync.Once
)

// Default 返回进程级共享的Embedder单例
// 模型实例只加载一次；按请求重建模型出于性能原因被禁止
func Default(cfg config.EmbeddingConfig) Embedder {
	defaultOnce.Do(func() {
		defaultEmbedder = New(cfg)
	})
	return defaultEmbedder
}

// New 按配置创建Embedder，调用方负责共享实例
func New(cfg config.EmbeddingConfig) Embedder {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIEmbedder(cfg.APIKey, cfg.Model)
	default:
		return NewLocalEmbedder(cfg.Dimension)
	}
}

// FitDimension 将文本推导的向量调整到目标维度
// 维度过长时截断，过短时补零——与集合声明维度对齐；
// 仅用于文本推导的向量，调用方显式提供的向量必须严格校验
func FitDimension(vector []float32, dim int) []float32 {
	if dim <= 0 || len(vector) == dim {
		return vector
	}
	fitted := make([]float32, dim)
	copy(fitted, vector)
	return fitted
}
