package vectorindex

import (
	"context"
	"fmt"

	"github.com/vectorhub/backend-go/internal/models"
)

// SearchParams 引擎相关的检索调优参数（如nprobe、ef）
// 本层只做类型检查并透传，不解释具体语义
type SearchParams map[string]interface{}

// IntValue 读取数值型参数；参数存在但不是数值时返回错误
func (p SearchParams) IntValue(key string) (int, bool, error) {
	raw, ok := p[key]
	if !ok {
		return 0, false, nil
	}
	switch v := raw.(type) {
	case int:
		return v, true, nil
	case int32:
		return int(v), true, nil
	case int64:
		return int(v), true, nil
	case float32:
		return int(v), true, nil
	case float64:
		return int(v), true, nil
	default:
		return 0, false, fmt.Errorf("search param '%s' must be numeric, got %T", key, raw)
	}
}

// VectorIndex 向量存储引擎的抽象契约
// 最近邻计算由外部引擎完成，本层只负责编排与一致性
type VectorIndex interface {
	// CreateCollection 按描述符创建集合并构建向量索引
	CreateCollection(ctx context.Context, desc *models.CollectionDescriptor) error
	// DropCollection 删除集合及其全部向量
	DropCollection(ctx context.Context, name string) error
	// HasCollection 检查集合是否存在
	HasCollection(ctx context.Context, name string) (bool, error)
	// Insert 插入记录并返回分配的ID；记录需携带显式ID
	Insert(ctx context.Context, desc *models.CollectionDescriptor, records []models.VectorRecord) ([]int64, error)
	// Delete 按ID删除，返回实际删除与不存在的ID集合
	Delete(ctx context.Context, name string, ids []int64) (deleted []int64, missing []int64, err error)
	// Query 相似度检索，结果已按集合度量方式排序
	Query(ctx context.Context, desc *models.CollectionDescriptor, vector []float32, params SearchParams, limit int) ([]models.SearchMatch, error)
	// Fetch 枚举记录，同样的参数与底层数据必须返回同样的结果
	Fetch(ctx context.Context, desc *models.CollectionDescriptor, limit int) ([]models.VectorRecord, error)
	// Count 返回集合当前记录数
	Count(ctx context.Context, name string) (int64, error)
	// Ready 检查引擎连接是否可用
	Ready() bool
	// Close 释放引擎连接
	Close() error
}
