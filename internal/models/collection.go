package models

import (
	"fmt"
	"strings"
	"time"
)

// Metric 距离/相似度度量方式，集合创建后不可变更
type Metric string

const (
	MetricL2     Metric = "L2"     // 欧氏距离，越小越相似
	MetricIP     Metric = "IP"     // 内积，越大越相似
	MetricCosine Metric = "COSINE" // 余弦相似度，越大越相似
)

// ParseMetric 解析度量方式，接受常见别名
func ParseMetric(value string) (Metric, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "L2", "EUCLIDEAN":
		return MetricL2, nil
	case "IP", "DOT", "INNER_PRODUCT":
		return MetricIP, nil
	case "COSINE":
		return MetricCosine, nil
	default:
		return "", fmt.Errorf("unsupported metric type '%s', supported types: L2, IP, COSINE", value)
	}
}

// Ascending 返回该度量方式的排序方向，距离类度量升序、相似度类度量降序
func (m Metric) Ascending() bool {
	return m == MetricL2
}

// IndexType 向量索引类型，集合创建时选定
type IndexType string

const (
	IndexIvfFlat IndexType = "IVF_FLAT"
	IndexHNSW    IndexType = "HNSW"
	IndexIvfSQ8  IndexType = "IVF_SQ8"
	IndexFlat    IndexType = "FLAT"
)

// ParseIndexType 解析索引类型，空值使用IVF_FLAT默认值
func ParseIndexType(value string) (IndexType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "", "IVF_FLAT":
		return IndexIvfFlat, nil
	case "HNSW":
		return IndexHNSW, nil
	case "IVF_SQ8":
		return IndexIvfSQ8, nil
	case "FLAT":
		return IndexFlat, nil
	default:
		return "", fmt.Errorf("unsupported index type '%s', supported types: IVF_FLAT, HNSW, IVF_SQ8, FLAT", value)
	}
}

// DefaultIndexParams 返回各索引类型的默认构建参数
func DefaultIndexParams(t IndexType) map[string]int {
	switch t {
	case IndexHNSW:
		return map[string]int{"M": 16, "efConstruction": 500}
	case IndexIvfFlat, IndexIvfSQ8:
		return map[string]int{"nlist": 1024}
	default:
		return map[string]int{}
	}
}

// FieldType 附加字段的基础类型标签
type FieldType string

const (
	FieldTypeInt64   FieldType = "INT64"
	FieldTypeFloat   FieldType = "FLOAT"
	FieldTypeVarChar FieldType = "VARCHAR"
	FieldTypeBool    FieldType = "BOOL"
)

// ParseFieldType 解析字段类型标签
func ParseFieldType(value string) (FieldType, error) {
	switch strings.ToUpper(strings.TrimSpace(value)) {
	case "INT64", "INT", "INTEGER":
		return FieldTypeInt64, nil
	case "FLOAT", "DOUBLE":
		return FieldTypeFloat, nil
	case "VARCHAR", "STRING", "TEXT":
		return FieldTypeVarChar, nil
	case "BOOL", "BOOLEAN":
		return FieldTypeBool, nil
	default:
		return "", fmt.Errorf("unsupported field type '%s'", value)
	}
}

// SchemaField 集合的附加字段定义
type SchemaField struct {
	Name      string    `json:"name"`
	Type      FieldType `json:"type"`
	MaxLength int       `json:"max_length,omitempty"` // 仅VARCHAR类型有效
}

// CollectionDescriptor 集合描述符
// 注册中心持久化的集合配置；向量存储引擎不一定能原样返回metric，
// 描述符是后续校验的唯一事实来源
type CollectionDescriptor struct {
	Name        string         `json:"name"`
	Dimension   int            `json:"dimension"`
	Metric      Metric         `json:"metric"`
	IndexType   IndexType      `json:"index_type,omitempty"`
	IndexParams map[string]int `json:"index_params,omitempty"`
	Schema      []SchemaField  `json:"schema,omitempty"`
	CreateTime  time.Time      `json:"create_time"`
}

// Validate 校验描述符自身的约束
func (d *CollectionDescriptor) Validate() error {
	if strings.TrimSpace(d.Name) == "" {
		return fmt.Errorf("collection name is empty")
	}
	if d.Dimension <= 0 {
		return fmt.Errorf("dimension must be a positive integer, got %d", d.Dimension)
	}
	if _, err := ParseMetric(string(d.Metric)); err != nil {
		return err
	}
	if _, err := ParseIndexType(string(d.IndexType)); err != nil {
		return err
	}
	for key, value := range d.IndexParams {
		if value <= 0 {
			return fmt.Errorf("index param '%s' must be a positive integer, got %d", key, value)
		}
	}
	seen := make(map[string]struct{}, len(d.Schema))
	for _, f := range d.Schema {
		if strings.TrimSpace(f.Name) == "" {
			return fmt.Errorf("schema field name is empty")
		}
		if f.Name == "id" || f.Name == "vector" || f.Name == "text" {
			return fmt.Errorf("schema field name '%s' is reserved", f.Name)
		}
		if _, ok := seen[f.Name]; ok {
			return fmt.Errorf("duplicate schema field '%s'", f.Name)
		}
		seen[f.Name] = struct{}{}
		if _, err := ParseFieldType(string(f.Type)); err != nil {
			return err
		}
		if f.Type == FieldTypeVarChar && f.MaxLength <= 0 {
			return fmt.Errorf("schema field '%s' requires a positive max_length", f.Name)
		}
	}
	return nil
}
