package models

// VectorRecord 一条向量记录
// 原始文本随记录一起保存，使记录自描述；ID由服务端在插入时分配，
// 批量装载可以携带显式ID
type VectorRecord struct {
	ID     int64                  `json:"id"`
	Text   string                 `json:"text,omitempty"`
	Vector []float32              `json:"vector,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// SearchMatch 一条检索结果，Score按集合度量方式排序后返回
type SearchMatch struct {
	ID     int64                  `json:"id"`
	Score  float32                `json:"score"`
	Text   string                 `json:"text,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}
