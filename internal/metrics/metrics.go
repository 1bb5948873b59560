package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics 服务指标集合
type Metrics struct {
	// Operations 按动作与结果统计的用户操作数
	Operations *prometheus.CounterVec
	// StoreCalls 按方法统计的向量存储引擎调用数
	StoreCalls *prometheus.CounterVec
	// EmbedCalls 向量化调用数
	EmbedCalls prometheus.Counter
}

// NewMetrics 创建并注册指标
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vectorhub",
			Name:      "operations_total",
			Help:      "User-facing operations by action and outcome.",
		}, []string{"action", "outcome"}),
		StoreCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vectorhub",
			Name:      "store_calls_total",
			Help:      "Backing vector store calls by method.",
		}, []string{"method"}),
		EmbedCalls: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "vectorhub",
			Name:      "embed_calls_total",
			Help:      "Embedding model invocations.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Operations, m.StoreCalls, m.EmbedCalls)
	}
	return m
}

// Default 使用默认注册表创建指标
func Default() *Metrics {
	return NewMetrics(prometheus.DefaultRegisterer)
}
