package embedding

import (
	"context"
	"errors"
	"hash/fnv"
	"math"
	"strings"
)

const defaultLocalDimensions = 384

// LocalEmbedder 本地特征散列编码器
// 不依赖外部推理服务，同一文本在进程生命周期内得到逐位相同的向量；
// 用于未配置API密钥的部署和测试
type LocalEmbedder struct {
	dimensions int
}

// NewLocalEmbedder 创建本地编码器，dimensions不合法时使用默认维度
func NewLocalEmbedder(dimensions int) *LocalEmbedder {
	if dimensions <= 0 {
		dimensions = defaultLocalDimensions
	}
	return &LocalEmbedder{dimensions: dimensions}
}

func (e *LocalEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, errors.New("text is empty")
	}

	vector := make([]float64, e.dimensions)
	tokens := tokenize(text)
	for _, token := range tokens {
		h := fnv.New64a()
		h.Write([]byte(token))
		sum := h.Sum64()
		idx := int(sum % uint64(e.dimensions))
		// 次高位决定符号，降低散列冲突导致的分量偏置
		sign := 1.0
		if (sum>>63)&1 == 1 {
			sign = -1.0
		}
		vector[idx] += sign
	}

	// L2归一化，保证同一文本与自身的余弦相似度为1
	var norm float64
	for _, v := range vector {
		norm += v * v
	}
	if norm == 0 {
		return nil, errors.New("text produced no tokens")
	}
	norm = math.Sqrt(norm)

	result := make([]float32, e.dimensions)
	for i, v := range vector {
		result[i] = float32(v / norm)
	}
	return result, nil
}

func (e *LocalEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, errors.New("no texts to embed")
	}
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v, err := e.Embed(ctx, text)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

func (e *LocalEmbedder) Dimensions() int {
	return e.dimensions
}

func (e *LocalEmbedder) Ready() bool {
	return true
}

func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !('a' <= r && r <= 'z') && !('0' <= r && r <= '9') && r < 128
	})
}
