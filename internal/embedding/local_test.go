package embedding

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalEmbedder_Deterministic(t *testing.T) {
	e := NewLocalEmbedder(64)

	first, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	second, err := e.Embed(context.Background(), "the quick brown fox")
	require.NoError(t, err)
	// 同一文本逐位相同
	assert.Equal(t, first, second)
	assert.Len(t, first, 64)
}

func TestLocalEmbedder_Normalized(t *testing.T) {
	e := NewLocalEmbedder(128)

	vector, err := e.Embed(context.Background(), "vector databases index embeddings")
	require.NoError(t, err)

	var norm float64
	for _, v := range vector {
		norm += float64(v) * float64(v)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-4)
}

func TestLocalEmbedder_EmptyText(t *testing.T) {
	e := NewLocalEmbedder(64)

	// 空文本报错，绝不返回部分向量
	_, err := e.Embed(context.Background(), "")
	assert.Error(t, err)
	_, err = e.Embed(context.Background(), "   ")
	assert.Error(t, err)
}

func TestLocalEmbedder_CJKText(t *testing.T) {
	e := NewLocalEmbedder(64)

	vector, err := e.Embed(context.Background(), "한국어 텍스트 임베딩")
	require.NoError(t, err)
	assert.Len(t, vector, 64)
}

func TestLocalEmbedder_EmbedBatch(t *testing.T) {
	e := NewLocalEmbedder(32)

	vectors, err := e.EmbedBatch(context.Background(), []string{"one", "two", "three"})
	require.NoError(t, err)
	require.Len(t, vectors, 3)

	// 批量结果与单条结果一致，顺序保持
	single, err := e.Embed(context.Background(), "two")
	require.NoError(t, err)
	assert.Equal(t, single, vectors[1])
}

func TestLocalEmbedder_DefaultDimensions(t *testing.T) {
	assert.Equal(t, defaultLocalDimensions, NewLocalEmbedder(0).Dimensions())
	assert.Equal(t, 100, NewLocalEmbedder(100).Dimensions())
}

func TestFitDimension(t *testing.T) {
	// 过长截断
	assert.Equal(t, []float32{1, 2}, FitDimension([]float32{1, 2, 3, 4}, 2))
	// 过短补零
	assert.Equal(t, []float32{1, 2, 0, 0}, FitDimension([]float32{1, 2}, 4))
	// 维度一致原样返回
	v := []float32{1, 2, 3}
	assert.Equal(t, v, FitDimension(v, 3))
}
