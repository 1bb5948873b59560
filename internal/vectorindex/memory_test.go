package vectorindex

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorhub/backend-go/internal/models"
)

func newTestCollection(t *testing.T, index *MemoryIndex, metric models.Metric) *models.CollectionDescriptor {
	t.Helper()
	desc := &models.CollectionDescriptor{Name: "test", Dimension: 3, Metric: metric}
	require.NoError(t, index.CreateCollection(context.Background(), desc))
	return desc
}

func insertTestRecords(t *testing.T, index *MemoryIndex, desc *models.CollectionDescriptor) {
	t.Helper()
	_, err := index.Insert(context.Background(), desc, []models.VectorRecord{
		{ID: 0, Text: "x axis", Vector: []float32{1, 0, 0}},
		{ID: 1, Text: "y axis", Vector: []float32{0, 1, 0}},
		{ID: 2, Text: "diagonal", Vector: []float32{1, 1, 0}},
	})
	require.NoError(t, err)
}

func TestMemoryIndex_QueryL2Ascending(t *testing.T) {
	index := NewMemoryIndex()
	desc := newTestCollection(t, index, models.MetricL2)
	insertTestRecords(t, index, desc)

	matches, err := index.Query(context.Background(), desc, []float32{1, 0, 0}, nil, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	// L2距离升序：与查询向量重合的记录排最前
	assert.Equal(t, int64(0), matches[0].ID)
	assert.Equal(t, float32(0), matches[0].Score)
	assert.LessOrEqual(t, matches[0].Score, matches[1].Score)
	assert.LessOrEqual(t, matches[1].Score, matches[2].Score)
}

func TestMemoryIndex_QueryIPDescending(t *testing.T) {
	index := NewMemoryIndex()
	desc := newTestCollection(t, index, models.MetricIP)
	insertTestRecords(t, index, desc)

	matches, err := index.Query(context.Background(), desc, []float32{1, 1, 0}, nil, 3)
	require.NoError(t, err)
	require.Len(t, matches, 3)
	// 内积降序
	assert.Equal(t, int64(2), matches[0].ID)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)
	assert.GreaterOrEqual(t, matches[1].Score, matches[2].Score)
}

func TestMemoryIndex_QueryCosine(t *testing.T) {
	index := NewMemoryIndex()
	desc := newTestCollection(t, index, models.MetricCosine)
	insertTestRecords(t, index, desc)

	matches, err := index.Query(context.Background(), desc, []float32{2, 0, 0}, nil, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	// 余弦相似度与长度无关
	assert.Equal(t, int64(0), matches[0].ID)
	assert.InDelta(t, 1.0, float64(matches[0].Score), 1e-6)
}

func TestMemoryIndex_QueryTieBreakByID(t *testing.T) {
	index := NewMemoryIndex()
	desc := &models.CollectionDescriptor{Name: "test", Dimension: 2, Metric: models.MetricCosine}
	require.NoError(t, index.CreateCollection(context.Background(), desc))
	_, err := index.Insert(context.Background(), desc, []models.VectorRecord{
		{ID: 5, Vector: []float32{1, 0}},
		{ID: 3, Vector: []float32{2, 0}}, // 与ID 5余弦相似度相同
	})
	require.NoError(t, err)

	matches, err := index.Query(context.Background(), desc, []float32{1, 0}, nil, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)
	// 得分相同时按ID升序，保证结果确定
	assert.Equal(t, int64(3), matches[0].ID)
	assert.Equal(t, int64(5), matches[1].ID)
}

func TestMemoryIndex_QueryParamTypeChecked(t *testing.T) {
	index := NewMemoryIndex()
	desc := newTestCollection(t, index, models.MetricL2)

	_, err := index.Query(context.Background(), desc, []float32{1, 0, 0}, SearchParams{"ef": "bogus"}, 3)
	assert.Error(t, err)

	_, err = index.Query(context.Background(), desc, []float32{1, 0, 0}, SearchParams{"ef": 64}, 3)
	assert.NoError(t, err)
}

func TestMemoryIndex_DeleteReportsMissing(t *testing.T) {
	index := NewMemoryIndex()
	desc := newTestCollection(t, index, models.MetricL2)
	insertTestRecords(t, index, desc)

	deleted, missing, err := index.Delete(context.Background(), "test", []int64{1, 42})
	require.NoError(t, err)
	assert.Equal(t, []int64{1}, deleted)
	assert.Equal(t, []int64{42}, missing)

	count, err := index.Count(context.Background(), "test")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}

func TestMemoryIndex_FetchAscendingByID(t *testing.T) {
	index := NewMemoryIndex()
	desc := newTestCollection(t, index, models.MetricL2)
	insertTestRecords(t, index, desc)

	records, err := index.Fetch(context.Background(), desc, 2)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, int64(0), records[0].ID)
	assert.Equal(t, int64(1), records[1].ID)
}

func TestMemoryIndex_InsertDimensionChecked(t *testing.T) {
	index := NewMemoryIndex()
	desc := newTestCollection(t, index, models.MetricL2)

	_, err := index.Insert(context.Background(), desc, []models.VectorRecord{
		{ID: 0, Vector: []float32{1, 0}},
	})
	assert.Error(t, err)
}

func TestMemoryIndex_CallCounts(t *testing.T) {
	index := NewMemoryIndex()
	desc := newTestCollection(t, index, models.MetricL2)

	assert.Equal(t, 1, index.Calls("CreateCollection"))
	assert.Equal(t, 0, index.Calls("Query"))

	_, err := index.Query(context.Background(), desc, []float32{1, 0, 0}, nil, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, index.Calls("Query"))
}

func TestSearchParams_IntValue(t *testing.T) {
	params := SearchParams{"nprobe": 16, "ef": float64(64), "bad": "oops"}

	v, ok, err := params.IntValue("nprobe")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 16, v)

	v, ok, err = params.IntValue("ef")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 64, v)

	_, ok, err = params.IntValue("missing")
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = params.IntValue("bad")
	assert.Error(t, err)
}
