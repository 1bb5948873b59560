package vectorindex

import (
	"testing"

	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorhub/backend-go/internal/models"
)

func TestBuildVectorIndex_Types(t *testing.T) {
	cases := []struct {
		indexType models.IndexType
		want      entity.IndexType
	}{
		{models.IndexIvfFlat, entity.IvfFlat},
		{models.IndexHNSW, entity.HNSW},
		{models.IndexIvfSQ8, entity.IvfSQ8},
		{models.IndexFlat, entity.Flat},
	}
	for _, tc := range cases {
		desc := &models.CollectionDescriptor{
			Name:      "docs",
			Dimension: 128,
			Metric:    models.MetricCosine,
			IndexType: tc.indexType,
		}
		index, err := buildVectorIndex(desc)
		require.NoError(t, err, string(tc.indexType))
		assert.Equal(t, tc.want, index.IndexType(), string(tc.indexType))
	}
}

func TestBuildVectorIndex_Params(t *testing.T) {
	// 显式构建参数透传到索引定义
	desc := &models.CollectionDescriptor{
		Name:        "docs",
		Dimension:   128,
		Metric:      models.MetricL2,
		IndexType:   models.IndexHNSW,
		IndexParams: map[string]int{"M": 32, "efConstruction": 200},
	}
	index, err := buildVectorIndex(desc)
	require.NoError(t, err)
	params := index.Params()
	assert.Contains(t, params["params"], `"M":"32"`)
	assert.Contains(t, params["params"], `"efConstruction":"200"`)

	// 参数缺省时回落各类型默认值
	desc.IndexParams = nil
	index, err = buildVectorIndex(desc)
	require.NoError(t, err)
	assert.Contains(t, index.Params()["params"], `"M":"16"`)
}
