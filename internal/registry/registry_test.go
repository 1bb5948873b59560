package registry

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vectorhub/backend-go/internal/activity"
	"github.com/vectorhub/backend-go/internal/config"
	apperrors "github.com/vectorhub/backend-go/internal/errors"
	"github.com/vectorhub/backend-go/internal/models"
	"github.com/vectorhub/backend-go/internal/vectorindex"
)

func newTestRegistry(t *testing.T) (*Registry, *vectorindex.MemoryIndex, DescriptorStore) {
	t.Helper()
	index := vectorindex.NewMemoryIndex()
	store := NewMemoryDescriptorStore()
	reg, err := NewRegistry(context.Background(), store, index, activity.NewNopRecorder())
	require.NoError(t, err)
	return reg, index, store
}

func create(reg *Registry, name string, dimension int, metric string, schema []models.SchemaField) (*models.CollectionDescriptor, error) {
	return reg.Create(context.Background(), CreateRequest{
		Name:      name,
		Dimension: dimension,
		Metric:    metric,
		Schema:    schema,
	})
}

func TestRegistry_Create(t *testing.T) {
	reg, index, _ := newTestRegistry(t)

	desc, err := create(reg, "articles", 128, "COSINE", nil)
	require.NoError(t, err)
	assert.Equal(t, "articles", desc.Name)
	assert.Equal(t, 128, desc.Dimension)
	assert.Equal(t, models.MetricCosine, desc.Metric)

	has, err := index.HasCollection(context.Background(), "articles")
	require.NoError(t, err)
	assert.True(t, has)
}

func TestRegistry_Create_MetricAlias(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	// 别名在创建时归一化
	desc, err := create(reg, "articles", 128, "euclidean", nil)
	require.NoError(t, err)
	assert.Equal(t, models.MetricL2, desc.Metric)
}

func TestRegistry_Create_Duplicate(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := create(reg, "articles", 128, "L2", nil)
	require.NoError(t, err)

	_, err = create(reg, "articles", 128, "L2", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeAlreadyExists))
}

func TestRegistry_Create_InvalidMetric(t *testing.T) {
	reg, index, _ := newTestRegistry(t)

	creates := index.Calls("CreateCollection")
	_, err := create(reg, "articles", 128, "HAMMING", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
	// 校验失败不应触发引擎调用
	assert.Equal(t, creates, index.Calls("CreateCollection"))
}

func TestRegistry_Create_InvalidDimension(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := create(reg, "articles", 0, "L2", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
}

func TestRegistry_Create_SchemaValidation(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	// 保留字段名不可用于schema
	_, err := create(reg, "articles", 128, "L2", []models.SchemaField{
		{Name: "vector", Type: models.FieldTypeInt64},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))

	// VARCHAR字段必须携带max_length
	_, err = create(reg, "articles", 128, "L2", []models.SchemaField{
		{Name: "title", Type: models.FieldTypeVarChar},
	})
	require.Error(t, err)

	_, err = create(reg, "articles", 128, "L2", []models.SchemaField{
		{Name: "title", Type: models.FieldTypeVarChar, MaxLength: 256},
		{Name: "views", Type: models.FieldTypeInt64},
	})
	require.NoError(t, err)
}

func TestRegistry_Create_IndexDefaults(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	// 未指定索引类型时使用IVF_FLAT及其默认构建参数
	desc, err := create(reg, "articles", 128, "COSINE", nil)
	require.NoError(t, err)
	assert.Equal(t, models.IndexIvfFlat, desc.IndexType)
	assert.Equal(t, map[string]int{"nlist": 1024}, desc.IndexParams)
}

func TestRegistry_Create_IndexOptions(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	desc, err := reg.Create(context.Background(), CreateRequest{
		Name:        "articles",
		Dimension:   128,
		Metric:      "COSINE",
		IndexType:   "HNSW",
		IndexParams: map[string]int{"M": 32, "efConstruction": 200},
	})
	require.NoError(t, err)
	assert.Equal(t, models.IndexHNSW, desc.IndexType)
	assert.Equal(t, map[string]int{"M": 32, "efConstruction": 200}, desc.IndexParams)

	// 指定类型但省略参数时补默认值
	desc, err = reg.Create(context.Background(), CreateRequest{
		Name:      "chunks",
		Dimension: 128,
		Metric:    "L2",
		IndexType: "hnsw",
	})
	require.NoError(t, err)
	assert.Equal(t, models.IndexHNSW, desc.IndexType)
	assert.Equal(t, map[string]int{"M": 16, "efConstruction": 500}, desc.IndexParams)
}

func TestRegistry_Create_InvalidIndexType(t *testing.T) {
	reg, index, _ := newTestRegistry(t)

	creates := index.Calls("CreateCollection")
	_, err := reg.Create(context.Background(), CreateRequest{
		Name:      "articles",
		Dimension: 128,
		Metric:    "L2",
		IndexType: "ANNOY",
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
	assert.Equal(t, creates, index.Calls("CreateCollection"))
}

func TestRegistry_Create_InvalidIndexParams(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := reg.Create(context.Background(), CreateRequest{
		Name:        "articles",
		Dimension:   128,
		Metric:      "L2",
		IndexType:   "IVF_FLAT",
		IndexParams: map[string]int{"nlist": 0},
	})
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInvalidArgument))
}

type failingSaveStore struct {
	*MemoryDescriptorStore
}

func (s *failingSaveStore) Save(ctx context.Context, desc *models.CollectionDescriptor) error {
	return errors.New("save failed")
}

type failingDropIndex struct {
	*vectorindex.MemoryIndex
}

func (i *failingDropIndex) DropCollection(ctx context.Context, name string) error {
	return errors.New("drop failed")
}

func TestRegistry_Create_RollbackFailureRecordsOnce(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "activity.log")
	rec, err := activity.NewRecorder(config.ActivityConfig{LogPath: logPath, Timezone: "UTC"})
	require.NoError(t, err)

	store := &failingSaveStore{NewMemoryDescriptorStore()}
	index := &failingDropIndex{vectorindex.NewMemoryIndex()}
	reg, err := NewRegistry(context.Background(), store, index, rec)
	require.NoError(t, err)

	// 描述符落库与回滚双双失败，审计仍然只追加一条记录
	_, err = create(reg, "articles", 128, "COSINE", nil)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeInternalServer))

	rec.Sync()
	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 1)
	assert.Contains(t, lines[0], "create_collection")
	assert.Contains(t, lines[0], string(activity.OutcomeFailure))
}

func TestRegistry_Delete(t *testing.T) {
	reg, index, _ := newTestRegistry(t)

	_, err := create(reg, "articles", 128, "L2", nil)
	require.NoError(t, err)
	require.NoError(t, reg.Delete(context.Background(), "articles"))

	has, err := index.HasCollection(context.Background(), "articles")
	require.NoError(t, err)
	assert.False(t, has)

	_, err = reg.Describe(context.Background(), "articles")
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestRegistry_Delete_NotFound(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	err := reg.Delete(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeNotFound))
}

func TestRegistry_List_Sorted(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	for _, name := range []string{"cherry", "apple", "banana"} {
		_, err := create(reg, name, 8, "IP", nil)
		require.NoError(t, err)
	}
	assert.Equal(t, []string{"apple", "banana", "cherry"}, reg.List(context.Background()))
}

func TestRegistry_Describe(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := create(reg, "articles", 128, "IP", []models.SchemaField{
		{Name: "source", Type: models.FieldTypeVarChar, MaxLength: 64},
	})
	require.NoError(t, err)

	desc, err := reg.Describe(context.Background(), "articles")
	require.NoError(t, err)
	assert.Equal(t, models.MetricIP, desc.Metric)
	require.Len(t, desc.Schema, 1)
	assert.Equal(t, "source", desc.Schema[0].Name)
}

func TestRegistry_ValidateMetric(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := create(reg, "articles", 128, "COSINE", nil)
	require.NoError(t, err)

	desc, err := reg.ValidateMetric("articles", "COSINE")
	require.NoError(t, err)
	assert.Equal(t, models.MetricCosine, desc.Metric)

	// 不一致时错误同时携带两侧的值
	_, err = reg.ValidateMetric("articles", "IP")
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeMetricMismatch))
	details, ok := apperrors.GetAppError(err).Details.(apperrors.MetricMismatchDetails)
	require.True(t, ok)
	assert.Equal(t, "COSINE", details.ConfiguredMetric)
	assert.Equal(t, "IP", details.RequestedMetric)
	assert.Contains(t, details.AvailableMetrics, "L2")
}

func TestRegistry_ValidateDimension(t *testing.T) {
	reg, _, _ := newTestRegistry(t)

	_, err := create(reg, "articles", 128, "L2", nil)
	require.NoError(t, err)

	require.NoError(t, reg.ValidateDimension("articles", 128))

	err = reg.ValidateDimension("articles", 64)
	require.Error(t, err)
	assert.True(t, apperrors.IsCode(err, apperrors.ErrCodeDimensionMismatch))
}

func TestRegistry_RestoreFromStore(t *testing.T) {
	index := vectorindex.NewMemoryIndex()
	store := NewMemoryDescriptorStore()

	reg, err := NewRegistry(context.Background(), store, index, activity.NewNopRecorder())
	require.NoError(t, err)
	_, err = create(reg, "articles", 128, "COSINE", nil)
	require.NoError(t, err)

	// 模拟进程重启：同一存储上重建注册中心，描述符必须恢复
	restored, err := NewRegistry(context.Background(), store, index, activity.NewNopRecorder())
	require.NoError(t, err)
	desc, err := restored.Describe(context.Background(), "articles")
	require.NoError(t, err)
	assert.Equal(t, models.MetricCosine, desc.Metric)
	assert.Equal(t, 128, desc.Dimension)
}

func TestRegistry_EntityCount(t *testing.T) {
	reg, index, _ := newTestRegistry(t)

	_, err := create(reg, "articles", 4, "L2", nil)
	require.NoError(t, err)

	desc, err := reg.Lookup("articles")
	require.NoError(t, err)
	_, err = index.Insert(context.Background(), desc, []models.VectorRecord{
		{ID: 0, Vector: []float32{1, 0, 0, 0}},
		{ID: 1, Vector: []float32{0, 1, 0, 0}},
	})
	require.NoError(t, err)

	count, err := reg.EntityCount(context.Background(), "articles")
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
}
