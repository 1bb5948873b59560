package registry

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/vectorhub/backend-go/internal/models"
)

func newMockStore(t *testing.T) (*GormDescriptorStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn:                 db,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	return &GormDescriptorStore{db: gormDB}, mock
}

func TestGormDescriptorStore_Save(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO "vector_collections"`).
		WithArgs("articles", 128, "COSINE", "HNSW", `{"M":16,"efConstruction":500}`,
			sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))

	err := store.Save(context.Background(), &models.CollectionDescriptor{
		Name:        "articles",
		Dimension:   128,
		Metric:      models.MetricCosine,
		IndexType:   models.IndexHNSW,
		IndexParams: map[string]int{"M": 16, "efConstruction": 500},
		Schema: []models.SchemaField{
			{Name: "source", Type: models.FieldTypeVarChar, MaxLength: 64},
		},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDescriptorStore_Delete(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectExec(`DELETE FROM "vector_collections"`).
		WithArgs("articles").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, store.Delete(context.Background(), "articles"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormDescriptorStore_Get(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "name", "dimension", "metric", "index_type", "index_params_json", "schema_json", "create_time"}).
		AddRow(1, "articles", 128, "COSINE", "IVF_FLAT", `{"nlist":1024}`,
			`[{"name":"source","type":"VARCHAR","max_length":64}]`, time.Now())
	mock.ExpectQuery(`SELECT \* FROM "vector_collections"`).
		WithArgs("articles", sqlmock.AnyArg()).
		WillReturnRows(rows)

	desc, err := store.Get(context.Background(), "articles")
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, models.MetricCosine, desc.Metric)
	assert.Equal(t, models.IndexIvfFlat, desc.IndexType)
	assert.Equal(t, map[string]int{"nlist": 1024}, desc.IndexParams)
	require.Len(t, desc.Schema, 1)
	assert.Equal(t, 64, desc.Schema[0].MaxLength)
}

func TestGormDescriptorStore_Get_NotFound(t *testing.T) {
	store, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM "vector_collections"`).
		WithArgs("missing", sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "dimension", "metric", "index_type", "index_params_json", "schema_json", "create_time"}))

	// 不存在时返回nil而非错误
	desc, err := store.Get(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, desc)
}

func TestGormDescriptorStore_LoadAll(t *testing.T) {
	store, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"id", "name", "dimension", "metric", "index_type", "index_params_json", "schema_json", "create_time"}).
		AddRow(1, "apple", 64, "L2", "IVF_FLAT", "", "", time.Now()).
		AddRow(2, "banana", 128, "IP", "FLAT", "", "", time.Now())
	mock.ExpectQuery(`SELECT \* FROM "vector_collections"`).WillReturnRows(rows)

	descriptors, err := store.LoadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, descriptors, 2)
	assert.Equal(t, "apple", descriptors[0].Name)
	assert.Equal(t, models.MetricIP, descriptors[1].Metric)
}

func TestMemoryDescriptorStore(t *testing.T) {
	store := NewMemoryDescriptorStore()
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, &models.CollectionDescriptor{Name: "b", Dimension: 8, Metric: models.MetricL2}))
	require.NoError(t, store.Save(ctx, &models.CollectionDescriptor{Name: "a", Dimension: 8, Metric: models.MetricIP}))

	// 重复保存报错
	assert.Error(t, store.Save(ctx, &models.CollectionDescriptor{Name: "a", Dimension: 8, Metric: models.MetricIP}))

	desc, err := store.Get(ctx, "a")
	require.NoError(t, err)
	require.NotNil(t, desc)
	assert.Equal(t, models.MetricIP, desc.Metric)

	// LoadAll按名称排序
	all, err := store.LoadAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)

	require.NoError(t, store.Delete(ctx, "a"))
	desc, err = store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, desc)
}
