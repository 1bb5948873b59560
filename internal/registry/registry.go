package registry

import (
	"context"
	"sort"
	"sync"

	"go.uber.org/zap"

	"github.com/vectorhub/backend-go/internal/activity"
	apperrors "github.com/vectorhub/backend-go/internal/errors"
	"github.com/vectorhub/backend-go/internal/logger"
	"github.com/vectorhub/backend-go/internal/models"
	"github.com/vectorhub/backend-go/internal/vectorindex"
)

// Registry 集合注册中心
// 持有每个集合的描述符（维度、度量方式、schema），
// 是后续所有校验的事实来源；向量存储引擎不一定能原样返回这些配置
type Registry struct {
	store DescriptorStore
	index vectorindex.VectorIndex
	rec   *activity.Recorder

	// 描述符缓存；创建/删除按集合名互斥，不同集合互不阻塞
	mu    sync.RWMutex
	cache map[string]models.CollectionDescriptor

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

// NewRegistry 创建注册中心并从持久化存储恢复描述符
func NewRegistry(ctx context.Context, store DescriptorStore, index vectorindex.VectorIndex, rec *activity.Recorder) (*Registry, error) {
	descriptors, err := store.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	cache := make(map[string]models.CollectionDescriptor, len(descriptors))
	for _, desc := range descriptors {
		cache[desc.Name] = desc
	}
	return &Registry{
		store: store,
		index: index,
		rec:   rec,
		cache: cache,
		locks: make(map[string]*sync.Mutex),
	}, nil
}

// nameLock 返回集合名对应的互斥锁
func (r *Registry) nameLock(name string) *sync.Mutex {
	r.lockMu.Lock()
	defer r.lockMu.Unlock()
	lock, ok := r.locks[name]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[name] = lock
	}
	return lock
}

// CreateRequest 创建集合的参数
// 索引类型与构建参数在创建时选定，之后随描述符持久化
type CreateRequest struct {
	Name        string
	Dimension   int
	Metric      string
	IndexType   string
	IndexParams map[string]int
	Schema      []models.SchemaField
}

// Create 创建集合
// 先在引擎侧建集合和索引，再持久化描述符；描述符持久化失败时
// 回滚引擎侧集合，保证不出现半建状态
func (r *Registry) Create(ctx context.Context, req CreateRequest) (*models.CollectionDescriptor, error) {
	name := req.Name
	parsedMetric, err := models.ParseMetric(req.Metric)
	if err != nil {
		appErr := apperrors.NewInvalidArgumentError("metric", err.Error())
		r.rec.Record("create_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Message))
		return nil, appErr
	}
	indexType, err := models.ParseIndexType(req.IndexType)
	if err != nil {
		appErr := apperrors.NewInvalidArgumentError("index_type", err.Error())
		r.rec.Record("create_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Message))
		return nil, appErr
	}
	indexParams := req.IndexParams
	if len(indexParams) == 0 {
		indexParams = models.DefaultIndexParams(indexType)
	}

	desc := &models.CollectionDescriptor{
		Name:        name,
		Dimension:   req.Dimension,
		Metric:      parsedMetric,
		IndexType:   indexType,
		IndexParams: indexParams,
		Schema:      req.Schema,
	}
	if err := desc.Validate(); err != nil {
		appErr := apperrors.NewInvalidArgumentError("collection", err.Error())
		r.rec.Record("create_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Message))
		return nil, appErr
	}

	lock := r.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	if _, ok := r.describe(name); ok {
		appErr := apperrors.NewAlreadyExistsError(name)
		r.rec.Record("create_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Message))
		return nil, appErr
	}
	if has, err := r.index.HasCollection(ctx, name); err != nil {
		appErr := apperrors.NewBackingStoreError("has_collection", err)
		r.rec.Record("create_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Error()))
		return nil, appErr
	} else if has {
		appErr := apperrors.NewAlreadyExistsError(name)
		r.rec.Record("create_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Message))
		return nil, appErr
	}

	if err := r.index.CreateCollection(ctx, desc); err != nil {
		appErr := apperrors.NewBackingStoreError("create_collection", err)
		r.rec.Record("create_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Error()))
		return nil, appErr
	}

	if err := r.store.Save(ctx, desc); err != nil {
		// 回滚引擎侧集合，避免描述符与集合状态脱节；
		// 回滚失败走服务日志，行为审计每个操作只追加一条记录
		if dropErr := r.index.DropCollection(ctx, name); dropErr != nil {
			logger.Error("rollback after descriptor save failure failed",
				zap.String("collection", name), zap.Error(dropErr))
		}
		appErr := apperrors.NewSystemError("failed to persist collection descriptor").WithCause(err)
		r.rec.Record("create_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Error()))
		return nil, appErr
	}

	r.mu.Lock()
	r.cache[name] = *desc
	r.mu.Unlock()

	r.rec.Record("create_collection", activity.OutcomeSuccess,
		zap.String("collection", name),
		zap.Int("dimension", req.Dimension),
		zap.String("metric", string(parsedMetric)),
		zap.String("index_type", string(indexType)))
	return desc, nil
}

// Delete 删除集合及其全部向量
func (r *Registry) Delete(ctx context.Context, name string) error {
	lock := r.nameLock(name)
	lock.Lock()
	defer lock.Unlock()

	if _, ok := r.describe(name); !ok {
		appErr := apperrors.NewNotFoundError(name)
		r.rec.Record("delete_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Message))
		return appErr
	}

	// 先删引擎侧集合；失败则描述符保留，状态仍然一致
	if has, err := r.index.HasCollection(ctx, name); err != nil {
		appErr := apperrors.NewBackingStoreError("has_collection", err)
		r.rec.Record("delete_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Error()))
		return appErr
	} else if has {
		if err := r.index.DropCollection(ctx, name); err != nil {
			appErr := apperrors.NewBackingStoreError("drop_collection", err)
			r.rec.Record("delete_collection", activity.OutcomeFailure,
				zap.String("collection", name), zap.String("error", appErr.Error()))
			return appErr
		}
	}

	if err := r.store.Delete(ctx, name); err != nil {
		appErr := apperrors.NewSystemError("failed to delete collection descriptor").WithCause(err)
		r.rec.Record("delete_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Error()))
		return appErr
	}

	r.mu.Lock()
	delete(r.cache, name)
	r.mu.Unlock()

	r.rec.Record("delete_collection", activity.OutcomeSuccess,
		zap.String("collection", name))
	return nil
}

// List 返回全部已知集合名
func (r *Registry) List(ctx context.Context) []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.cache))
	for name := range r.cache {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)

	// 只读枚举记为ACTION，不存在成功/失败之分
	r.rec.Record("list_collections", activity.OutcomeAction,
		zap.Int("count", len(names)))
	return names
}

// Describe 返回完整描述符（含度量方式）
// 这是注册中心的核心价值：引擎本身不一定能把配置的metric返回给调用方
func (r *Registry) Describe(ctx context.Context, name string) (*models.CollectionDescriptor, error) {
	desc, ok := r.describe(name)
	if !ok {
		appErr := apperrors.NewNotFoundError(name)
		r.rec.Record("describe_collection", activity.OutcomeFailure,
			zap.String("collection", name), zap.String("error", appErr.Message))
		return nil, appErr
	}
	r.rec.Record("describe_collection", activity.OutcomeAction,
		zap.String("collection", name))
	return &desc, nil
}

// describe 只读查询缓存，不产生审计记录
func (r *Registry) describe(name string) (models.CollectionDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	desc, ok := r.cache[name]
	return desc, ok
}

// Lookup 返回描述符但不记录审计，供内部校验路径使用
func (r *Registry) Lookup(name string) (*models.CollectionDescriptor, error) {
	desc, ok := r.describe(name)
	if !ok {
		return nil, apperrors.NewNotFoundError(name)
	}
	return &desc, nil
}

// ValidateMetric 校验请求的度量方式与集合配置一致
// 检索前必须调用；不一致时错误里同时携带两侧的值和完整描述符
func (r *Registry) ValidateMetric(name string, requested string) (*models.CollectionDescriptor, error) {
	desc, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	requestedMetric, err := models.ParseMetric(requested)
	if err != nil {
		return nil, apperrors.NewInvalidArgumentError("metric", err.Error())
	}
	if requestedMetric != desc.Metric {
		return desc, apperrors.NewMetricMismatchError(name, string(desc.Metric), string(requestedMetric), desc)
	}
	return desc, nil
}

// ValidateDimension 校验向量长度与集合维度一致，插入前必须调用
func (r *Registry) ValidateDimension(name string, length int) error {
	desc, err := r.Lookup(name)
	if err != nil {
		return err
	}
	if length != desc.Dimension {
		return apperrors.NewDimensionMismatchError(name, desc.Dimension, length)
	}
	return nil
}

// EntityCount 返回集合当前记录数
func (r *Registry) EntityCount(ctx context.Context, name string) (int64, error) {
	if _, err := r.Lookup(name); err != nil {
		return 0, err
	}
	count, err := r.index.Count(ctx, name)
	if err != nil {
		return 0, apperrors.NewBackingStoreError("count", err)
	}
	return count, nil
}
