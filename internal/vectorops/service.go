package vectorops

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/vectorhub/backend-go/internal/activity"
	"github.com/vectorhub/backend-go/internal/embedding"
	apperrors "github.com/vectorhub/backend-go/internal/errors"
	"github.com/vectorhub/backend-go/internal/metrics"
	"github.com/vectorhub/backend-go/internal/models"
	"github.com/vectorhub/backend-go/internal/registry"
	"github.com/vectorhub/backend-go/internal/vectorindex"
)

// InsertRecord 待插入记录
// Text与Vector至少提供其一；只给Text时由服务端向量化，
// 显式给Vector时长度必须与集合维度严格一致
type InsertRecord struct {
	Text   string                 `json:"text"`
	Vector []float32              `json:"vector,omitempty"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// RecordFailure 单条记录的失败信息，Index为记录在请求中的下标
type RecordFailure struct {
	Index  int    `json:"index"`
	Reason string `json:"reason"`
}

// InsertResult 批量插入结果
// 部分记录失败不中断整批：有效记录照常入库，
// 失败记录逐条列出原因，整体结果标记为PARTIAL
type InsertResult struct {
	InsertedIDs []int64          `json:"inserted_ids"`
	Failures    []RecordFailure  `json:"failures,omitempty"`
	Outcome     activity.Outcome `json:"outcome"`
}

// DeleteResult 批量删除结果，存在的ID被删除，不存在的ID单独列出
type DeleteResult struct {
	DeletedIDs []int64          `json:"deleted_ids"`
	MissingIDs []int64          `json:"missing_ids,omitempty"`
	Outcome    activity.Outcome `json:"outcome"`
}

// ResetResult ID重排结果
type ResetResult struct {
	Count   int              `json:"count"`
	Outcome activity.Outcome `json:"outcome"`
}

// Service 向量操作服务
// 负责插入/删除/枚举/检索的编排：注册中心做一致性校验，
// 向量化交给Embedder，最近邻计算交给外部引擎
type Service struct {
	registry *registry.Registry
	index    vectorindex.VectorIndex
	embedder embedding.Embedder
	rec      *activity.Recorder
	m        *metrics.Metrics
}

// NewService 创建向量操作服务
func NewService(reg *registry.Registry, index vectorindex.VectorIndex, embedder embedding.Embedder, rec *activity.Recorder, m *metrics.Metrics) *Service {
	return &Service{
		registry: reg,
		index:    index,
		embedder: embedder,
		rec:      rec,
		m:        m,
	}
}

// finish 记录操作结果：审计记录恰好一次，指标按动作与结果计数
func (s *Service) finish(action string, outcome activity.Outcome, fields ...zap.Field) {
	if s.m != nil {
		s.m.Operations.WithLabelValues(action, string(outcome)).Inc()
	}
	s.rec.Record(action, outcome, fields...)
}

// Insert 批量插入记录
// 每条记录独立校验与向量化，单条失败不影响其余记录；
// ID按集合当前记录数顺延分配，有效记录通过一次引擎调用写入
func (s *Service) Insert(ctx context.Context, collection string, records []InsertRecord) (*InsertResult, error) {
	desc, err := s.registry.Lookup(collection)
	if err != nil {
		s.finish("insert_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", err.Error()))
		return nil, err
	}
	if len(records) == 0 {
		appErr := apperrors.NewInvalidArgumentError("records", "at least one record is required")
		s.finish("insert_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Message))
		return nil, appErr
	}

	valid := make([]models.VectorRecord, 0, len(records))
	validIndexes := make([]int, 0, len(records))
	failures := make([]RecordFailure, 0)

	for i, record := range records {
		prepared, reason := s.prepareRecord(ctx, desc, record)
		if reason != "" {
			failures = append(failures, RecordFailure{Index: i, Reason: reason})
			continue
		}
		valid = append(valid, *prepared)
		validIndexes = append(validIndexes, i)
	}

	if len(valid) == 0 {
		appErr := apperrors.NewInvalidArgumentError("records", "no insertable records").
			WithDetails(failures)
		s.finish("insert_vectors", activity.OutcomeFailure,
			zap.String("collection", collection),
			zap.Int("requested", len(records)),
			zap.String("error", appErr.Message))
		return &InsertResult{Failures: failures, Outcome: activity.OutcomeFailure}, appErr
	}

	// ID从当前记录数顺延，保持与引擎侧已有记录连续
	base, err := s.index.Count(ctx, collection)
	if err != nil {
		appErr := apperrors.NewBackingStoreError("count", err)
		s.finish("insert_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Error()))
		return nil, appErr
	}
	for i := range valid {
		valid[i].ID = base + int64(i)
	}

	insertedIDs, err := s.index.Insert(ctx, desc, valid)
	if err != nil {
		// 引擎调用失败整批作废，已通过校验的记录同样计入失败
		for _, idx := range validIndexes {
			failures = append(failures, RecordFailure{Index: idx, Reason: "backing store insert failed"})
		}
		appErr := apperrors.NewBackingStoreError("insert", err)
		s.finish("insert_vectors", activity.OutcomeFailure,
			zap.String("collection", collection),
			zap.Int("requested", len(records)),
			zap.String("error", appErr.Error()))
		return &InsertResult{Failures: failures, Outcome: activity.OutcomeFailure}, appErr
	}

	outcome := activity.OutcomeSuccess
	if len(failures) > 0 {
		outcome = activity.OutcomePartial
	}
	s.finish("insert_vectors", outcome,
		zap.String("collection", collection),
		zap.Int("requested", len(records)),
		zap.Int("inserted", len(insertedIDs)),
		zap.Int("failed", len(failures)))
	return &InsertResult{InsertedIDs: insertedIDs, Failures: failures, Outcome: outcome}, nil
}

// prepareRecord 校验并补全单条记录，返回失败原因（为空表示有效）
// 文本推导的向量调整到集合维度；显式向量维度不符即拒绝该条
func (s *Service) prepareRecord(ctx context.Context, desc *models.CollectionDescriptor, record InsertRecord) (*models.VectorRecord, string) {
	vector := record.Vector
	switch {
	case len(vector) > 0:
		if err := s.registry.ValidateDimension(desc.Name, len(vector)); err != nil {
			return nil, err.Error()
		}
	case record.Text != "":
		embedded, err := s.embedder.Embed(ctx, record.Text)
		if err != nil {
			return nil, fmt.Sprintf("embedding failed: %v", err)
		}
		if s.m != nil {
			s.m.EmbedCalls.Inc()
		}
		vector = embedding.FitDimension(embedded, desc.Dimension)
	default:
		return nil, "record has neither text nor vector"
	}

	if reason := validateFields(desc, record.Fields); reason != "" {
		return nil, reason
	}
	return &models.VectorRecord{
		Text:   record.Text,
		Vector: vector,
		Fields: record.Fields,
	}, ""
}

// validateFields 校验附加字段均在集合schema中声明
func validateFields(desc *models.CollectionDescriptor, fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	declared := make(map[string]bool, len(desc.Schema))
	for _, field := range desc.Schema {
		declared[field.Name] = true
	}
	for name := range fields {
		if !declared[name] {
			return fmt.Sprintf("field '%s' not declared in collection schema", name)
		}
	}
	return ""
}

// Delete 按ID批量删除
// 不存在的ID不报错，单独列入MissingIDs并将结果标记为PARTIAL
func (s *Service) Delete(ctx context.Context, collection string, ids []int64) (*DeleteResult, error) {
	if _, err := s.registry.Lookup(collection); err != nil {
		s.finish("delete_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", err.Error()))
		return nil, err
	}
	if len(ids) == 0 {
		appErr := apperrors.NewInvalidArgumentError("ids", "at least one id is required")
		s.finish("delete_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Message))
		return nil, appErr
	}

	deleted, missing, err := s.index.Delete(ctx, collection, ids)
	if err != nil {
		appErr := apperrors.NewBackingStoreError("delete", err)
		s.finish("delete_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Error()))
		return nil, appErr
	}

	outcome := activity.OutcomeSuccess
	if len(missing) > 0 {
		outcome = activity.OutcomePartial
	}
	s.finish("delete_vectors", outcome,
		zap.String("collection", collection),
		zap.Int("deleted", len(deleted)),
		zap.Int("missing", len(missing)))
	return &DeleteResult{DeletedIDs: deleted, MissingIDs: missing, Outcome: outcome}, nil
}

// ResetIDs 将集合内全部记录的ID重排为从0开始的连续序列
// 引擎不支持改主键，通过导出全部记录、按原描述符重建集合、
// 回写新ID实现；空集合没有可重排的ID，直接拒绝
func (s *Service) ResetIDs(ctx context.Context, collection string) (*ResetResult, error) {
	desc, err := s.registry.Lookup(collection)
	if err != nil {
		s.finish("reset_ids", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", err.Error()))
		return nil, err
	}

	count, err := s.index.Count(ctx, collection)
	if err != nil {
		appErr := apperrors.NewBackingStoreError("count", err)
		s.finish("reset_ids", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Error()))
		return nil, appErr
	}
	if count == 0 {
		appErr := apperrors.NewInvalidArgumentError("collection", "collection has no records to renumber")
		s.finish("reset_ids", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Message))
		return nil, appErr
	}

	records, err := s.index.Fetch(ctx, desc, int(count))
	if err != nil {
		appErr := apperrors.NewBackingStoreError("fetch", err)
		s.finish("reset_ids", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Error()))
		return nil, appErr
	}

	if err := s.index.DropCollection(ctx, collection); err != nil {
		appErr := apperrors.NewBackingStoreError("drop_collection", err)
		s.finish("reset_ids", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Error()))
		return nil, appErr
	}
	if err := s.index.CreateCollection(ctx, desc); err != nil {
		appErr := apperrors.NewBackingStoreError("create_collection", err)
		s.finish("reset_ids", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Error()))
		return nil, appErr
	}

	for i := range records {
		records[i].ID = int64(i)
	}
	if _, err := s.index.Insert(ctx, desc, records); err != nil {
		appErr := apperrors.NewBackingStoreError("insert", err)
		s.finish("reset_ids", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Error()))
		return nil, appErr
	}

	s.finish("reset_ids", activity.OutcomeSuccess,
		zap.String("collection", collection),
		zap.Int("count", len(records)))
	return &ResetResult{Count: len(records), Outcome: activity.OutcomeSuccess}, nil
}

// Fetch 枚举集合内记录
// 相同参数与底层数据下结果确定，供调用方巡检数据
func (s *Service) Fetch(ctx context.Context, collection string, limit int) ([]models.VectorRecord, error) {
	desc, err := s.registry.Lookup(collection)
	if err != nil {
		s.finish("fetch_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", err.Error()))
		return nil, err
	}
	if limit <= 0 {
		appErr := apperrors.NewInvalidArgumentError("limit", "must be a positive integer")
		s.finish("fetch_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Message))
		return nil, appErr
	}

	records, err := s.index.Fetch(ctx, desc, limit)
	if err != nil {
		appErr := apperrors.NewBackingStoreError("fetch", err)
		s.finish("fetch_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Error()))
		return nil, appErr
	}

	// 只读枚举记为ACTION
	s.finish("fetch_vectors", activity.OutcomeAction,
		zap.String("collection", collection),
		zap.Int("count", len(records)))
	return records, nil
}

// Search 文本相似度检索
// 度量方式校验在任何引擎调用之前完成：不一致的请求直接拒绝，
// 引擎侧一次调用都不会发生
func (s *Service) Search(ctx context.Context, collection, query, metric string, limit int, params vectorindex.SearchParams) ([]models.SearchMatch, error) {
	if limit <= 0 {
		appErr := apperrors.NewInvalidArgumentError("limit", "must be a positive integer")
		s.finish("search_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Message))
		return nil, appErr
	}
	if query == "" {
		appErr := apperrors.NewInvalidArgumentError("query", "must not be empty")
		s.finish("search_vectors", activity.OutcomeFailure,
			zap.String("collection", collection), zap.String("error", appErr.Message))
		return nil, appErr
	}

	desc, err := s.registry.ValidateMetric(collection, metric)
	if err != nil {
		s.finish("search_vectors", activity.OutcomeFailure,
			zap.String("collection", collection),
			zap.String("metric", metric),
			zap.String("error", err.Error()))
		return nil, err
	}

	// 调优参数只做类型检查后透传，具体语义由引擎解释
	for _, key := range []string{"nprobe", "ef"} {
		if _, _, err := params.IntValue(key); err != nil {
			appErr := apperrors.NewInvalidArgumentError("params", err.Error())
			s.finish("search_vectors", activity.OutcomeFailure,
				zap.String("collection", collection), zap.String("error", appErr.Message))
			return nil, appErr
		}
	}

	embedded, err := s.embedder.Embed(ctx, query)
	if err != nil {
		appErr := apperrors.NewEmbeddingError("failed to embed search query", err)
		s.finish("search_vectors", activity.OutcomeFailure,
			zap.String("collection", collection),
			zap.String("query", activity.QueryExcerpt(query)),
			zap.String("error", appErr.Error()))
		return nil, appErr
	}
	if s.m != nil {
		s.m.EmbedCalls.Inc()
	}
	vector := embedding.FitDimension(embedded, desc.Dimension)

	matches, err := s.index.Query(ctx, desc, vector, params, limit)
	if err != nil {
		appErr := apperrors.NewBackingStoreError("query", err)
		s.finish("search_vectors", activity.OutcomeFailure,
			zap.String("collection", collection),
			zap.String("query", activity.QueryExcerpt(query)),
			zap.String("error", appErr.Error()))
		return nil, appErr
	}

	s.finish("search_vectors", activity.OutcomeSuccess,
		zap.String("collection", collection),
		zap.String("query", activity.QueryExcerpt(query)),
		zap.String("metric", string(desc.Metric)),
		zap.Int("results", len(matches)))
	return matches, nil
}
