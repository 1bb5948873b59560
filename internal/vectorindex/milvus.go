package vectorindex

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/vectorhub/backend-go/internal/logger"
	"github.com/vectorhub/backend-go/internal/models"
)

// MilvusOptions Milvus客户端配置
type MilvusOptions struct {
	Address  string
	Username string
	Password string
	Database string
	UseTLS   bool
	Timeout  time.Duration
}

type milvusIndex struct {
	milvusClient client.Client
}

// NewMilvusIndex 创建Milvus向量索引客户端
// 连接在进程启动时获取一次并长期持有，获取失败视为启动致命错误
func NewMilvusIndex(opts MilvusOptions) (VectorIndex, error) {
	if opts.Address == "" {
		opts.Address = "localhost:19530"
	}
	if opts.Database == "" {
		opts.Database = "default"
	}
	timeout := opts.Timeout
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	milvusClient, err := client.NewClient(ctx, client.Config{
		Address:       opts.Address,
		DBName:        opts.Database,
		Username:      opts.Username,
		Password:      opts.Password,
		EnableTLSAuth: opts.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	return &milvusIndex{milvusClient: milvusClient}, nil
}

func milvusMetricType(m models.Metric) entity.MetricType {
	switch m {
	case models.MetricCosine:
		return entity.COSINE
	case models.MetricIP:
		return entity.IP
	default:
		return entity.L2
	}
}

// buildVectorIndex 按描述符选定的索引类型和构建参数生成索引定义
func buildVectorIndex(desc *models.CollectionDescriptor) (entity.Index, error) {
	metricType := milvusMetricType(desc.Metric)
	params := desc.IndexParams
	if len(params) == 0 {
		params = models.DefaultIndexParams(desc.IndexType)
	}
	param := func(key string, fallback int) int {
		if v, ok := params[key]; ok {
			return v
		}
		return fallback
	}

	var (
		index entity.Index
		err   error
	)
	switch desc.IndexType {
	case models.IndexHNSW:
		index, err = entity.NewIndexHNSW(metricType, param("M", 16), param("efConstruction", 500))
	case models.IndexIvfSQ8:
		index, err = entity.NewIndexIvfSQ8(metricType, param("nlist", 1024))
	case models.IndexFlat:
		index, err = entity.NewIndexFlat(metricType)
	default:
		index, err = entity.NewIndexIvfFlat(metricType, param("nlist", 1024))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create index: %w", err)
	}
	return index, nil
}

func (s *milvusIndex) CreateCollection(ctx context.Context, desc *models.CollectionDescriptor) error {
	fields := []*entity.Field{
		{
			Name:       "id",
			DataType:   entity.FieldTypeInt64,
			PrimaryKey: true,
			AutoID:     false,
		},
		{
			Name:     "text",
			DataType: entity.FieldTypeVarChar,
			TypeParams: map[string]string{
				"max_length": "65535",
			},
		},
		{
			Name:     "vector",
			DataType: entity.FieldTypeFloatVector,
			TypeParams: map[string]string{
				"dim": fmt.Sprintf("%d", desc.Dimension),
			},
		},
	}
	for _, f := range desc.Schema {
		field := &entity.Field{Name: f.Name}
		switch f.Type {
		case models.FieldTypeInt64:
			field.DataType = entity.FieldTypeInt64
		case models.FieldTypeFloat:
			field.DataType = entity.FieldTypeFloat
		case models.FieldTypeBool:
			field.DataType = entity.FieldTypeBool
		case models.FieldTypeVarChar:
			field.DataType = entity.FieldTypeVarChar
			field.TypeParams = map[string]string{
				"max_length": strconv.Itoa(f.MaxLength),
			}
		default:
			return fmt.Errorf("unsupported schema field type '%s'", f.Type)
		}
		fields = append(fields, field)
	}

	schema := &entity.Schema{
		CollectionName: desc.Name,
		Description:    fmt.Sprintf("vectorhub collection %s", desc.Name),
		Fields:         fields,
	}

	if err := s.milvusClient.CreateCollection(ctx, schema, entity.DefaultShardNumber); err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	index, err := buildVectorIndex(desc)
	if err != nil {
		return err
	}
	if err := s.milvusClient.CreateIndex(ctx, desc.Name, "vector", index, false); err != nil {
		return fmt.Errorf("failed to build vector index: %w", err)
	}

	if err := s.milvusClient.LoadCollection(ctx, desc.Name, false); err != nil {
		// 加载失败不影响集合已创建，首次检索时会再次加载
		logger.Warn("failed to load collection after create",
			zap.String("collection", desc.Name), zap.Error(err))
	}
	return nil
}

func (s *milvusIndex) DropCollection(ctx context.Context, name string) error {
	if err := s.milvusClient.DropCollection(ctx, name); err != nil {
		return fmt.Errorf("failed to drop collection: %w", err)
	}
	return nil
}

func (s *milvusIndex) HasCollection(ctx context.Context, name string) (bool, error) {
	has, err := s.milvusClient.HasCollection(ctx, name)
	if err != nil {
		return false, fmt.Errorf("failed to check collection: %w", err)
	}
	return has, nil
}

func (s *milvusIndex) Insert(ctx context.Context, desc *models.CollectionDescriptor, records []models.VectorRecord) ([]int64, error) {
	if len(records) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(records))
	texts := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
		texts = append(texts, r.Text)
		vectors = append(vectors, r.Vector)
	}

	columns := []entity.Column{
		entity.NewColumnInt64("id", ids),
		entity.NewColumnVarChar("text", texts),
		entity.NewColumnFloatVector("vector", desc.Dimension, vectors),
	}

	// 附加字段按集合schema声明的顺序构造列，缺失的取零值
	for _, f := range desc.Schema {
		col, err := buildFieldColumn(f, records)
		if err != nil {
			return nil, err
		}
		columns = append(columns, col)
	}

	if _, err := s.milvusClient.Insert(ctx, desc.Name, "", columns...); err != nil {
		return nil, fmt.Errorf("milvus insert failed: %w", err)
	}

	if err := s.milvusClient.Flush(ctx, desc.Name, false); err != nil {
		// 刷新失败不影响插入结果
		logger.Warn("failed to flush after insert",
			zap.String("collection", desc.Name), zap.Error(err))
	}
	return ids, nil
}

func buildFieldColumn(f models.SchemaField, records []models.VectorRecord) (entity.Column, error) {
	switch f.Type {
	case models.FieldTypeInt64:
		values := make([]int64, len(records))
		for i, r := range records {
			values[i] = toInt64(r.Fields[f.Name])
		}
		return entity.NewColumnInt64(f.Name, values), nil
	case models.FieldTypeFloat:
		values := make([]float32, len(records))
		for i, r := range records {
			values[i] = toFloat32(r.Fields[f.Name])
		}
		return entity.NewColumnFloat(f.Name, values), nil
	case models.FieldTypeBool:
		values := make([]bool, len(records))
		for i, r := range records {
			values[i], _ = r.Fields[f.Name].(bool)
		}
		return entity.NewColumnBool(f.Name, values), nil
	case models.FieldTypeVarChar:
		values := make([]string, len(records))
		for i, r := range records {
			if v, ok := r.Fields[f.Name]; ok && v != nil {
				values[i] = fmt.Sprintf("%v", v)
			}
		}
		return entity.NewColumnVarChar(f.Name, values), nil
	default:
		return nil, fmt.Errorf("unsupported schema field type '%s'", f.Type)
	}
}

func toInt64(v interface{}) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	case float32:
		return int64(n)
	default:
		return 0
	}
}

func toFloat32(v interface{}) float32 {
	switch n := v.(type) {
	case float32:
		return n
	case float64:
		return float32(n)
	case int:
		return float32(n)
	case int64:
		return float32(n)
	default:
		return 0
	}
}

func (s *milvusIndex) Delete(ctx context.Context, name string, ids []int64) ([]int64, []int64, error) {
	if len(ids) == 0 {
		return nil, nil, nil
	}

	// Milvus的delete不返回命中数，先查询存在的ID才能报告缺失项
	expr := idInExpr(ids)
	rs, err := s.milvusClient.Query(ctx, name, nil, expr, []string{"id"})
	if err != nil {
		return nil, nil, fmt.Errorf("milvus query failed: %w", err)
	}

	existing := make(map[int64]struct{})
	for _, col := range rs {
		if idCol, ok := col.(*entity.ColumnInt64); ok && idCol.Name() == "id" {
			for _, id := range idCol.Data() {
				existing[id] = struct{}{}
			}
		}
	}

	deleted := make([]int64, 0, len(ids))
	missing := make([]int64, 0)
	for _, id := range ids {
		if _, ok := existing[id]; ok {
			deleted = append(deleted, id)
		} else {
			missing = append(missing, id)
		}
	}

	if len(deleted) > 0 {
		if err := s.milvusClient.Delete(ctx, name, "", idInExpr(deleted)); err != nil {
			return nil, nil, fmt.Errorf("milvus delete failed: %w", err)
		}
		if err := s.milvusClient.Flush(ctx, name, false); err != nil {
			logger.Warn("failed to flush after delete",
				zap.String("collection", name), zap.Error(err))
		}
	}
	return deleted, missing, nil
}

func idInExpr(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return fmt.Sprintf("id in [%s]", strings.Join(parts, ", "))
}

func (s *milvusIndex) Query(ctx context.Context, desc *models.CollectionDescriptor, vector []float32, params SearchParams, limit int) ([]models.SearchMatch, error) {
	if err := s.milvusClient.LoadCollection(ctx, desc.Name, false); err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	sp, err := buildSearchParam(params)
	if err != nil {
		return nil, err
	}

	outputFields := []string{"text"}
	for _, f := range desc.Schema {
		outputFields = append(outputFields, f.Name)
	}

	searchResults, err := s.milvusClient.Search(
		ctx,
		desc.Name,
		nil,
		"",
		outputFields,
		[]entity.Vector{entity.FloatVector(vector)},
		"vector",
		milvusMetricType(desc.Metric),
		limit,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("milvus search failed: %w", err)
	}
	if len(searchResults) == 0 {
		return []models.SearchMatch{}, nil
	}
	result := searchResults[0]
	if result.Err != nil {
		return nil, fmt.Errorf("milvus search error: %w", result.Err)
	}

	matches := make([]models.SearchMatch, 0, result.ResultCount)
	var ids []int64
	if idCol, ok := result.IDs.(*entity.ColumnInt64); ok {
		ids = idCol.Data()
	}
	for i := 0; i < result.ResultCount; i++ {
		match := models.SearchMatch{Fields: make(map[string]interface{})}
		if i < len(ids) {
			match.ID = ids[i]
		}
		if i < len(result.Scores) {
			match.Score = result.Scores[i]
		}
		for _, field := range result.Fields {
			value, err := fieldValueAt(field, i)
			if err != nil {
				continue
			}
			if field.Name() == "text" {
				if text, ok := value.(string); ok {
					match.Text = text
				}
				continue
			}
			match.Fields[field.Name()] = value
		}
		matches = append(matches, match)
	}
	return matches, nil
}

// buildSearchParam 将透传参数映射为SDK检索参数
// ef对应HNSW，nprobe对应IVF；都未提供时使用HNSW默认值
func buildSearchParam(params SearchParams) (entity.SearchParam, error) {
	if ef, ok, err := params.IntValue("ef"); err != nil {
		return nil, err
	} else if ok {
		return entity.NewIndexHNSWSearchParam(ef)
	}
	if nprobe, ok, err := params.IntValue("nprobe"); err != nil {
		return nil, err
	} else if ok {
		return entity.NewIndexIvfFlatSearchParam(nprobe)
	}
	return entity.NewIndexHNSWSearchParam(64)
}

func fieldValueAt(col entity.Column, i int) (interface{}, error) {
	switch c := col.(type) {
	case *entity.ColumnInt64:
		if i < len(c.Data()) {
			return c.Data()[i], nil
		}
	case *entity.ColumnFloat:
		if i < len(c.Data()) {
			return c.Data()[i], nil
		}
	case *entity.ColumnBool:
		if i < len(c.Data()) {
			return c.Data()[i], nil
		}
	case *entity.ColumnVarChar:
		if i < len(c.Data()) {
			return c.Data()[i], nil
		}
	}
	return nil, fmt.Errorf("no value at index %d for column %s", i, col.Name())
}

func (s *milvusIndex) Fetch(ctx context.Context, desc *models.CollectionDescriptor, limit int) ([]models.VectorRecord, error) {
	if err := s.milvusClient.LoadCollection(ctx, desc.Name, false); err != nil {
		return nil, fmt.Errorf("failed to load collection: %w", err)
	}

	outputFields := []string{"id", "text", "vector"}
	for _, f := range desc.Schema {
		outputFields = append(outputFields, f.Name)
	}

	// id >= 0 恒为真；Milvus的query要求非空过滤表达式
	rs, err := s.milvusClient.Query(ctx, desc.Name, nil, "id >= 0", outputFields,
		client.WithLimit(int64(limit)))
	if err != nil {
		return nil, fmt.Errorf("milvus query failed: %w", err)
	}

	var (
		ids     []int64
		texts   []string
		vectors [][]float32
	)
	fieldCols := make([]entity.Column, 0, len(desc.Schema))
	for _, col := range rs {
		switch col.Name() {
		case "id":
			if c, ok := col.(*entity.ColumnInt64); ok {
				ids = c.Data()
			}
		case "text":
			if c, ok := col.(*entity.ColumnVarChar); ok {
				texts = c.Data()
			}
		case "vector":
			if c, ok := col.(*entity.ColumnFloatVector); ok {
				vectors = c.Data()
			}
		default:
			fieldCols = append(fieldCols, col)
		}
	}

	records := make([]models.VectorRecord, 0, len(ids))
	for i := range ids {
		rec := models.VectorRecord{
			ID:     ids[i],
			Fields: make(map[string]interface{}),
		}
		if i < len(texts) {
			rec.Text = texts[i]
		}
		if i < len(vectors) {
			rec.Vector = vectors[i]
		}
		for _, col := range fieldCols {
			if v, err := fieldValueAt(col, i); err == nil {
				rec.Fields[col.Name()] = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *milvusIndex) Count(ctx context.Context, name string) (int64, error) {
	stats, err := s.milvusClient.GetCollectionStatistics(ctx, name)
	if err != nil {
		return 0, fmt.Errorf("failed to get collection statistics: %w", err)
	}
	rowCount, ok := stats["row_count"]
	if !ok {
		return 0, nil
	}
	count, err := strconv.ParseInt(rowCount, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("unexpected row_count value '%s': %w", rowCount, err)
	}
	return count, nil
}

func (s *milvusIndex) Ready() bool {
	if s.milvusClient == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, err := s.milvusClient.ListCollections(ctx)
	return err == nil
}

func (s *milvusIndex) Close() error {
	if s.milvusClient == nil {
		return nil
	}
	return s.milvusClient.Close()
}
