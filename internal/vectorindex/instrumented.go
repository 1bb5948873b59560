package vectorindex

import (
	"context"

	"github.com/vectorhub/backend-go/internal/metrics"
	"github.com/vectorhub/backend-go/internal/models"
)

// instrumentedIndex 为任意VectorIndex增加Prometheus调用计数
type instrumentedIndex struct {
	next VectorIndex
	m    *metrics.Metrics
}

// Instrument 包装索引实现并统计每个方法的调用数
func Instrument(next VectorIndex, m *metrics.Metrics) VectorIndex {
	if m == nil {
		return next
	}
	return &instrumentedIndex{next: next, m: m}
}

func (s *instrumentedIndex) CreateCollection(ctx context.Context, desc *models.CollectionDescriptor) error {
	s.m.StoreCalls.WithLabelValues("create_collection").Inc()
	return s.next.CreateCollection(ctx, desc)
}

func (s *instrumentedIndex) DropCollection(ctx context.Context, name string) error {
	s.m.StoreCalls.WithLabelValues("drop_collection").Inc()
	return s.next.DropCollection(ctx, name)
}

func (s *instrumentedIndex) HasCollection(ctx context.Context, name string) (bool, error) {
	s.m.StoreCalls.WithLabelValues("has_collection").Inc()
	return s.next.HasCollection(ctx, name)
}

func (s *instrumentedIndex) Insert(ctx context.Context, desc *models.CollectionDescriptor, records []models.VectorRecord) ([]int64, error) {
	s.m.StoreCalls.WithLabelValues("insert").Inc()
	return s.next.Insert(ctx, desc, records)
}

func (s *instrumentedIndex) Delete(ctx context.Context, name string, ids []int64) ([]int64, []int64, error) {
	s.m.StoreCalls.WithLabelValues("delete").Inc()
	return s.next.Delete(ctx, name, ids)
}

func (s *instrumentedIndex) Query(ctx context.Context, desc *models.CollectionDescriptor, vector []float32, params SearchParams, limit int) ([]models.SearchMatch, error) {
	s.m.StoreCalls.WithLabelValues("query").Inc()
	return s.next.Query(ctx, desc, vector, params, limit)
}

func (s *instrumentedIndex) Fetch(ctx context.Context, desc *models.CollectionDescriptor, limit int) ([]models.VectorRecord, error) {
	s.m.StoreCalls.WithLabelValues("fetch").Inc()
	return s.next.Fetch(ctx, desc, limit)
}

func (s *instrumentedIndex) Count(ctx context.Context, name string) (int64, error) {
	s.m.StoreCalls.WithLabelValues("count").Inc()
	return s.next.Count(ctx, name)
}

func (s *instrumentedIndex) Ready() bool {
	return s.next.Ready()
}

func (s *instrumentedIndex) Close() error {
	return s.next.Close()
}
