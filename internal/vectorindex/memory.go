package vectorindex

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/vectorhub/backend-go/internal/models"
)

// MemoryIndex 进程内向量索引
// 用于本地开发与测试；精确计算度量，不做近似检索
type MemoryIndex struct {
	mu          sync.RWMutex
	collections map[string]*memoryCollection

	// CallCounts 按方法统计的调用次数，供测试断言使用
	callMu     sync.Mutex
	CallCounts map[string]int
}

type memoryCollection struct {
	desc    models.CollectionDescriptor
	records map[int64]models.VectorRecord
}

// NewMemoryIndex 创建进程内向量索引
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		collections: make(map[string]*memoryCollection),
		CallCounts:  make(map[string]int),
	}
}

func (s *MemoryIndex) count(method string) {
	s.callMu.Lock()
	s.CallCounts[method]++
	s.callMu.Unlock()
}

// Calls 返回指定方法的调用次数
func (s *MemoryIndex) Calls(method string) int {
	s.callMu.Lock()
	defer s.callMu.Unlock()
	return s.CallCounts[method]
}

func (s *MemoryIndex) CreateCollection(ctx context.Context, desc *models.CollectionDescriptor) error {
	s.count("CreateCollection")
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[desc.Name]; ok {
		return fmt.Errorf("collection '%s' already exists", desc.Name)
	}
	s.collections[desc.Name] = &memoryCollection{
		desc:    *desc,
		records: make(map[int64]models.VectorRecord),
	}
	return nil
}

func (s *MemoryIndex) DropCollection(ctx context.Context, name string) error {
	s.count("DropCollection")
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[name]; !ok {
		return fmt.Errorf("collection '%s' does not exist", name)
	}
	delete(s.collections, name)
	return nil
}

func (s *MemoryIndex) HasCollection(ctx context.Context, name string) (bool, error) {
	s.count("HasCollection")
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *MemoryIndex) Insert(ctx context.Context, desc *models.CollectionDescriptor, records []models.VectorRecord) ([]int64, error) {
	s.count("Insert")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[desc.Name]
	if !ok {
		return nil, fmt.Errorf("collection '%s' does not exist", desc.Name)
	}
	ids := make([]int64, 0, len(records))
	for _, r := range records {
		if len(r.Vector) != coll.desc.Dimension {
			return nil, fmt.Errorf("vector dimension %d does not match collection dimension %d",
				len(r.Vector), coll.desc.Dimension)
		}
		stored := r
		stored.Vector = append([]float32(nil), r.Vector...)
		coll.records[r.ID] = stored
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func (s *MemoryIndex) Delete(ctx context.Context, name string, ids []int64) ([]int64, []int64, error) {
	s.count("Delete")
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, ok := s.collections[name]
	if !ok {
		return nil, nil, fmt.Errorf("collection '%s' does not exist", name)
	}
	deleted := make([]int64, 0, len(ids))
	missing := make([]int64, 0)
	for _, id := range ids {
		if _, ok := coll.records[id]; ok {
			delete(coll.records, id)
			deleted = append(deleted, id)
		} else {
			missing = append(missing, id)
		}
	}
	return deleted, missing, nil
}

func (s *MemoryIndex) Query(ctx context.Context, desc *models.CollectionDescriptor, vector []float32, params SearchParams, limit int) ([]models.SearchMatch, error) {
	s.count("Query")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	// 进程内实现只做参数类型检查，数值本身不影响精确检索
	for _, key := range []string{"nprobe", "ef"} {
		if _, _, err := params.IntValue(key); err != nil {
			return nil, err
		}
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[desc.Name]
	if !ok {
		return nil, fmt.Errorf("collection '%s' does not exist", desc.Name)
	}

	matches := make([]models.SearchMatch, 0, len(coll.records))
	for _, r := range coll.records {
		score, err := scoreByMetric(coll.desc.Metric, vector, r.Vector)
		if err != nil {
			return nil, err
		}
		matches = append(matches, models.SearchMatch{
			ID:     r.ID,
			Score:  score,
			Text:   r.Text,
			Fields: r.Fields,
		})
	}

	ascending := coll.desc.Metric.Ascending()
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			if ascending {
				return matches[i].Score < matches[j].Score
			}
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func scoreByMetric(metric models.Metric, query, target []float32) (float32, error) {
	if len(query) != len(target) {
		return 0, fmt.Errorf("vector length mismatch: %d vs %d", len(query), len(target))
	}
	switch metric {
	case models.MetricL2:
		var sum float64
		for i := range query {
			d := float64(query[i]) - float64(target[i])
			sum += d * d
		}
		return float32(sum), nil
	case models.MetricIP:
		var dot float64
		for i := range query {
			dot += float64(query[i]) * float64(target[i])
		}
		return float32(dot), nil
	case models.MetricCosine:
		var dot, qn, tn float64
		for i := range query {
			dot += float64(query[i]) * float64(target[i])
			qn += float64(query[i]) * float64(query[i])
			tn += float64(target[i]) * float64(target[i])
		}
		if qn == 0 || tn == 0 {
			return 0, nil
		}
		return float32(dot / (math.Sqrt(qn) * math.Sqrt(tn))), nil
	default:
		return 0, fmt.Errorf("unsupported metric '%s'", metric)
	}
}

func (s *MemoryIndex) Fetch(ctx context.Context, desc *models.CollectionDescriptor, limit int) ([]models.VectorRecord, error) {
	s.count("Fetch")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[desc.Name]
	if !ok {
		return nil, fmt.Errorf("collection '%s' does not exist", desc.Name)
	}

	// 按ID升序枚举，保证同样的参数返回同样的结果
	ids := make([]int64, 0, len(coll.records))
	for id := range coll.records {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	records := make([]models.VectorRecord, 0, limit)
	for _, id := range ids {
		if len(records) >= limit {
			break
		}
		records = append(records, coll.records[id])
	}
	return records, nil
}

func (s *MemoryIndex) Count(ctx context.Context, name string) (int64, error) {
	s.count("Count")
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, ok := s.collections[name]
	if !ok {
		return 0, fmt.Errorf("collection '%s' does not exist", name)
	}
	return int64(len(coll.records)), nil
}

func (s *MemoryIndex) Ready() bool {
	return true
}

func (s *MemoryIndex) Close() error {
	return nil
}
