package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/vectorhub/backend-go/internal/models"
)

// DescriptorStore 集合描述符的持久化存储
// 描述符是metric的唯一事实来源，必须在进程重启后可恢复
type DescriptorStore interface {
	Save(ctx context.Context, desc *models.CollectionDescriptor) error
	Delete(ctx context.Context, name string) error
	Get(ctx context.Context, name string) (*models.CollectionDescriptor, error)
	LoadAll(ctx context.Context) ([]models.CollectionDescriptor, error)
}

// collectionRow 描述符的数据库行，schema字段序列化为JSON
type collectionRow struct {
	ID              uint      `gorm:"primaryKey"`
	Name            string    `gorm:"uniqueIndex;size:255;not null"`
	Dimension       int       `gorm:"not null"`
	Metric          string    `gorm:"size:16;not null"`
	IndexType       string    `gorm:"size:16;not null"`
	IndexParamsJSON string    `gorm:"type:text"`
	SchemaJSON      string    `gorm:"type:text"`
	CreateTime      time.Time `gorm:"autoCreateTime"`
}

func (collectionRow) TableName() string {
	return "vector_collections"
}

func (r *collectionRow) toDescriptor() (*models.CollectionDescriptor, error) {
	desc := &models.CollectionDescriptor{
		Name:       r.Name,
		Dimension:  r.Dimension,
		Metric:     models.Metric(r.Metric),
		IndexType:  models.IndexType(r.IndexType),
		CreateTime: r.CreateTime,
	}
	if r.IndexParamsJSON != "" {
		if err := json.Unmarshal([]byte(r.IndexParamsJSON), &desc.IndexParams); err != nil {
			return nil, fmt.Errorf("failed to decode index params for collection '%s': %w", r.Name, err)
		}
	}
	if r.SchemaJSON != "" {
		if err := json.Unmarshal([]byte(r.SchemaJSON), &desc.Schema); err != nil {
			return nil, fmt.Errorf("failed to decode schema for collection '%s': %w", r.Name, err)
		}
	}
	return desc, nil
}

// GormDescriptorStore 基于Postgres的描述符存储
type GormDescriptorStore struct {
	db *gorm.DB
}

// NewGormDescriptorStore 创建描述符存储并迁移表结构
func NewGormDescriptorStore(db *gorm.DB) (*GormDescriptorStore, error) {
	if err := db.AutoMigrate(&collectionRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate vector_collections: %w", err)
	}
	return &GormDescriptorStore{db: db}, nil
}

func (s *GormDescriptorStore) Save(ctx context.Context, desc *models.CollectionDescriptor) error {
	schemaJSON := ""
	if len(desc.Schema) > 0 {
		data, err := json.Marshal(desc.Schema)
		if err != nil {
			return fmt.Errorf("failed to encode schema: %w", err)
		}
		schemaJSON = string(data)
	}
	indexParamsJSON := ""
	if len(desc.IndexParams) > 0 {
		data, err := json.Marshal(desc.IndexParams)
		if err != nil {
			return fmt.Errorf("failed to encode index params: %w", err)
		}
		indexParamsJSON = string(data)
	}
	row := collectionRow{
		Name:            desc.Name,
		Dimension:       desc.Dimension,
		Metric:          string(desc.Metric),
		IndexType:       string(desc.IndexType),
		IndexParamsJSON: indexParamsJSON,
		SchemaJSON:      schemaJSON,
	}
	return s.db.WithContext(ctx).Create(&row).Error
}

func (s *GormDescriptorStore) Delete(ctx context.Context, name string) error {
	return s.db.WithContext(ctx).Where("name = ?", name).Delete(&collectionRow{}).Error
}

func (s *GormDescriptorStore) Get(ctx context.Context, name string) (*models.CollectionDescriptor, error) {
	var row collectionRow
	err := s.db.WithContext(ctx).Where("name = ?", name).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return row.toDescriptor()
}

func (s *GormDescriptorStore) LoadAll(ctx context.Context) ([]models.CollectionDescriptor, error) {
	var rows []collectionRow
	if err := s.db.WithContext(ctx).Order("name").Find(&rows).Error; err != nil {
		return nil, err
	}
	descriptors := make([]models.CollectionDescriptor, 0, len(rows))
	for i := range rows {
		desc, err := rows[i].toDescriptor()
		if err != nil {
			return nil, err
		}
		descriptors = append(descriptors, *desc)
	}
	return descriptors, nil
}

// MemoryDescriptorStore 进程内描述符存储，用于未配置数据库的部署和测试
type MemoryDescriptorStore struct {
	mu    sync.RWMutex
	descs map[string]models.CollectionDescriptor
}

func NewMemoryDescriptorStore() *MemoryDescriptorStore {
	return &MemoryDescriptorStore{descs: make(map[string]models.CollectionDescriptor)}
}

func (s *MemoryDescriptorStore) Save(ctx context.Context, desc *models.CollectionDescriptor) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.descs[desc.Name]; ok {
		return fmt.Errorf("descriptor '%s' already exists", desc.Name)
	}
	s.descs[desc.Name] = *desc
	return nil
}

func (s *MemoryDescriptorStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.descs, name)
	return nil
}

func (s *MemoryDescriptorStore) Get(ctx context.Context, name string) (*models.CollectionDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	desc, ok := s.descs[name]
	if !ok {
		return nil, nil
	}
	return &desc, nil
}

func (s *MemoryDescriptorStore) LoadAll(ctx context.Context) ([]models.CollectionDescriptor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	descriptors := make([]models.CollectionDescriptor, 0, len(s.descs))
	for _, desc := range s.descs {
		descriptors = append(descriptors, desc)
	}
	sort.Slice(descriptors, func(i, j int) bool { return descriptors[i].Name < descriptors[j].Name })
	return descriptors, nil
}
