package di

import (
	"context"
	"fmt"

	"go.uber.org/dig"
	"gorm.io/gorm"

	"github.com/vectorhub/backend-go/internal/activity"
	"github.com/vectorhub/backend-go/internal/config"
	"github.com/vectorhub/backend-go/internal/database"
	"github.com/vectorhub/backend-go/internal/embedding"
	"github.com/vectorhub/backend-go/internal/metrics"
	"github.com/vectorhub/backend-go/internal/registry"
	"github.com/vectorhub/backend-go/internal/vectorindex"
	"github.com/vectorhub/backend-go/internal/vectorops"
)

// RegisterProviders 注册所有依赖提供者
// 外部连接（数据库、向量引擎）在构造时获取一次，
// 获取失败沿依赖链传出，由启动流程决定是否致命
func RegisterProviders(container *dig.Container) error {
	// 注册配置
	if err := container.Provide(func() (*config.Config, error) {
		cfg := config.GetAppConfig()
		if cfg == nil {
			return nil, fmt.Errorf("config not loaded")
		}
		return cfg, nil
	}); err != nil {
		return err
	}

	// 注册指标
	if err := container.Provide(func(cfg *config.Config) *metrics.Metrics {
		if !cfg.Metrics.Enabled {
			return nil
		}
		return metrics.Default()
	}); err != nil {
		return err
	}

	// 注册审计记录器
	if err := container.Provide(func(cfg *config.Config) (*activity.Recorder, error) {
		return activity.NewRecorder(cfg.Activity)
	}); err != nil {
		return err
	}

	// 注册数据库（可选，未启用时描述符落在进程内）
	if err := container.Provide(func(cfg *config.Config) (*gorm.DB, error) {
		if !cfg.Database.Enabled {
			return nil, nil
		}
		return database.InitDB(cfg.Database)
	}); err != nil {
		return err
	}

	// 注册描述符存储
	if err := container.Provide(func(cfg *config.Config, db *gorm.DB) (registry.DescriptorStore, error) {
		if cfg.Database.Enabled && db != nil {
			return registry.NewGormDescriptorStore(db)
		}
		return registry.NewMemoryDescriptorStore(), nil
	}); err != nil {
		return err
	}

	// 注册向量存储引擎，所有调用经过指标装饰器
	if err := container.Provide(func(cfg *config.Config, m *metrics.Metrics) (vectorindex.VectorIndex, error) {
		var index vectorindex.VectorIndex
		switch cfg.Milvus.Provider {
		case "memory":
			index = vectorindex.NewMemoryIndex()
		default:
			milvusIndex, err := vectorindex.NewMilvusIndex(vectorindex.MilvusOptions{
				Address:  cfg.Milvus.Address,
				Username: cfg.Milvus.Username,
				Password: cfg.Milvus.Password,
				Database: cfg.Milvus.Database,
				UseTLS:   cfg.Milvus.TLS,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to connect to vector store: %w", err)
			}
			index = milvusIndex
		}
		return vectorindex.Instrument(index, m), nil
	}); err != nil {
		return err
	}

	// 注册向量化模型，进程级单例
	if err := container.Provide(func(cfg *config.Config) embedding.Embedder {
		return embedding.Default(cfg.Embedding)
	}); err != nil {
		return err
	}

	// 注册集合注册中心
	if err := container.Provide(func(store registry.DescriptorStore, index vectorindex.VectorIndex, rec *activity.Recorder) (*registry.Registry, error) {
		return registry.NewRegistry(context.Background(), store, index, rec)
	}); err != nil {
		return err
	}

	// 注册向量操作服务
	if err := container.Provide(vectorops.NewService); err != nil {
		return err
	}

	return nil
}
