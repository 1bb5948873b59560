package controllers

import (
	"encoding/json"
	"net/http"

	"github.com/vectorhub/backend-go/app/bootstrap"
	"github.com/vectorhub/backend-go/internal/models"
	"github.com/vectorhub/backend-go/internal/registry"
)

// CollectionController 集合管理控制器
type CollectionController struct {
	BaseController
	registry *registry.Registry
}

// Prepare 从全局应用获取注册中心
func (c *CollectionController) Prepare() {
	if app := bootstrap.GetApp(); app != nil {
		c.registry = app.Registry
	}
}

// CreateCollectionRequest 创建集合请求
// IndexType缺省为IVF_FLAT，IndexParams缺省取索引类型的默认构建参数
type CreateCollectionRequest struct {
	Name        string               `json:"name" validate:"required"`
	Dimension   int                  `json:"dimension" validate:"gt=0"`
	Metric      string               `json:"metric" validate:"required"`
	IndexType   string               `json:"index_type,omitempty"`
	IndexParams map[string]int       `json:"index_params,omitempty"`
	Schema      []models.SchemaField `json:"schema,omitempty"`
}

// Create 创建集合
func (c *CollectionController) Create() {
	var req CreateCollectionRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}
	if !c.ValidateRequest(req) {
		return
	}

	desc, err := c.registry.Create(c.Ctx.Request.Context(), registry.CreateRequest{
		Name:        req.Name,
		Dimension:   req.Dimension,
		Metric:      req.Metric,
		IndexType:   req.IndexType,
		IndexParams: req.IndexParams,
		Schema:      req.Schema,
	})
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(desc)
}

// Delete 删除集合及其全部向量
func (c *CollectionController) Delete() {
	name := c.Ctx.Input.Param(":name")
	if err := c.registry.Delete(c.Ctx.Request.Context(), name); err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{"deleted": name})
}

// List 返回全部集合名
func (c *CollectionController) List() {
	names := c.registry.List(c.Ctx.Request.Context())
	c.JSONSuccess(map[string]interface{}{
		"collections": names,
		"count":       len(names),
	})
}

// Describe 返回集合描述符与当前记录数
func (c *CollectionController) Describe() {
	name := c.Ctx.Input.Param(":name")
	desc, err := c.registry.Describe(c.Ctx.Request.Context(), name)
	if err != nil {
		c.JSONAppError(err)
		return
	}

	payload := map[string]interface{}{
		"descriptor": desc,
	}
	// 记录数来自引擎侧，引擎不可达时描述符照常返回
	if count, err := c.registry.EntityCount(c.Ctx.Request.Context(), name); err == nil {
		payload["entity_count"] = count
	}
	c.JSONSuccess(payload)
}
