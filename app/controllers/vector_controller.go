package controllers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/vectorhub/backend-go/app/bootstrap"
	"github.com/vectorhub/backend-go/internal/vectorindex"
	"github.com/vectorhub/backend-go/internal/vectorops"
)

// VectorController 向量操作控制器
type VectorController struct {
	BaseController
	vectors *vectorops.Service
}

// Prepare 从全局应用获取向量操作服务
func (c *VectorController) Prepare() {
	if app := bootstrap.GetApp(); app != nil {
		c.vectors = app.Vectors
	}
}

// InsertRequest 批量插入请求
type InsertRequest struct {
	Records []vectorops.InsertRecord `json:"records"`
}

// Insert 批量插入向量
// 部分记录失败时返回200，结果体内逐条列出失败原因
func (c *VectorController) Insert() {
	collection := c.Ctx.Input.Param(":name")

	var req InsertRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := c.vectors.Insert(c.Ctx.Request.Context(), collection, req.Records)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(result)
}

// DeleteRequest 批量删除请求
type DeleteRequest struct {
	IDs []int64 `json:"ids"`
}

// Delete 按ID批量删除向量
func (c *VectorController) Delete() {
	collection := c.Ctx.Input.Param(":name")

	var req DeleteRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}

	result, err := c.vectors.Delete(c.Ctx.Request.Context(), collection, req.IDs)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(result)
}

// Fetch 枚举集合内记录
func (c *VectorController) Fetch() {
	collection := c.Ctx.Input.Param(":name")
	limit, err := strconv.Atoi(c.GetString("limit", "100"))
	if err != nil {
		c.JSONError(http.StatusBadRequest, "limit must be an integer")
		return
	}

	records, appErr := c.vectors.Fetch(c.Ctx.Request.Context(), collection, limit)
	if appErr != nil {
		c.JSONAppError(appErr)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"records": records,
		"count":   len(records),
	})
}

// ResetIDs 重排集合内全部记录的ID为从0开始的连续序列
func (c *VectorController) ResetIDs() {
	collection := c.Ctx.Input.Param(":name")

	result, err := c.vectors.ResetIDs(c.Ctx.Request.Context(), collection)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(result)
}

// SearchRequest 相似度检索请求
// Metric必须与集合创建时配置的度量方式一致
type SearchRequest struct {
	Query  string                   `json:"query" validate:"required"`
	Metric string                   `json:"metric" validate:"required"`
	Limit  int                      `json:"limit" validate:"gte=0"`
	Params vectorindex.SearchParams `json:"params,omitempty"`
}

// Search 文本相似度检索
func (c *VectorController) Search() {
	collection := c.Ctx.Input.Param(":name")

	var req SearchRequest
	if err := json.Unmarshal(c.Ctx.Input.RequestBody, &req); err != nil {
		c.JSONError(http.StatusBadRequest, "invalid request body")
		return
	}
	if !c.ValidateRequest(req) {
		return
	}
	if req.Limit == 0 {
		req.Limit = 10
	}

	matches, err := c.vectors.Search(c.Ctx.Request.Context(), collection, req.Query, req.Metric, req.Limit, req.Params)
	if err != nil {
		c.JSONAppError(err)
		return
	}
	c.JSONSuccess(map[string]interface{}{
		"matches": matches,
		"count":   len(matches),
	})
}
