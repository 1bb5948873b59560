package controllers

import (
	"net/http"

	"github.com/beego/beego/v2/server/web"
	"github.com/go-playground/validator/v10"

	apperrors "github.com/vectorhub/backend-go/internal/errors"
)

var validate = validator.New()

// BaseController provides helpers for consistent JSON responses.
type BaseController struct {
	web.Controller
}

// ValidateRequest 校验请求结构体的字段约束
func (c *BaseController) ValidateRequest(req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		c.JSONError(http.StatusBadRequest, err.Error())
		return false
	}
	return true
}

// JSON writes a JSON response with the supplied HTTP status code.
func (c *BaseController) JSON(status int, payload interface{}) {
	c.Ctx.Output.SetStatus(status)
	c.Data["json"] = payload
	c.ServeJSON()
}

// JSONSuccess writes a standard success envelope.
func (c *BaseController) JSONSuccess(data interface{}) {
	c.JSON(http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    data,
	})
}

// JSONError writes an error envelope with message.
func (c *BaseController) JSONError(status int, message string) {
	c.JSON(status, map[string]interface{}{
		"success": false,
		"error":   message,
	})
}

// JSONAppError 按应用错误写出错误响应
// 错误码与详情原样下发，HTTP状态码取自错误定义
func (c *BaseController) JSONAppError(err error) {
	appErr := apperrors.GetAppError(err)
	payload := map[string]interface{}{
		"success": false,
		"code":    appErr.Code,
		"error":   appErr.Message,
	}
	if appErr.Details != nil {
		payload["details"] = appErr.Details
	}
	c.JSON(appErr.HTTPCode, payload)
}
