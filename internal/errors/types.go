package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorCode 错误码类型
type ErrorCode string

// 预定义错误码
const (
	// 注册中心错误
	ErrCodeAlreadyExists     ErrorCode = "ALREADY_EXISTS"
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"
	ErrCodeMetricMismatch    ErrorCode = "METRIC_MISMATCH"
	ErrCodeDimensionMismatch ErrorCode = "DIMENSION_MISMATCH"

	// 请求错误
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"

	// 外部服务错误
	ErrCodeEmbedding    ErrorCode = "EMBEDDING_ERROR"
	ErrCodeBackingStore ErrorCode = "BACKING_STORE_ERROR"

	// 系统错误
	ErrCodeInternalServer ErrorCode = "INTERNAL_SERVER_ERROR"
)

// ErrorType 错误类型
type ErrorType int

const (
	ErrorTypeSystem ErrorType = iota
	ErrorTypeBusiness
	ErrorTypeValidation
	ErrorTypeExternal
)

// AppError 应用错误结构体
type AppError struct {
	Code     ErrorCode   `json:"code"`
	Message  string      `json:"message"`
	Type     ErrorType   `json:"type"`
	HTTPCode int         `json:"-"`
	Details  interface{} `json:"details,omitempty"`
	Cause    error       `json:"-"`
}

// Error 实现error接口
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap 返回底层错误
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithDetails 添加错误详情
func (e *AppError) WithDetails(details interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause 添加错误原因
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// MetricMismatchDetails 度量方式不一致的详细信息，返回给调用方便于自行纠正
// Descriptor携带集合的完整描述符，调用方据此看到期望的配置
type MetricMismatchDetails struct {
	Collection       string      `json:"collection"`
	ConfiguredMetric string      `json:"configured_metric"`
	RequestedMetric  string      `json:"requested_metric"`
	AvailableMetrics []string    `json:"available_metrics"`
	Descriptor       interface{} `json:"descriptor,omitempty"`
}

// DimensionMismatchDetails 向量维度不一致的详细信息
type DimensionMismatchDetails struct {
	Collection string `json:"collection"`
	Expected   int    `json:"expected"`
	Actual     int    `json:"actual"`
}

// NewAlreadyExistsError 集合已存在
func NewAlreadyExistsError(collection string) *AppError {
	return &AppError{
		Code:     ErrCodeAlreadyExists,
		Message:  fmt.Sprintf("collection '%s' already exists", collection),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusConflict,
	}
}

// NewNotFoundError 集合不存在
func NewNotFoundError(collection string) *AppError {
	return &AppError{
		Code:     ErrCodeNotFound,
		Message:  fmt.Sprintf("collection '%s' not found", collection),
		Type:     ErrorTypeBusiness,
		HTTPCode: http.StatusNotFound,
	}
}

// NewMetricMismatchError 度量方式不一致
// 错误信息必须同时包含集合配置的度量方式与请求的度量方式
func NewMetricMismatchError(collection, configured, requested string, descriptor interface{}) *AppError {
	return &AppError{
		Code: ErrCodeMetricMismatch,
		Message: fmt.Sprintf(
			"metric mismatch: collection '%s' was created with metric '%s' but the request asked for '%s'; searches must use the collection's configured metric",
			collection, configured, requested),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
		Details: MetricMismatchDetails{
			Collection:       collection,
			ConfiguredMetric: configured,
			RequestedMetric:  requested,
			AvailableMetrics: []string{"L2", "IP", "COSINE"},
			Descriptor:       descriptor,
		},
	}
}

// NewDimensionMismatchError 向量维度不一致
func NewDimensionMismatchError(collection string, expected, actual int) *AppError {
	return &AppError{
		Code: ErrCodeDimensionMismatch,
		Message: fmt.Sprintf(
			"dimension mismatch: collection '%s' expects vectors of length %d, got %d",
			collection, expected, actual),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
		Details: DimensionMismatchDetails{
			Collection: collection,
			Expected:   expected,
			Actual:     actual,
		},
	}
}

// NewInvalidArgumentError 参数无效
func NewInvalidArgumentError(field, reason string) *AppError {
	return &AppError{
		Code:     ErrCodeInvalidArgument,
		Message:  fmt.Sprintf("invalid argument '%s': %s", field, reason),
		Type:     ErrorTypeValidation,
		HTTPCode: http.StatusBadRequest,
	}
}

// NewEmbeddingError 向量化失败
func NewEmbeddingError(message string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeEmbedding,
		Message:  message,
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
		Cause:    cause,
	}
}

// NewBackingStoreError 包装向量存储引擎返回的任意错误，不做进一步解码
func NewBackingStoreError(operation string, cause error) *AppError {
	return &AppError{
		Code:     ErrCodeBackingStore,
		Message:  fmt.Sprintf("backing store operation '%s' failed", operation),
		Type:     ErrorTypeExternal,
		HTTPCode: http.StatusBadGateway,
		Cause:    cause,
	}
}

// NewSystemError 创建系统错误
func NewSystemError(message string) *AppError {
	return &AppError{
		Code:     ErrCodeInternalServer,
		Message:  message,
		Type:     ErrorTypeSystem,
		HTTPCode: http.StatusInternalServerError,
	}
}

// IsCode 检查错误链中是否存在指定错误码的AppError
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetAppError 获取AppError，如果不是则包装为系统错误
func GetAppError(err error) *AppError {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewSystemError("internal server error").WithCause(err)
}
