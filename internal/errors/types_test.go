package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricMismatchError(t *testing.T) {
	err := NewMetricMismatchError("docs", "COSINE", "L2", nil)

	assert.Equal(t, ErrCodeMetricMismatch, err.Code)
	assert.Equal(t, http.StatusBadRequest, err.HTTPCode)
	// 错误信息必须同时包含两侧的度量方式
	assert.Contains(t, err.Message, "COSINE")
	assert.Contains(t, err.Message, "L2")
	assert.Contains(t, err.Message, "docs")

	details, ok := err.Details.(MetricMismatchDetails)
	require.True(t, ok)
	assert.Equal(t, "COSINE", details.ConfiguredMetric)
	assert.Equal(t, "L2", details.RequestedMetric)
	assert.ElementsMatch(t, []string{"L2", "IP", "COSINE"}, details.AvailableMetrics)
}

func TestNewDimensionMismatchError(t *testing.T) {
	err := NewDimensionMismatchError("docs", 128, 64)

	assert.Equal(t, ErrCodeDimensionMismatch, err.Code)
	assert.Contains(t, err.Message, "128")
	assert.Contains(t, err.Message, "64")

	details, ok := err.Details.(DimensionMismatchDetails)
	require.True(t, ok)
	assert.Equal(t, 128, details.Expected)
	assert.Equal(t, 64, details.Actual)
}

func TestAppError_ErrorAndUnwrap(t *testing.T) {
	cause := stderrors.New("connection refused")
	err := NewBackingStoreError("insert", cause)

	assert.Contains(t, err.Error(), "insert")
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, cause, stderrors.Unwrap(err))
}

func TestIsCode(t *testing.T) {
	notFound := NewNotFoundError("docs")
	assert.True(t, IsCode(notFound, ErrCodeNotFound))
	assert.False(t, IsCode(notFound, ErrCodeAlreadyExists))

	// 包装后的错误链同样可以识别
	wrapped := fmt.Errorf("operation failed: %w", notFound)
	assert.True(t, IsCode(wrapped, ErrCodeNotFound))

	assert.False(t, IsCode(stderrors.New("plain"), ErrCodeNotFound))
	assert.False(t, IsCode(nil, ErrCodeNotFound))
}

func TestGetAppError(t *testing.T) {
	appErr := NewAlreadyExistsError("docs")
	assert.Equal(t, appErr, GetAppError(appErr))

	plain := stderrors.New("boom")
	converted := GetAppError(plain)
	assert.Equal(t, ErrCodeInternalServer, converted.Code)
	assert.Equal(t, plain, converted.Cause)
}

func TestHTTPCodes(t *testing.T) {
	assert.Equal(t, http.StatusConflict, NewAlreadyExistsError("c").HTTPCode)
	assert.Equal(t, http.StatusNotFound, NewNotFoundError("c").HTTPCode)
	assert.Equal(t, http.StatusBadRequest, NewInvalidArgumentError("f", "r").HTTPCode)
	assert.Equal(t, http.StatusBadGateway, NewEmbeddingError("m", nil).HTTPCode)
	assert.Equal(t, http.StatusBadGateway, NewBackingStoreError("op", nil).HTTPCode)
	assert.Equal(t, http.StatusInternalServerError, NewSystemError("m").HTTPCode)
}
