package providers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/types"
)

// MapHTTPError 将 HTTP 状态码映射为带有重试标记的 types.Error
func MapHTTPError(status int, msg string, provider string) *types.Error {
	var code types.ErrorCode
	retryable := false

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = types.ErrUnauthorized
	case http.StatusTooManyRequests:
		code, retryable = types.ErrRateLimited, true
	case http.StatusBadRequest, http.StatusNotFound, http.StatusUnprocessableEntity:
		code = types.ErrInvalidRequest
	case http.StatusRequestTimeout, http.StatusGatewayTimeout:
		code, retryable = types.ErrUpstreamTimeout, true
	case http.StatusServiceUnavailable, http.StatusBadGateway, 529:
		code, retryable = types.ErrServiceUnavailable, true
	default:
		code, retryable = types.ErrUpstreamError, status >= 500
	}

	return types.NewError(code, msg).
		WithHTTPStatus(status).
		WithRetryable(retryable).
		WithProvider(provider)
}

// MapTransportError 处理没有 HTTP 状态码的失败（连接错误、超时、取消）
func MapTransportError(err error, provider string) *types.Error {
	switch {
	case errors.Is(err, context.Canceled):
		return types.WrapError(types.ErrCancelled, "request cancelled", err).WithProvider(provider)
	case errors.Is(err, context.DeadlineExceeded):
		return types.WrapError(types.ErrUpstreamTimeout, "request timed out", err).
			WithRetryable(true).WithProvider(provider)
	}
	msg := err.Error()
	if strings.Contains(strings.ToLower(msg), "timeout") {
		return types.WrapError(types.ErrUpstreamTimeout, msg, err).WithRetryable(true).WithProvider(provider)
	}
	return types.WrapError(types.ErrUpstreamError, msg, err).WithRetryable(true).WithProvider(provider)
}

// ChooseModel 按请求 → 默认 → 兜底的顺序选择模型
func ChooseModel(req *llm.ChatRequest, defaultModel, fallbackModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	if defaultModel != "" {
		return defaultModel
	}
	return fallbackModel
}
