package providers

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/BaSui01/imagine3d/llm"
)

// maxErrorBody 错误响应体的读取上限
const maxErrorBody = 64 << 10

// BaseProviderConfig 所有文本后端共享的基础配置
type BaseProviderConfig struct {
	APIKey  string        `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL string        `json:"base_url" yaml:"base_url"`
	Model   string        `json:"model,omitempty" yaml:"model,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// MapHTTPError 将 HTTP 状态码映射为带有合适重试标记的 llm.Error
func MapHTTPError(status int, msg string, provider string) *llm.Error {
	e := &llm.Error{
		Code:       llm.ErrUpstreamError,
		Message:    msg,
		HTTPStatus: status,
		Provider:   provider,
	}
	switch status {
	case http.StatusUnauthorized:
		e.Code = llm.ErrUnauthorized
	case http.StatusForbidden:
		e.Code = llm.ErrForbidden
	case http.StatusTooManyRequests:
		e.Code = llm.ErrRateLimited
		e.Retryable = true
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		e.Code = llm.ErrInvalidRequest
		lower := strings.ToLower(msg)
		if strings.Contains(lower, "quota") || strings.Contains(lower, "credit") {
			e.Code = llm.ErrQuotaExceeded
		}
	case http.StatusGatewayTimeout, http.StatusRequestTimeout:
		e.Code = llm.ErrUpstreamTimeout
		e.Retryable = true
	case 529: // 部分服务商用于模型过载
		e.Code = llm.ErrModelOverloaded
		e.Retryable = true
	default:
		e.Retryable = status >= 500
	}
	return e
}

// UpstreamError 包装传输层错误
func UpstreamError(err error, provider string) *llm.Error {
	return &llm.Error{
		Code:       llm.ErrUpstreamError,
		Message:    err.Error(),
		HTTPStatus: http.StatusBadGateway,
		Retryable:  true,
		Provider:   provider,
	}
}

// ReadErrorMessage 读取响应体中的错误消息。
// 同时支持 OpenAI 风格 {"error":{"message":...}} 与 TGI 风格 {"error":"...","error_type":"..."}，
// 都不匹配时回退到原始文本。
func ReadErrorMessage(body io.Reader) string {
	data, err := io.ReadAll(io.LimitReader(body, maxErrorBody))
	if err != nil {
		return "failed to read error response"
	}

	var envelope struct {
		Error     json.RawMessage `json:"error"`
		ErrorType string          `json:"error_type"`
	}
	if err := json.Unmarshal(data, &envelope); err == nil && len(envelope.Error) > 0 {
		var text string
		if json.Unmarshal(envelope.Error, &text) == nil && text != "" {
			if envelope.ErrorType != "" {
				return fmt.Sprintf("%s (type: %s)", text, envelope.ErrorType)
			}
			return text
		}

		var obj struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if json.Unmarshal(envelope.Error, &obj) == nil && obj.Message != "" {
			if obj.Type != "" {
				return fmt.Sprintf("%s (type: %s)", obj.Message, obj.Type)
			}
			return obj.Message
		}
	}

	return strings.TrimSpace(string(data))
}

// ChooseModel 请求中的模型优先，其次是配置默认值
func ChooseModel(req *llm.GenerateRequest, defaultModel string) string {
	if req != nil && req.Model != "" {
		return req.Model
	}
	return defaultModel
}

// Endpoint 拼接 BaseURL 与路径
func Endpoint(baseURL, path string) string {
	return strings.TrimRight(baseURL, "/") + path
}
