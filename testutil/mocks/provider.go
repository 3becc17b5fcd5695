// MockProvider 文本生成后端的测试模拟实现。
//
// 支持固定回复、回显输入（模拟 return_full_text）、延迟与错误注入。
package mocks

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/BaSui01/imagine3d/llm"
)

// ErrMockFailure WithFailAfter 触发时返回的错误
var ErrMockFailure = errors.New("mock provider: injected failure")

// --- MockProvider 结构 ---

// MockProvider 是 llm.Provider 的模拟实现
type MockProvider struct {
	mu sync.RWMutex

	// 响应配置
	reply      string
	echoPrompt bool
	err        error
	healthErr  error

	// 调用记录
	calls        []MockProviderCall
	generateFunc func(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error)

	// 行为控制
	delay     time.Duration
	failAfter int // 第 N 次调用之后失败，0 表示不启用
	callCount int
}

// MockProviderCall 记录单次调用
type MockProviderCall struct {
	Request  *llm.GenerateRequest
	Response *llm.GenerateResponse
	Error    error
}

var _ llm.Provider = (*MockProvider)(nil)

// --- 构造函数和 Builder 方法 ---

// NewMockProvider 创建新的 MockProvider，默认回显输入并追加回复
func NewMockProvider() *MockProvider {
	return &MockProvider{
		reply:      "Mock expansion.",
		echoPrompt: true,
	}
}

// WithReply 设置助手回复
func (m *MockProvider) WithReply(reply string) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reply = reply
	return m
}

// WithEcho 设置是否在回复前回显渲染后的输入
func (m *MockProvider) WithEcho(echo bool) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.echoPrompt = echo
	return m
}

// WithError 设置 Generate 返回的错误
func (m *MockProvider) WithError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithHealthError 设置 HealthCheck 返回的错误
func (m *MockProvider) WithHealthError(err error) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.healthErr = err
	return m
}

// WithDelay 设置响应延迟，期间响应 ctx 取消
func (m *MockProvider) WithDelay(d time.Duration) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.delay = d
	return m
}

// WithFailAfter 设置在第 N 次调用后失败
func (m *MockProvider) WithFailAfter(n int) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAfter = n
	return m
}

// WithGenerateFunc 设置自定义 Generate 函数，优先于其他配置
func (m *MockProvider) WithGenerateFunc(fn func(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error)) *MockProvider {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.generateFunc = fn
	return m
}

// --- Provider 接口实现 ---

// Name 返回 Provider 名称
func (m *MockProvider) Name() string {
	return "mock"
}

// HealthCheck 执行健康检查
func (m *MockProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.healthErr != nil {
		return &llm.HealthStatus{Healthy: false}, m.healthErr
	}
	return &llm.HealthStatus{Healthy: true, Latency: time.Millisecond}, nil
}

// Generate 返回配置的回复并记录调用
func (m *MockProvider) Generate(ctx context.Context, req *llm.GenerateRequest) (*llm.GenerateResponse, error) {
	m.mu.Lock()
	m.callCount++
	count := m.callCount
	delay := m.delay
	fn := m.generateFunc
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-ctx.Done():
			return m.record(req, nil, ctx.Err())
		case <-time.After(delay):
		}
	}

	if fn != nil {
		resp, err := fn(ctx, req)
		return m.record(req, resp, err)
	}

	m.mu.RLock()
	err := m.err
	failAfter := m.failAfter
	reply := m.reply
	echo := m.echoPrompt
	m.mu.RUnlock()

	if err == nil && failAfter > 0 && count > failAfter {
		err = ErrMockFailure
	}
	if err != nil {
		return m.record(req, nil, err)
	}

	text := reply
	if echo {
		text = req.Prompt + reply
	}
	return m.record(req, &llm.GenerateResponse{
		Provider:     "mock",
		Model:        req.Model,
		Text:         text,
		FinishReason: "stop",
		CreatedAt:    time.Now(),
	}, nil)
}

func (m *MockProvider) record(req *llm.GenerateRequest, resp *llm.GenerateResponse, err error) (*llm.GenerateResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockProviderCall{Request: req, Response: resp, Error: err})
	return resp, err
}

// --- 调用检查 ---

// Calls 返回调用记录副本
func (m *MockProvider) Calls() []MockProviderCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]MockProviderCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockProvider) CallCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.callCount
}

// LastRequest 返回最后一次请求，未调用时为 nil
func (m *MockProvider) LastRequest() *llm.GenerateRequest {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.calls) == 0 {
		return nil
	}
	return m.calls[len(m.calls)-1].Request
}

// Reset 清空调用记录
func (m *MockProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
	m.callCount = 0
}
