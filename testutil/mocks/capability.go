// MockCapability 能力网关连接的测试模拟实现。
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/imagine3d/gateway"
)

// MockCapability 是 gateway.Capability 的模拟实现
type MockCapability struct {
	mu sync.Mutex

	result   *gateway.Result
	err      error
	panicVal any
	invokeFn func(ctx context.Context, payload map[string]any, caller string) (*gateway.Result, error)

	payloads []map[string]any
	callers  []string
}

var _ gateway.Capability = (*MockCapability)(nil)

// NewMockCapability 创建返回 data 的能力；data 为 nil 时返回 (nil, nil)
func NewMockCapability(data []byte, filename string) *MockCapability {
	m := &MockCapability{}
	if data != nil {
		m.result = &gateway.Result{Data: data, Filename: filename}
	}
	return m
}

// WithError 设置 Invoke 返回的错误
func (m *MockCapability) WithError(err error) *MockCapability {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithPanic 让 Invoke 以 v 触发 panic
func (m *MockCapability) WithPanic(v any) *MockCapability {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.panicVal = v
	return m
}

// WithInvokeFunc 设置自定义 Invoke 函数
func (m *MockCapability) WithInvokeFunc(fn func(ctx context.Context, payload map[string]any, caller string) (*gateway.Result, error)) *MockCapability {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.invokeFn = fn
	return m
}

// Invoke 记录 payload 与调用方后返回配置的结果
func (m *MockCapability) Invoke(ctx context.Context, payload map[string]any, caller string) (*gateway.Result, error) {
	m.mu.Lock()
	m.payloads = append(m.payloads, payload)
	m.callers = append(m.callers, caller)
	fn, res, err, p := m.invokeFn, m.result, m.err, m.panicVal
	m.mu.Unlock()

	if p != nil {
		panic(p)
	}
	if fn != nil {
		return fn(ctx, payload, caller)
	}
	return res, err
}

// Payloads 返回收到的 payload
func (m *MockCapability) Payloads() []map[string]any {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]map[string]any(nil), m.payloads...)
}

// Callers 返回每次调用的调用方
func (m *MockCapability) Callers() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.callers...)
}
