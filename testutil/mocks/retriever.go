package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/chatflow/rag"
)

// RetrieveCall 记录单次检索
type RetrieveCall struct {
	Query string
	TopK  int
}

// MockRetriever 是 rag.Retriever 的模拟实现，返回固定节点并记录查询
type MockRetriever struct {
	mu    sync.Mutex
	nodes rag.RetrievedContext
	fn    func(ctx context.Context, query string, topK int) (rag.RetrievedContext, error)
	err   error
	calls []RetrieveCall
}

var _ rag.Retriever = (*MockRetriever)(nil)

// NewMockRetriever 创建返回 nodes 的检索器
func NewMockRetriever(nodes ...rag.Node) *MockRetriever {
	return &MockRetriever{nodes: nodes}
}

// WithError 设置检索错误
func (m *MockRetriever) WithError(err error) *MockRetriever {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFunc 设置自定义检索函数
func (m *MockRetriever) WithFunc(fn func(ctx context.Context, query string, topK int) (rag.RetrievedContext, error)) *MockRetriever {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// Retrieve 实现 rag.Retriever
func (m *MockRetriever) Retrieve(ctx context.Context, query string, topK int) (rag.RetrievedContext, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, RetrieveCall{Query: query, TopK: topK})
	if m.err != nil {
		return nil, m.err
	}
	if m.fn != nil {
		return m.fn(ctx, query, topK)
	}
	if topK > 0 && len(m.nodes) > topK {
		return m.nodes[:topK].Clone(), nil
	}
	return m.nodes.Clone(), nil
}

// Calls 返回所有检索记录
func (m *MockRetriever) Calls() []RetrieveCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RetrieveCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// Queries 返回所有检索问题
func (m *MockRetriever) Queries() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	for i, c := range m.calls {
		out[i] = c.Query
	}
	return out
}

// CallCount 返回检索次数
func (m *MockRetriever) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
