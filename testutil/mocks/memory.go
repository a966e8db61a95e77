// =============================================================================
// 🧠 MockChatStore - 历史存储模拟实现
// =============================================================================
// 基于进程内存储，支持错误注入与调用计数
//
// 使用方法:
//
//	store := mocks.NewMockChatStore().WithAddError(errors.New("disk full"))
//	mem := memory.New(memory.WithStore(store))
// =============================================================================
package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/chatflow/chatengine/memory"
	"github.com/BaSui01/chatflow/types"
)

// MockChatStore 是 memory.ChatStore 的模拟实现
type MockChatStore struct {
	mu    sync.Mutex
	inner *memory.InMemoryChatStore

	// 错误注入
	addErr    error
	getErr    error
	deleteErr error
	failAddAt int // 第 N 次 AddMessage 失败，0 表示不启用

	// 调用记录
	addCalls    int
	getCalls    int
	deleteCalls int
}

var _ memory.ChatStore = (*MockChatStore)(nil)

// NewMockChatStore 创建 MockChatStore
func NewMockChatStore() *MockChatStore {
	return &MockChatStore{inner: memory.NewInMemoryChatStore()}
}

// WithAddError 所有写入失败
func (m *MockChatStore) WithAddError(err error) *MockChatStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addErr = err
	return m
}

// WithGetError 所有读取失败
func (m *MockChatStore) WithGetError(err error) *MockChatStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getErr = err
	return m
}

// WithDeleteError 删除失败
func (m *MockChatStore) WithDeleteError(err error) *MockChatStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteErr = err
	return m
}

// FailAddAt 第 n 次写入失败，用于模拟助手消息写入失败
func (m *MockChatStore) FailAddAt(n int, err error) *MockChatStore {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failAddAt = n
	m.addErr = err
	return m
}

// AddMessage 实现 memory.ChatStore
func (m *MockChatStore) AddMessage(ctx context.Context, key string, msg types.Message) error {
	m.mu.Lock()
	m.addCalls++
	n, failAt, err := m.addCalls, m.failAddAt, m.addErr
	m.mu.Unlock()

	if err != nil && (failAt == 0 || n == failAt) {
		return err
	}
	return m.inner.AddMessage(ctx, key, msg)
}

// GetMessages 实现 memory.ChatStore
func (m *MockChatStore) GetMessages(ctx context.Context, key string) ([]types.Message, error) {
	m.mu.Lock()
	m.getCalls++
	err := m.getErr
	m.mu.Unlock()

	if err != nil {
		return nil, err
	}
	return m.inner.GetMessages(ctx, key)
}

// DeleteMessages 实现 memory.ChatStore
func (m *MockChatStore) DeleteMessages(ctx context.Context, key string) error {
	m.mu.Lock()
	m.deleteCalls++
	err := m.deleteErr
	m.mu.Unlock()

	if err != nil {
		return err
	}
	return m.inner.DeleteMessages(ctx, key)
}

// AddCalls 返回写入次数
func (m *MockChatStore) AddCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.addCalls
}

// GetCalls 返回读取次数
func (m *MockChatStore) GetCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getCalls
}

// DeleteCalls 返回删除次数
func (m *MockChatStore) DeleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteCalls
}
