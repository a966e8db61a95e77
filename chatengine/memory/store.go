package memory

import (
	"context"
	"sync"

	"github.com/BaSui01/chatflow/types"
)

// ChatStore 按会话 key 持久化消息。实现必须保持追加顺序。
type ChatStore interface {
	// AddMessage 将消息追加到 key 对应历史的末尾
	AddMessage(ctx context.Context, key string, msg types.Message) error

	// GetMessages 按追加顺序返回 key 的全部消息
	GetMessages(ctx context.Context, key string) ([]types.Message, error)

	// DeleteMessages 删除 key 的全部消息
	DeleteMessages(ctx context.Context, key string) error
}

// InMemoryChatStore 进程内 ChatStore
type InMemoryChatStore struct {
	mu    sync.RWMutex
	store map[string][]types.Message
}

// NewInMemoryChatStore 创建进程内存储
func NewInMemoryChatStore() *InMemoryChatStore {
	return &InMemoryChatStore{store: make(map[string][]types.Message)}
}

func (s *InMemoryChatStore) AddMessage(_ context.Context, key string, msg types.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.store[key] = append(s.store[key], msg.Clone())
	return nil
}

func (s *InMemoryChatStore) GetMessages(_ context.Context, key string) ([]types.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return types.CloneMessages(s.store[key]), nil
}

func (s *InMemoryChatStore) DeleteMessages(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.store, key)
	return nil
}
