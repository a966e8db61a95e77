package memory

import (
	"context"
	"fmt"

	"github.com/BaSui01/chatflow/llm/tokenizer"
	"github.com/BaSui01/chatflow/types"
	"go.uber.org/zap"
)

// DefaultSessionKey 未指定会话 key 时使用
const DefaultSessionKey = "chat_history"

// Memory 单个会话的对话历史缓冲区。
// 并发安全性由底层 ChatStore 保证；引擎保证同一时刻只有一个轮次写入。
type Memory struct {
	store     ChatStore
	key       string
	tokenizer tokenizer.Tokenizer
	logger    *zap.Logger
}

// Option Memory 选项
type Option func(*Memory)

// WithStore 设置持久化后端，默认 InMemoryChatStore
func WithStore(store ChatStore) Option {
	return func(m *Memory) { m.store = store }
}

// WithSessionKey 设置会话 key
func WithSessionKey(key string) Option {
	return func(m *Memory) { m.key = key }
}

// WithTokenizer 设置 Snapshot 使用的分词器，默认估算器
func WithTokenizer(t tokenizer.Tokenizer) Option {
	return func(m *Memory) { m.tokenizer = t }
}

// WithLogger 设置日志
func WithLogger(logger *zap.Logger) Option {
	return func(m *Memory) { m.logger = logger }
}

// New 创建 Memory
func New(opts ...Option) *Memory {
	m := &Memory{
		key:       DefaultSessionKey,
		tokenizer: tokenizer.NewEstimatorTokenizer(),
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.store == nil {
		m.store = NewInMemoryChatStore()
	}
	if m.logger == nil {
		m.logger = zap.NewNop()
	}
	m.logger = m.logger.With(zap.String("component", "chat_memory"), zap.String("session_key", m.key))
	return m
}

// SessionKey 返回会话 key
func (m *Memory) SessionKey() string { return m.key }

// Append 将消息追加到历史末尾
func (m *Memory) Append(ctx context.Context, msg types.Message) error {
	if err := m.store.AddMessage(ctx, m.key, msg); err != nil {
		return types.WrapError(types.ErrStorage, "append message", err)
	}
	return nil
}

// Messages 返回完整历史
func (m *Memory) Messages(ctx context.Context) ([]types.Message, error) {
	msgs, err := m.store.GetMessages(ctx, m.key)
	if err != nil {
		return nil, types.WrapError(types.ErrStorage, "load messages", err)
	}
	return types.CloneMessages(msgs), nil
}

// Snapshot 返回适配 tokenBudget 的历史窗口。
// 从最旧的消息开始丢弃，之后再丢弃窗口开头的 assistant/tool 消息，
// 保证窗口不会从半个轮次开始。tokenBudget <= 0 表示不限制。
func (m *Memory) Snapshot(ctx context.Context, tokenBudget int) ([]types.Message, error) {
	msgs, err := m.Messages(ctx)
	if err != nil {
		return nil, err
	}
	if tokenBudget <= 0 {
		return msgs, nil
	}

	start, err := m.windowStart(msgs, tokenBudget)
	if err != nil {
		return nil, err
	}
	for start < len(msgs) && (msgs[start].Role == types.RoleAssistant || msgs[start].Role == types.RoleTool) {
		start++
	}

	if start > 0 {
		m.logger.Debug("history truncated",
			zap.Int("dropped", start),
			zap.Int("kept", len(msgs)-start),
			zap.Int("token_budget", tokenBudget))
	}
	return types.CloneMessages(msgs[start:]), nil
}

// windowStart 返回总 token 数不超过 budget 的最长后缀的起始下标
func (m *Memory) windowStart(msgs []types.Message, budget int) (int, error) {
	total := 0
	for i := len(msgs) - 1; i >= 0; i-- {
		n, err := tokenizer.CountMessage(m.tokenizer, msgs[i])
		if err != nil {
			return 0, fmt.Errorf("count tokens: %w", err)
		}
		if total+n > budget {
			return i + 1, nil
		}
		total += n
	}
	return 0, nil
}

// Reset 清空历史
func (m *Memory) Reset(ctx context.Context) error {
	if err := m.store.DeleteMessages(ctx, m.key); err != nil {
		return types.WrapError(types.ErrStorage, "reset history", err)
	}
	m.logger.Debug("history reset")
	return nil
}
