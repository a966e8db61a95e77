package mocks

import (
	"context"
	"sync"

	"github.com/BaSui01/chatflow/chatengine"
	"github.com/BaSui01/chatflow/types"
)

// MockSynthesizer 是 chatengine.Synthesizer 的模拟实现。
//
// 默认行为是回显：返回最后一条消息的内容。每次调用的提示词都会被记录，
// 可用于逐字节比较不同引擎组装的提示词。
//
// 使用方法:
//
//	gate := make(chan struct{})
//	synth := mocks.NewMockSynthesizer().WithStreamChunks("a", "b").WithGate(gate)
//	// 每向 gate 发送一次，放行一个块
type MockSynthesizer struct {
	mu sync.Mutex

	response     *string
	completeFunc func(ctx context.Context, messages []types.Message) (string, error)
	err          error

	streamChunks []string
	startErr     error
	streamErr    error

	// gate 非空时，Complete 返回前与每个流式块发送前都要等待一次放行
	gate    <-chan struct{}
	started chan struct{}

	prompts       [][]types.Message
	completeCalls int
	streamCalls   int
}

var _ chatengine.Synthesizer = (*MockSynthesizer)(nil)

// NewMockSynthesizer 创建回显生成器
func NewMockSynthesizer() *MockSynthesizer {
	return &MockSynthesizer{started: make(chan struct{}, 64)}
}

// WithResponse 设置固定回复
func (m *MockSynthesizer) WithResponse(text string) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.response = &text
	return m
}

// WithCompleteFunc 设置自定义补全函数，流式调用也用它生成完整文本
func (m *MockSynthesizer) WithCompleteFunc(fn func(ctx context.Context, messages []types.Message) (string, error)) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.completeFunc = fn
	return m
}

// WithError Complete 与 Stream 都返回该错误
func (m *MockSynthesizer) WithError(err error) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithStreamChunks 设置流式块，未设置时整段回复作为一个块
func (m *MockSynthesizer) WithStreamChunks(chunks ...string) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamChunks = chunks
	return m
}

// WithStartError Stream 启动即失败
func (m *MockSynthesizer) WithStartError(err error) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.startErr = err
	return m
}

// WithStreamError 流式块发送完后以错误结束
func (m *MockSynthesizer) WithStreamError(err error) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streamErr = err
	return m
}

// WithGate 设置放行通道
func (m *MockSynthesizer) WithGate(gate <-chan struct{}) *MockSynthesizer {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gate = gate
	return m
}

// Started 每次调用开始时收到一个信号
func (m *MockSynthesizer) Started() <-chan struct{} {
	return m.started
}

func (m *MockSynthesizer) record(messages []types.Message) {
	m.prompts = append(m.prompts, types.CloneMessages(messages))
	select {
	case m.started <- struct{}{}:
	default:
	}
}

func (m *MockSynthesizer) text(ctx context.Context, messages []types.Message) (string, error) {
	switch {
	case m.completeFunc != nil:
		return m.completeFunc(ctx, messages)
	case m.response != nil:
		return *m.response, nil
	case len(messages) > 0:
		return messages[len(messages)-1].Content, nil
	}
	return "", nil
}

func wait(ctx context.Context, gate <-chan struct{}) error {
	if gate == nil {
		return nil
	}
	select {
	case <-gate:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Complete 实现 chatengine.Completer
func (m *MockSynthesizer) Complete(ctx context.Context, messages []types.Message) (string, error) {
	m.mu.Lock()
	m.completeCalls++
	m.record(messages)
	gate, err := m.gate, m.err
	m.mu.Unlock()

	if err := wait(ctx, gate); err != nil {
		return "", err
	}
	if err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	return m.text(ctx, messages)
}

// Stream 实现 chatengine.Synthesizer
func (m *MockSynthesizer) Stream(ctx context.Context, messages []types.Message) (<-chan chatengine.TextDelta, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.streamCalls++
	m.record(messages)
	if m.err != nil {
		return nil, m.err
	}
	if m.startErr != nil {
		return nil, m.startErr
	}

	chunks := m.streamChunks
	if len(chunks) == 0 {
		text, err := m.text(ctx, messages)
		if err != nil {
			return nil, err
		}
		chunks = []string{text}
	}
	gate, streamErr := m.gate, m.streamErr

	ch := make(chan chatengine.TextDelta)
	go func() {
		defer close(ch)
		for _, c := range chunks {
			if err := wait(ctx, gate); err != nil {
				return
			}
			select {
			case ch <- chatengine.TextDelta{Text: c}:
			case <-ctx.Done():
				return
			}
		}
		if streamErr != nil {
			select {
			case ch <- chatengine.TextDelta{Err: streamErr}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

// Prompts 返回每次调用收到的提示词
func (m *MockSynthesizer) Prompts() [][]types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]types.Message, len(m.prompts))
	copy(out, m.prompts)
	return out
}

// LastPrompt 返回最后一次调用的提示词
func (m *MockSynthesizer) LastPrompt() []types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.prompts) == 0 {
		return nil
	}
	return m.prompts[len(m.prompts)-1]
}

// CompleteCalls 返回 Complete 调用次数
func (m *MockSynthesizer) CompleteCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.completeCalls
}

// StreamCalls 返回 Stream 调用次数
func (m *MockSynthesizer) StreamCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streamCalls
}

// MockCompleter 记录调用的 Completer，用作压缩模型
type MockCompleter struct {
	mu       sync.Mutex
	response string
	fn       func(ctx context.Context, messages []types.Message) (string, error)
	err      error
	calls    [][]types.Message
}

var _ chatengine.Completer = (*MockCompleter)(nil)

// NewMockCompleter 返回固定输出的 Completer
func NewMockCompleter(response string) *MockCompleter {
	return &MockCompleter{response: response}
}

// WithError 设置调用错误
func (m *MockCompleter) WithError(err error) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
	return m
}

// WithFunc 设置自定义函数
func (m *MockCompleter) WithFunc(fn func(ctx context.Context, messages []types.Message) (string, error)) *MockCompleter {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fn = fn
	return m
}

// Complete 实现 chatengine.Completer
func (m *MockCompleter) Complete(ctx context.Context, messages []types.Message) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, types.CloneMessages(messages))
	if m.err != nil {
		return "", m.err
	}
	if m.fn != nil {
		return m.fn(ctx, messages)
	}
	return m.response, nil
}

// Calls 返回每次调用的消息
func (m *MockCompleter) Calls() [][]types.Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]types.Message, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount 返回调用次数
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}
