package chatengine

import (
	"context"
	"fmt"

	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/types"
	"go.uber.org/zap"
)

// Completer 一次性补全，压缩器只依赖这一能力
type Completer interface {
	Complete(ctx context.Context, messages []types.Message) (string, error)
}

// TextDelta 流式生成的一个文本增量。Err 非空表示流以错误结束。
type TextDelta struct {
	Text string
	Err  error
}

// Synthesizer 生成助手回复。
// Stream 的实现必须在 ctx 取消后停止发送并关闭通道。
type Synthesizer interface {
	Completer
	Stream(ctx context.Context, messages []types.Message) (<-chan TextDelta, error)
}

// CompleterFunc 将普通函数适配为 Completer
type CompleterFunc func(ctx context.Context, messages []types.Message) (string, error)

func (f CompleterFunc) Complete(ctx context.Context, messages []types.Message) (string, error) {
	return f(ctx, messages)
}

// LLMSynthesizerConfig 生成参数
type LLMSynthesizerConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
}

// LLMSynthesizer 基于 llm.Provider 的 Synthesizer
type LLMSynthesizer struct {
	provider llm.Provider
	config   LLMSynthesizerConfig
	logger   *zap.Logger
}

// NewLLMSynthesizer 创建基于 Provider 的生成器
func NewLLMSynthesizer(provider llm.Provider, config LLMSynthesizerConfig, logger *zap.Logger) *LLMSynthesizer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LLMSynthesizer{
		provider: provider,
		config:   config,
		logger: logger.With(
			zap.String("component", "synthesizer"),
			zap.String("provider", provider.Name()),
		),
	}
}

func (s *LLMSynthesizer) request(ctx context.Context, messages []types.Message) *llm.ChatRequest {
	traceID, _ := types.TraceID(ctx)
	return &llm.ChatRequest{
		TraceID:     traceID,
		Model:       s.config.Model,
		Messages:    messages,
		MaxTokens:   s.config.MaxTokens,
		Temperature: s.config.Temperature,
	}
}

// Complete 发起同步补全，返回第一个候选的文本
func (s *LLMSynthesizer) Complete(ctx context.Context, messages []types.Message) (string, error) {
	resp, err := s.provider.Completion(ctx, s.request(ctx, messages))
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", s.provider.Name(), err)
	}
	text, err := llm.FirstContent(resp)
	if err != nil {
		return "", err
	}
	s.logger.Debug("completion finished",
		zap.String("model", resp.Model),
		zap.Int("total_tokens", resp.Usage.TotalTokens))
	return text, nil
}

// Stream 发起流式补全，把 Provider 的增量转换为 TextDelta
func (s *LLMSynthesizer) Stream(ctx context.Context, messages []types.Message) (<-chan TextDelta, error) {
	chunks, err := s.provider.Stream(ctx, s.request(ctx, messages))
	if err != nil {
		return nil, fmt.Errorf("%s stream: %w", s.provider.Name(), err)
	}

	out := make(chan TextDelta)
	go func() {
		defer close(out)
		for chunk := range chunks {
			var d TextDelta
			switch {
			case chunk.Err != nil:
				d.Err = chunk.Err
			case chunk.Delta == "":
				continue
			default:
				d.Text = chunk.Delta
			}
			select {
			case out <- d:
			case <-ctx.Done():
				return
			}
			if d.Err != nil {
				return
			}
		}
	}()
	return out, nil
}
