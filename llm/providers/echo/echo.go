// Package echo 提供回显最后一条用户消息的 llm.Provider，
// 不依赖任何外部服务，用于本地演示与冒烟测试。
package echo

import (
	"context"
	"strings"
	"time"

	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/types"
	"github.com/google/uuid"
)

const providerName = "echo"

// Provider 回显 Provider。Delay 为每个流式增量之间的间隔。
type Provider struct {
	Delay time.Duration
}

var _ llm.Provider = (*Provider)(nil)

// New 创建回显 Provider
func New() *Provider { return &Provider{} }

// Name 返回 Provider 标识
func (p *Provider) Name() string { return providerName }

// lastUserContent 返回最后一条用户消息；没有时返回最后一条消息
func lastUserContent(msgs []types.Message) string {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == types.RoleUser {
			return msgs[i].Content
		}
	}
	if len(msgs) > 0 {
		return msgs[len(msgs)-1].Content
	}
	return ""
}

// Completion 返回最后一条用户消息
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, types.WrapError(types.ErrCancelled, "request cancelled", err).WithProvider(providerName)
	}
	text := lastUserContent(req.Messages)
	return &llm.ChatResponse{
		ID:       uuid.NewString(),
		Provider: providerName,
		Model:    req.Model,
		Choices: []llm.ChatChoice{{
			FinishReason: "stop",
			Message:      types.NewAssistantMessage(text),
		}},
		CreatedAt: time.Now(),
	}, nil
}

// Stream 按单词（保留空白）逐个输出
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	words := splitKeepSpace(lastUserContent(req.Messages))
	id := uuid.NewString()

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		for i, w := range words {
			if p.Delay > 0 && i > 0 {
				select {
				case <-time.After(p.Delay):
				case <-ctx.Done():
					return
				}
			}
			chunk := llm.StreamChunk{ID: id, Provider: providerName, Model: req.Model, Index: i, Delta: w}
			if i == len(words)-1 {
				chunk.FinishReason = "stop"
			}
			select {
			case ch <- chunk:
			case <-ctx.Done():
				return
			}
		}
	}()
	return ch, nil
}

// splitKeepSpace 把 "a b  c" 切分为 ["a ", "b  ", "c"]，拼接后等于原文
func splitKeepSpace(s string) []string {
	var out []string
	start := 0
	inWord := false
	for i, r := range s {
		space := r == ' ' || r == '\n' || r == '\t'
		if !space && !inWord && i > 0 && strings.TrimSpace(s[start:i]) != "" {
			out = append(out, s[start:i])
			start = i
		}
		inWord = !space
	}
	if start < len(s) {
		out = append(out, s[start:])
	}
	return out
}
