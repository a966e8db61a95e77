package metrics

import (
	"context"
	"time"

	"github.com/BaSui01/chatflow/llm"
)

// InstrumentedProvider 为 llm.Provider 记录请求指标
type InstrumentedProvider struct {
	llm.Provider
	collector *Collector
}

// InstrumentProvider 包装 provider；collector 为 nil 时原样返回
func InstrumentProvider(p llm.Provider, c *Collector) llm.Provider {
	if c == nil {
		return p
	}
	return &InstrumentedProvider{Provider: p, collector: c}
}

// Completion 记录同步请求的耗时与 Token 用量
func (p *InstrumentedProvider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	start := time.Now()
	resp, err := p.Provider.Completion(ctx, req)
	if err != nil {
		p.collector.RecordLLMRequest(p.Name(), req.Model, "completion", "error", time.Since(start), 0, 0)
		return nil, err
	}
	p.collector.RecordLLMRequest(p.Name(), req.Model, "completion", "success", time.Since(start),
		resp.Usage.PromptTokens, resp.Usage.CompletionTokens)
	return resp, nil
}

// Stream 转发增量，流结束时记录一次请求
func (p *InstrumentedProvider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	start := time.Now()
	in, err := p.Provider.Stream(ctx, req)
	if err != nil {
		p.collector.RecordLLMRequest(p.Name(), req.Model, "stream", "error", time.Since(start), 0, 0)
		return nil, err
	}

	out := make(chan llm.StreamChunk)
	go func() {
		defer close(out)
		status := "success"
		var usage llm.ChatUsage
		defer func() {
			p.collector.RecordLLMRequest(p.Name(), req.Model, "stream", status, time.Since(start),
				usage.PromptTokens, usage.CompletionTokens)
		}()

		for chunk := range in {
			if chunk.Err != nil {
				status = "error"
			}
			if chunk.Usage != nil {
				usage = *chunk.Usage
			}
			select {
			case out <- chunk:
			case <-ctx.Done():
				status = "cancelled"
				return
			}
		}
	}()
	return out, nil
}
