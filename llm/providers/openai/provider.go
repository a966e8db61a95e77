package openai

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/BaSui01/chatflow/llm"
	"github.com/BaSui01/chatflow/llm/providers"
	"github.com/BaSui01/chatflow/types"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const (
	providerName  = "openai"
	fallbackModel = "gpt-4o-mini"
)

// Config OpenAI 客户端配置
type Config struct {
	APIKey         string
	BaseURL        string
	Model          string
	EmbeddingModel string
	Timeout        time.Duration
	// HTTPClient 为空时按 Timeout 创建
	HTTPClient *http.Client
}

// Provider 基于 go-openai 的 llm.Provider
type Provider struct {
	client *goopenai.Client
	cfg    Config
	logger *zap.Logger
}

var _ llm.Provider = (*Provider)(nil)

func newClient(cfg Config) *goopenai.Client {
	oc := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		oc.BaseURL = cfg.BaseURL
	}
	switch {
	case cfg.HTTPClient != nil:
		oc.HTTPClient = cfg.HTTPClient
	case cfg.Timeout > 0:
		oc.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return goopenai.NewClientWithConfig(oc)
}

// New 创建 Provider
func New(cfg Config, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		client: newClient(cfg),
		cfg:    cfg,
		logger: logger.With(zap.String("component", "llm"), zap.String("provider", providerName)),
	}
}

// Name 返回 Provider 标识
func (p *Provider) Name() string { return providerName }

func (p *Provider) request(req *llm.ChatRequest, stream bool) goopenai.ChatCompletionRequest {
	msgs := make([]goopenai.ChatCompletionMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		msgs = append(msgs, goopenai.ChatCompletionMessage{Role: string(m.Role), Content: m.Content})
	}
	out := goopenai.ChatCompletionRequest{
		Model:       providers.ChooseModel(req, p.cfg.Model, fallbackModel),
		Messages:    msgs,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      stream,
	}
	if stream {
		out.StreamOptions = &goopenai.StreamOptions{IncludeUsage: true}
	}
	return out
}

// Completion 发起同步补全
func (p *Provider) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	oreq := p.request(req, false)
	resp, err := p.client.CreateChatCompletion(ctx, oreq)
	if err != nil {
		mapped := mapError(err)
		p.logger.Warn("completion failed",
			zap.String("model", oreq.Model),
			zap.String("trace_id", req.TraceID),
			zap.Error(mapped))
		return nil, mapped
	}

	choices := make([]llm.ChatChoice, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		choices = append(choices, llm.ChatChoice{
			Index:        c.Index,
			FinishReason: string(c.FinishReason),
			Message:      types.NewAssistantMessage(c.Message.Content),
		})
	}
	return &llm.ChatResponse{
		ID:       resp.ID,
		Provider: providerName,
		Model:    resp.Model,
		Choices:  choices,
		Usage: llm.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
		CreatedAt: time.Unix(resp.Created, 0),
	}, nil
}

// Stream 发起流式补全。ctx 取消后停止读取并关闭通道。
func (p *Provider) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	oreq := p.request(req, true)
	stream, err := p.client.CreateChatCompletionStream(ctx, oreq)
	if err != nil {
		return nil, mapError(err)
	}

	ch := make(chan llm.StreamChunk)
	go func() {
		defer close(ch)
		defer stream.Close()

		for {
			resp, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				p.logger.Warn("stream failed", zap.String("model", oreq.Model), zap.Error(err))
				select {
				case ch <- llm.StreamChunk{Provider: providerName, Err: mapError(err)}:
				case <-ctx.Done():
				}
				return
			}

			for _, chunk := range toChunks(resp) {
				select {
				case ch <- chunk:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return ch, nil
}

// toChunks 把一个 SSE 事件转换为增量；只携带 usage 的末尾事件也会转发
func toChunks(resp goopenai.ChatCompletionStreamResponse) []llm.StreamChunk {
	var usage *llm.ChatUsage
	if resp.Usage != nil {
		usage = &llm.ChatUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		}
	}
	if len(resp.Choices) == 0 {
		if usage == nil {
			return nil
		}
		return []llm.StreamChunk{{ID: resp.ID, Provider: providerName, Model: resp.Model, Usage: usage}}
	}

	out := make([]llm.StreamChunk, 0, len(resp.Choices))
	for _, c := range resp.Choices {
		out = append(out, llm.StreamChunk{
			ID:           resp.ID,
			Provider:     providerName,
			Model:        resp.Model,
			Index:        c.Index,
			Delta:        c.Delta.Content,
			FinishReason: string(c.FinishReason),
			Usage:        usage,
		})
	}
	return out
}

// mapError 把 go-openai 的错误转换为 types.Error
func mapError(err error) *types.Error {
	var apiErr *goopenai.APIError
	if errors.As(err, &apiErr) {
		return providers.MapHTTPError(apiErr.HTTPStatusCode, apiErr.Message, providerName).WithCause(err)
	}
	var reqErr *goopenai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode > 0 {
		return providers.MapHTTPError(reqErr.HTTPStatusCode, reqErr.Error(), providerName).WithCause(err)
	}
	return providers.MapTransportError(err, providerName)
}
