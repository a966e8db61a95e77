package openai

import (
	"context"
	"fmt"

	"github.com/BaSui01/chatflow/rag"
	goopenai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

const defaultEmbeddingModel = "text-embedding-3-small"

// Embedder 基于 Embeddings API 的 rag.Embedder
type Embedder struct {
	client *goopenai.Client
	model  string
	logger *zap.Logger
}

var _ rag.Embedder = (*Embedder)(nil)

// NewEmbedder 创建 Embedder
func NewEmbedder(cfg Config, logger *zap.Logger) *Embedder {
	if logger == nil {
		logger = zap.NewNop()
	}
	model := cfg.EmbeddingModel
	if model == "" {
		model = defaultEmbeddingModel
	}
	return &Embedder{
		client: newClient(cfg),
		model:  model,
		logger: logger.With(zap.String("component", "embedder"), zap.String("model", model)),
	}
}

// Embed 批量向量化，结果顺序与输入一致
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float64, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	resp, err := e.client.CreateEmbeddings(ctx, goopenai.EmbeddingRequest{
		Input:          texts,
		Model:          goopenai.EmbeddingModel(e.model),
		EncodingFormat: goopenai.EmbeddingEncodingFormatFloat,
	})
	if err != nil {
		return nil, mapError(err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("embeddings: got %d vectors for %d inputs", len(resp.Data), len(texts))
	}

	out := make([][]float64, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embeddings: index %d out of range", d.Index)
		}
		vec := make([]float64, len(d.Embedding))
		for i, v := range d.Embedding {
			vec[i] = float64(v)
		}
		out[d.Index] = vec
	}
	e.logger.Debug("texts embedded", zap.Int("count", len(texts)))
	return out, nil
}
