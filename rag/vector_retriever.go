package rag

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// VectorRetriever 先向量化查询，再在 VectorStore 中做相似度检索。
type VectorRetriever struct {
	store    VectorStore
	embedder Embedder
	logger   *zap.Logger
}

// NewVectorRetriever 创建向量检索器
func NewVectorRetriever(store VectorStore, embedder Embedder, logger *zap.Logger) *VectorRetriever {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VectorRetriever{
		store:    store,
		embedder: embedder,
		logger:   logger.With(zap.String("component", "vector_retriever")),
	}
}

// Retrieve 检索与 query 最相关的 topK 个节点
func (r *VectorRetriever) Retrieve(ctx context.Context, query string, topK int) (RetrievedContext, error) {
	embeddings, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, fmt.Errorf("embed query: expected 1 embedding, got %d", len(embeddings))
	}

	results, err := r.store.Search(ctx, embeddings[0], topK)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}

	nodes := make(RetrievedContext, 0, len(results))
	for _, res := range results {
		nodes = append(nodes, Node{
			SourceID: res.Document.ID,
			Text:     res.Document.Content,
			Score:    res.Score,
			Metadata: res.Document.Metadata,
		})
	}

	r.logger.Debug("retrieved nodes",
		zap.Int("top_k", topK),
		zap.Int("count", len(nodes)))

	return nodes, nil
}
