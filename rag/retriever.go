package rag

import (
	"context"
)

// Node 是一条检索结果。
type Node struct {
	SourceID string         `json:"source_id"`
	Text     string         `json:"text"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// RetrievedContext 是一次检索得到的有序结果，按相关度降序排列。
// 生成后不可修改。
type RetrievedContext []Node

// Texts 返回所有节点的文本。
func (rc RetrievedContext) Texts() []string {
	out := make([]string, len(rc))
	for i, n := range rc {
		out[i] = n.Text
	}
	return out
}

// Clone 返回一个独立副本。
func (rc RetrievedContext) Clone() RetrievedContext {
	if rc == nil {
		return nil
	}
	out := make(RetrievedContext, len(rc))
	copy(out, rc)
	return out
}

// Retriever 为查询检索支撑段落。
type Retriever interface {
	Retrieve(ctx context.Context, query string, topK int) (RetrievedContext, error)
}

// RetrieverFunc 将普通函数适配为 Retriever。
type RetrieverFunc func(ctx context.Context, query string, topK int) (RetrievedContext, error)

func (f RetrieverFunc) Retrieve(ctx context.Context, query string, topK int) (RetrievedContext, error) {
	return f(ctx, query, topK)
}
