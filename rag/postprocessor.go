package rag

import (
	"context"
)

// Postprocessor 在检索之后对节点做过滤或重排。
// 实现不得修改输入切片。
type Postprocessor interface {
	Process(ctx context.Context, query string, nodes RetrievedContext) (RetrievedContext, error)
}

// SimilarityCutoff 丢弃分数低于阈值的节点。
type SimilarityCutoff struct {
	Threshold float64
}

func (p SimilarityCutoff) Process(_ context.Context, _ string, nodes RetrievedContext) (RetrievedContext, error) {
	out := make(RetrievedContext, 0, len(nodes))
	for _, n := range nodes {
		if n.Score >= p.Threshold {
			out = append(out, n)
		}
	}
	return out, nil
}

// TopN 只保留前 N 个节点；N <= 0 时不截断。
type TopN struct {
	N int
}

func (p TopN) Process(_ context.Context, _ string, nodes RetrievedContext) (RetrievedContext, error) {
	if p.N <= 0 || len(nodes) <= p.N {
		return nodes.Clone(), nil
	}
	return nodes[:p.N].Clone(), nil
}

// ApplyPostprocessors 依次执行后处理器。
func ApplyPostprocessors(ctx context.Context, query string, nodes RetrievedContext, pps ...Postprocessor) (RetrievedContext, error) {
	var err error
	for _, pp := range pps {
		nodes, err = pp.Process(ctx, query, nodes)
		if err != nil {
			return nil, err
		}
	}
	return nodes, nil
}
