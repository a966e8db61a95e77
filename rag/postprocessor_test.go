package rag

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleNodes() RetrievedContext {
	return RetrievedContext{
		{SourceID: "a", Text: "A", Score: 0.9},
		{SourceID: "b", Text: "B", Score: 0.5},
		{SourceID: "c", Text: "C", Score: 0.2},
	}
}

func TestSimilarityCutoff(t *testing.T) {
	nodes := sampleNodes()
	out, err := SimilarityCutoff{Threshold: 0.5}.Process(context.Background(), "q", nodes)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, out.Texts())
	assert.Len(t, nodes, 3, "input must not be modified")
}

func TestTopN(t *testing.T) {
	out, err := TopN{N: 1}.Process(context.Background(), "q", sampleNodes())
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, out.Texts())

	out, err = TopN{}.Process(context.Background(), "q", sampleNodes())
	require.NoError(t, err)
	assert.Len(t, out, 3)
}

type failingPostprocessor struct{}

func (failingPostprocessor) Process(context.Context, string, RetrievedContext) (RetrievedContext, error) {
	return nil, errors.New("rerank failed")
}

func TestApplyPostprocessors(t *testing.T) {
	out, err := ApplyPostprocessors(context.Background(), "q", sampleNodes(),
		SimilarityCutoff{Threshold: 0.3}, TopN{N: 1})
	require.NoError(t, err)
	assert.Equal(t, []string{"A"}, out.Texts())

	_, err = ApplyPostprocessors(context.Background(), "q", sampleNodes(), failingPostprocessor{})
	assert.Error(t, err)
}
